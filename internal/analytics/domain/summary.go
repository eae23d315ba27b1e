package analytics

import (
	"time"

	"github.com/montanaflynn/stats"
)

// SampleEvaluation pairs one sample of a batch with the detector and
// classifier outputs already computed for it. The reporter only aggregates;
// it introduces no thresholds of its own.
type SampleEvaluation struct {
	Sample    Sample
	Anomalies map[Metric]AnomalyFlag
	Status    map[Metric]Band
}

// MetricSummary is the descriptive statistics of one metric over a batch.
// HasData is false when the metric was missing for every sample, in which
// case the numeric fields are meaningless.
type MetricSummary struct {
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"stddev"`
	Count        int     `json:"count"`
	AnomalyCount int     `json:"anomaly_count"`
	HasData      bool    `json:"has_data"`
}

// Summary aggregates a batch of evaluated samples for display.
type Summary struct {
	From          time.Time                `json:"from"`
	To            time.Time                `json:"to"`
	SampleCount   int                      `json:"sample_count"`
	Metrics       map[Metric]MetricSummary `json:"metrics"`
	OverallStatus Band                     `json:"overall_status"`
}

// Summarize reduces a batch of per-sample evaluations to per-metric
// descriptive statistics plus the worst status band seen in the batch.
func Summarize(from, to time.Time, evaluations []SampleEvaluation) Summary {
	summary := Summary{
		From:        from,
		To:          to,
		SampleCount: len(evaluations),
		Metrics:     make(map[Metric]MetricSummary, len(TrackedMetrics())),
	}

	bands := make([]Band, 0, len(evaluations)*len(TrackedMetrics()))
	for _, metric := range TrackedMetrics() {
		values := make([]float64, 0, len(evaluations))
		anomalies := 0
		for _, eval := range evaluations {
			if value, ok := eval.Sample.Value(metric); ok {
				values = append(values, value)
			}
			if flag, ok := eval.Anomalies[metric]; ok && flag.IsAnomalous {
				anomalies++
			}
			if band, ok := eval.Status[metric]; ok {
				bands = append(bands, band)
			}
		}
		summary.Metrics[metric] = describeMetric(values, anomalies)
	}

	summary.OverallStatus = WorstBand(bands...)
	return summary
}

func describeMetric(values []float64, anomalies int) MetricSummary {
	ms := MetricSummary{Count: len(values), AnomalyCount: anomalies}
	if len(values) == 0 {
		return ms
	}
	ms.HasData = true

	ms.Min, _ = stats.Min(values)
	ms.Max, _ = stats.Max(values)
	ms.Mean, _ = stats.Mean(values)
	if len(values) >= 2 {
		ms.StdDev, _ = stats.StandardDeviationSample(values)
	}
	return ms
}
