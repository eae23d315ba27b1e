package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	analytics "drycell-monitor/internal/analytics/domain"
)

const (
	metricPrefix = "drycell_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestLatency  prometheus.Histogram

	evaluationsTotal  *prometheus.CounterVec
	evaluationLatency prometheus.Histogram

	anomaliesTotal *prometheus.CounterVec

	rollingMean   *prometheus.GaugeVec
	rollingStdDev *prometheus.GaugeVec
	currentZScore *prometheus.GaugeVec
	statusLevel   *prometheus.GaugeVec

	cacheOps *prometheus.CounterVec
)

// Init registers observability metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total ingest requests by result",
			},
			[]string{"result"},
		)
		ingestLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "ingest_latency_seconds",
			Help:    "Ingest request latency in seconds",
			Buckets: prometheus.DefBuckets,
		})
		evaluationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "evaluations_total",
				Help: "Total engine evaluations by result",
			},
			[]string{"result"},
		)
		evaluationLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "evaluation_latency_seconds",
			Help:    "Engine evaluation latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		})
		anomaliesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "anomalies_total",
				Help: "Total anomalies flagged by cell and metric",
			},
			[]string{"cell", "metric"},
		)
		rollingMean = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "rolling_mean",
				Help: "Rolling window mean by cell and metric",
			},
			[]string{"cell", "metric"},
		)
		rollingStdDev = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "rolling_stddev",
				Help: "Rolling window sample standard deviation by cell and metric",
			},
			[]string{"cell", "metric"},
		)
		currentZScore = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "current_zscore",
				Help: "Latest z-score by cell and metric",
			},
			[]string{"cell", "metric"},
		)
		statusLevel = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "status_severity",
				Help: "Status band severity by cell and metric (0 normal, 1 unknown, 2 warning, 3 critical)",
			},
			[]string{"cell", "metric"},
		)
		cacheOps = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "cache_operations_total",
				Help: "Total snapshot cache operations by operation and result",
			},
			[]string{"operation", "result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestLatency,
			evaluationsTotal,
			evaluationLatency,
			anomaliesTotal,
			rollingMean,
			rollingStdDev,
			currentZScore,
			statusLevel,
			cacheOps,
		)
	})
}

// ObserveIngest records one ingest request.
func ObserveIngest(success bool, elapsed time.Duration) {
	if ingestRequests == nil {
		return
	}
	ingestRequests.WithLabelValues(result(success)).Inc()
	ingestLatency.Observe(elapsed.Seconds())
}

// ObserveEvaluation records one engine evaluation.
func ObserveEvaluation(success bool, elapsed time.Duration) {
	if evaluationsTotal == nil {
		return
	}
	evaluationsTotal.WithLabelValues(result(success)).Inc()
	evaluationLatency.Observe(elapsed.Seconds())
}

// CountAnomaly records one flagged anomaly.
func CountAnomaly(cellID string, metric analytics.Metric) {
	if anomaliesTotal == nil {
		return
	}
	anomaliesTotal.WithLabelValues(cellID, string(metric)).Inc()
}

// SetRollingStats publishes the rolling baseline for a cell metric.
func SetRollingStats(cellID string, metric analytics.Metric, stats analytics.RollingStats) {
	if rollingMean == nil {
		return
	}
	rollingMean.WithLabelValues(cellID, string(metric)).Set(stats.Mean)
	rollingStdDev.WithLabelValues(cellID, string(metric)).Set(stats.StdDev)
}

// SetZScore publishes the latest z-score for a cell metric.
func SetZScore(cellID string, metric analytics.Metric, zScore float64) {
	if currentZScore == nil {
		return
	}
	currentZScore.WithLabelValues(cellID, string(metric)).Set(zScore)
}

// SetStatus publishes the status band severity for a cell metric.
func SetStatus(cellID string, metric analytics.Metric, band analytics.Band) {
	if statusLevel == nil {
		return
	}
	statusLevel.WithLabelValues(cellID, string(metric)).Set(float64(band.Severity()))
}

// CountCacheOp records one snapshot cache operation.
func CountCacheOp(operation string, success bool) {
	if cacheOps == nil {
		return
	}
	cacheOps.WithLabelValues(operation, result(success)).Inc()
}

func result(success bool) string {
	if success {
		return resultSuccess
	}
	return resultError
}
