package application

import (
	"context"
	"errors"
	"log"
	"time"

	analytics "drycell-monitor/internal/analytics/domain"
)

// HistoryReader supplies the ordered, deduplicated sample history the engine
// evaluates. The engine owns no sample state of its own: every evaluation is
// re-derivable from the history the reader returns.
type HistoryReader interface {
	History(ctx context.Context, cellID string, from, to time.Time) ([]analytics.Sample, error)
}

// BandResolver supplies the static band table for a cell.
type BandResolver interface {
	BandsFor(cellID string) analytics.BandTable
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Snapshot is the engine output for one cell at one evaluation instant.
// It is plain data, safe to hand to any display technology. Metrics absent
// from Stats or Anomalies had insufficient history; Status always covers
// every tracked metric, with UNKNOWN marking sensor dropout.
type Snapshot struct {
	CellID        string                                      `json:"cell_id"`
	At            time.Time                                   `json:"at"`
	WindowMinutes int                                         `json:"window_minutes"`
	Latest        *analytics.SampleRecord                     `json:"latest,omitempty"`
	Stats         map[analytics.Metric]analytics.RollingStats `json:"stats"`
	Anomalies     map[analytics.Metric]analytics.AnomalyFlag  `json:"anomalies"`
	Status        map[analytics.Metric]analytics.Band         `json:"status"`
	Overall       analytics.Band                              `json:"overall"`
}

// EvaluationService turns sample history into snapshots and summaries. Each
// call is an independent, single-threaded computation over an immutable
// history; concurrent calls for different cells or windows need no locking.
type EvaluationService struct {
	history       HistoryReader
	bands         BandResolver
	detector      analytics.Detector
	windowMinutes int
	logger        *log.Logger
}

// ServiceOption customizes the evaluation service.
type ServiceOption func(*EvaluationService)

// WithDetector swaps the anomaly detection policy.
func WithDetector(detector analytics.Detector) ServiceOption {
	return func(s *EvaluationService) {
		if detector != nil {
			s.detector = detector
		}
	}
}

// WithWindowMinutes sets the default window length. Out-of-range values are
// clamped, not rejected.
func WithWindowMinutes(minutes int) ServiceOption {
	return func(s *EvaluationService) {
		s.windowMinutes = analytics.ClampWindowMinutes(minutes)
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) ServiceOption {
	return func(s *EvaluationService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewEvaluationService constructs the engine service.
func NewEvaluationService(history HistoryReader, bands BandResolver, opts ...ServiceOption) (*EvaluationService, error) {
	if history == nil {
		return nil, errors.New("evaluation: nil history reader")
	}
	if bands == nil {
		return nil, errors.New("evaluation: nil band resolver")
	}
	service := &EvaluationService{
		history:       history,
		bands:         bands,
		detector:      analytics.NewZScoreDetector(analytics.DefaultAnomalyThreshold),
		windowMinutes: 30,
		logger:        log.Default(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// WindowMinutes returns the default window length.
func (s *EvaluationService) WindowMinutes() int { return s.windowMinutes }

// Snapshot evaluates a cell at the given instant. A windowMinutes of zero
// uses the service default. A dropout in one sensor never blocks status
// reporting for the others: every output field degrades independently.
func (s *EvaluationService) Snapshot(ctx context.Context, cellID string, at time.Time, windowMinutes int) (Snapshot, error) {
	if s == nil {
		return Snapshot{}, errors.New("evaluation: nil service")
	}
	if cellID == "" {
		return Snapshot{}, errors.New("evaluation: empty cell id")
	}
	if at.IsZero() {
		return Snapshot{}, errors.New("evaluation: zero evaluation time")
	}
	if windowMinutes == 0 {
		windowMinutes = s.windowMinutes
	}
	windowMinutes = analytics.ClampWindowMinutes(windowMinutes)
	window := time.Duration(windowMinutes) * time.Minute

	// Fetch one extra window so the baseline of a latest sample older than
	// the evaluation instant is still complete.
	history, err := s.history.History(ctx, cellID, at.Add(-2*window), at)
	if err != nil {
		return Snapshot{}, err
	}

	snapshot := Snapshot{
		CellID:        cellID,
		At:            at,
		WindowMinutes: windowMinutes,
		Stats:         make(map[analytics.Metric]analytics.RollingStats),
		Anomalies:     make(map[analytics.Metric]analytics.AnomalyFlag),
		Status:        make(map[analytics.Metric]analytics.Band),
		Overall:       analytics.BandUnknown,
	}

	table := s.bands.BandsFor(cellID)
	if len(history) == 0 {
		for _, metric := range analytics.TrackedMetrics() {
			snapshot.Status[metric] = analytics.BandUnknown
		}
		return snapshot, nil
	}

	latest := history[len(history)-1]
	record := latest.Record()
	snapshot.Latest = &record

	for _, metric := range analytics.TrackedMetrics() {
		if stats, ok := analytics.WindowStats(history, metric, at, windowMinutes); ok {
			snapshot.Stats[metric] = stats
		}
		value, present := latest.Value(metric)
		if present {
			if baseline, ok := analytics.BaselineStats(history, metric, latest.TS(), windowMinutes); ok {
				snapshot.Anomalies[metric] = s.detector.Detect(value, baseline)
			}
		}
		snapshot.Status[metric] = table.ClassifyValue(metric, value, present)
	}

	bands := make([]analytics.Band, 0, len(snapshot.Status))
	for _, band := range snapshot.Status {
		bands = append(bands, band)
	}
	snapshot.Overall = analytics.WorstBand(bands...)
	return snapshot, nil
}

// Summary evaluates every sample of a batch and aggregates the results.
func (s *EvaluationService) Summary(ctx context.Context, cellID string, from, to time.Time, windowMinutes int) (analytics.Summary, error) {
	if s == nil {
		return analytics.Summary{}, errors.New("evaluation: nil service")
	}
	if cellID == "" {
		return analytics.Summary{}, errors.New("evaluation: empty cell id")
	}
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return analytics.Summary{}, errors.New("evaluation: invalid batch range")
	}
	if windowMinutes == 0 {
		windowMinutes = s.windowMinutes
	}
	windowMinutes = analytics.ClampWindowMinutes(windowMinutes)
	window := time.Duration(windowMinutes) * time.Minute

	// Baselines for samples early in the batch need history before it.
	history, err := s.history.History(ctx, cellID, from.Add(-window), to)
	if err != nil {
		return analytics.Summary{}, err
	}

	table := s.bands.BandsFor(cellID)
	evaluations := make([]analytics.SampleEvaluation, 0, len(history))
	for _, sample := range history {
		ts := sample.TS()
		if ts.Before(from) || ts.After(to) {
			continue
		}

		eval := analytics.SampleEvaluation{
			Sample:    sample,
			Anomalies: make(map[analytics.Metric]analytics.AnomalyFlag),
			Status:    table.ClassifySample(sample),
		}
		for _, metric := range analytics.TrackedMetrics() {
			value, present := sample.Value(metric)
			if !present {
				continue
			}
			if baseline, ok := analytics.BaselineStats(history, metric, ts, windowMinutes); ok {
				eval.Anomalies[metric] = s.detector.Detect(value, baseline)
			}
		}
		evaluations = append(evaluations, eval)
	}

	return analytics.Summarize(from, to, evaluations), nil
}
