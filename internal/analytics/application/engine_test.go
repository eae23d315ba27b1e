package application

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	analytics "drycell-monitor/internal/analytics/domain"
)

type stubHistory struct {
	samples []analytics.Sample
	err     error

	calls int
	from  time.Time
	to    time.Time
}

func (s *stubHistory) History(_ context.Context, _ string, from, to time.Time) ([]analytics.Sample, error) {
	s.calls++
	s.from = from
	s.to = to
	if s.err != nil {
		return nil, s.err
	}
	out := make([]analytics.Sample, 0, len(s.samples))
	for _, sample := range s.samples {
		ts := sample.TS()
		if ts.Before(from) || ts.After(to) {
			continue
		}
		out = append(out, sample)
	}
	return out, nil
}

type stubBands struct {
	table analytics.BandTable
}

func (s stubBands) BandsFor(string) analytics.BandTable { return s.table }

func mustSample(t *testing.T, ts time.Time, values map[string]float64) analytics.Sample {
	t.Helper()
	sample, err := analytics.NewSample(ts, values)
	if err != nil {
		t.Fatalf("new sample: %v", err)
	}
	return sample
}

func tempBands() analytics.BandTable {
	return analytics.BandTable{
		analytics.MetricTemperature: {
			Normal:  analytics.BandRange{Min: 40, Max: 70},
			Warning: analytics.BandRange{Min: 30, Max: 80},
		},
	}
}

func newTestService(t *testing.T, history HistoryReader, opts ...ServiceOption) *EvaluationService {
	t.Helper()
	service, err := NewEvaluationService(history, stubBands{table: tempBands()}, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestNewEvaluationServiceValidation(t *testing.T) {
	if _, err := NewEvaluationService(nil, stubBands{}); err == nil {
		t.Fatal("nil history reader must be rejected")
	}
	if _, err := NewEvaluationService(&stubHistory{}, nil); err == nil {
		t.Fatal("nil band resolver must be rejected")
	}
}

func TestSnapshotSpikeDetection(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	history := &stubHistory{}
	temps := []float64{50, 51, 52, 95}
	for i, temp := range temps {
		history.samples = append(history.samples, mustSample(t,
			start.Add(time.Duration(i*10)*time.Minute),
			map[string]float64{analytics.FieldTemperature: temp}))
	}

	service := newTestService(t, history)
	at := start.Add(30 * time.Minute)
	snapshot, err := service.Snapshot(context.Background(), "cell-1", at, 60)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	if snapshot.WindowMinutes != 60 {
		t.Fatalf("window: got %d want 60", snapshot.WindowMinutes)
	}
	if snapshot.Latest == nil || snapshot.Latest.Temperature == nil || *snapshot.Latest.Temperature != 95 {
		t.Fatalf("latest record: got %+v", snapshot.Latest)
	}

	flag, ok := snapshot.Anomalies[analytics.MetricTemperature]
	if !ok {
		t.Fatal("temperature anomaly flag missing")
	}
	if !flag.IsAnomalous {
		t.Fatalf("spike must flag, z=%v", flag.ZScore)
	}
	// The spike must not dilute its own baseline: mean of {50,51,52} is 51.
	wantZ := (95.0 - 51.0) / 1.0
	if math.Abs(flag.ZScore-wantZ) > 1e-9 {
		t.Fatalf("z-score: got %v want %v", flag.ZScore, wantZ)
	}

	// Reported window stats include the spike.
	stats, ok := snapshot.Stats[analytics.MetricTemperature]
	if !ok {
		t.Fatal("temperature stats missing")
	}
	if stats.SampleCount != 4 {
		t.Fatalf("stats sample count: got %d want 4", stats.SampleCount)
	}

	if snapshot.Status[analytics.MetricTemperature] != analytics.BandCritical {
		t.Fatalf("status: got %s want CRITICAL", snapshot.Status[analytics.MetricTemperature])
	}
	if snapshot.Overall != analytics.BandCritical {
		t.Fatalf("overall: got %s want CRITICAL", snapshot.Overall)
	}
}

func TestSnapshotSingleSample(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	history := &stubHistory{samples: []analytics.Sample{
		mustSample(t, at, map[string]float64{analytics.FieldTemperature: 55}),
	}}

	service := newTestService(t, history)
	snapshot, err := service.Snapshot(context.Background(), "cell-1", at, 0)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	if snapshot.WindowMinutes != 30 {
		t.Fatalf("default window: got %d want 30", snapshot.WindowMinutes)
	}
	if len(snapshot.Stats) != 0 {
		t.Fatalf("one sample must leave stats undefined, got %v", snapshot.Stats)
	}
	if len(snapshot.Anomalies) != 0 {
		t.Fatalf("one sample must leave anomaly flags absent, got %v", snapshot.Anomalies)
	}
	if snapshot.Status[analytics.MetricTemperature] != analytics.BandNormal {
		t.Fatalf("temperature status: got %s want NORMAL", snapshot.Status[analytics.MetricTemperature])
	}
	if snapshot.Status[analytics.MetricHumidity] != analytics.BandUnknown {
		t.Fatalf("humidity status: got %s want UNKNOWN", snapshot.Status[analytics.MetricHumidity])
	}
	if snapshot.Status[analytics.MetricVibrationRMS] != analytics.BandUnknown {
		t.Fatalf("vibration status: got %s want UNKNOWN", snapshot.Status[analytics.MetricVibrationRMS])
	}
	if snapshot.Overall != analytics.BandUnknown {
		t.Fatalf("overall: got %s want UNKNOWN", snapshot.Overall)
	}
}

func TestSnapshotEmptyHistory(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	service := newTestService(t, &stubHistory{})

	snapshot, err := service.Snapshot(context.Background(), "cell-1", at, 30)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snapshot.Latest != nil {
		t.Fatal("empty history must have no latest record")
	}
	for _, metric := range analytics.TrackedMetrics() {
		if snapshot.Status[metric] != analytics.BandUnknown {
			t.Fatalf("%s: got %s want UNKNOWN", metric, snapshot.Status[metric])
		}
	}
	if snapshot.Overall != analytics.BandUnknown {
		t.Fatalf("overall: got %s want UNKNOWN", snapshot.Overall)
	}
}

func TestSnapshotClampsWindowAndFetchesLookback(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	history := &stubHistory{}
	service := newTestService(t, history)

	if _, err := service.Snapshot(context.Background(), "cell-1", at, 120); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if want := at.Add(-120 * time.Minute); !history.from.Equal(want) {
		t.Fatalf("fetch from: got %v want %v (two clamped windows back)", history.from, want)
	}
	if !history.to.Equal(at) {
		t.Fatalf("fetch to: got %v want %v", history.to, at)
	}
}

func TestSnapshotIsIdempotent(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	history := &stubHistory{}
	for i, temp := range []float64{50, 52, 90} {
		history.samples = append(history.samples, mustSample(t,
			start.Add(time.Duration(i*10)*time.Minute),
			map[string]float64{analytics.FieldTemperature: temp}))
	}
	service := newTestService(t, history)
	at := start.Add(20 * time.Minute)

	first, err := service.Snapshot(context.Background(), "cell-1", at, 30)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	second, err := service.Snapshot(context.Background(), "cell-1", at, 30)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	if first.Stats[analytics.MetricTemperature] != second.Stats[analytics.MetricTemperature] {
		t.Fatal("repeated evaluation over the same history must match")
	}
	if first.Anomalies[analytics.MetricTemperature] != second.Anomalies[analytics.MetricTemperature] {
		t.Fatal("repeated anomaly verdicts must match")
	}
	if first.Overall != second.Overall {
		t.Fatal("repeated overall band must match")
	}
}

func TestSnapshotArgumentValidation(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	service := newTestService(t, &stubHistory{})

	if _, err := service.Snapshot(context.Background(), "", at, 30); err == nil {
		t.Fatal("empty cell id must be rejected")
	}
	if _, err := service.Snapshot(context.Background(), "cell-1", time.Time{}, 30); err == nil {
		t.Fatal("zero evaluation time must be rejected")
	}
}

func TestSnapshotPropagatesReaderError(t *testing.T) {
	readErr := errors.New("query timeout")
	service := newTestService(t, &stubHistory{err: readErr})

	_, err := service.Snapshot(context.Background(), "cell-1", time.Now(), 30)
	if !errors.Is(err, readErr) {
		t.Fatalf("got %v want %v", err, readErr)
	}
}

func TestSummaryAggregatesBatch(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	history := &stubHistory{}
	temps := []float64{50, 51, 52, 95}
	for i, temp := range temps {
		history.samples = append(history.samples, mustSample(t,
			start.Add(time.Duration(i*10)*time.Minute),
			map[string]float64{analytics.FieldTemperature: temp}))
	}

	service := newTestService(t, history)
	from := start
	to := start.Add(30 * time.Minute)
	summary, err := service.Summary(context.Background(), "cell-1", from, to, 60)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	if summary.SampleCount != 4 {
		t.Fatalf("sample count: got %d want 4", summary.SampleCount)
	}
	temp := summary.Metrics[analytics.MetricTemperature]
	if temp.Min != 50 || temp.Max != 95 {
		t.Fatalf("min/max: got %v/%v want 50/95", temp.Min, temp.Max)
	}
	if temp.AnomalyCount != 1 {
		t.Fatalf("anomaly count: got %d want 1", temp.AnomalyCount)
	}
	if summary.OverallStatus != analytics.BandCritical {
		t.Fatalf("overall: got %s want CRITICAL", summary.OverallStatus)
	}
}

func TestSummaryRejectsInvertedRange(t *testing.T) {
	service := newTestService(t, &stubHistory{})
	now := time.Now()

	if _, err := service.Summary(context.Background(), "cell-1", now, now.Add(-time.Hour), 30); err == nil {
		t.Fatal("inverted batch range must be rejected")
	}
}

func TestWithDetectorOverridesPolicy(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	history := &stubHistory{}
	for i, temp := range []float64{50, 51, 52, 53} {
		history.samples = append(history.samples, mustSample(t,
			start.Add(time.Duration(i*10)*time.Minute),
			map[string]float64{analytics.FieldTemperature: temp}))
	}

	// A tight threshold flags even the gentle drift.
	service := newTestService(t, history, WithDetector(analytics.NewZScoreDetector(0.5)))
	snapshot, err := service.Snapshot(context.Background(), "cell-1", start.Add(30*time.Minute), 60)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	flag := snapshot.Anomalies[analytics.MetricTemperature]
	if !flag.IsAnomalous {
		t.Fatalf("tight threshold must flag drift, z=%v threshold=%v", flag.ZScore, flag.Threshold)
	}
	if flag.Threshold != 0.5 {
		t.Fatalf("threshold: got %v want 0.5", flag.Threshold)
	}
}
