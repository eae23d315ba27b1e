package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"drycell-monitor/internal/analytics/application"
	analytics "drycell-monitor/internal/analytics/domain"
	rediscache "drycell-monitor/internal/analytics/infrastructure/redis"
)

type stubSnapshots struct {
	snapshot application.Snapshot
	err      error
	calls    int
	lastAt   time.Time
}

func (s *stubSnapshots) Snapshot(_ context.Context, cellID string, at time.Time, _ int) (application.Snapshot, error) {
	s.calls++
	s.lastAt = at
	if s.err != nil {
		return application.Snapshot{}, s.err
	}
	snapshot := s.snapshot
	snapshot.CellID = cellID
	return snapshot, nil
}

type stubSummaries struct {
	summary analytics.Summary
	err     error
}

func (s *stubSummaries) Summary(context.Context, string, time.Time, time.Time, int) (analytics.Summary, error) {
	return s.summary, s.err
}

type stubCache struct {
	snapshot application.Snapshot
	ok       bool
	err      error
}

func (s *stubCache) LatestSnapshot(context.Context, string) (application.Snapshot, bool, error) {
	return s.snapshot, s.ok, s.err
}

type stubAnomalyLog struct {
	events []rediscache.AnomalyEvent
	err    error
}

func (s *stubAnomalyLog) RecentAnomalies(_ context.Context, _ string, limit int) ([]rediscache.AnomalyEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.events) {
		return s.events[:limit], nil
	}
	return s.events, nil
}

func doGet(handler http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSnapshotHandlerComputesWithoutCache(t *testing.T) {
	provider := &stubSnapshots{snapshot: application.Snapshot{Overall: analytics.BandNormal}}
	handler := NewSnapshotHandler(provider, nil)

	rec := doGet(handler, "/api/v1/snapshot?cell_id=dryer-a")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", rec.Code, rec.Body.String())
	}
	if provider.calls != 1 {
		t.Fatalf("provider calls: got %d want 1", provider.calls)
	}

	var snapshot application.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snapshot.CellID != "dryer-a" || snapshot.Overall != analytics.BandNormal {
		t.Fatalf("snapshot: got %+v", snapshot)
	}
}

func TestSnapshotHandlerServesCacheWhenNoExplicitTime(t *testing.T) {
	provider := &stubSnapshots{}
	cache := &stubCache{
		snapshot: application.Snapshot{CellID: "dryer-a", Overall: analytics.BandWarning},
		ok:       true,
	}
	handler := NewSnapshotHandler(provider, cache)

	rec := doGet(handler, "/api/v1/snapshot?cell_id=dryer-a")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if provider.calls != 0 {
		t.Fatal("cached snapshot must short-circuit evaluation")
	}

	var snapshot application.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snapshot.Overall != analytics.BandWarning {
		t.Fatalf("overall: got %s want WARNING", snapshot.Overall)
	}
}

func TestSnapshotHandlerExplicitTimeBypassesCache(t *testing.T) {
	provider := &stubSnapshots{snapshot: application.Snapshot{Overall: analytics.BandNormal}}
	cache := &stubCache{snapshot: application.Snapshot{Overall: analytics.BandCritical}, ok: true}
	handler := NewSnapshotHandler(provider, cache)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := doGet(handler, "/api/v1/snapshot?cell_id=dryer-a&at="+at.Format(time.RFC3339))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if provider.calls != 1 {
		t.Fatal("explicit at must force evaluation")
	}
	if !provider.lastAt.Equal(at) {
		t.Fatalf("at: got %v want %v", provider.lastAt, at)
	}
}

func TestSnapshotHandlerValidation(t *testing.T) {
	handler := NewSnapshotHandler(&stubSnapshots{}, nil)

	if rec := doGet(handler, "/api/v1/snapshot"); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing cell_id: got %d want 400", rec.Code)
	}
	if rec := doGet(handler, "/api/v1/snapshot?cell_id=a&at=yesterday"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad at: got %d want 400", rec.Code)
	}
	if rec := doGet(handler, "/api/v1/snapshot?cell_id=a&window=abc"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad window: got %d want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/snapshot?cell_id=a", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("post: got %d want 405", rec.Code)
	}
}

func TestSnapshotHandlerEvaluationError(t *testing.T) {
	handler := NewSnapshotHandler(&stubSnapshots{err: errors.New("boom")}, nil)
	if rec := doGet(handler, "/api/v1/snapshot?cell_id=a"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("got %d want 500", rec.Code)
	}
}

func batchQuery() string {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	to := time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC).Format(time.RFC3339)
	return "cell_id=dryer-a&from=" + from + "&to=" + to
}

func TestSummaryHandler(t *testing.T) {
	summary := analytics.Summary{
		SampleCount:   4,
		OverallStatus: analytics.BandWarning,
		Metrics: map[analytics.Metric]analytics.MetricSummary{
			analytics.MetricTemperature: {Min: 20, Max: 80, Mean: 35.75, Count: 4, HasData: true},
		},
	}
	handler := NewSummaryHandler(&stubSummaries{summary: summary})

	rec := doGet(handler, "/api/v1/summary?"+batchQuery())
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", rec.Code, rec.Body.String())
	}

	var got analytics.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SampleCount != 4 || got.OverallStatus != analytics.BandWarning {
		t.Fatalf("summary: got %+v", got)
	}
}

func TestSummaryHandlerValidation(t *testing.T) {
	handler := NewSummaryHandler(&stubSummaries{})

	cases := []string{
		"/api/v1/summary",
		"/api/v1/summary?cell_id=a",
		"/api/v1/summary?cell_id=a&from=2025-06-01T00:00:00Z",
		"/api/v1/summary?cell_id=a&from=2025-06-01T06:00:00Z&to=2025-06-01T00:00:00Z",
	}
	for _, target := range cases {
		if rec := doGet(handler, target); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: got %d want 400", target, rec.Code)
		}
	}
}

func TestAnomaliesHandler(t *testing.T) {
	events := []rediscache.AnomalyEvent{
		{CellID: "dryer-a", Metric: analytics.MetricTemperature},
		{CellID: "dryer-a", Metric: analytics.MetricVibrationRMS},
	}
	handler := NewAnomaliesHandler(&stubAnomalyLog{events: events})

	rec := doGet(handler, "/api/v1/anomalies?cell_id=dryer-a&limit=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	var resp struct {
		CellID    string                    `json:"cell_id"`
		Count     int                       `json:"count"`
		Anomalies []rediscache.AnomalyEvent `json:"anomalies"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || len(resp.Anomalies) != 1 {
		t.Fatalf("limit not applied: got %+v", resp)
	}

	if rec := doGet(handler, "/api/v1/anomalies"); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing cell_id: got %d want 400", rec.Code)
	}
}

func TestExportSummaryCSV(t *testing.T) {
	summary := analytics.Summary{
		SampleCount: 2,
		Metrics: map[analytics.Metric]analytics.MetricSummary{
			analytics.MetricTemperature: {Min: 20, Max: 22, Mean: 21, StdDev: 1, Count: 2, HasData: true},
			analytics.MetricHumidity:    {},
		},
		OverallStatus: analytics.BandNormal,
	}
	handler := NewExportSummaryHandler(&stubSummaries{summary: summary})

	rec := doGet(handler, "/api/v1/exports/summary.csv?"+batchQuery())
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type: got %s", ct)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "temperature") {
		t.Fatalf("csv missing temperature row: %s", body)
	}
	// A metric without data exports empty numeric cells, not zeros.
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		if strings.HasPrefix(line, "dryer-a,humidity") {
			if !strings.Contains(line, ",,,,") {
				t.Fatalf("humidity row must have empty stats: %s", line)
			}
		}
	}
}

func TestExportSummaryBinaryFormats(t *testing.T) {
	summary := analytics.Summary{
		SampleCount: 1,
		Metrics: map[analytics.Metric]analytics.MetricSummary{
			analytics.MetricTemperature: {Min: 21, Max: 21, Mean: 21, Count: 1, HasData: true},
		},
		OverallStatus: analytics.BandNormal,
	}
	handler := NewExportSummaryHandler(&stubSummaries{summary: summary})

	rec := doGet(handler, "/api/v1/exports/summary.xlsx?"+batchQuery())
	if rec.Code != http.StatusOK {
		t.Fatalf("xlsx status: got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("xlsx body is empty")
	}

	rec = doGet(handler, "/api/v1/exports/summary.pdf?"+batchQuery())
	if rec.Code != http.StatusOK {
		t.Fatalf("pdf status: got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Fatal("pdf body missing header")
	}
}

func TestExportSummaryUnsupportedFormat(t *testing.T) {
	handler := NewExportSummaryHandler(&stubSummaries{})
	if rec := doGet(handler, "/api/v1/exports/summary.docx?"+batchQuery()); rec.Code != http.StatusNotFound {
		t.Fatalf("got %d want 404", rec.Code)
	}
}
