package apihttp

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"drycell-monitor/internal/analytics/application"
	analytics "drycell-monitor/internal/analytics/domain"
	rediscache "drycell-monitor/internal/analytics/infrastructure/redis"
	analyticsinterfaces "drycell-monitor/internal/analytics/interfaces"
)

const timeLayout = time.RFC3339

// SnapshotProvider evaluates a cell at an instant.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, cellID string, at time.Time, windowMinutes int) (application.Snapshot, error)
}

// SummaryProvider aggregates a cell batch.
type SummaryProvider interface {
	Summary(ctx context.Context, cellID string, from, to time.Time, windowMinutes int) (analytics.Summary, error)
}

// SnapshotReader serves previously cached snapshots.
type SnapshotReader interface {
	LatestSnapshot(ctx context.Context, cellID string) (application.Snapshot, bool, error)
}

// AnomalyLog serves the recent anomaly events of a cell.
type AnomalyLog interface {
	RecentAnomalies(ctx context.Context, cellID string, limit int) ([]rediscache.AnomalyEvent, error)
}

// SnapshotHandler serves evaluation snapshots.
type SnapshotHandler struct {
	provider SnapshotProvider
	cache    SnapshotReader
}

// NewSnapshotHandler constructs a SnapshotHandler. The cache is optional.
func NewSnapshotHandler(provider SnapshotProvider, cache SnapshotReader) *SnapshotHandler {
	return &SnapshotHandler{provider: provider, cache: cache}
}

// ServeHTTP handles GET /api/v1/snapshot.
func (h *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.provider == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	cellID := r.URL.Query().Get("cell_id")
	if cellID == "" {
		http.Error(w, "cell_id is required", http.StatusBadRequest)
		return
	}
	window, err := parseIntQuery(r, "window", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Without an explicit evaluation time the refresh loop's cached snapshot
	// is authoritative enough for a dashboard.
	if r.URL.Query().Get("at") == "" && h.cache != nil {
		if snapshot, ok, err := h.cache.LatestSnapshot(r.Context(), cellID); err == nil && ok {
			writeJSON(w, snapshot)
			return
		}
	}

	at := time.Now().UTC()
	if raw := r.URL.Query().Get("at"); raw != "" {
		at, err = time.Parse(timeLayout, raw)
		if err != nil {
			http.Error(w, "invalid at", http.StatusBadRequest)
			return
		}
	}

	snapshot, err := h.provider.Snapshot(r.Context(), cellID, at, window)
	if err != nil {
		http.Error(w, "evaluation error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, snapshot)
}

// SummaryHandler serves batch summaries.
type SummaryHandler struct {
	provider SummaryProvider
}

// NewSummaryHandler constructs a SummaryHandler.
func NewSummaryHandler(provider SummaryProvider) *SummaryHandler {
	return &SummaryHandler{provider: provider}
}

// ServeHTTP handles GET /api/v1/summary.
func (h *SummaryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.provider == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	cellID, from, to, window, err := parseBatchQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := h.provider.Summary(r.Context(), cellID, from, to, window)
	if err != nil {
		http.Error(w, "summary error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, summary)
}

// AnomaliesHandler serves the recent anomaly log of a cell.
type AnomaliesHandler struct {
	log AnomalyLog
}

// NewAnomaliesHandler constructs an AnomaliesHandler.
func NewAnomaliesHandler(log AnomalyLog) *AnomaliesHandler {
	return &AnomaliesHandler{log: log}
}

// ServeHTTP handles GET /api/v1/anomalies.
func (h *AnomaliesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.log == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	cellID := r.URL.Query().Get("cell_id")
	if cellID == "" {
		http.Error(w, "cell_id is required", http.StatusBadRequest)
		return
	}
	limit, err := parseIntQuery(r, "limit", 10)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := h.log.RecentAnomalies(r.Context(), cellID, limit)
	if err != nil {
		http.Error(w, "anomaly log error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"cell_id":   cellID,
		"count":     len(events),
		"anomalies": events,
	})
}

// ExportSummaryHandler serves summary report exports. The format comes from
// the path suffix: summary.csv, summary.xlsx or summary.pdf.
type ExportSummaryHandler struct {
	provider SummaryProvider
}

// NewExportSummaryHandler constructs an ExportSummaryHandler.
func NewExportSummaryHandler(provider SummaryProvider) *ExportSummaryHandler {
	return &ExportSummaryHandler{provider: provider}
}

// ServeHTTP handles GET /api/v1/exports/summary.{csv,xlsx,pdf}.
func (h *ExportSummaryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.provider == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	cellID, from, to, window, err := parseBatchQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := h.provider.Summary(r.Context(), cellID, from, to, window)
	if err != nil {
		http.Error(w, "summary error", http.StatusInternalServerError)
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, ".xlsx"):
		data, err := analyticsinterfaces.BuildSummaryXLSX(cellID, summary)
		if err != nil {
			http.Error(w, "export error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="summary.xlsx"`)
		_, _ = w.Write(data)
	case strings.HasSuffix(r.URL.Path, ".pdf"):
		data, err := analyticsinterfaces.BuildSummaryPDF(cellID, summary)
		if err != nil {
			http.Error(w, "export error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="summary.pdf"`)
		_, _ = w.Write(data)
	case strings.HasSuffix(r.URL.Path, ".csv"):
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="summary.csv"`)
		writeSummaryCSV(w, cellID, summary)
	default:
		http.Error(w, "unsupported export format", http.StatusNotFound)
	}
}

func writeSummaryCSV(w http.ResponseWriter, cellID string, summary analytics.Summary) {
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{
		"cell_id",
		"metric",
		"min",
		"max",
		"mean",
		"stddev",
		"count",
		"anomaly_count",
		"has_data",
	})
	for _, metric := range analytics.TrackedMetrics() {
		ms, ok := summary.Metrics[metric]
		if !ok {
			continue
		}
		_ = writer.Write([]string{
			cellID,
			string(metric),
			formatFloat(ms.Min, ms.HasData),
			formatFloat(ms.Max, ms.HasData),
			formatFloat(ms.Mean, ms.HasData),
			formatFloat(ms.StdDev, ms.HasData),
			strconv.Itoa(ms.Count),
			strconv.Itoa(ms.AnomalyCount),
			strconv.FormatBool(ms.HasData),
		})
	}
	writer.Flush()
}

func formatFloat(value float64, hasData bool) string {
	if !hasData {
		return ""
	}
	return fmt.Sprintf("%.6f", value)
}

func parseBatchQuery(r *http.Request) (cellID string, from, to time.Time, window int, err error) {
	cellID = r.URL.Query().Get("cell_id")
	if cellID == "" {
		return "", time.Time{}, time.Time{}, 0, fmt.Errorf("cell_id is required")
	}
	from, err = parseTimeQuery(r, "from")
	if err != nil {
		return "", time.Time{}, time.Time{}, 0, err
	}
	to, err = parseTimeQuery(r, "to")
	if err != nil {
		return "", time.Time{}, time.Time{}, 0, err
	}
	if !to.After(from) {
		return "", time.Time{}, time.Time{}, 0, fmt.Errorf("to must be after from")
	}
	window, err = parseIntQuery(r, "window", 0)
	if err != nil {
		return "", time.Time{}, time.Time{}, 0, err
	}
	return cellID, from, to, window, nil
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	parsed, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s", key)
	}
	return parsed.UTC(), nil
}

func parseIntQuery(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return parsed, nil
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
