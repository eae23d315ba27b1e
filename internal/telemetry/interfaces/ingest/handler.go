package ingest

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"drycell-monitor/internal/observability/metrics"
	telemetry "drycell-monitor/internal/telemetry/domain"
)

// Handler ingests sensor readings pushed by the edge collector.
type Handler struct {
	repo   telemetry.Repository
	logger *log.Logger
}

// NewHandler constructs an ingest handler.
func NewHandler(repo telemetry.Repository, logger *log.Logger) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("ingest: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{repo: repo, logger: logger}, nil
}

// ServeHTTP ingests sensor readings.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("ingest: read body error: %v", err)
		metrics.ObserveIngest(false, time.Since(start))
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req ingestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Printf("ingest: decode error: %v", err)
		metrics.ObserveIngest(false, time.Since(start))
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	measurements, err := req.toMeasurements()
	if err != nil {
		h.logger.Printf("ingest: invalid payload: %v", err)
		metrics.ObserveIngest(false, time.Since(start))
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := h.repo.InsertMeasurements(r.Context(), measurements); err != nil {
		h.logger.Printf("ingest: insert error: %v", err)
		metrics.ObserveIngest(false, time.Since(start))
		http.Error(w, "insert error", http.StatusInternalServerError)
		return
	}

	metrics.ObserveIngest(true, time.Since(start))
	resp := map[string]any{"inserted": len(measurements)}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type ingestRequest struct {
	CellID string             `json:"cellId"`
	TS     int64              `json:"ts"`
	Values map[string]float64 `json:"values"`
	Points []ingestPoint      `json:"points"`
}

type ingestPoint struct {
	TS     int64              `json:"ts"`
	Values map[string]float64 `json:"values"`
}

func (r ingestRequest) toMeasurements() ([]telemetry.Measurement, error) {
	if r.CellID == "" {
		return nil, errors.New("missing cellId")
	}

	points := r.Points
	if len(points) == 0 && r.TS != 0 {
		points = []ingestPoint{{TS: r.TS, Values: r.Values}}
	}
	if len(points) == 0 {
		return nil, errors.New("no sample points")
	}

	measurements := make([]telemetry.Measurement, 0, len(points))
	for _, point := range points {
		ts, err := parseTimestamp(point.TS)
		if err != nil {
			return nil, err
		}
		if len(point.Values) == 0 {
			return nil, errors.New("empty values")
		}
		for field, value := range point.Values {
			v := value
			measurements = append(measurements, telemetry.Measurement{
				CellID: r.CellID,
				Field:  field,
				TS:     ts,
				Value:  &v,
			})
		}
	}
	return measurements, nil
}

func parseTimestamp(value int64) (time.Time, error) {
	if value <= 0 {
		return time.Time{}, errors.New("invalid ts")
	}
	// Accept milliseconds or seconds.
	if value > 1_000_000_000_000 {
		return time.UnixMilli(value).UTC(), nil
	}
	return time.Unix(value, 0).UTC(), nil
}
