package telemetry

import (
	"context"
	"errors"
	"sort"
	"time"

	analytics "drycell-monitor/internal/analytics/domain"
	telemetry "drycell-monitor/internal/telemetry/domain"
)

// HistoryReader adapts the raw sample store to the analytics engine. Raw
// records may arrive unsorted and with duplicate timestamps; the reader
// sorts by timestamp and keeps the last value seen per timestamp per field
// before constructing immutable samples.
type HistoryReader struct {
	query telemetry.Query
}

// NewHistoryReader constructs the adapter.
func NewHistoryReader(query telemetry.Query) (*HistoryReader, error) {
	if query == nil {
		return nil, errors.New("history reader: nil query")
	}
	return &HistoryReader{query: query}, nil
}

// History returns the ordered, deduplicated sample history for a cell
// within [from, to].
func (r *HistoryReader) History(ctx context.Context, cellID string, from, to time.Time) ([]analytics.Sample, error) {
	if r == nil || r.query == nil {
		return nil, errors.New("history reader: nil query")
	}
	if cellID == "" {
		return nil, errors.New("history reader: empty cell id")
	}

	points, err := r.query.QueryRange(ctx, cellID, from, to)
	if err != nil {
		return nil, err
	}

	merged := make(map[time.Time]map[string]float64, len(points))
	for _, point := range points {
		at := point.At.UTC()
		fields := merged[at]
		if fields == nil {
			fields = make(map[string]float64, len(point.Values))
			merged[at] = fields
		}
		// Later occurrences win per field.
		for field, value := range point.Values {
			fields[field] = value
		}
	}

	order := make([]time.Time, 0, len(merged))
	for at := range merged {
		order = append(order, at)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	samples := make([]analytics.Sample, 0, len(order))
	for _, at := range order {
		sample, err := analytics.NewSample(at, merged[at])
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, nil
}
