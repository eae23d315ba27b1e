package telemetry

import (
	"context"
	"time"
)

// Measurement is one raw sensor field value written to storage.
type Measurement struct {
	CellID string
	Field  string
	TS     time.Time

	Value *float64
}

// Point groups raw field values recorded at the same timestamp.
type Point struct {
	At     time.Time
	Values map[string]float64
}

// Repository persists raw measurements.
type Repository interface {
	InsertMeasurements(ctx context.Context, measurements []Measurement) error
}

// Query loads raw measurements for the analytics engine. Implementations
// return points ordered by timestamp, but callers must not rely on
// uniqueness: the same timestamp may appear more than once.
type Query interface {
	QueryRange(ctx context.Context, cellID string, from, to time.Time) ([]Point, error)
}
