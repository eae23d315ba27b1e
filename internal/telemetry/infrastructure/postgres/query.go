package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	telemetry "drycell-monitor/internal/telemetry/domain"
)

// SampleQuery is a Postgres query implementation for sample history.
type SampleQuery struct {
	db    *sql.DB
	table string
}

// NewSampleQuery constructs a query with the default table name.
func NewSampleQuery(db *sql.DB, opts ...QueryOption) *SampleQuery {
	query := &SampleQuery{db: db, table: defaultSampleTable}
	for _, opt := range opts {
		opt(query)
	}
	return query
}

// QueryOption configures the sample query.
type QueryOption func(*SampleQuery)

// WithQueryTable overrides the default table name for queries.
func WithQueryTable(table string) QueryOption {
	return func(query *SampleQuery) {
		if query != nil && table != "" {
			query.table = table
		}
	}
}

// QueryRange returns sample points within [from, to], grouped by timestamp
// and ordered ascending. NULL values are skipped.
func (q *SampleQuery) QueryRange(ctx context.Context, cellID string, from, to time.Time) ([]telemetry.Point, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("sample query: nil db")
	}
	if cellID == "" || from.IsZero() || to.IsZero() {
		return nil, errors.New("sample query: invalid arguments")
	}

	query := fmt.Sprintf(`
SELECT ts, field, value
FROM %s
WHERE cell_id = $1
	AND ts >= $2
	AND ts <= $3
ORDER BY ts ASC`, q.table)

	rows, err := q.db.QueryContext(ctx, query, cellID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byTime := make(map[time.Time]map[string]float64)
	order := make([]time.Time, 0)

	for rows.Next() {
		var ts time.Time
		var field string
		var value sql.NullFloat64
		if err := rows.Scan(&ts, &field, &value); err != nil {
			return nil, err
		}
		if !value.Valid {
			continue
		}
		values := byTime[ts]
		if values == nil {
			values = make(map[string]float64)
			byTime[ts] = values
			order = append(order, ts)
		}
		values[field] = value.Float64
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })
	points := make([]telemetry.Point, 0, len(order))
	for _, ts := range order {
		points = append(points, telemetry.Point{At: ts, Values: byTime[ts]})
	}
	return points, nil
}
