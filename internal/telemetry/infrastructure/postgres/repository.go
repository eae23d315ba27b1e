package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	telemetry "drycell-monitor/internal/telemetry/domain"
)

const defaultSampleTable = "sensor_samples"

// SampleRepository is a Postgres implementation for raw sensor measurements.
type SampleRepository struct {
	db    *sql.DB
	table string
}

// NewSampleRepository constructs a repository with the default table name.
func NewSampleRepository(db *sql.DB, opts ...RepositoryOption) *SampleRepository {
	repo := &SampleRepository{db: db, table: defaultSampleTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*SampleRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *SampleRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// InsertMeasurements upserts raw measurements. Re-ingesting a timestamp
// keeps the last value seen per field.
func (r *SampleRepository) InsertMeasurements(ctx context.Context, measurements []telemetry.Measurement) error {
	if r == nil || r.db == nil {
		return errors.New("sample repo: nil db")
	}
	if len(measurements) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	cell_id,
	field,
	ts,
	value
) VALUES (
	$1, $2, $3, $4
)
ON CONFLICT (cell_id, field, ts)
DO UPDATE SET
	value = EXCLUDED.value,
	updated_at = NOW()`, r.table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, m := range measurements {
		if m.CellID == "" || m.Field == "" || m.TS.IsZero() {
			_ = tx.Rollback()
			return errors.New("sample repo: invalid measurement")
		}

		value := sql.NullFloat64{}
		if m.Value != nil {
			value = sql.NullFloat64{Float64: *m.Value, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, m.CellID, m.Field, m.TS, value); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}
