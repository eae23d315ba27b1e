package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

type config struct {
	dsn         string
	cells       string
	hours       int
	stepSeconds int
	anomalyRate float64
	dropoutRate float64
	table       string
}

func main() {
	_ = godotenv.Load()

	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required (-dsn)")
	}
	if cfg.hours <= 0 {
		log.Fatal("hours must be > 0")
	}
	if cfg.stepSeconds <= 0 {
		log.Fatal("step must be > 0")
	}

	cellIDs := splitCSV(cfg.cells)
	if len(cellIDs) == 0 {
		log.Fatal("at least one cell is required (-cells)")
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	start := time.Now().UTC().Add(-time.Duration(cfg.hours) * time.Hour).Truncate(time.Minute)
	steps := cfg.hours * 3600 / cfg.stepSeconds

	log.Printf("seeding %s: cells=%d steps=%d step=%ds anomaly=%.3f dropout=%.3f",
		cfg.table, len(cellIDs), steps, cfg.stepSeconds, cfg.anomalyRate, cfg.dropoutRate)

	for _, cellID := range cellIDs {
		if err := seedCell(ctx, db, cfg, cellID, start, steps); err != nil {
			log.Fatalf("seed cell %s: %v", cellID, err)
		}
		log.Printf("seeded cell %s", cellID)
	}
}

func seedCell(ctx context.Context, db *sql.DB, cfg config, cellID string, start time.Time, steps int) error {
	query := `
INSERT INTO ` + cfg.table + ` (cell_id, field, ts, value)
VALUES ($1, $2, $3, $4)
ON CONFLICT (cell_id, field, ts)
DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < steps; i++ {
		ts := start.Add(time.Duration(i*cfg.stepSeconds) * time.Second)
		for field, value := range generateFields(rng, ts, cfg.anomalyRate) {
			if rng.Float64() < cfg.dropoutRate {
				continue
			}
			if _, err := stmt.ExecContext(ctx, cellID, field, ts, value); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
	}
	return tx.Commit()
}

// generateFields produces a plausible drying-cell reading: slow daily drift
// plus noise, with occasional spikes at the configured rate.
func generateFields(rng *rand.Rand, ts time.Time, anomalyRate float64) map[string]float64 {
	phase := float64(ts.Unix()%86400) / 86400 * 2 * math.Pi

	temperature := 65 + 5*math.Sin(phase) + rng.NormFloat64()*0.8
	humidity := 20 + 4*math.Cos(phase) + rng.NormFloat64()*0.6
	if rng.Float64() < anomalyRate {
		temperature += 25 + rng.Float64()*10
	}
	heatIndex := temperature + 0.1*humidity

	vibBase := 0.05 + 0.01*math.Sin(phase*3)
	if rng.Float64() < anomalyRate {
		vibBase += 0.5
	}

	return map[string]float64{
		"temperature": temperature,
		"humidity":    humidity,
		"heat_index":  heatIndex,
		"accel_x":     vibBase * rng.NormFloat64(),
		"accel_y":     vibBase * rng.NormFloat64(),
		"accel_z":     1 + vibBase*rng.NormFloat64(),
		"gyro_x":      rng.NormFloat64() * 0.02,
		"gyro_y":      rng.NormFloat64() * 0.02,
		"gyro_z":      rng.NormFloat64() * 0.02,
	}
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "dsn", envDefault("DATABASE_URL", envDefault("PG_DSN", "")), "postgres dsn")
	flag.StringVar(&cfg.cells, "cells", "cell-1,cell-2", "comma-separated cell ids")
	flag.IntVar(&cfg.hours, "hours", 24, "hours of history to generate")
	flag.IntVar(&cfg.stepSeconds, "step", 60, "seconds between samples")
	flag.Float64Var(&cfg.anomalyRate, "anomaly-rate", 0.01, "probability of an injected spike per sample")
	flag.Float64Var(&cfg.dropoutRate, "dropout-rate", 0.02, "probability of a dropped field per sample")
	flag.StringVar(&cfg.table, "table", "sensor_samples", "target table")
	flag.Parse()
	return cfg
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

func envDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
