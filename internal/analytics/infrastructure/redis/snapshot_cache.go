package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"drycell-monitor/internal/analytics/application"
	analytics "drycell-monitor/internal/analytics/domain"
)

// SnapshotCache keeps the latest evaluation per cell so the API can serve
// dashboards without re-querying Postgres on every request. The cache is a
// convenience copy only; the engine stays re-derivable from raw samples.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache connects to Redis and verifies the connection.
func NewSnapshotCache(addr, password string, db int, ttl time.Duration) (*SnapshotCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:       addr,
		Password:   password,
		DB:         db,
		MaxRetries: 3,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("snapshot cache: connect: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SnapshotCache{client: client, ttl: ttl}, nil
}

// StoreSnapshot caches the latest snapshot for a cell.
func (c *SnapshotCache) StoreSnapshot(ctx context.Context, snapshot application.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("snapshot cache: marshal: %w", err)
	}
	key := snapshotKey(snapshot.CellID)
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// LatestSnapshot returns the cached snapshot for a cell, if any.
func (c *SnapshotCache) LatestSnapshot(ctx context.Context, cellID string) (application.Snapshot, bool, error) {
	data, err := c.client.Get(ctx, snapshotKey(cellID)).Bytes()
	if err == redis.Nil {
		return application.Snapshot{}, false, nil
	}
	if err != nil {
		return application.Snapshot{}, false, err
	}
	var snapshot application.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return application.Snapshot{}, false, fmt.Errorf("snapshot cache: unmarshal: %w", err)
	}
	return snapshot, true, nil
}

// AnomalyEvent is one flagged anomaly kept in the per-cell anomaly log.
type AnomalyEvent struct {
	ID     string                `json:"id"`
	CellID string                `json:"cell_id"`
	Metric analytics.Metric      `json:"metric"`
	At     time.Time             `json:"at"`
	Flag   analytics.AnomalyFlag `json:"flag"`
}

// StoreAnomaly appends a flagged anomaly to the cell's anomaly log. Anomalies
// are kept longer than snapshots.
func (c *SnapshotCache) StoreAnomaly(ctx context.Context, cellID string, metric analytics.Metric, at time.Time, flag analytics.AnomalyFlag) error {
	event := AnomalyEvent{
		ID:     uuid.NewString(),
		CellID: cellID,
		Metric: metric,
		At:     at,
		Flag:   flag,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("snapshot cache: marshal anomaly: %w", err)
	}

	logKey := anomalyLogKey(cellID)
	anomalyTTL := c.ttl * 24

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, logKey, redis.Z{Score: float64(at.Unix()), Member: data})
	pipe.Expire(ctx, logKey, anomalyTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// RecentAnomalies returns the newest anomaly events for a cell.
func (c *SnapshotCache) RecentAnomalies(ctx context.Context, cellID string, limit int) ([]AnomalyEvent, error) {
	if limit <= 0 {
		limit = 10
	}
	raw, err := c.client.ZRevRange(ctx, anomalyLogKey(cellID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("snapshot cache: anomalies: %w", err)
	}
	events := make([]AnomalyEvent, 0, len(raw))
	for _, item := range raw {
		var event AnomalyEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// Ping checks Redis availability.
func (c *SnapshotCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *SnapshotCache) Close() error {
	return c.client.Close()
}

func snapshotKey(cellID string) string {
	return "snapshot:" + cellID
}

func anomalyLogKey(cellID string) string {
	return "anomaly_log:" + cellID
}
