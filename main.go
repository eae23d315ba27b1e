package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"drycell-monitor/internal/alerting/notify"
	historyadapter "drycell-monitor/internal/analytics/adapters/telemetry"
	"drycell-monitor/internal/analytics/application"
	analytics "drycell-monitor/internal/analytics/domain"
	rediscache "drycell-monitor/internal/analytics/infrastructure/redis"
	apihttp "drycell-monitor/internal/api/http"
	"drycell-monitor/internal/auth"
	"drycell-monitor/internal/observability/metrics"
	telemetrypostgres "drycell-monitor/internal/telemetry/infrastructure/postgres"
	"drycell-monitor/internal/telemetry/interfaces/ingest"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()

	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	monitorCfg, err := application.LoadConfig()
	if err != nil {
		logger.Fatalf("monitor config error: %v", err)
	}
	bands, err := monitorCfg.BandSource()
	if err != nil {
		logger.Fatalf("band table error: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init()

	sampleRepo := telemetrypostgres.NewSampleRepository(db)
	sampleQuery := telemetrypostgres.NewSampleQuery(db)

	historyReader, err := historyadapter.NewHistoryReader(sampleQuery)
	if err != nil {
		logger.Fatalf("history reader error: %v", err)
	}

	engine, err := application.NewEvaluationService(
		historyReader,
		bands,
		application.WithWindowMinutes(monitorCfg.WindowMinutes),
		application.WithDetector(analytics.NewZScoreDetector(monitorCfg.AnomalyThreshold)),
		application.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("evaluation service error: %v", err)
	}

	var cache *rediscache.SnapshotCache
	if cfg.RedisAddr != "" {
		cache, err = rediscache.NewSnapshotCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SnapshotTTL)
		if err != nil {
			logger.Fatalf("snapshot cache error: %v", err)
		}
		defer cache.Close()
		logger.Printf("snapshot cache connected: %s", cfg.RedisAddr)
	}

	var notifier *notify.Notifier
	if cfg.AlertWebhookURL != "" {
		channel, err := notify.NewWebhookChannel(cfg.AlertWebhookURL)
		if err != nil {
			logger.Fatalf("alert channel error: %v", err)
		}
		notifier, err = notify.NewNotifier(channel, nil,
			notify.WithCooldown(cfg.AlertCooldown),
			notify.WithDedupeWindow(cfg.AlertCooldown))
		if err != nil {
			logger.Fatalf("alert notifier error: %v", err)
		}
		logger.Printf("alert webhook configured")
	}

	ingestHandler, err := ingest.NewHandler(sampleRepo, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}

	// The engine is a pure function of sample history; this loop is the
	// external driver that re-invokes it on fresh data per cell.
	go runRefreshLoop(context.Background(), engine, cache, notifier, monitorCfg.Cells, cfg.RefreshInterval, logger)

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	var snapshotReader apihttp.SnapshotReader
	var anomalyLog apihttp.AnomalyLog
	if cache != nil {
		snapshotReader = cache
		anomalyLog = cache
	}

	mux := http.NewServeMux()
	mux.Handle("/ingest/telemetry", ingestHandler)
	mux.Handle("/api/v1/snapshot", apihttp.NewSnapshotHandler(engine, snapshotReader))
	mux.Handle("/api/v1/summary", apihttp.NewSummaryHandler(engine))
	if anomalyLog != nil {
		mux.Handle("/api/v1/anomalies", apihttp.NewAnomaliesHandler(anomalyLog))
	}
	mux.Handle("/api/v1/exports/summary.csv", apihttp.NewExportSummaryHandler(engine))
	mux.Handle("/api/v1/exports/summary.xlsx", apihttp.NewExportSummaryHandler(engine))
	mux.Handle("/api/v1/exports/summary.pdf", apihttp.NewExportSummaryHandler(engine))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

func runRefreshLoop(ctx context.Context, engine *application.EvaluationService, cache *rediscache.SnapshotCache, notifier *notify.Notifier, cells []string, interval time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for tick := range ticker.C {
		at := tick.UTC()
		for _, cellID := range cells {
			start := time.Now()
			snapshot, err := engine.Snapshot(ctx, cellID, at, 0)
			if err != nil {
				metrics.ObserveEvaluation(false, time.Since(start))
				logger.Printf("refresh: cell=%s evaluation error: %v", cellID, err)
				continue
			}
			metrics.ObserveEvaluation(true, time.Since(start))
			publishSnapshot(ctx, cache, notifier, snapshot, logger)
		}
	}
}

func publishSnapshot(ctx context.Context, cache *rediscache.SnapshotCache, notifier *notify.Notifier, snapshot application.Snapshot, logger *log.Logger) {
	for metric, stats := range snapshot.Stats {
		metrics.SetRollingStats(snapshot.CellID, metric, stats)
	}
	for metric, band := range snapshot.Status {
		metrics.SetStatus(snapshot.CellID, metric, band)
		if band == analytics.BandCritical && notifier != nil && snapshot.Latest != nil {
			value, _ := latestValue(snapshot, metric)
			notifier.Notify(ctx, notify.Event{
				Type:   notify.EventStatus,
				CellID: snapshot.CellID,
				Metric: metric,
				Value:  value,
				Band:   band,
				At:     snapshot.Latest.TS,
			})
		}
	}
	for metric, flag := range snapshot.Anomalies {
		metrics.SetZScore(snapshot.CellID, metric, flag.ZScore)
		if flag.IsAnomalous {
			metrics.CountAnomaly(snapshot.CellID, metric)
			logger.Printf("anomaly: cell=%s metric=%s z=%.2f threshold=%.2f", snapshot.CellID, metric, flag.ZScore, flag.Threshold)
			if notifier != nil && snapshot.Latest != nil {
				value, _ := latestValue(snapshot, metric)
				notifier.Notify(ctx, notify.Event{
					Type:   notify.EventAnomaly,
					CellID: snapshot.CellID,
					Metric: metric,
					Value:  value,
					Flag:   flag,
					Band:   snapshot.Status[metric],
					At:     snapshot.Latest.TS,
				})
			}
			if cache != nil && snapshot.Latest != nil {
				if err := cache.StoreAnomaly(ctx, snapshot.CellID, metric, snapshot.Latest.TS, flag); err != nil {
					metrics.CountCacheOp("store_anomaly", false)
					logger.Printf("refresh: cell=%s store anomaly error: %v", snapshot.CellID, err)
				} else {
					metrics.CountCacheOp("store_anomaly", true)
				}
			}
		}
	}

	if cache != nil {
		if err := cache.StoreSnapshot(ctx, snapshot); err != nil {
			metrics.CountCacheOp("store_snapshot", false)
			logger.Printf("refresh: cell=%s store snapshot error: %v", snapshot.CellID, err)
		} else {
			metrics.CountCacheOp("store_snapshot", true)
		}
	}
}

func latestValue(snapshot application.Snapshot, metric analytics.Metric) (float64, bool) {
	if snapshot.Latest == nil {
		return 0, false
	}
	var value *float64
	switch metric {
	case analytics.MetricTemperature:
		value = snapshot.Latest.Temperature
	case analytics.MetricHumidity:
		value = snapshot.Latest.Humidity
	case analytics.MetricHeatIndex:
		value = snapshot.Latest.HeatIndex
	case analytics.MetricVibrationRMS:
		value = snapshot.Latest.VibrationRMS
	}
	if value == nil {
		return 0, false
	}
	return *value, true
}

type config struct {
	DatabaseURL     string
	HTTPAddr        string
	JWTSecret       string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	SnapshotTTL     time.Duration
	RefreshInterval time.Duration
	AlertWebhookURL string
	AlertCooldown   time.Duration
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:     getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:       getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		RedisAddr:       getenvDefault("REDIS_ADDR", ""),
		RedisPassword:   getenvDefault("REDIS_PASSWORD", ""),
		RedisDB:         getenvIntDefault("REDIS_DB", 0),
		SnapshotTTL:     getenvDuration("SNAPSHOT_TTL", time.Hour),
		RefreshInterval: getenvDuration("REFRESH_INTERVAL", time.Minute),
		AlertWebhookURL: getenvDefault("ALERT_WEBHOOK_URL", ""),
		AlertCooldown:   getenvDuration("ALERT_COOLDOWN", 10*time.Minute),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Minute
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
