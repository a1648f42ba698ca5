package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"slotbook/internal/api"
	"slotbook/internal/audit"
	"slotbook/internal/booking"
	"slotbook/internal/collector"
	"slotbook/internal/config"
	"slotbook/internal/database"
	"slotbook/internal/events"
	"slotbook/internal/metrics"
	"slotbook/internal/writeback"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Optional .env for local development
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("SLOTBOOK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	col, err := buildCollector(ctx, cfg, rdb, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("calendar collector init failed")
	}

	bus := events.NewEventBus()
	bus.Subscribe(booking.EventBookingCreated, func(ev events.Event) error {
		logger.Info().Str("event", ev.Type).Msg("booking event")
		return nil
	})
	bus.Subscribe(booking.EventBookingCancelled, func(ev events.Event) error {
		logger.Info().Str("event", ev.Type).Msg("booking event")
		return nil
	})

	worker := writeback.NewWorker(col, db, writebackConfig(cfg), &logger)
	go worker.Start(ctx)

	locks := booking.NewLockRegistry(cfg.LockWait())
	coordinator := booking.NewCoordinator(db, col, worker, bus, locks, cfg.Booking.HostID, &logger)

	server := api.NewHTTPServer(cfg.Server.Port, coordinator, db, audit.NewExporter(nil), &logger)

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(cfg.Database.Path, database.BackupConfig{
			Enabled:       cfg.Backup.Enabled,
			IntervalHours: cfg.Backup.IntervalHours,
			StoragePath:   cfg.Backup.Path,
			RetentionDays: cfg.Backup.RetentionDays,
		}, &logger)
		go backup.Start(ctx)
	}

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("api server shutdown error")
		}
	}()

	logger.Info().Msg("slotbook started")
	if err := server.Start(); err != nil {
		logger.Fatal().Err(err).Msg("api server error")
	}
	logger.Info().Msg("slotbook stopped")
}

// buildCollector selects the busy-interval source: Google Calendar when
// configured, an empty static source otherwise. Redis wraps either with a
// read-through cache when available.
func buildCollector(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *zerolog.Logger) (collector.Collector, error) {
	var col collector.Collector
	if cfg.Calendar.Enabled {
		gc, err := collector.NewGoogleCalendar(ctx, cfg.Calendar.CredentialsPath, cfg.Calendar.CalendarID, logger)
		if err != nil {
			return nil, err
		}
		col = gc
	} else {
		logger.Warn().Msg("calendar sync disabled; using empty busy source")
		col = &collector.Static{}
	}

	if rdb != nil && cfg.CacheTTL() > 0 {
		col = collector.NewCached(col, rdb, cfg.CacheTTL(), logger)
	}
	return col, nil
}

func writebackConfig(cfg *config.Config) writeback.Config {
	wb := writeback.DefaultConfig()
	if cfg.Writeback.QueueSize > 0 {
		wb.QueueSize = cfg.Writeback.QueueSize
	}
	if cfg.Writeback.MaxAttempts > 0 {
		wb.MaxAttempts = cfg.Writeback.MaxAttempts
	}
	if cfg.Writeback.BackoffSeconds > 0 {
		wb.BackoffBase = time.Duration(cfg.Writeback.BackoffSeconds) * time.Second
	}
	if cfg.Writeback.CallTimeoutSeconds > 0 {
		wb.CallTimeout = time.Duration(cfg.Writeback.CallTimeoutSeconds) * time.Second
	}
	if cfg.Writeback.RatePerSec > 0 {
		wb.RatePerSec = cfg.Writeback.RatePerSec
	}
	if cfg.Writeback.Burst > 0 {
		wb.Burst = cfg.Writeback.Burst
	}
	return wb
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
