package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/clinicflow/libs/config"
	"github.com/md-rashed-zaman/clinicflow/libs/db"
	"github.com/md-rashed-zaman/clinicflow/libs/grpcx"
	otelx "github.com/md-rashed-zaman/clinicflow/libs/otel"
	"github.com/md-rashed-zaman/clinicflow/libs/runtime"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/metrics"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/reminders"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/storage"
)

func main() {
	_ = config.LoadDotEnv()
	service := config.String("SERVICE_NAME", "reminder-worker")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	offsets, err := config.Durations("REMINDER_OFFSETS", []time.Duration{24 * time.Hour, time.Hour})
	if err != nil {
		panic(err)
	}
	interval, err := config.Duration("REMINDER_SCAN_INTERVAL", time.Minute)
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	var dedupe reminders.Deduper
	if redisURL := config.String("REDIS_URL", ""); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			panic(err)
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		dedupe = reminders.NewRedisDeduper(rdb)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	} else {
		logger.Warn("REDIS_URL not set; reminder de-duplication is per process")
		dedupe = reminders.NewMemoryDeduper()
	}

	// The worker is only useful while the scheduling service owns the schema.
	if addr := config.String("SCHEDULING_GRPC_ADDR", ""); addr != "" {
		conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: 5 * time.Second})
		if err != nil {
			logger.Warn("scheduling service unreachable at startup", "addr", addr, "err", err)
		} else {
			defer func() { _ = conn.Close() }()
			checks = append(checks, runtime.ReadyCheck{
				Name:  "scheduling",
				Check: grpcx.HealthReadyCheck(conn, config.String("SCHEDULING_SERVICE_NAME", "scheduling-service")),
			})
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	catalog := storage.NewCatalogRepository(pool)
	dispatcher := notify.NewDispatcher(notify.OutboxSink{
		Outbox:   outbox.NewRepository(pool),
		Contacts: catalog,
	}, notify.Config{}, logger, m)
	dispatcher.Start()

	scanner := reminders.NewScanner(storage.NewAppointmentRepository(pool), dedupe, dispatcher, reminders.Config{
		Offsets:  offsets,
		Interval: interval,
	}, logger, m)
	go scanner.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           runtime.NewBaseMuxWithReady(checks...),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("health server starting", "addr", srv.Addr, "offsets", offsets)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	runtime.Shutdown(logger, 10*time.Second,
		runtime.ShutdownStep{Name: "http", Stop: srv.Shutdown},
		runtime.ShutdownStep{Name: "notifications", Stop: dispatcher.Close},
	)
	logger.Info("reminder worker stopped")
}
