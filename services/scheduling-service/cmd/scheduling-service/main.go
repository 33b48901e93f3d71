package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/md-rashed-zaman/clinicflow/libs/auth"
	"github.com/md-rashed-zaman/clinicflow/libs/config"
	"github.com/md-rashed-zaman/clinicflow/libs/db"
	"github.com/md-rashed-zaman/clinicflow/libs/grpcx"
	"github.com/md-rashed-zaman/clinicflow/libs/httpx"
	"github.com/md-rashed-zaman/clinicflow/libs/kafkax"
	otelx "github.com/md-rashed-zaman/clinicflow/libs/otel"
	"github.com/md-rashed-zaman/clinicflow/libs/runtime"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/calendar"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/coordinator"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/handlers"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/metrics"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/validation"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/migrations"
)

// backend groups the persistence ports so the same wiring serves Postgres
// and the in-memory store.
type backend struct {
	appointments coordinator.Store
	catalog      coordinator.Catalog
	windows      calendar.Store
	patients     validation.PatientDirectory
	stock        validation.StockSource
	sink         notify.Sink
	ready        []runtime.ReadyCheck
}

func main() {
	_ = config.LoadDotEnv()
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(cfg.Service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	var (
		be        backend
		publisher *outbox.Publisher
	)
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; using in-memory store")
		mem := storage.NewMemoryStore()
		be = backend{
			appointments: mem,
			catalog:      mem,
			windows:      mem,
			patients:     mem,
			stock:        mem,
			sink:         notify.LogSink{Logger: logger},
		}
	} else {
		if cfg.MigrateOnStart {
			if err := db.Migrate(cfg.DatabaseURL, migrations.FS, -1); err != nil {
				logger.Error("migrations failed", "err", err)
				panic(err)
			}
		}
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()

		catalog := storage.NewCatalogRepository(pool)
		outboxRepo := outbox.NewRepository(pool)
		be = backend{
			appointments: storage.NewAppointmentRepository(pool),
			catalog:      catalog,
			windows:      storage.NewWindowRepository(pool),
			patients:     catalog,
			stock:        catalog,
			sink:         notify.OutboxSink{Outbox: outboxRepo, Contacts: catalog},
			ready:        []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}},
		}

		if cfg.KafkaBrokers != "" {
			writer := kafkax.NewWriter(cfg.KafkaBrokers)
			defer func() { _ = writer.Close() }()
			publisher = outbox.NewPublisher(pool, outboxRepo, writer, logger, outbox.PublisherConfig{
				PollEvery: 2 * time.Second,
				BatchSize: 50,
			})
			be.ready = append(be.ready, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
		} else {
			logger.Warn("KAFKA_BROKERS not set; outbox rows will not be relayed")
		}
	}
	go publisher.Run(ctx)

	var (
		cache   calendar.Cache
		limiter httpx.Middleware
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			panic(err)
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		cache = calendar.NewRedisCache(rdb, cfg.WindowCacheTTL, logger)
		limiter = httpx.NewRedisRateLimiter(rdb, cfg.RateLimit, cfg.RateWindow, "clinicflow:rl").Middleware(logger, true)
		be.ready = append(be.ready, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	} else {
		limiter = httpx.NewRateLimiter(cfg.RateLimit, cfg.RateWindow).Middleware()
	}

	dispatcher := notify.NewDispatcher(be.sink, notify.Config{
		QueueSize: cfg.NotifyQueueSize,
		Workers:   cfg.NotifyWorkers,
	}, logger, m)
	dispatcher.Start()

	cal := calendar.New(be.windows, cache, logger)
	pipeline := validation.NewPipeline(
		validation.DataValidator{},
		validation.AvailabilityValidator{Windows: cal, Appointments: be.appointments, Location: cfg.Location},
		validation.PermissionValidator{Patients: be.patients},
		validation.ResourceValidator{Stock: be.stock},
	)
	coord := coordinator.New(coordinator.Deps{
		Store:      be.appointments,
		Catalog:    be.catalog,
		Windows:    cal,
		Patients:   be.patients,
		Pipeline:   pipeline,
		Machine:    lifecycle.NewMachine(lifecycle.DefaultFlows()),
		Dispatcher: dispatcher,
		Metrics:    m,
		Logger:     logger,
	}, coordinator.Config{SurchargePercent: cfg.SurchargePercent, Location: cfg.Location})

	verifier := auth.NewVerifier(auth.VerifierConfig{
		HMACSecret: cfg.JWTSecret,
		Keys:       jwksSource(cfg.JWKSURL),
		Issuer:     cfg.JWTIssuer,
		Leeway:     30 * time.Second,
	})
	if !verifier.Enabled() {
		logger.Warn("no JWT key configured; trusting gateway identity headers")
	}
	api := handlers.New(coord, cal, cfg.Location, logger)

	mux := runtime.NewBaseMuxWithReady(be.ready...)
	mux.Handle("/", api.Routes(auth.Middleware(verifier, httpx.WriteError)))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", auth.HeaderUserID, auth.HeaderRole},
			MaxAge:         10 * time.Minute,
		}),
		limiter,
		httpx.WithBodyLimit(cfg.BodyLimitBytes),
		httpx.WithTimeout(cfg.RequestTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, health := grpcx.NewServer()
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		panic(err)
	}
	health.SetServingStatus(cfg.Service, healthpb.HealthCheckResponse_SERVING)
	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "timezone", cfg.Location.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	// Intake stops before the notification queue drains.
	health.Shutdown()
	runtime.Shutdown(logger, 10*time.Second,
		runtime.ShutdownStep{Name: "http", Stop: srv.Shutdown},
		runtime.ShutdownStep{Name: "notifications", Stop: dispatcher.Close},
		runtime.ShutdownStep{Name: "grpc", Stop: func(context.Context) error {
			grpcSrv.GracefulStop()
			return nil
		}},
	)
	logger.Info("scheduling service stopped")
}

func jwksSource(url string) auth.KeySource {
	if url == "" {
		return nil
	}
	return auth.NewJWKSClient(url, 10*time.Minute)
}
