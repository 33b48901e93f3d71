package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/clinicflow/libs/config"
	"github.com/md-rashed-zaman/clinicflow/libs/db"
	"github.com/md-rashed-zaman/clinicflow/libs/events"
	"github.com/md-rashed-zaman/clinicflow/libs/httpx"
	"github.com/md-rashed-zaman/clinicflow/libs/kafkax"
	otelx "github.com/md-rashed-zaman/clinicflow/libs/otel"
	"github.com/md-rashed-zaman/clinicflow/libs/runtime"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/api"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/consumer"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/delivery"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/inbox"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/render"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/sms"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/storage"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/migrations"
)

func main() {
	_ = config.LoadDotEnv()
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	loc, err := config.Location("CLINIC_TIMEZONE", "UTC")
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
	if config.Bool("MIGRATE_ON_START", true) {
		if err := db.Migrate(dbURL, migrations.FS, -1); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	var emailSender email.Sender
	switch strings.ToLower(config.String("EMAIL_PROVIDER", "smtp")) {
	case "sendgrid":
		sg := email.NewSendGridSender(
			config.String("SENDGRID_API_KEY", ""),
			config.String("EMAIL_FROM", "no-reply@clinicflow.local"),
			config.String("EMAIL_FROM_NAME", ""),
		)
		if sg == nil {
			logger.Warn("SENDGRID_API_KEY not set; falling back to SMTP")
		} else {
			emailSender = sg
		}
	}
	if emailSender == nil {
		emailSender = email.NewSMTPSender(
			config.String("SMTP_HOST", "mailpit"),
			config.String("SMTP_PORT", "1025"),
			config.String("EMAIL_FROM", "no-reply@clinicflow.local"),
		)
	}

	var smsSender sms.Sender
	switch strings.ToLower(config.String("SMS_PROVIDER", "noop")) {
	case "webhook":
		smsSender = sms.NewWebhookSender(config.String("SMS_WEBHOOK_URL", ""), config.String("SMS_WEBHOOK_TOKEN", ""))
	default:
		smsSender = sms.NewNoopSender()
	}

	renderer, err := render.New(loc)
	if err != nil {
		panic(err)
	}
	notifications := storage.NewRepository(pool)
	handler := delivery.NewHandler(renderer, emailSender, smsSender, notifications, logger)

	brokers := config.String("KAFKA_BROKERS", "")
	if brokers != "" {
		eventConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
			Topics:  events.Topics(),
		}, handler.Handle)
		go eventConsumer.Run(ctx)
	} else {
		logger.Warn("KAFKA_BROKERS not set; no events will be consumed")
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.HandleFunc("/notifications", api.ListNotifications(notifications, logger))
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "email", emailSender.ProviderID(), "sms", smsSender.ProviderID())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	runtime.Shutdown(logger, 10*time.Second, runtime.ShutdownStep{Name: "http", Stop: srv.Shutdown})
	logger.Info("notification service stopped")
}
