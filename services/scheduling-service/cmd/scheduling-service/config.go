package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicflow/libs/config"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/coordinator"
)

type Config struct {
	Service  string
	HTTPPort string
	GRPCPort string

	// DatabaseURL empty runs the service on the in-memory store.
	DatabaseURL    string
	MigrateOnStart bool
	RedisURL       string
	KafkaBrokers   string

	Location         *time.Location
	SurchargePercent int
	WindowCacheTTL   time.Duration

	JWTSecret string
	JWKSURL   string
	JWTIssuer string

	CORSOrigins    []string
	BodyLimitBytes int64
	RequestTimeout time.Duration
	RateLimit      int
	RateWindow     time.Duration

	NotifyQueueSize int
	NotifyWorkers   int
}

func loadConfig() (Config, error) {
	cfg := Config{
		Service:      config.String("SERVICE_NAME", "scheduling-service"),
		DatabaseURL:  config.String("DATABASE_URL", ""),
		RedisURL:     config.String("REDIS_URL", ""),
		KafkaBrokers: config.String("KAFKA_BROKERS", ""),
		JWTSecret:    config.String("JWT_HMAC_SECRET", ""),
		JWKSURL:      config.String("JWKS_URL", ""),
		JWTIssuer:    config.String("JWT_ISSUER", ""),
	}
	cfg.MigrateOnStart = config.Bool("MIGRATE_ON_START", false)

	var err error
	if cfg.HTTPPort, err = config.Port("PORT", "8080"); err != nil {
		return cfg, err
	}
	if cfg.GRPCPort, err = config.Port("GRPC_PORT", "9090"); err != nil {
		return cfg, err
	}
	if cfg.Location, err = config.Location("CLINIC_TIMEZONE", "UTC"); err != nil {
		return cfg, err
	}
	if cfg.SurchargePercent, err = config.Int("EMERGENCY_SURCHARGE_PERCENT", coordinator.DefaultSurchargePercent); err != nil {
		return cfg, err
	}
	if cfg.SurchargePercent < 0 {
		return cfg, fmt.Errorf("EMERGENCY_SURCHARGE_PERCENT must not be negative")
	}
	if cfg.WindowCacheTTL, err = config.Duration("WINDOW_CACHE_TTL", 5*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.RequestTimeout, err = config.Duration("HTTP_REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return cfg, err
	}
	if cfg.RateWindow, err = config.Duration("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return cfg, err
	}
	if cfg.RateLimit, err = config.Int("RATE_LIMIT", 120); err != nil {
		return cfg, err
	}
	bodyLimit, err := config.Int("HTTP_BODY_LIMIT_BYTES", 1<<20)
	if err != nil {
		return cfg, err
	}
	cfg.BodyLimitBytes = int64(bodyLimit)
	if cfg.NotifyQueueSize, err = config.Int("NOTIFY_QUEUE_SIZE", 256); err != nil {
		return cfg, err
	}
	if cfg.NotifyWorkers, err = config.Int("NOTIFY_WORKERS", 4); err != nil {
		return cfg, err
	}

	for _, o := range strings.Split(config.String("CORS_ALLOWED_ORIGINS", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}
	return cfg, nil
}
