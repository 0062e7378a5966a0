package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultAppName           = "NairaLink"
	defaultAppEnv            = "development"
	defaultPort              = "8080"
	defaultLogLevel          = "info"
	defaultShutdownPeriod    = 10 * time.Second
	defaultIdempotencyTTL    = 24 * time.Hour
	defaultSchedulerInterval = time.Hour

	defaultTransferMin      = "100"
	defaultTransferMax      = "1000000"
	defaultTransferDailyCap = "5000000"
)

// Config is the application runtime configuration loaded from environment
// variables. DatabaseURL and RedisURL may be empty outside production, in
// which case the in-memory stores are used.
type Config struct {
	AppName  string
	AppEnv   string
	Port     string
	LogLevel string

	DatabaseURL string
	RedisURL    string

	ShutdownPeriod    time.Duration
	IdempotencyTTL    time.Duration
	SchedulerInterval time.Duration

	TransferMinAmount decimal.Decimal
	TransferMaxAmount decimal.Decimal
	TransferDailyCap  decimal.Decimal
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		AppName:           getEnv("APP_NAME", defaultAppName),
		AppEnv:            getEnv("APP_ENV", defaultAppEnv),
		Port:              getEnv("PORT", defaultPort),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		ShutdownPeriod:    defaultShutdownPeriod,
		IdempotencyTTL:    defaultIdempotencyTTL,
		SchedulerInterval: defaultSchedulerInterval,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", defaultShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.SchedulerInterval, err = durationEnv("SCHEDULER_INTERVAL", defaultSchedulerInterval); err != nil {
		return Config{}, err
	}

	if cfg.TransferMinAmount, err = decimalEnv("TRANSFER_MIN_AMOUNT", defaultTransferMin); err != nil {
		return Config{}, err
	}
	if cfg.TransferMaxAmount, err = decimalEnv("TRANSFER_MAX_AMOUNT", defaultTransferMax); err != nil {
		return Config{}, err
	}
	if cfg.TransferDailyCap, err = decimalEnv("TRANSFER_DAILY_CAP", defaultTransferDailyCap); err != nil {
		return Config{}, err
	}

	if cfg.AppEnv == "production" {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set in production")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set in production")
		}
	}
	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func decimalEnv(key, fallback string) (decimal.Decimal, error) {
	v := getEnv(key, fallback)
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
