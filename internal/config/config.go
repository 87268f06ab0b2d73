package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultAppName        = "BridgePay"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	LogFormat      string
	DatabaseURL    string
	AutoMigrate    bool
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	JWTSecret      string

	PlatformUserID     string
	PlatformCurrencies []string
	DefaultCurrency    string

	KafkaBrokers []string
	KafkaTopic   string

	RabbitMQURL            string
	ProviderStatusExchange string
	ProviderStatusQueue    string

	ProviderBaseURL string
	ProviderAPIKey  string
	ProviderTimeout time.Duration
	WebhookSecret   string

	RateLimitPerMinute int

	FeeOutboxSchedule          string
	StatusSyncSchedule         string
	IdempotencyCleanupSchedule string
	StatusSyncMinAge           time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("APP_NAME", defaultAppName)
	v.SetDefault("APP_ENV", defaultAppEnv)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("AUTO_MIGRATE", true)
	v.SetDefault("PLATFORM_USER_ID", "00000000-0000-0000-0000-000000000001")
	v.SetDefault("PLATFORM_CURRENCIES", "KES")
	v.SetDefault("DEFAULT_CURRENCY", "KES")
	v.SetDefault("KAFKA_TOPIC", "bridge.payments")
	v.SetDefault("PROVIDER_STATUS_EXCHANGE", "provider.events")
	v.SetDefault("PROVIDER_STATUS_QUEUE", "bridge.provider.status")
	v.SetDefault("PROVIDER_TIMEOUT_SECONDS", 30)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 30)
	v.SetDefault("FEE_OUTBOX_SCHEDULE", "@every 1m")
	v.SetDefault("STATUS_SYNC_SCHEDULE", "@every 2m")
	v.SetDefault("IDEMPOTENCY_CLEANUP_SCHEDULE", "@hourly")
	v.SetDefault("STATUS_SYNC_MIN_AGE_SECONDS", 120)

	cfg := Config{
		AppName:                    v.GetString("APP_NAME"),
		AppEnv:                     v.GetString("APP_ENV"),
		Port:                       v.GetString("PORT"),
		LogLevel:                   strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:                  strings.ToLower(v.GetString("LOG_FORMAT")),
		DatabaseURL:                v.GetString("DATABASE_URL"),
		AutoMigrate:                v.GetBool("AUTO_MIGRATE"),
		RedisURL:                   v.GetString("REDIS_URL"),
		JWTSecret:                  v.GetString("JWT_SECRET"),
		PlatformUserID:             v.GetString("PLATFORM_USER_ID"),
		PlatformCurrencies:         upperList(v.GetString("PLATFORM_CURRENCIES")),
		DefaultCurrency:            strings.ToUpper(v.GetString("DEFAULT_CURRENCY")),
		KafkaBrokers:               list(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:                 v.GetString("KAFKA_TOPIC"),
		RabbitMQURL:                v.GetString("RABBITMQ_URL"),
		ProviderStatusExchange:     v.GetString("PROVIDER_STATUS_EXCHANGE"),
		ProviderStatusQueue:        v.GetString("PROVIDER_STATUS_QUEUE"),
		ProviderBaseURL:            v.GetString("PROVIDER_BASE_URL"),
		ProviderAPIKey:             v.GetString("PROVIDER_API_KEY"),
		WebhookSecret:              v.GetString("WEBHOOK_SECRET"),
		FeeOutboxSchedule:          v.GetString("FEE_OUTBOX_SCHEDULE"),
		StatusSyncSchedule:         v.GetString("STATUS_SYNC_SCHEDULE"),
		IdempotencyCleanupSchedule: v.GetString("IDEMPOTENCY_CLEANUP_SCHEDULE"),
	}

	var err error
	if cfg.ShutdownPeriod, err = duration(v, "SHUTDOWN_TIMEOUT_SECONDS", "SHUTDOWN_TIMEOUT", defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = duration(v, "IDEMPOTENCY_TTL_SECONDS", "IDEMPOTENCY_TTL", defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.ProviderTimeout, err = seconds(v, "PROVIDER_TIMEOUT_SECONDS"); err != nil {
		return Config{}, err
	}
	if cfg.StatusSyncMinAge, err = seconds(v, "STATUS_SYNC_MIN_AGE_SECONDS"); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerMinute, err = integer(v, "RATE_LIMIT_PER_MINUTE"); err != nil {
		return Config{}, err
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if cfg.JWTSecret == "" && !cfg.IsDev() {
		return Config{}, fmt.Errorf("JWT_SECRET must be set when APP_ENV=%s", cfg.AppEnv)
	}
	if len(cfg.PlatformCurrencies) == 0 {
		return Config{}, fmt.Errorf("PLATFORM_CURRENCIES must list at least one currency")
	}
	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the service runs in a local environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

// duration reads secondsKey as whole seconds, else durationKey as a Go
// duration, else fallback.
func duration(v *viper.Viper, secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v.GetString(secondsKey) != "" {
		return seconds(v, secondsKey)
	}
	if raw := v.GetString(durationKey); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func seconds(v *viper.Viper, key string) (time.Duration, error) {
	n, err := integer(v, key)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func integer(v *viper.Viper, key string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func list(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func upperList(raw string) []string {
	out := list(raw)
	for i := range out {
		out[i] = strings.ToUpper(out[i])
	}
	return out
}
