package config

import (
	"testing"
	"time"
)

func baseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/bridge")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
}

func TestLoadDefaults(t *testing.T) {
	baseEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppName != defaultAppName || cfg.Address() != ":8080" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ShutdownPeriod != defaultShutdownDelay || cfg.IdempotencyTTL != defaultIdempotencyTTL {
		t.Fatalf("unexpected durations: %v %v", cfg.ShutdownPeriod, cfg.IdempotencyTTL)
	}
	if len(cfg.PlatformCurrencies) != 1 || cfg.PlatformCurrencies[0] != "KES" || cfg.DefaultCurrency != "KES" {
		t.Fatalf("unexpected currencies: %v %s", cfg.PlatformCurrencies, cfg.DefaultCurrency)
	}
	if cfg.FeeOutboxSchedule != "@every 1m" || cfg.StatusSyncMinAge != 2*time.Minute {
		t.Fatalf("unexpected job config: %q %v", cfg.FeeOutboxSchedule, cfg.StatusSyncMinAge)
	}
	if cfg.RateLimitPerMinute != 30 || cfg.ProviderTimeout != 30*time.Second {
		t.Fatalf("unexpected limits: %d %v", cfg.RateLimitPerMinute, cfg.ProviderTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	baseEnv(t)
	t.Setenv("PORT", ":9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("IDEMPOTENCY_TTL_SECONDS", "60")
	t.Setenv("PLATFORM_CURRENCIES", "kes, usd ,")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":9090" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if cfg.ShutdownPeriod != 3*time.Second || cfg.IdempotencyTTL != time.Minute {
		t.Fatalf("unexpected durations: %v %v", cfg.ShutdownPeriod, cfg.IdempotencyTTL)
	}
	if len(cfg.PlatformCurrencies) != 2 || cfg.PlatformCurrencies[1] != "USD" {
		t.Fatalf("unexpected currencies: %v", cfg.PlatformCurrencies)
	}
	if len(cfg.KafkaBrokers) != 2 {
		t.Fatalf("unexpected brokers: %v", cfg.KafkaBrokers)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"missing database": {"DATABASE_URL": ""},
		"bad ttl":          {"IDEMPOTENCY_TTL": "soon"},
		"bad rate limit":   {"RATE_LIMIT_PER_MINUTE": "many"},
		"jwt in prod":      {"APP_ENV": "production", "JWT_SECRET": ""},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			baseEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
