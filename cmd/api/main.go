package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/bridge-pay/bridge_pay/internal/config"
	"github.com/bridge-pay/bridge_pay/internal/events"
	"github.com/bridge-pay/bridge_pay/internal/infra"
	"github.com/bridge-pay/bridge_pay/internal/jobs"
	"github.com/bridge-pay/bridge_pay/internal/logging"
	"github.com/bridge-pay/bridge_pay/internal/metrics"
	"github.com/bridge-pay/bridge_pay/internal/provider"
	"github.com/bridge-pay/bridge_pay/internal/routes"
	"github.com/bridge-pay/bridge_pay/internal/server"
	"github.com/bridge-pay/bridge_pay/internal/settlement"
)

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewWithOptions(logging.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: cfg.AppName,
		Env:     cfg.AppEnv,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL, infra.PoolOptions{})
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if _, err := infra.Migrate(ctx, db, infra.Migrations(), logger); err != nil {
			logger.Error("migrate", "error", err)
			os.Exit(1)
		}
	}

	cache, err := infra.NewRedisClient(ctx, cfg.RedisURL, infra.RedisOptions{})
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Warn("close redis", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var publisher events.Publisher = events.NewLogPublisher(logger)
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info("publishing events to kafka", slog.String("topic", cfg.KafkaTopic))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("close event publisher", "error", err)
		}
	}()

	m := metrics.New(registry)

	var client provider.Client = provider.StaticClient{}
	if cfg.ProviderBaseURL != "" {
		client = provider.NewHTTPClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.ProviderTimeout, m, logger)
	} else {
		logger.Warn("PROVIDER_BASE_URL not set; using the sandbox provider")
	}

	srv, err := server.New(routes.Deps{
		Cfg:       cfg,
		DB:        db,
		Cache:     cache,
		Logger:    logger,
		Registry:  registry,
		Metrics:   m,
		Publisher: publisher,
		Provider:  client,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}
	rt := srv.Runtime()

	if cfg.RabbitMQURL != "" {
		consumer, err := settlement.NewConsumer(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Error("connect rabbitmq", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()
		err = consumer.ConsumeWithBindings(cfg.ProviderStatusExchange, cfg.ProviderStatusQueue, map[string]func([]byte) bool{
			settlement.RoutingKeyStatus: settlement.StatusHandler(ctx, rt.Reconciler),
		})
		if err != nil {
			logger.Error("consume provider status", "error", err)
			os.Exit(1)
		}
	}

	scheduler := jobs.NewScheduler(
		jobs.NewJobs(rt.Fees, rt.StatusSync, rt.Cleaner, cfg.IdempotencyTTL, logger),
		jobs.Schedules{
			FeeOutbox:          cfg.FeeOutboxSchedule,
			StatusSync:         cfg.StatusSyncSchedule,
			IdempotencyCleanup: cfg.IdempotencyCleanupSchedule,
		},
		logger,
	)
	scheduler.Register()
	scheduler.Start()

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("scheduled jobs still running at shutdown")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
