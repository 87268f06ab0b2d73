package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/bridge-pay/bridge_pay/internal/billing"
	"github.com/bridge-pay/bridge_pay/internal/config"
	"github.com/bridge-pay/bridge_pay/internal/events"
	"github.com/bridge-pay/bridge_pay/internal/fees"
	"github.com/bridge-pay/bridge_pay/internal/funding"
	"github.com/bridge-pay/bridge_pay/internal/idempotency"
	"github.com/bridge-pay/bridge_pay/internal/ledger"
	"github.com/bridge-pay/bridge_pay/internal/metrics"
	"github.com/bridge-pay/bridge_pay/internal/middleware"
	"github.com/bridge-pay/bridge_pay/internal/notification"
	"github.com/bridge-pay/bridge_pay/internal/payments"
	"github.com/bridge-pay/bridge_pay/internal/provider"
	"github.com/bridge-pay/bridge_pay/internal/settlement"
	"github.com/bridge-pay/bridge_pay/internal/splits"
	"github.com/bridge-pay/bridge_pay/internal/wallet"
)

// statusSyncBatch bounds the pending items polled per source per run.
const statusSyncBatch = 100

// Deps aggregates shared dependencies required to wire routes. DB and Cache
// may be nil in dev, in which case in-memory backends are used. Nil
// Publisher, Provider and Notifier fall back to the log publisher, the
// sandbox provider and the log notifier.
type Deps struct {
	Cfg       config.Config
	DB        *pgxpool.Pool
	Cache     *redis.Client
	Logger    *slog.Logger
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Publisher events.Publisher
	Provider  provider.Client
	Notifier  notification.Notifier
	Catalog   fees.Catalog
}

// Runtime exposes the services built by Setup to the background workers
// started in main.
type Runtime struct {
	Metrics    *metrics.Metrics
	Ledger     ledger.Store
	Resolver   *fees.Resolver
	Platform   *wallet.Platform
	Wallets    *wallet.Service
	Fees       *billing.Engine
	Payments   *payments.Service
	Splits     *splits.Service
	Funding    *funding.Service
	Reconciler *settlement.Reconciler
	StatusSync *settlement.StatusSync
	Cleaner    idempotency.Cleaner
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*Runtime, error) {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
		d.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	if d.Publisher == nil {
		d.Publisher = events.NewLogPublisher(d.Logger)
	}
	if d.Provider == nil {
		d.Provider = provider.StaticClient{}
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}

	rt, err := build(context.Background(), d)
	if err != nil {
		return nil, err
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.LogFormat == "text" {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger, rt.Metrics))

	RegisterHealthRoutes(app, d, d.Registry)

	walletHandler := wallet.NewHandler(rt.Wallets, d.Cfg.DefaultCurrency)
	fundingHandler := funding.NewHandler(rt.Funding)
	quoteHandler := fees.NewHandler(rt.Resolver, d.Cfg.DefaultCurrency)
	paymentHandler := payments.NewHandler(rt.Payments, d.Cfg.DefaultCurrency)
	splitHandler := splits.NewHandler(rt.Splits, d.Cfg.DefaultCurrency)
	webhookHandler := settlement.NewWebhookHandler(rt.Reconciler, d.Cfg.WebhookSecret)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.LocalRequestID).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"ok":         true,
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	api.Post("/webhooks/provider", webhookHandler.Handle)

	// Protected routes
	protected := api.Group("", middleware.JWTAuth(d.Cfg.JWTSecret), middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	RegisterWalletRoutes(protected, walletHandler, fundingHandler, quoteHandler)
	RegisterPaymentRoutes(protected, paymentHandler, splitHandler,
		middleware.RateLimit(d.Cache, "split-execute", d.Cfg.RateLimitPerMinute))

	return rt, nil
}

// build wires the domain services on Postgres when a pool is present and on
// in-memory backends otherwise.
func build(ctx context.Context, d Deps) (*Runtime, error) {
	var (
		store       ledger.Store
		walletRepo  wallet.Repository
		lines       billing.Repository
		outbox      billing.Outbox
		intentRepo  payments.Repository
		splitRepo   splits.Repository
		fundingRepo funding.Repository
		dedupe      idempotency.Store
		cleaner     idempotency.Cleaner
	)
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
		walletRepo = wallet.NewPostgresRepository(d.DB)
		if d.Catalog == nil {
			d.Catalog = fees.NewPostgresCatalog(d.DB)
		}
		lines = billing.NewPostgresRepository(d.DB)
		outbox = billing.NewPostgresOutbox(d.DB)
		intentRepo = payments.NewPostgresRepository(d.DB)
		splitRepo = splits.NewPostgresRepository(d.DB)
		fundingRepo = funding.NewPostgresRepository(d.DB)
		pg := idempotency.NewPostgresStore(d.DB)
		dedupe, cleaner = pg, pg
	} else {
		store = ledger.NewInMemory()
		walletRepo = wallet.NewMemoryRepository()
		if d.Catalog == nil {
			d.Catalog = fees.NewMemoryCatalog()
		}
		lines = billing.NewMemoryRepository()
		outbox = billing.NewMemoryOutbox()
		intentRepo = payments.NewMemoryRepository()
		splitRepo = splits.NewMemoryRepository()
		fundingRepo = funding.NewMemoryRepository()
		mem := idempotency.NewMemoryStore()
		dedupe, cleaner = mem, mem
	}

	// Split execution replays live in Redis with a TTL when available.
	replays := dedupe
	if d.Cache != nil {
		replays = idempotency.NewRedisStore(d.Cache, d.Cfg.IdempotencyTTL)
	}

	platform, err := wallet.BootstrapPlatform(ctx, store, d.Cfg.PlatformUserID, d.Cfg.PlatformCurrencies)
	if err != nil {
		return nil, fmt.Errorf("bootstrap platform wallets: %w", err)
	}

	m := d.Metrics
	if m == nil {
		m = metrics.New(d.Registry)
	}
	resolver := fees.NewResolver(d.Catalog)
	wallets := wallet.NewService(store, walletRepo, d.Logger)
	engine := billing.NewEngine(resolver, lines, store, platform, outbox, m, d.Logger)

	paymentSvc := payments.NewService(payments.Dependencies{
		Repo:      intentRepo,
		Wallets:   wallets,
		Fees:      engine,
		Provider:  d.Provider,
		Publisher: d.Publisher,
		Notifier:  d.Notifier,
		Metrics:   m,
		Logger:    d.Logger,
	})
	splitSvc := splits.NewService(splits.Dependencies{
		Repo:        splitRepo,
		Wallets:     wallets,
		Fees:        engine,
		Provider:    d.Provider,
		Idempotency: replays,
		Publisher:   d.Publisher,
		Notifier:    d.Notifier,
		Metrics:     m,
		Logger:      d.Logger,
	})
	fundingSvc, err := funding.NewService(funding.Dependencies{
		Repo:      fundingRepo,
		Wallets:   wallets,
		Fees:      engine,
		Provider:  d.Provider,
		Publisher: d.Publisher,
		Notifier:  d.Notifier,
		Logger:    d.Logger,
	})
	if err != nil {
		return nil, err
	}

	reconciler := settlement.NewReconciler(dedupe, m, d.Logger, paymentSvc, splitSvc, fundingSvc)
	sync := settlement.NewStatusSync(d.Provider, reconciler, d.Cfg.StatusSyncMinAge, statusSyncBatch, d.Logger,
		settlement.PaymentLegs(paymentSvc),
		settlement.SplitMembers(splitSvc),
		settlement.FundingRequests(fundingSvc),
	).WithResumers(paymentSvc.ResumeStalled)

	return &Runtime{
		Metrics:    m,
		Ledger:     store,
		Resolver:   resolver,
		Platform:   platform,
		Wallets:    wallets,
		Fees:       engine,
		Payments:   paymentSvc,
		Splits:     splitSvc,
		Funding:    fundingSvc,
		Reconciler: reconciler,
		StatusSync: sync,
		Cleaner:    cleaner,
	}, nil
}
