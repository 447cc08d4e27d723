package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/miketere/businesscard-sub000/api/routes"
	"github.com/miketere/businesscard-sub000/internal/billing"
	"github.com/miketere/businesscard-sub000/internal/entitlements"
	"github.com/miketere/businesscard-sub000/internal/lifecycle"
	"github.com/miketere/businesscard-sub000/internal/plans"
	paymongowebhook "github.com/miketere/businesscard-sub000/internal/webhooks/paymongo"
	"github.com/miketere/businesscard-sub000/pkg/config"
	"github.com/miketere/businesscard-sub000/pkg/db"
	"github.com/miketere/businesscard-sub000/pkg/logger"
	"github.com/miketere/businesscard-sub000/pkg/metrics"
	"github.com/miketere/businesscard-sub000/pkg/migrate"
	"github.com/miketere/businesscard-sub000/pkg/paymongo"
	"github.com/miketere/businesscard-sub000/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	billingMetrics := metrics.NewBillingMetrics(registry)

	paymongoClient, err := paymongo.NewClient(context.Background(), cfg.PayMongo, logg, billingMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create paymongo client", err)
		os.Exit(1)
	}

	plansRepo := plans.NewRepository(dbClient.DB())
	planCatalog, err := plans.NewService(plans.ServiceParams{
		Repo:    plansRepo,
		Gateway: paymongoClient,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create plan catalog", err)
		os.Exit(1)
	}

	billingRepo := billing.NewRepository(dbClient.DB())

	lifecycleService, err := lifecycle.NewService(lifecycle.ServiceParams{
		Repo:              billingRepo,
		Catalog:           planCatalog,
		Gateway:           paymongoClient,
		TransactionRunner: dbClient,
		Logger:            logg,
		Metrics:           billingMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create lifecycle service", err)
		os.Exit(1)
	}

	webhookGuard, err := paymongowebhook.NewIdempotencyGuard(redisClient, cfg.PayMongo.WebhookEventTTL, "paymongo-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	webhookService, err := paymongowebhook.NewService(paymongowebhook.ServiceParams{
		BillingRepo:       billingRepo,
		PlanRepo:          plansRepo,
		Gateway:           paymongoClient,
		TransactionRunner: dbClient,
		Logger:            logg,
		Metrics:           billingMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook reconciler", err)
		os.Exit(1)
	}

	featureGate, err := entitlements.NewService(entitlements.ServiceParams{
		Repo:          entitlements.NewRepository(dbClient.DB()),
		Subscriptions: billingRepo,
		Catalog:       planCatalog,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create feature gate", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:          cfg,
			Logger:          logg,
			DB:              dbClient,
			Redis:           redisClient,
			PlanCatalog:     planCatalog,
			Lifecycle:       lifecycleService,
			FeatureGate:     featureGate,
			PayMongoClient:  paymongoClient,
			WebhookService:  webhookService,
			WebhookGuard:    webhookGuard,
			MetricsGatherer: registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
