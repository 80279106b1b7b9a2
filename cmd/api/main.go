package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nestfin/nestfin-backend/api/routes"
	"github.com/nestfin/nestfin-backend/internal/events"
	"github.com/nestfin/nestfin-backend/internal/items"
	syncsvc "github.com/nestfin/nestfin-backend/internal/sync"
	plaidwebhook "github.com/nestfin/nestfin-backend/internal/webhooks/plaid"
	"github.com/nestfin/nestfin-backend/pkg/config"
	"github.com/nestfin/nestfin-backend/pkg/db"
	"github.com/nestfin/nestfin-backend/pkg/logger"
	"github.com/nestfin/nestfin-backend/pkg/metrics"
	"github.com/nestfin/nestfin-backend/pkg/migrate"
	"github.com/nestfin/nestfin-backend/pkg/plaid"
	"github.com/nestfin/nestfin-backend/pkg/redis"
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

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
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

	plaidClient, err := plaid.NewClient(context.Background(), cfg.Plaid, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create aggregator client", err)
		os.Exit(1)
	}

	eventsRepo := events.NewRepository(dbClient.DB())
	itemsRepo := items.NewRepository(dbClient.DB())
	syncRepo := syncsvc.NewRepository(dbClient.DB())

	itemsService, err := items.NewService(items.ServiceParams{
		Repo:       itemsRepo,
		Tx:         dbClient,
		Aggregator: plaidClient,
		Accounts:   items.NewAccountDeactivator(),
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create items service", err)
		os.Exit(1)
	}

	syncService, err := syncsvc.NewService(syncsvc.ServiceParams{
		Repo:        syncRepo,
		Aggregator:  plaidClient,
		Connections: itemsService,
		Webhook:     cfg.Webhook,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sync service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	guard, err := plaidwebhook.NewIdempotencyGuard(
		redisClient,
		eventsRepo,
		cfg.Webhook.DedupWindow,
		cfg.Webhook.DedupTTL,
		"plaid-webhook",
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency guard", err)
		os.Exit(1)
	}

	webhookService, err := plaidwebhook.NewService(plaidwebhook.ServiceParams{
		Guard:   guard,
		Events:  eventsRepo,
		Sync:    syncService,
		Items:   itemsService,
		Metrics: webhookMetrics,
		Logger:  logg,
		Webhook: cfg.Webhook,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"plaid_env": plaidClient.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			Items:          itemsService,
			Sync:           syncService,
			Events:         eventsRepo,
			WebhookService: webhookService,
			Idempotency:    redisClient,
			Gatherer:       registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
