package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/wishlist-backend/internal/cache"
	"github.com/angelmondragon/wishlist-backend/internal/enrichment"
	"github.com/angelmondragon/wishlist-backend/internal/wishlist"
	"github.com/angelmondragon/wishlist-backend/pkg/config"
	"github.com/angelmondragon/wishlist-backend/pkg/db"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
	"github.com/angelmondragon/wishlist-backend/pkg/metrics"
	"github.com/angelmondragon/wishlist-backend/pkg/pubsub"
	"github.com/angelmondragon/wishlist-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "enrichment-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "enrichment-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database", err)
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	requireResource(ctx, logg, "enrichment subscription", pubsubClient.EnsureSubscription(ctx, cfg.PubSub.EnrichmentSubscription))
	subscription := pubsubClient.EnrichmentSubscriber()
	if subscription == nil {
		requireResource(ctx, logg, "enrichment subscription", errors.New("subscription not configured"))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := cache.NewRedisStore(redisClient, cfg.Sync.CacheTTL)
	requireResource(ctx, logg, "cache store", err)

	processor, err := enrichment.NewProcessor(enrichment.ProcessorParams{
		Store:           wishlist.NewRepository(dbClient.DB()),
		Cache:           store,
		Extractor:       enrichment.NewExtractor(cfg.Enrichment.MaxTextLength),
		Images:          enrichment.NewImageValidator(enrichment.HTTPOptionsFromConfig(cfg.Enrichment, cfg.Enrichment.HTTPTimeout, logg)),
		Pages:           enrichment.NewPageFetcher(enrichment.HTTPOptionsFromConfig(cfg.Enrichment, cfg.Enrichment.FetchTimeout, logg)),
		DefaultCurrency: cfg.Enrichment.DefaultCurrency,
		Metrics:         metrics.NewEnrichmentMetrics(registry),
		Logger:          logg,
	})
	requireResource(ctx, logg, "enrichment processor", err)

	consumer, err := enrichment.NewConsumer(processor, subscription, logg)
	requireResource(ctx, logg, "enrichment consumer", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	service, err := NewService(ServiceParams{
		Logger:   logg,
		Consumer: consumer,
		Dependencies: []Dependency{
			{Name: "database", Ping: dbClient.Ping},
			{Name: "redis", Ping: redisClient.Ping},
			{Name: "pubsub", Ping: pubsubClient.Ping},
		},
		MetricsServer: &http.Server{
			Addr:              ":" + port,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	})
	requireResource(ctx, logg, "enrichment worker service", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":          cfg.App.Env,
		"subscription": cfg.PubSub.EnrichmentSubscription,
	})
	logg.Info(runCtx, "enrichment worker ready")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "enrichment worker failed", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
