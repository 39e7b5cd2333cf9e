package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/wishlist-backend/api/routes"
	"github.com/angelmondragon/wishlist-backend/internal/cache"
	"github.com/angelmondragon/wishlist-backend/internal/enrichment"
	"github.com/angelmondragon/wishlist-backend/internal/payments"
	"github.com/angelmondragon/wishlist-backend/internal/synchronizer"
	"github.com/angelmondragon/wishlist-backend/internal/wishlist"
	"github.com/angelmondragon/wishlist-backend/pkg/config"
	"github.com/angelmondragon/wishlist-backend/pkg/db"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
	"github.com/angelmondragon/wishlist-backend/pkg/metrics"
	"github.com/angelmondragon/wishlist-backend/pkg/migrate"
	"github.com/angelmondragon/wishlist-backend/pkg/pubsub"
	"github.com/angelmondragon/wishlist-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
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

	repo := wishlist.NewRepository(dbClient.DB())
	store, err := cache.NewRedisStore(redisClient, cfg.Sync.CacheTTL)
	if err != nil {
		logg.Error(ctx, "failed to create cache store", err)
		os.Exit(1)
	}
	debouncer, err := synchronizer.NewRedisDebouncer(redisClient, cfg.Sync.AddDebounce)
	if err != nil {
		logg.Error(ctx, "failed to create debouncer", err)
		os.Exit(1)
	}

	pages := enrichment.NewPageFetcher(enrichment.HTTPOptionsFromConfig(cfg.Enrichment, cfg.Enrichment.FetchTimeout, logg))

	var trigger enrichment.Trigger
	var local *enrichment.LocalTrigger
	if cfg.GCP.ProjectID != "" {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		trigger, err = enrichment.NewPubSubTrigger(psClient.EnrichmentPublisher())
		if err != nil {
			logg.Error(ctx, "failed to create enrichment trigger", err)
			os.Exit(1)
		}
	} else {
		processor, err := enrichment.NewProcessor(enrichment.ProcessorParams{
			Store:           repo,
			Cache:           store,
			Extractor:       enrichment.NewExtractor(cfg.Enrichment.MaxTextLength),
			Images:          enrichment.NewImageValidator(enrichment.HTTPOptionsFromConfig(cfg.Enrichment, cfg.Enrichment.HTTPTimeout, logg)),
			Pages:           pages,
			DefaultCurrency: cfg.Enrichment.DefaultCurrency,
			Metrics:         metrics.NewEnrichmentMetrics(registry),
			Logger:          logg,
		})
		if err != nil {
			logg.Error(ctx, "failed to create enrichment processor", err)
			os.Exit(1)
		}
		local, err = enrichment.NewLocalTrigger(processor, cfg.Enrichment.LocalWorkers, cfg.Enrichment.FetchTimeout, logg)
		if err != nil {
			logg.Error(ctx, "failed to create local enrichment trigger", err)
			os.Exit(1)
		}
		trigger = local
		logg.Warn(ctx, "no gcp project configured, enrichment runs in-process")
	}

	syncService, err := synchronizer.NewService(synchronizer.ServiceParams{
		Remote:    repo,
		Cache:     store,
		Debouncer: debouncer,
		Trigger:   trigger,
		Pages:     pages,
		Metrics:   metrics.NewSyncMetrics(registry),
		Logger:    logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create synchronizer", err)
		os.Exit(1)
	}

	var gate *payments.Gate
	if cfg.Payments.Enabled() {
		gate, err = newQueryGate(cfg)
		if err != nil {
			logg.Error(ctx, "failed to create payment gate", err)
			os.Exit(1)
		}
	}

	var onramp *payments.Onramp
	if cfg.Onramp.Enabled() {
		onramp, err = newOnramp(cfg.Onramp)
		if err != nil {
			logg.Error(ctx, "failed to create onramp", err)
			os.Exit(1)
		}
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
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
		"paid":     gate != nil,
		"onramp":   onramp != nil,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, registry, syncService, gate, onramp),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "graceful shutdown failed", err)
		}
	}

	if local != nil {
		local.Wait()
	}
}

func newQueryGate(cfg *config.Config) (*payments.Gate, error) {
	req, err := payments.RequirementFromConfig(cfg.Payments, "/api/v1/query", "Wishlist demand insights")
	if err != nil {
		return nil, err
	}
	verifier, err := payments.NewHTTPVerifier(cfg.Payments.VerifierURL, cfg.Enrichment.HTTPTimeout)
	if err != nil {
		return nil, err
	}
	return payments.NewGate(req, verifier)
}

func newOnramp(cfg config.OnrampConfig) (*payments.Onramp, error) {
	provider, err := payments.NewCDPOnramp(cfg)
	if err != nil {
		return nil, err
	}
	return payments.NewOnramp(provider, cfg)
}
