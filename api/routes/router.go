package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/wishlist-backend/api/controllers"
	"github.com/angelmondragon/wishlist-backend/api/middleware"
	"github.com/angelmondragon/wishlist-backend/internal/payments"
	"github.com/angelmondragon/wishlist-backend/internal/synchronizer"
	"github.com/angelmondragon/wishlist-backend/pkg/config"
	"github.com/angelmondragon/wishlist-backend/pkg/db"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
	"github.com/angelmondragon/wishlist-backend/pkg/redis"
)

// NewRouter wires the HTTP surface. A nil gate leaves the paid query route
// unmounted and a nil onramp leaves the onramp route unmounted.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	syncService synchronizer.Service,
	gate *payments.Gate,
	onramp *payments.Onramp,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	addItemPolicy := middleware.NewRateLimitPolicy(
		"add_item",
		cfg.Sync.AddRateWindow,
		cfg.Sync.AddRateLimit,
	)

	onrampPolicy := middleware.NewRateLimitPolicy(
		"onramp",
		cfg.Onramp.RateWindow,
		cfg.Onramp.RateLimit,
	)

	deps := map[string]controllers.Pinger{}
	if dbP != nil {
		deps["db"] = dbP
	}
	if redisClient != nil {
		deps["redis"] = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/badges", controllers.BadgesRank(logg))
		if gate != nil {
			r.Post("/query", controllers.PaidQuery(gate, logg))
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", controllers.WishlistGet(syncService, cfg.Sync.DefaultMaxBadges, logg))
				r.Post("/", controllers.WishlistBootstrap(syncService, logg))
				r.Post("/refresh", controllers.WishlistRefresh(syncService, logg))
				r.With(middleware.RateLimit(addItemPolicy, rateLimitStore(redisClient), logg)).
					Post("/items", controllers.WishlistAddItem(syncService, logg))
				r.Delete("/items/{itemId}", controllers.WishlistRemoveItem(syncService, logg))
				r.Put("/items/{itemId}/target", controllers.WishlistSetTarget(syncService, logg))
				if onramp != nil {
					r.With(middleware.RateLimit(onrampPolicy, rateLimitStore(redisClient), logg)).
						Post("/onramp", controllers.WishlistOnramp(onramp, logg))
				}
			})

			r.Route("/favorites", func(r chi.Router) {
				r.Get("/", controllers.FavoritesList(syncService, logg))
				r.Post("/{productId}/toggle", controllers.FavoritesToggle(syncService, logg))
			})
		})
	})

	return r
}

// rateLimitStore keeps a nil client from becoming a non-nil interface.
func rateLimitStore(client *redis.Client) middleware.RateLimitStore {
	if client == nil {
		return nil
	}
	return client
}
