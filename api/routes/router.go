package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/shopfloor-backend/api/controllers"
	inventorycontrollers "github.com/angelmondragon/shopfloor-backend/api/controllers/inventory"
	planningcontrollers "github.com/angelmondragon/shopfloor-backend/api/controllers/planning"
	productioncontrollers "github.com/angelmondragon/shopfloor-backend/api/controllers/production"
	purchasingcontrollers "github.com/angelmondragon/shopfloor-backend/api/controllers/purchasing"
	quotecontrollers "github.com/angelmondragon/shopfloor-backend/api/controllers/quotes"
	"github.com/angelmondragon/shopfloor-backend/api/middleware"
	"github.com/angelmondragon/shopfloor-backend/internal/ledger"
	"github.com/angelmondragon/shopfloor-backend/internal/planning"
	"github.com/angelmondragon/shopfloor-backend/internal/production"
	"github.com/angelmondragon/shopfloor-backend/internal/purchasing"
	"github.com/angelmondragon/shopfloor-backend/internal/quotes"
	"github.com/angelmondragon/shopfloor-backend/pkg/config"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/shopfloor-backend/pkg/redis"
)

// RedisStore is the slice of the Redis client the router needs for
// readiness, idempotency and write throttling.
type RedisStore interface {
	pkgredis.IdempotencyStore
	Ping(context.Context) error
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (pkgredis.WindowCount, error)
}

type Params struct {
	Config *config.Config
	Logger *logger.Logger
	DB     controllers.Pinger
	Redis  RedisStore

	Planning   planning.Service
	Ledger     ledger.Service
	Quotes     quotes.Service
	Production production.Service
	Purchasing purchasing.Service

	// Metrics and MetricsHandler default to no-op recording and the global
	// prometheus registry.
	Metrics        *metrics.HTTPMetrics
	MetricsHandler http.Handler
}

func NewRouter(params Params) http.Handler {
	cfg := params.Config
	logg := params.Logger

	metricsHandler := params.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, params.Metrics),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Actor(logg),
	)

	r.Method(http.MethodGet, "/metrics", metricsHandler)

	idem := middleware.NewIdempotency(params.Redis, cfg.Redis.IdempotencyTTL, logg)
	idempotent, critical := idem.Standard(), idem.Critical()
	writeLimit := middleware.WriteRateLimit(middleware.WriteRateLimitPolicy{
		Window: cfg.RateLimit.Window,
		Limit:  cfg.RateLimit.WriteLimit,
	}, params.Redis, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/health", func(r chi.Router) {
			r.Get("/live", controllers.HealthLive(cfg))
			r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, params.Redis))
		})

		r.Group(func(r chi.Router) {
			r.Use(writeLimit)

			r.Route("/products/{productID}", func(r chi.Router) {
				r.Get("/requirements", planningcontrollers.Requirements(params.Planning, logg))
				r.Get("/requirements/tree", planningcontrollers.RequirementsTree(params.Planning, logg))
				r.Get("/capacity", planningcontrollers.Capacity(params.Planning, logg))
			})

			r.Route("/items/{itemID}", func(r chi.Router) {
				r.Get("/transactions", inventorycontrollers.Transactions(params.Ledger, logg))
				r.With(idempotent).Post("/adjustments", inventorycontrollers.Adjust(params.Ledger, logg))
			})

			r.Route("/quotes", func(r chi.Router) {
				r.Post("/", quotecontrollers.Create(params.Quotes, logg))
				r.Get("/{quoteID}", quotecontrollers.Detail(params.Quotes, logg))
				r.With(idempotent).Post("/{quoteID}/transitions", quotecontrollers.Transition(params.Quotes, logg))
				r.With(critical).Post("/{quoteID}/convert", quotecontrollers.Convert(params.Quotes, logg))
			})

			r.Route("/production-orders", func(r chi.Router) {
				r.Post("/", productioncontrollers.Create(params.Production, logg))
				r.Get("/{orderID}", productioncontrollers.Detail(params.Production, logg))
				r.With(idempotent).Post("/{orderID}/transitions", productioncontrollers.Transition(params.Production, logg))
			})

			r.Route("/purchase-orders", func(r chi.Router) {
				r.Post("/", purchasingcontrollers.Create(params.Purchasing, logg))
				r.Get("/{poID}", purchasingcontrollers.Detail(params.Purchasing, logg))
				r.With(idempotent).Post("/{poID}/transitions", purchasingcontrollers.Transition(params.Purchasing, logg))
				r.With(critical).Post("/{poID}/receipts", purchasingcontrollers.Receive(params.Purchasing, logg))
			})
		})
	})

	return r
}
