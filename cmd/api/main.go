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

	"github.com/angelmondragon/shopfloor-backend/api/routes"
	"github.com/angelmondragon/shopfloor-backend/internal/bom"
	"github.com/angelmondragon/shopfloor-backend/internal/capacity"
	"github.com/angelmondragon/shopfloor-backend/internal/catalog"
	"github.com/angelmondragon/shopfloor-backend/internal/ledger"
	"github.com/angelmondragon/shopfloor-backend/internal/planning"
	"github.com/angelmondragon/shopfloor-backend/internal/production"
	"github.com/angelmondragon/shopfloor-backend/internal/purchasing"
	"github.com/angelmondragon/shopfloor-backend/internal/quotes"
	"github.com/angelmondragon/shopfloor-backend/pkg/config"
	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/instance"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/metrics"
	"github.com/angelmondragon/shopfloor-backend/pkg/migrate"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
	"github.com/angelmondragon/shopfloor-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		requireResource(ctx, logg, "dev migrations", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	transitionMetrics := metrics.NewTransitionMetrics(prometheus.DefaultRegisterer)

	items := catalog.NewRepository(dbClient.DB())
	engine, err := bom.NewEngine(items, items)
	requireResource(ctx, logg, "bom engine", err)
	calculator, err := capacity.NewCalculator(items)
	requireResource(ctx, logg, "capacity calculator", err)
	planningService, err := planning.NewService(planning.ServiceParams{
		Engine:     engine,
		Calculator: calculator,
		Snapshot:   planning.NewCatalogSnapshot(items),
		Items:      items,
		Runs:       planning.NewRepository(dbClient.DB()),
	})
	requireResource(ctx, logg, "planning service", err)

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), dbClient, outboxService)
	requireResource(ctx, logg, "ledger service", err)

	productionService, err := production.NewService(production.ServiceParams{
		Repository: production.NewRepository(dbClient.DB()),
		Catalog:    items,
		Ledger:     ledgerService,
		Tx:         dbClient,
		Outbox:     outboxService,
		Metrics:    transitionMetrics,
	})
	requireResource(ctx, logg, "production service", err)

	quoteParams := quotes.ServiceParams{
		Repository: quotes.NewRepository(dbClient.DB()),
		Tx:         dbClient,
		Outbox:     outboxService,
		Items:      items,
		Metrics:    transitionMetrics,
		Validity:   cfg.Planning.QuoteValidity,
	}
	if cfg.Planning.CreateProductionOrder {
		quoteParams.Production = productionService
	}
	quoteService, err := quotes.NewService(quoteParams)
	requireResource(ctx, logg, "quote service", err)

	purchasingService, err := purchasing.NewService(purchasing.ServiceParams{
		Repository: purchasing.NewRepository(dbClient.DB()),
		Items:      items,
		Ledger:     ledgerService,
		Tx:         dbClient,
		Outbox:     outboxService,
		Metrics:    transitionMetrics,
	})
	requireResource(ctx, logg, "purchasing service", err)

	router := routes.NewRouter(routes.Params{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Redis:      redisClient,
		Planning:   planningService,
		Ledger:     ledgerService,
		Quotes:     quoteService,
		Production: productionService,
		Purchasing: purchasingService,
		Metrics:    metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":                     cfg.App.Env,
		"addr":                    addr,
		"instance":                instance.GetID(),
		"create_production_order": cfg.Planning.CreateProductionOrder,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
