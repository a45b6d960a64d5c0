package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/waterops/waterops/internal/activity"
	"github.com/waterops/waterops/internal/app"
	"github.com/waterops/waterops/internal/catalog"
	"github.com/waterops/waterops/internal/inventory"
	"github.com/waterops/waterops/internal/observability"
	"github.com/waterops/waterops/internal/orders"
	"github.com/waterops/waterops/internal/platform/cache"
	"github.com/waterops/waterops/internal/platform/db"
	"github.com/waterops/waterops/internal/rbac"
	"github.com/waterops/waterops/internal/reconcile"
	"github.com/waterops/waterops/internal/shared"
	"github.com/waterops/waterops/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	var catalogCache *catalog.Cache
	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Warn("redis unavailable, catalog cache disabled", slog.Any("error", err))
	} else {
		catalogCache = catalog.NewCache(redisClient, cfg.CatalogCacheTTL)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	rbacMiddleware := rbac.Middleware{Logger: logger}

	catalogService := catalog.NewService(catalog.NewRepository(dbpool), catalogCache, logger)
	activityService := activity.NewService(activity.NewStore(dbpool))

	jobClient, err := jobs.NewClient(cfg.RedisOptions().AsynqOpt())
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	orderRepo := orders.NewRepository(dbpool)
	orderService := orders.NewService(orderRepo, catalogService, logger)
	orderService.SetRecorder(activityService)
	orderService.SetNotifier(jobClient)
	orderService.SetObserver(metrics)
	orderService.SetIdempotency(shared.NewIdempotencyStore(dbpool))

	report := inventory.NewReport(inventory.LocalSource{Catalog: catalogService, Store: orderRepo}, logger)

	returnsHandler := reconcile.NewHandler(logger, orderService, rbacMiddleware)
	returnsHandler.SetObserver(metrics)

	inspector := asynq.NewInspector(cfg.RedisOptions().AsynqOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		RBACMiddleware:   rbacMiddleware,
		CatalogHandler:   catalog.NewHandler(logger, catalogService, rbacMiddleware),
		OrdersHandler:    orders.NewHandler(logger, orderService, rbacMiddleware),
		ReturnsHandler:   returnsHandler,
		ActivityHandler:  activity.NewHandler(logger, activityService, rbacMiddleware),
		InventoryHandler: inventory.NewHandler(logger, report, rbacMiddleware),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
