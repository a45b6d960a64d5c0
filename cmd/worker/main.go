package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/waterops/waterops/internal/apiclient"
	"github.com/waterops/waterops/internal/app"
	"github.com/waterops/waterops/internal/catalog"
	"github.com/waterops/waterops/internal/inventory"
	jobmetrics "github.com/waterops/waterops/internal/jobs"
	"github.com/waterops/waterops/internal/orders"
	"github.com/waterops/waterops/internal/platform/db"
	"github.com/waterops/waterops/internal/shared"
	"github.com/waterops/waterops/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 4})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)

	var source inventory.Source
	if cfg.APIURL != "" {
		client, err := apiclient.New(apiclient.Config{
			BaseURL: cfg.APIURL,
			Actor:   shared.Actor{ID: cfg.WorkerActorID, Role: shared.RoleAdmin},
		})
		if err != nil {
			logger.Error("init api client", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("outstanding scan reads from api", slog.String("url", cfg.APIURL))
		source = client
	} else {
		source = inventory.LocalSource{
			Catalog: catalog.NewService(catalog.NewRepository(pool), nil, logger),
			Store:   orders.NewRepository(pool),
		}
	}

	notifyJob := jobs.NewStatusNotifyJob(jobs.NewPGNotificationStore(pool), logger, metrics)
	scanJob := jobs.NewOutstandingScanJob(inventory.NewReport(source, logger), logger, metrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool), logger, metrics)

	scanTask, err := jobs.NewOutstandingScanTask(time.Now().UTC())
	if err != nil {
		logger.Error("build outstanding scan task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(cfg.IdempotencyRetention)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: cfg.RedisOptions().AsynqOpt(),
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskOrderStatusNotify, Handler: notifyJob.Handle},
			{Type: jobs.TaskOutstandingScan, Handler: scanJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.OutstandingScanCron, Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
