package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/caskwell/caskwell/internal/app"
	"github.com/caskwell/caskwell/internal/inventory"
	jobmetrics "github.com/caskwell/caskwell/internal/jobs"
	"github.com/caskwell/caskwell/internal/platform/cache"
	"github.com/caskwell/caskwell/internal/platform/db"
	"github.com/caskwell/caskwell/internal/shared"
	"github.com/caskwell/caskwell/internal/specialorder"
	"github.com/caskwell/caskwell/jobs"
)

func main() {
	if app.InTestMode() {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

	mail, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("create jobs client", "error", err)
		os.Exit(1)
	}
	defer mail.Close()

	metrics := jobmetrics.NewMetrics(nil)
	idem := shared.NewIdempotencyStore(pool)
	audit := shared.NewAuditLogger(pool)

	inventorySvc := inventory.NewService(inventory.NewRepository(pool), audit, idem, nil, nil)
	specialSvc := specialorder.NewService(specialorder.NewRepository(pool), audit)

	lowStock := jobs.NewLowStockScanJob(inventorySvc, rdb, mail, logger, metrics)
	lowStock.AlertTTL = cfg.AlertTTL
	triage := jobs.NewOrdersTriageScanJob(inventorySvc, specialSvc, rdb, mail, logger, metrics)
	triage.AlertTTL = cfg.AlertTTL
	cleanup := jobs.NewIdempotencyCleanupJob(idem, logger, metrics)

	scanPayload := jobs.ScanPayload{NotifyEmail: cfg.NotifyEmail}
	lowStockTask, err := jobs.NewStockLowScanTask(scanPayload)
	if err != nil {
		logger.Error("build low-stock task", "error", err)
		os.Exit(1)
	}
	triageTask, err := jobs.NewOrdersTriageScanTask(scanPayload)
	if err != nil {
		logger.Error("build triage task", "error", err)
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(jobs.IdempotencyCleanupPayload{MaxAgeHours: 24})
	if err != nil {
		logger.Error("build cleanup task", "error", err)
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStockLowScan, Handler: lowStock.Handle},
			{Type: jobs.TaskOrdersTriageScan, Handler: triage.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanup.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.LowStockScanCron, Task: lowStockTask, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3)}},
			{Spec: cfg.TriageScanCron, Task: triageTask, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3)}},
			{Spec: cfg.IdempotencyCronSpec, Task: cleanupTask, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("configure worker", "error", err)
		os.Exit(1)
	}

	logger.Info("worker starting", "redis", cfg.RedisAddr)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("worker shutdown complete")
}
