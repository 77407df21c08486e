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

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/caskwell/caskwell/internal/app"
	"github.com/caskwell/caskwell/internal/dashboard"
	"github.com/caskwell/caskwell/internal/integration"
	"github.com/caskwell/caskwell/internal/inventory"
	"github.com/caskwell/caskwell/internal/observability"
	"github.com/caskwell/caskwell/internal/platform/cache"
	"github.com/caskwell/caskwell/internal/platform/db"
	"github.com/caskwell/caskwell/internal/shared"
	"github.com/caskwell/caskwell/internal/specialorder"
	"github.com/caskwell/caskwell/internal/suppliers"
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
		logger.Warn("redis unavailable, continuing without it", "error", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	idem := shared.NewIdempotencyStore(pool)
	audit := shared.NewAuditLogger(pool)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("create jobs client", "error", err)
		os.Exit(1)
	}
	defer jobsClient.Close()

	hooks := integration.NewHooks(jobsClient, cfg.NotifyEmail, logger)

	supplierRepo := suppliers.NewRepository(pool)
	supplierSvc := suppliers.NewService(supplierRepo, audit)
	supplierHandler := suppliers.NewHandler(logger, supplierSvc)

	inventoryRepo := inventory.NewRepository(pool)
	inventorySvc := inventory.NewService(inventoryRepo, audit, idem, supplierSvc, hooks)
	inventoryHandler := inventory.NewHandler(logger, inventorySvc)

	specialRepo := specialorder.NewRepository(pool)
	specialSvc := specialorder.NewService(specialRepo, audit)
	specialHandler := specialorder.NewHandler(logger, specialSvc)

	dashSvc := dashboard.NewService(inventorySvc, specialSvc, supplierSvc)
	dashHandler := dashboard.NewHandler(logger, dashSvc)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer inspector.Close()
	jobsHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		InventoryHandler:    inventoryHandler,
		SpecialOrderHandler: specialHandler,
		SuppliersHandler:    supplierHandler,
		DashboardHandler:    dashHandler,
		JobHandler:          jobsHandler,
		Metrics:             metrics,
	})

	srv := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.AppAddr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
