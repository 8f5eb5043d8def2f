package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/brigade-erp/brigade-erp/internal/analytics"
	"github.com/brigade-erp/brigade-erp/internal/app"
	"github.com/brigade-erp/brigade-erp/internal/inventory"
	"github.com/brigade-erp/brigade-erp/internal/platform/cache"
	"github.com/brigade-erp/brigade-erp/internal/platform/db"
	"github.com/brigade-erp/brigade-erp/internal/recipes"
	"github.com/brigade-erp/brigade-erp/internal/shared"
	"github.com/brigade-erp/brigade-erp/jobs"
)

type recipePortBridge struct {
	service *recipes.Service
}

func (b *recipePortBridge) RequirementLines(ctx context.Context, recipeID int64, servings decimal.Decimal) ([]inventory.RequirementLine, error) {
	if b.service == nil {
		return nil, errors.New("recipes service not wired")
	}
	return b.service.RequirementLines(ctx, recipeID, servings)
}

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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, warmup will skip caching", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()
	figureStore := cache.NewStore(redisClient, cfg.CacheTTL)

	auditLogger := shared.NewAuditLogger(pool)

	recipeBridge := &recipePortBridge{}
	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, recipeBridge, auditLogger, nil, nil)

	recipesRepo := recipes.NewRepository(pool)
	recipesService := recipes.NewService(recipesRepo, inventoryService, auditLogger, cfg.MenuVATRate)
	recipeBridge.service = recipesService

	analyticsRepo := analytics.NewRepository(pool)
	analyticsService := analytics.NewService(analyticsRepo, figureStore, auditLogger)

	scanJob := jobs.NewLowStockScanJob(inventoryService, logger, nil)
	warmupJob := jobs.NewCostWarmupJob(analyticsService, logger, nil)

	scanTask, err := jobs.NewLowStockScanTask(time.Now().UTC())
	if err != nil {
		logger.Error("build scan task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewCostWarmupTask(2)
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInventoryLowStockScan, Handler: scanJob.Handle},
			{Type: jobs.TaskAnalyticsCostWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 6 * * *", Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "15 1 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
