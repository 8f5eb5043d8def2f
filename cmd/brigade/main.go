package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/brigade-erp/brigade-erp/internal/analytics"
	"github.com/brigade-erp/brigade-erp/internal/app"
	"github.com/brigade-erp/brigade-erp/internal/inventory"
	"github.com/brigade-erp/brigade-erp/internal/masterdata"
	"github.com/brigade-erp/brigade-erp/internal/observability"
	"github.com/brigade-erp/brigade-erp/internal/platform/cache"
	"github.com/brigade-erp/brigade-erp/internal/platform/db"
	"github.com/brigade-erp/brigade-erp/internal/recipes"
	"github.com/brigade-erp/brigade-erp/internal/shared"
	"github.com/brigade-erp/brigade-erp/jobs"
)

// recipePortBridge breaks the construction cycle between the inventory and
// recipes services: inventory consumes recipe requirement lines while recipes
// costs ingredients from inventory averages.
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, figures will be computed fresh", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()
	figureStore := cache.NewStore(redisClient, cfg.CacheTTL)

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	recipeBridge := &recipePortBridge{}
	inventoryRepo := inventory.NewRepository(dbpool)
	inventoryService := inventory.NewService(inventoryRepo, recipeBridge, auditLogger, idempotencyStore, nil)

	recipesRepo := recipes.NewRepository(dbpool)
	recipesService := recipes.NewService(recipesRepo, inventoryService, auditLogger, cfg.MenuVATRate)
	recipeBridge.service = recipesService

	analyticsRepo := analytics.NewRepository(dbpool)
	analyticsService := analytics.NewService(analyticsRepo, figureStore, auditLogger)

	masterdataRepo := masterdata.NewRepository(dbpool)
	masterdataService := masterdata.NewService(masterdataRepo, auditLogger)

	inventoryHandler := inventory.NewHandler(logger, inventoryService)
	recipesHandler := recipes.NewHandler(logger, recipesService)
	analyticsHandler := analytics.NewHandler(logger, analyticsService)
	masterdataHandler := masterdata.NewHandler(logger, masterdataService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		InventoryHandler:  inventoryHandler,
		RecipesHandler:    recipesHandler,
		AnalyticsHandler:  analyticsHandler,
		MasterDataHandler: masterdataHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
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
