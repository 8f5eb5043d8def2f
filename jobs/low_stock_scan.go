package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/brigade-erp/brigade-erp/internal/inventory"
	jobmetrics "github.com/brigade-erp/brigade-erp/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// LowStockScanJob sweeps the item catalogue for stock at or below the
// configured thresholds and reports what it finds.
type LowStockScanJob struct {
	Inventory *inventory.Service
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewLowStockScanJob wires dependencies for the scan handler.
func NewLowStockScanJob(inventorySvc *inventory.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{
		Inventory: inventorySvc,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes low-stock scan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Inventory == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskInventoryLowStockScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := j.now()
	logger := j.logger()
	logger.Info("starting low stock scan")

	items, err := j.Inventory.LowStockItems(ctx)
	if err != nil {
		resultErr = err
		logger.Error("load low stock items", slog.Any("error", err))
		return resultErr
	}
	j.metrics().SetLowStock(len(items))
	if len(items) == 0 {
		logger.Info("no items below threshold")
		return resultErr
	}

	stocks := make([]inventory.Stock, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			totals, err := j.Inventory.CurrentStock(gctx, item.ID)
			if err != nil {
				return err
			}
			stocks[i] = totals
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		resultErr = err
		logger.Error("load stock totals", slog.Any("error", err))
		return resultErr
	}

	for i, item := range items {
		logger.Warn("item below threshold",
			slog.Int64("item_id", item.ID),
			slog.String("name", item.Name),
			slog.String("qty", stocks[i].Qty.String()),
			slog.String("threshold", item.LowStockThreshold.String()),
		)
	}
	logger.Info("completed low stock scan", slog.Int("items", len(items)), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskInventoryLowStockScan))
	}
	return slog.Default().With(slog.String("job", TaskInventoryLowStockScan))
}

func (j *LowStockScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LowStockScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
