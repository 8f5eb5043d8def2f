package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInventoryLowStockScan sweeps items for depleted stock.
	TaskInventoryLowStockScan = "inventory:low_stock_scan"
	// TaskAnalyticsCostWarmup pre-computes cost-percentage figures.
	TaskAnalyticsCostWarmup = "analytics:cost_warmup"
)

// LowStockScanPayload carries scheduling metadata for the stock sweep.
type LowStockScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockScanTask constructs an Asynq task for the low-stock sweep.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// CostWarmupPayload selects the months to warm. Months is a count going back
// from the current month inclusive.
type CostWarmupPayload struct {
	Months int `json:"months"`
}

// NewCostWarmupTask constructs an Asynq task for the figure warmup.
func NewCostWarmupTask(months int) (*asynq.Task, error) {
	body, err := json.Marshal(CostWarmupPayload{Months: months})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalyticsCostWarmup, body, asynq.Queue(QueueDefault)), nil
}
