package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/brigade-erp/brigade-erp/internal/analytics"
	jobmetrics "github.com/brigade-erp/brigade-erp/internal/jobs"
	"github.com/brigade-erp/brigade-erp/internal/shared"
)

// CostWarmupJob pre-populates cost-percentage figures for every revenue group
// so the first dashboard hit of the day is served from cache.
type CostWarmupJob struct {
	Analytics *analytics.Service
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewCostWarmupJob wires dependencies for the warmup handler.
func NewCostWarmupJob(analyticsSvc *analytics.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *CostWarmupJob {
	return &CostWarmupJob{
		Analytics: analyticsSvc,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes cost warmup tasks.
func (j *CostWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Analytics == nil {
		return errors.New("cost warmup: handler not configured")
	}
	var payload CostWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Months <= 0 {
		payload.Months = 2
	}

	tracker := j.metrics().Track(TaskAnalyticsCostWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := j.now()
	logger := j.logger().With(slog.Int("months", payload.Months))
	logger.Info("starting cost warmup")

	groups, err := j.Analytics.ListGroups(ctx)
	if err != nil {
		resultErr = err
		logger.Error("load revenue groups", slog.Any("error", err))
		return resultErr
	}
	if len(groups) == 0 {
		logger.Info("no revenue groups to warm")
		return resultErr
	}

	warmed := 0
	for _, group := range groups {
		if err := j.warmGroup(ctx, group.ID, payload.Months, start); err != nil {
			resultErr = err
			logger.Error("warm group", slog.Int64("group_id", group.ID), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}

	logger.Info("completed cost warmup", slog.Int("groups", warmed), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *CostWarmupJob) warmGroup(ctx context.Context, groupID int64, months int, now time.Time) error {
	// Bound each group so one slow aggregate cannot stall the whole run.
	groupCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	for back := 0; back < months; back++ {
		month := shared.MonthOf(now.AddDate(0, -back, 0))
		if _, err := j.Analytics.CostPercentageForGroup(groupCtx, groupID, month); err != nil {
			return err
		}
	}
	return nil
}

func (j *CostWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAnalyticsCostWarmup))
	}
	return slog.Default().With(slog.String("job", TaskAnalyticsCostWarmup))
}

func (j *CostWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CostWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
