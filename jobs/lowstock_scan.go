package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/caskwell/caskwell/internal/inventory"
	jobmetrics "github.com/caskwell/caskwell/internal/jobs"
	"github.com/caskwell/caskwell/internal/shared"
)

// ItemSource lists stock items for the scan jobs.
type ItemSource interface {
	ListItems(ctx context.Context, filter inventory.ListFilter) ([]inventory.StockItem, int, error)
}

// EmailEnqueuer submits notification mail to the queue.
type EmailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// LowStockScanJob sweeps the catalog for items whose coverage fell below
// target. A redis key with TTL dedupes the alert so a standing shortage
// does not re-notify on every run.
type LowStockScanJob struct {
	Items    ItemSource
	Redis    *redis.Client
	Mail     EmailEnqueuer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	AlertTTL time.Duration
}

// NewLowStockScanJob initialises the low-stock scan handler.
func NewLowStockScanJob(items ItemSource, rdb *redis.Client, mail EmailEnqueuer, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{
		Items:    items,
		Redis:    rdb,
		Mail:     mail,
		Logger:   logger,
		Metrics:  metrics,
		AlertTTL: 24 * time.Hour,
	}
}

// Handle executes the low-stock sweep.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskStockLowScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting low stock scan")

	items, _, err := j.Items.ListItems(ctx, inventory.ListFilter{PerPage: 10000})
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	alerted := 0
	for _, item := range items {
		if item.Shortage() == 0 {
			continue
		}
		fresh, err := j.Redis.SetNX(ctx, shared.LowStockAlertKey(item.ID), "1", j.AlertTTL).Result()
		if err != nil {
			resultErr = err
			logger.Error("alert dedupe failed", slog.Any("error", err))
			return resultErr
		}
		if !fresh {
			continue
		}
		alerted++
		logger.Warn("item below target",
			slog.Int64("item_id", item.ID),
			slog.String("name", item.Name),
			slog.String("status", string(item.Status())),
			slog.Int("shortage", item.Shortage()),
		)
		if j.Mail != nil && payload.NotifyEmail != "" {
			_, err := j.Mail.EnqueueSendEmail(ctx, SendEmailPayload{
				To:      payload.NotifyEmail,
				Subject: fmt.Sprintf("Low stock: %s", item.Name),
				Body:    fmt.Sprintf("%s is %d unit(s) below target (on hand %d, on order %d, target %d).", item.Name, item.Shortage(), item.OnHand, item.OnOrder, item.TargetQuantity),
			})
			if err != nil {
				resultErr = err
				return resultErr
			}
		}
	}

	j.Metrics.AddAlerts("low_stock", alerted)
	logger.Info("low stock scan finished", slog.Int("alerts", alerted), slog.Int("items", len(items)))
	return nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
