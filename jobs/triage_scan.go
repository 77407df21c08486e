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
	"github.com/caskwell/caskwell/internal/specialorder"
	"github.com/caskwell/caskwell/internal/triage"
)

// OrderSource lists open stock-replacement orders.
type OrderSource interface {
	ListOrders(ctx context.Context, filter inventory.OrderFilter) ([]inventory.Order, int, error)
}

// SpecialOrderSource lists special orders with their triage.
type SpecialOrderSource interface {
	List(ctx context.Context, filter specialorder.ListFilter) ([]specialorder.Listed, int, error)
}

// OrdersTriageScanJob classifies every open obligation and raises an
// alert for the late ones. The same redis dedupe scheme as the low-stock
// scan keeps a late order from re-alerting every run.
type OrdersTriageScanJob struct {
	Orders   OrderSource
	Specials SpecialOrderSource
	Redis    *redis.Client
	Mail     EmailEnqueuer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	AlertTTL time.Duration
	clock    func() time.Time
}

// NewOrdersTriageScanJob initialises the triage scan handler.
func NewOrdersTriageScanJob(orders OrderSource, specials SpecialOrderSource, rdb *redis.Client, mail EmailEnqueuer, logger *slog.Logger, metrics *jobmetrics.Metrics) *OrdersTriageScanJob {
	return &OrdersTriageScanJob{
		Orders:   orders,
		Specials: specials,
		Redis:    rdb,
		Mail:     mail,
		Logger:   logger,
		Metrics:  metrics,
		AlertTTL: 24 * time.Hour,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the triage sweep.
func (j *OrdersTriageScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("triage scan: handler not configured")
	}
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskOrdersTriageScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting order triage scan")
	now := j.clock()

	late := 0

	orders, _, err := j.Orders.ListOrders(ctx, inventory.OrderFilter{ActiveOnly: true, PerPage: 10000})
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}
	for _, order := range orders {
		assessment := triage.Assess(order.ExpectedDate, now, triage.StockOrderRule)
		if assessment.Tier != triage.TierLate {
			continue
		}
		raised, err := j.alertLate(ctx, payload, "order", order.ID, order.DeceasedName, assessment)
		if err != nil {
			resultErr = err
			return resultErr
		}
		if raised {
			late++
		}
	}

	specials, _, err := j.Specials.List(ctx, specialorder.ListFilter{ActiveOnly: true, PerPage: 10000})
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}
	for _, special := range specials {
		if special.Triage.Tier != triage.TierLate {
			continue
		}
		raised, err := j.alertLate(ctx, payload, "special_order", special.ID, special.FamilyName, special.Triage)
		if err != nil {
			resultErr = err
			return resultErr
		}
		if raised {
			late++
		}
	}

	j.Metrics.AddAlerts("late_order", late)
	logger.Info("order triage scan finished", slog.Int("late_alerts", late))
	return nil
}

func (j *OrdersTriageScanJob) alertLate(ctx context.Context, payload ScanPayload, kind string, id int64, label string, assessment triage.Assessment) (bool, error) {
	fresh, err := j.Redis.SetNX(ctx, shared.LateOrderAlertKey(kind, id), "1", j.AlertTTL).Result()
	if err != nil {
		return false, err
	}
	if !fresh {
		return false, nil
	}
	j.logger().Warn("order past its deadline",
		slog.String("kind", kind),
		slog.Int64("id", id),
		slog.String("label", label),
		slog.Int("days_overdue", -assessment.DaysRemaining),
	)
	if j.Mail != nil && payload.NotifyEmail != "" {
		_, err := j.Mail.EnqueueSendEmail(ctx, SendEmailPayload{
			To:      payload.NotifyEmail,
			Subject: fmt.Sprintf("Late %s for %s", kind, label),
			Body:    fmt.Sprintf("The %s for %s is %d day(s) past its deadline.", kind, label, -assessment.DaysRemaining),
		})
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

func (j *OrdersTriageScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
