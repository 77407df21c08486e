// Package integration wires domain events from the inventory ledger into
// the notification queue. The ledger stays unaware of mail; the hooks
// translate its events into queued work.
package integration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/caskwell/caskwell/internal/inventory"
	"github.com/caskwell/caskwell/jobs"
)

// Mailer submits notification mail to the queue.
type Mailer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// Hooks fans inventory events out to notifications.
type Hooks struct {
	mail        Mailer
	notifyEmail string
	logger      *slog.Logger
}

// NewHooks constructs integration hooks. A nil mailer or empty notify
// address turns the hooks into log-only.
func NewHooks(mail Mailer, notifyEmail string, logger *slog.Logger) *Hooks {
	return &Hooks{mail: mail, notifyEmail: notifyEmail, logger: logger}
}

// HandleBackorderRecorded notifies the director that a supplier cannot
// currently deliver.
func (h *Hooks) HandleBackorderRecorded(ctx context.Context, evt inventory.BackorderRecordedEvent) error {
	if h == nil {
		return nil
	}
	h.log().Warn("backorder recorded",
		slog.Int64("item_id", evt.ItemID),
		slog.String("item", evt.ItemName),
		slog.Int("quantity", evt.Quantity),
		slog.String("reason", evt.Reason),
	)
	if h.mail == nil || h.notifyEmail == "" {
		return nil
	}
	_, err := h.mail.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
		To:      h.notifyEmail,
		Subject: fmt.Sprintf("Backorder: %s", evt.ItemName),
		Body:    fmt.Sprintf("%d unit(s) of %s are backordered: %s.", evt.Quantity, evt.ItemName, evt.Reason),
	})
	return err
}

// HandleOrderArrived records the arrival; no mail, arrivals are routine.
func (h *Hooks) HandleOrderArrived(ctx context.Context, evt inventory.OrderArrivedEvent) error {
	if h == nil {
		return nil
	}
	h.log().Info("order arrived",
		slog.Int64("order_id", evt.OrderID),
		slog.Int64("item_id", evt.ItemID),
		slog.String("item", evt.ItemName),
		slog.Int("quantity", evt.Quantity),
	)
	return nil
}

func (h *Hooks) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
