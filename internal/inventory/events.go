package inventory

import (
	"context"
	"time"
)

// BackorderRecordedEvent is raised when units enter the backorder bucket.
type BackorderRecordedEvent struct {
	ItemID   int64
	ItemName string
	Quantity int
	Reason   string
	At       time.Time
}

// OrderArrivedEvent is raised when an open order is marked delivered.
type OrderArrivedEvent struct {
	OrderID  int64
	ItemID   int64
	ItemName string
	Quantity int
	At       time.Time
}

// IntegrationHandler receives ledger events for downstream notification.
type IntegrationHandler interface {
	HandleBackorderRecorded(ctx context.Context, evt BackorderRecordedEvent) error
	HandleOrderArrived(ctx context.Context, evt OrderArrivedEvent) error
}
