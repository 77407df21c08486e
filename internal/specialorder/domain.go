// Package specialorder tracks custom casket orders placed for a specific
// family and service date. A special order never touches stock item
// quantities; the unit is bought for one service and leaves with it.
package specialorder

import (
	"errors"
	"time"

	"github.com/caskwell/caskwell/internal/triage"
)

// Status enumerates the special order lifecycle.
type Status string

const (
	StatusOrdered Status = "ORDERED"
	StatusShipped Status = "SHIPPED"
	StatusArrived Status = "ARRIVED"
	StatusDelayed Status = "DELAYED"
)

// SpecialOrder is a one-off order tied to a funeral service date. The
// service date is the hard deadline the triage classifies against.
type SpecialOrder struct {
	ID                  int64      `json:"id"`
	CasketName          string     `json:"casket_name"`
	Model               string     `json:"model,omitempty"`
	Supplier            string     `json:"supplier,omitempty"`
	FamilyName          string     `json:"family_name"`
	ServiceDate         time.Time  `json:"service_date"`
	ExpectedDelivery    *time.Time `json:"expected_delivery,omitempty"`
	Notes               string     `json:"notes,omitempty"`
	SupplierOrderNumber string     `json:"supplier_order_number,omitempty"`
	Status              Status     `json:"status"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Active reports whether the order still has an open obligation.
func (o SpecialOrder) Active() bool {
	return o.Status != StatusArrived
}

// Assess classifies the order against its service date.
func (o SpecialOrder) Assess(now time.Time) triage.Assessment {
	deadline := o.ServiceDate
	return triage.Assess(&deadline, now, triage.SpecialOrderRule)
}

// CreateInput describes a new special order.
type CreateInput struct {
	CasketName          string
	Model               string
	Supplier            string
	FamilyName          string
	ServiceDate         time.Time
	ExpectedDelivery    *time.Time
	Notes               string
	SupplierOrderNumber string
	Actor               string
}

// ListFilter narrows special order listings.
type ListFilter struct {
	ActiveOnly bool
	Page       int
	PerPage    int
}

var (
	// ErrValidation indicates missing or malformed input.
	ErrValidation = errors.New("specialorder: invalid input")
	// ErrInvalidState occurs when a transition violates the lifecycle.
	ErrInvalidState = errors.New("specialorder: invalid order state")
	// ErrNotFound indicates a missing special order.
	ErrNotFound = errors.New("specialorder: not found")
)
