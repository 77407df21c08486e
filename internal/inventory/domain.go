package inventory

import (
	"errors"
	"time"
)

// ItemKind distinguishes the two stocked product families.
type ItemKind string

const (
	KindCasket ItemKind = "CASKET"
	KindUrn    ItemKind = "URN"
)

// StockStatus is the derived stocking tier of an item.
type StockStatus string

const (
	StatusOutOfStock  StockStatus = "OUT_OF_STOCK"
	StatusBackordered StockStatus = "BACKORDERED"
	StatusLowStock    StockStatus = "LOW_STOCK"
	StatusWellStocked StockStatus = "WELL_STOCKED"
)

// OrderStatus enumerates the supplier order lifecycle.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusShipped OrderStatus = "SHIPPED"
	OrderStatusArrived OrderStatus = "ARRIVED"
	OrderStatusDelayed OrderStatus = "DELAYED"
)

// StockItem is the single owner of the quantity fields for one casket or
// urn type. All quantity mutations go through the ledger service.
type StockItem struct {
	ID                   int64      `json:"id"`
	Kind                 ItemKind   `json:"kind"`
	Name                 string     `json:"name"`
	Model                string     `json:"model,omitempty"`
	Supplier             string     `json:"supplier,omitempty"`
	Location             string     `json:"location,omitempty"`
	Cost                 float64    `json:"cost"`
	Price                float64    `json:"price"`
	OnHand               int        `json:"on_hand"`
	OnOrder              int        `json:"on_order"`
	TargetQuantity       int        `json:"target_quantity"`
	BackorderedQuantity  int        `json:"backordered_quantity"`
	BackorderReason      string     `json:"backorder_reason,omitempty"`
	BackorderDate        *time.Time `json:"backorder_date,omitempty"`
	OrderingInstructions string     `json:"ordering_instructions,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Coverage counts units toward the target. Backordered units are excluded
// because the supplier cannot currently deliver them.
func (s StockItem) Coverage() int {
	return s.OnHand + s.OnOrder
}

// Shortage returns how many units short of target the item is, zero when
// coverage meets or exceeds it.
func (s StockItem) Shortage() int {
	if short := s.TargetQuantity - s.Coverage(); short > 0 {
		return short
	}
	return 0
}

// Status derives the stocking tier. Priority order matters: an empty shelf
// beats a backorder flag, a backorder beats a plain shortage.
func (s StockItem) Status() StockStatus {
	switch {
	case s.OnHand == 0:
		return StatusOutOfStock
	case s.BackorderedQuantity > 0:
		return StatusBackordered
	case s.Coverage() < s.TargetQuantity:
		return StatusLowStock
	default:
		return StatusWellStocked
	}
}

// Order is a stock-replacement order against one StockItem. It references
// the item by id but never owns its quantities.
type Order struct {
	ID                  int64       `json:"id"`
	ItemID              int64       `json:"item_id"`
	Quantity            int         `json:"quantity"`
	PONumber            string      `json:"po_number,omitempty"`
	DeceasedName        string      `json:"deceased_name"`
	OrderDate           time.Time   `json:"order_date"`
	ExpectedDate        *time.Time  `json:"expected_date,omitempty"`
	Status              OrderStatus `json:"status"`
	IsBackordered       bool        `json:"is_backordered"`
	IsReturnReplacement bool        `json:"is_return_replacement"`
	ActualArrivalDate   *time.Time  `json:"actual_arrival_date,omitempty"`
	ArrivedMarkedBy     string      `json:"arrived_marked_by,omitempty"`
}

// Active reports whether the order still has an open obligation.
func (o Order) Active() bool {
	return o.Status != OrderStatusArrived
}

// HistoryAction labels append-only stock history entries.
type HistoryAction string

const (
	ActionOrderPlaced        HistoryAction = "ORDER_PLACED"
	ActionReplacementOrdered HistoryAction = "REPLACEMENT_ORDERED"
	ActionOrderArrived       HistoryAction = "ORDER_ARRIVED"
	ActionReturnRecorded     HistoryAction = "RETURN_RECORDED"
	ActionAdjustment         HistoryAction = "ADJUSTMENT"
	ActionBackorderRecorded  HistoryAction = "BACKORDER_RECORDED"
)

// HistoryRecord is an append-only audit entry for one mutation of an
// item's quantities. Never updated once written.
type HistoryRecord struct {
	ID             int64         `json:"id"`
	ItemID         int64         `json:"item_id"`
	Action         HistoryAction `json:"action"`
	QuantityChange int           `json:"quantity_change"`
	Reason         string        `json:"reason,omitempty"`
	PerformedBy    string        `json:"performed_by,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	RefID          string        `json:"ref_id,omitempty"`
	RecordedAt     time.Time     `json:"recorded_at"`
}

// Disposition says what physically happens to a returned unit.
type Disposition string

const (
	DispositionNone    Disposition = "NONE"
	DispositionRestock Disposition = "RESTOCK"
	DispositionDispose Disposition = "DISPOSE"
)

// ReturnRecord captures a customer return against an item.
type ReturnRecord struct {
	ID                 int64       `json:"id"`
	ItemID             int64       `json:"item_id"`
	Reason             string      `json:"reason"`
	Notes              string      `json:"notes,omitempty"`
	RecordedBy         string      `json:"recorded_by"`
	Disposition        Disposition `json:"disposition"`
	ExpectsReplacement bool        `json:"expects_replacement"`
	ReplacementOrderID int64       `json:"replacement_order_id,omitempty"`
	RecordedAt         time.Time   `json:"recorded_at"`
}

// AdjustmentType selects how a manual adjustment computes its delta.
type AdjustmentType string

const (
	AdjustmentAdd        AdjustmentType = "add"
	AdjustmentRemove     AdjustmentType = "remove"
	AdjustmentCorrection AdjustmentType = "correction"
)

// CreateItemInput describes a new catalog entry.
type CreateItemInput struct {
	Kind                 ItemKind
	Name                 string
	Model                string
	Supplier             string
	Location             string
	Cost                 float64
	Price                float64
	OnHand               int
	TargetQuantity       int
	OrderingInstructions string
}

// PlaceOrderInput describes a supplier order request.
type PlaceOrderInput struct {
	Quantity            int
	DeceasedName        string
	PONumber            string
	ExpectedDate        *time.Time
	IsBackordered       bool
	BackorderReason     string
	IsReturnReplacement bool
	Actor               string
}

// ArrivalInput marks an open order as delivered.
type ArrivalInput struct {
	Actor       string
	ArrivalDate time.Time
}

// ReturnInput records a return, optionally chaining a replacement order.
type ReturnInput struct {
	Reason             string
	Notes              string
	Actor              string
	FamilyName         string
	Disposition        Disposition
	ExpectsReplacement bool
	PONumber           string
	ExpectedDate       *time.Time
}

// AdjustmentInput describes a manual stock correction. For the correction
// type Quantity is taken as a signed delta.
type AdjustmentInput struct {
	Type     AdjustmentType
	Quantity int
	Reason   string
	Actor    string
	Notes    string
}

// BackorderInput flags units the supplier accepted but cannot deliver.
type BackorderInput struct {
	Quantity int
	Reason   string
	Actor    string
}

// ListFilter narrows item listings.
type ListFilter struct {
	Kind    ItemKind
	Search  string
	Page    int
	PerPage int
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	ItemID     int64
	ActiveOnly bool
	Page       int
	PerPage    int
}

var (
	// ErrInsufficientStock triggered when a sale would draw from an empty shelf.
	ErrInsufficientStock = errors.New("inventory: insufficient stock on hand")
	// ErrValidation indicates missing or malformed input.
	ErrValidation = errors.New("inventory: invalid input")
	// ErrInvalidState occurs when an order transition violates the lifecycle.
	ErrInvalidState = errors.New("inventory: invalid order state")
	// ErrNotFound indicates a missing item or order.
	ErrNotFound = errors.New("inventory: not found")
)
