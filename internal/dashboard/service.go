// Package dashboard assembles the operator overview. Everything here is
// computed on demand from current rows; nothing is cached or persisted,
// so the numbers can never drift from the ledger.
package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/caskwell/caskwell/internal/inventory"
	"github.com/caskwell/caskwell/internal/specialorder"
	"github.com/caskwell/caskwell/internal/suppliers"
	"github.com/caskwell/caskwell/internal/triage"
)

// ItemSource lists stock items.
type ItemSource interface {
	ListItems(ctx context.Context, filter inventory.ListFilter) ([]inventory.StockItem, int, error)
	ListOrders(ctx context.Context, filter inventory.OrderFilter) ([]inventory.Order, int, error)
}

// SpecialOrderSource lists special orders with their triage.
type SpecialOrderSource interface {
	List(ctx context.Context, filter specialorder.ListFilter) ([]specialorder.Listed, int, error)
}

// SupplierSource lists the supplier directory.
type SupplierSource interface {
	List(ctx context.Context) ([]suppliers.Supplier, error)
}

// KindStats summarizes one product family.
type KindStats struct {
	Items        int `json:"items"`
	UnitsOnHand  int `json:"units_on_hand"`
	UnitsOnOrder int `json:"units_on_order"`
	LowStock     int `json:"low_stock"`
	OutOfStock   int `json:"out_of_stock"`
	Backordered  int `json:"backordered"`
}

// ShortageRow is one item short of its target level.
type ShortageRow struct {
	ItemID   int64                 `json:"item_id"`
	Name     string                `json:"name"`
	Kind     inventory.ItemKind    `json:"kind"`
	Status   inventory.StockStatus `json:"status"`
	Shortage int                   `json:"shortage"`
}

// AttentionEntry is one obligation in the combined urgency list. Kind is
// "order" for stock-replacement orders and "special_order" for specials.
type AttentionEntry struct {
	Kind     string            `json:"kind"`
	ID       int64             `json:"id"`
	Label    string            `json:"label"`
	Deadline *time.Time        `json:"deadline,omitempty"`
	Triage   triage.Assessment `json:"triage"`
}

// Stats is the full dashboard payload.
type Stats struct {
	Caskets        KindStats        `json:"caskets"`
	Urns           KindStats        `json:"urns"`
	PendingOrders  int              `json:"pending_orders"`
	ActiveOrders   int              `json:"active_orders"`
	ActiveSpecials int              `json:"active_special_orders"`
	Suppliers      int              `json:"suppliers"`
	Shortages      []ShortageRow    `json:"shortages"`
	Attention      []AttentionEntry `json:"attention"`
}

// Service builds dashboard projections.
type Service struct {
	items    ItemSource
	specials SpecialOrderSource
	supplier SupplierSource
	clock    func() time.Time
}

// NewService builds Service instance.
func NewService(items ItemSource, specials SpecialOrderSource, supplier SupplierSource) *Service {
	return &Service{
		items:    items,
		specials: specials,
		supplier: supplier,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Stats computes the dashboard from live rows.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	items, _, err := s.items.ListItems(ctx, inventory.ListFilter{PerPage: 10000})
	if err != nil {
		return Stats{}, err
	}
	for _, item := range items {
		bucket := &stats.Caskets
		if item.Kind == inventory.KindUrn {
			bucket = &stats.Urns
		}
		bucket.Items++
		bucket.UnitsOnHand += item.OnHand
		bucket.UnitsOnOrder += item.OnOrder
		switch item.Status() {
		case inventory.StatusOutOfStock:
			bucket.OutOfStock++
		case inventory.StatusBackordered:
			bucket.Backordered++
		case inventory.StatusLowStock:
			bucket.LowStock++
		}
		if short := item.Shortage(); short > 0 {
			stats.Shortages = append(stats.Shortages, ShortageRow{
				ItemID:   item.ID,
				Name:     item.Name,
				Kind:     item.Kind,
				Status:   item.Status(),
				Shortage: short,
			})
		}
	}
	sort.Slice(stats.Shortages, func(i, j int) bool {
		return stats.Shortages[i].Shortage > stats.Shortages[j].Shortage
	})

	now := s.clock()

	orders, _, err := s.items.ListOrders(ctx, inventory.OrderFilter{ActiveOnly: true, PerPage: 10000})
	if err != nil {
		return Stats{}, err
	}
	stats.ActiveOrders = len(orders)
	for _, order := range orders {
		if order.Status == inventory.OrderStatusPending {
			stats.PendingOrders++
		}
		stats.Attention = append(stats.Attention, AttentionEntry{
			Kind:     "order",
			ID:       order.ID,
			Label:    order.DeceasedName,
			Deadline: order.ExpectedDate,
			Triage:   triage.Assess(order.ExpectedDate, now, triage.StockOrderRule),
		})
	}

	specials, _, err := s.specials.List(ctx, specialorder.ListFilter{ActiveOnly: true, PerPage: 10000})
	if err != nil {
		return Stats{}, err
	}
	stats.ActiveSpecials = len(specials)
	for _, special := range specials {
		deadline := special.ServiceDate
		stats.Attention = append(stats.Attention, AttentionEntry{
			Kind:     "special_order",
			ID:       special.ID,
			Label:    special.FamilyName,
			Deadline: &deadline,
			Triage:   special.Triage,
		})
	}

	sort.SliceStable(stats.Attention, func(i, j int) bool {
		return triage.Compare(stats.Attention[i].Triage, stats.Attention[j].Triage) < 0
	})

	directory, err := s.supplier.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.Suppliers = len(directory)

	return stats, nil
}
