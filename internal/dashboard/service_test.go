package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caskwell/caskwell/internal/inventory"
	"github.com/caskwell/caskwell/internal/specialorder"
	"github.com/caskwell/caskwell/internal/suppliers"
	"github.com/caskwell/caskwell/internal/triage"
)

type fakeItems struct {
	items  []inventory.StockItem
	orders []inventory.Order
}

func (f *fakeItems) ListItems(_ context.Context, _ inventory.ListFilter) ([]inventory.StockItem, int, error) {
	return f.items, len(f.items), nil
}

func (f *fakeItems) ListOrders(_ context.Context, filter inventory.OrderFilter) ([]inventory.Order, int, error) {
	var out []inventory.Order
	for _, o := range f.orders {
		if filter.ActiveOnly && !o.Active() {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

type fakeSpecials struct{ listed []specialorder.Listed }

func (f *fakeSpecials) List(_ context.Context, _ specialorder.ListFilter) ([]specialorder.Listed, int, error) {
	return f.listed, len(f.listed), nil
}

type fakeSuppliers struct{ suppliers []suppliers.Supplier }

func (f *fakeSuppliers) List(_ context.Context) ([]suppliers.Supplier, error) {
	return f.suppliers, nil
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestStats(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	items := &fakeItems{
		items: []inventory.StockItem{
			{ID: 1, Kind: inventory.KindCasket, Name: "Oak Standard", OnHand: 5, TargetQuantity: 5},
			{ID: 2, Kind: inventory.KindCasket, Name: "Mahogany Classic", OnHand: 1, TargetQuantity: 4},
			{ID: 3, Kind: inventory.KindUrn, Name: "Brass Urn", OnHand: 0, TargetQuantity: 2},
		},
		orders: []inventory.Order{
			{ID: 10, ItemID: 2, Quantity: 1, DeceasedName: "Eleanor Whitfield", Status: inventory.OrderStatusPending, ExpectedDate: datePtr(2024, 1, 8)},
			{ID: 11, ItemID: 3, Quantity: 1, DeceasedName: "Harold Finch", Status: inventory.OrderStatusShipped},
			{ID: 12, ItemID: 1, Quantity: 1, DeceasedName: "Done", Status: inventory.OrderStatusArrived},
		},
	}
	special := specialorder.SpecialOrder{
		ID: 20, FamilyName: "Ashford", CasketName: "Cherry Deluxe",
		ServiceDate: time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC),
		Status:      specialorder.StatusOrdered,
	}
	specials := &fakeSpecials{listed: []specialorder.Listed{
		{SpecialOrder: special, Triage: special.Assess(now)},
	}}
	directory := &fakeSuppliers{suppliers: []suppliers.Supplier{{ID: 1, Name: "Batesville"}}}

	svc := NewService(items, specials, directory)
	svc.clock = func() time.Time { return now }

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, stats.Caskets.Items)
	require.Equal(t, 6, stats.Caskets.UnitsOnHand)
	require.Equal(t, 1, stats.Caskets.LowStock)
	require.Equal(t, 1, stats.Urns.Items)
	require.Equal(t, 1, stats.Urns.OutOfStock)

	require.Equal(t, 1, stats.PendingOrders)
	require.Equal(t, 2, stats.ActiveOrders)
	require.Equal(t, 1, stats.ActiveSpecials)
	require.Equal(t, 1, stats.Suppliers)

	// shortages sorted largest gap first
	require.Len(t, stats.Shortages, 2)
	require.Equal(t, int64(2), stats.Shortages[0].ItemID)
	require.Equal(t, 3, stats.Shortages[0].Shortage)

	// attention list: LATE order, URGENT special, UNSCHEDULED order last
	require.Len(t, stats.Attention, 3)
	require.Equal(t, triage.TierLate, stats.Attention[0].Triage.Tier)
	require.Equal(t, "order", stats.Attention[0].Kind)
	require.Equal(t, triage.TierUrgent, stats.Attention[1].Triage.Tier)
	require.Equal(t, "special_order", stats.Attention[1].Kind)
	require.Equal(t, triage.TierUnscheduled, stats.Attention[2].Triage.Tier)
}
