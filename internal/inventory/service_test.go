package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caskwell/caskwell/internal/shared"
	"github.com/caskwell/caskwell/internal/triage"
)

type memRepo struct {
	items   map[int64]StockItem
	orders  map[int64]Order
	history []HistoryRecord
	returns []ReturnRecord
	nextID  int64
}

func newMemRepo() *memRepo {
	return &memRepo{items: map[int64]StockItem{}, orders: map[int64]Order{}, nextID: 1}
}

func (m *memRepo) id() int64 {
	v := m.nextID
	m.nextID++
	return v
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memRepo) CreateItem(_ context.Context, item StockItem) (StockItem, error) {
	item.ID = m.id()
	m.items[item.ID] = item
	return item, nil
}

func (m *memRepo) GetItem(_ context.Context, id int64) (StockItem, error) {
	item, ok := m.items[id]
	if !ok {
		return StockItem{}, ErrNotFound
	}
	return item, nil
}

func (m *memRepo) ListItems(_ context.Context, _ ListFilter) ([]StockItem, int, error) {
	var out []StockItem
	for _, it := range m.items {
		out = append(out, it)
	}
	return out, len(out), nil
}

func (m *memRepo) GetOrder(_ context.Context, id int64) (Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return order, nil
}

func (m *memRepo) ListOrders(_ context.Context, filter OrderFilter) ([]Order, int, error) {
	var out []Order
	for _, o := range m.orders {
		if filter.ItemID != 0 && o.ItemID != filter.ItemID {
			continue
		}
		if filter.ActiveOnly && !o.Active() {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (m *memRepo) ListHistory(_ context.Context, itemID int64, _ int) ([]HistoryRecord, error) {
	var out []HistoryRecord
	for _, rec := range m.history {
		if rec.ItemID == itemID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memRepo) GetItemForUpdate(ctx context.Context, id int64) (StockItem, error) {
	return m.GetItem(ctx, id)
}

func (m *memRepo) UpdateItemQuantities(_ context.Context, item StockItem) error {
	if _, ok := m.items[item.ID]; !ok {
		return ErrNotFound
	}
	m.items[item.ID] = item
	return nil
}

func (m *memRepo) InsertOrder(_ context.Context, order Order) (int64, error) {
	order.ID = m.id()
	m.orders[order.ID] = order
	return order.ID, nil
}

func (m *memRepo) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	return m.GetOrder(ctx, id)
}

func (m *memRepo) UpdateOrder(_ context.Context, order Order) error {
	if _, ok := m.orders[order.ID]; !ok {
		return ErrNotFound
	}
	m.orders[order.ID] = order
	return nil
}

func (m *memRepo) InsertHistory(_ context.Context, rec HistoryRecord) (int64, error) {
	rec.ID = m.id()
	m.history = append(m.history, rec)
	return rec.ID, nil
}

func (m *memRepo) InsertReturn(_ context.Context, ret ReturnRecord) (int64, error) {
	ret.ID = m.id()
	m.returns = append(m.returns, ret)
	return ret.ID, nil
}

type memAudit struct{ logs []shared.AuditLog }

func (m *memAudit) Record(_ context.Context, log shared.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

type memIntegration struct {
	backorders []BackorderRecordedEvent
	arrivals   []OrderArrivedEvent
}

func (m *memIntegration) HandleBackorderRecorded(_ context.Context, evt BackorderRecordedEvent) error {
	m.backorders = append(m.backorders, evt)
	return nil
}

func (m *memIntegration) HandleOrderArrived(_ context.Context, evt OrderArrivedEvent) error {
	m.arrivals = append(m.arrivals, evt)
	return nil
}

type memSuppliers struct{ instructions map[string]string }

func (m *memSuppliers) InstructionsByName(_ context.Context, name string) (string, error) {
	return m.instructions[name], nil
}

func newTestService(repo *memRepo) (*Service, *memAudit, *memIntegration) {
	audit := &memAudit{}
	integration := &memIntegration{}
	svc := NewService(repo, audit, nil, nil, integration)
	svc.clock = func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) }
	return svc, audit, integration
}

func seedItem(t *testing.T, repo *memRepo, onHand, target int) StockItem {
	t.Helper()
	item, err := repo.CreateItem(context.Background(), StockItem{
		Kind: KindCasket, Name: "Mahogany Classic", Supplier: "Batesville",
		OnHand: onHand, TargetQuantity: target,
	})
	require.NoError(t, err)
	return item
}

func TestCreateItemValidation(t *testing.T) {
	svc, _, _ := newTestService(newMemRepo())
	ctx := context.Background()

	_, err := svc.CreateItem(ctx, CreateItemInput{Kind: "COFFIN", Name: "x"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateItem(ctx, CreateItemInput{Kind: KindUrn, Name: "   "})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateItem(ctx, CreateItemInput{Kind: KindUrn, Name: "Brass Urn", OnHand: -1})
	require.ErrorIs(t, err, ErrValidation)

	item, err := svc.CreateItem(ctx, CreateItemInput{Kind: KindUrn, Name: "Brass Urn", OnHand: 3, TargetQuantity: 2})
	require.NoError(t, err)
	require.Equal(t, 3, item.OnHand)
	require.Equal(t, 0, item.OnOrder)
}

func TestPlaceOrderMovesUnitToOnOrder(t *testing.T) {
	repo := newMemRepo()
	svc, audit, _ := newTestService(repo)
	item := seedItem(t, repo, 5, 5)

	order, updated, err := svc.PlaceOrder(context.Background(), item.ID, PlaceOrderInput{
		DeceasedName: "Eleanor Whitfield", PONumber: "PO-1001", Actor: "marge",
	})
	require.NoError(t, err)
	require.Equal(t, 4, updated.OnHand)
	require.Equal(t, 1, updated.OnOrder)
	require.Equal(t, OrderStatusPending, order.Status)
	require.Equal(t, 1, order.Quantity)

	history, err := svc.ListHistory(context.Background(), item.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, ActionOrderPlaced, history[0].Action)
	require.Equal(t, -1, history[0].QuantityChange)
	require.NotEmpty(t, history[0].RefID)

	require.Len(t, audit.logs, 1)
	require.Equal(t, "ORDER_PLACE", audit.logs[0].Action)
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	repo := newMemRepo()
	svc, _, _ := newTestService(repo)
	item := seedItem(t, repo, 0, 3)

	_, _, err := svc.PlaceOrder(context.Background(), item.ID, PlaceOrderInput{
		DeceasedName: "Harold Finch", Actor: "marge",
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	// the failed order must leave the item untouched
	got, err := svc.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.OnHand)
	require.Equal(t, 0, got.OnOrder)
	require.Empty(t, repo.orders)
	require.Empty(t, repo.history)
}

func TestPlaceOrderValidation(t *testing.T) {
	repo := newMemRepo()
	svc, _, _ := newTestService(repo)
	item := seedItem(t, repo, 2, 2)

	_, _, err := svc.PlaceOrder(context.Background(), item.ID, PlaceOrderInput{DeceasedName: "  "})
	require.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.PlaceOrder(context.Background(), item.ID, PlaceOrderInput{DeceasedName: "A", Quantity: -2})
	require.ErrorIs(t, err, ErrValidation)
}

func TestPlaceOrderBackordered(t *testing.T) {
	repo := newMemRepo()
	svc, _, integration := newTestService(repo)
	item := seedItem(t, repo, 1, 3)

	order, updated, err := svc.PlaceOrder(context.Background(), item.ID, PlaceOrderInput{
		DeceasedName: "Ruth Calloway", IsBackordered: true,
		BackorderReason: "Supplier out of stock", Actor: "marge",
	})
	require.NoError(t, err)
	require.True(t, order.IsBackordered)
	require.Equal(t, 0, updated.OnHand)
	require.Equal(t, 0, updated.OnOrder)
	require.Equal(t, 1, updated.BackorderedQuantity)
	require.Equal(t, "Supplier out of stock", updated.BackorderReason)
	require.NotNil(t, updated.BackorderDate)

	// empty shelf outranks the backorder flag
	require.Equal(t, StatusOutOfStock, updated.Status())

	require.Len(t, integration.backorders, 1)
	require.Equal(t, updated.ID, integration.backorders[0].ItemID)
}

func TestMarkArrivedRoundTrip(t *testing.T) {
	repo := newMemRepo()
	svc, _, integration := newTestService(repo)
	item := seedItem(t, repo, 5, 5)

	order, _, err := svc.PlaceOrder(context.Background(), item.ID, PlaceOrderInput{
		DeceasedName: "Eleanor Whitfield", PONumber: "PO-1001", Actor: "marge",
	})
	require.NoError(t, err)

	arrived, updated, err := svc.MarkArrived(context.Background(), order.ID, ArrivalInput{Actor: "ben"})
	require.NoError(t, err)
	require.Equal(t, OrderStatusArrived, arrived.Status)
	require.Equal(t, "ben", arrived.ArrivedMarkedBy)
	require.NotNil(t, arrived.ActualArrivalDate)
	require.Equal(t, 5, updated.OnHand)
	require.Equal(t, 0, updated.OnOrder)

	require.Len(t, integration.arrivals, 1)

	history, err := svc.ListHistory(context.Background(), item.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestMarkArrivedRelievesBackorderBucket(t *testing.T) {
	repo := newMemRepo()
	svc, _, _ := newTestService(repo)
	item := seedItem(t, repo, 2, 3)

	order, updated, err := svc.PlaceOrder(context.Background(), item.ID, PlaceOrderInput{
		DeceasedName: "Ruth Calloway", IsBackordered: true,
		BackorderReason: "Supplier out of stock", Actor: "marge",
	})
	require.NoError(t, err)
	require.Equal(t, 1, updated.BackorderedQuantity)

	_, after, err := svc.MarkArrived(context.Background(), order.ID, ArrivalInput{Actor: "ben"})
	require.NoError(t, err)
	require.Equal(t, 2, after.OnHand)
	require.Equal(t, 0, after.OnOrder)
	require.Equal(t, 0, after.BackorderedQuantity)
	require.Empty(t, after.BackorderReason)
	require.Nil(t, after.BackorderDate)
}

func TestMarkArrivedTwice(t *testing.T) {
	repo := newMemRepo()
	svc, _, _ := newTestService(repo)
	item := seedItem(t, repo, 3, 3)

	order, _, err := svc.PlaceOrder(context.Background(), item.ID, PlaceOrderInput{DeceasedName: "A", Actor: "marge"})
	require.NoError(t, err)

	_, _, err = svc.MarkArrived(context.Background(), order.ID, ArrivalInput{Actor: "ben"})
	require.NoError(t, err)

	_, _, err = svc.MarkArrived(context.Background(), order.ID, ArrivalInput{Actor: "ben"})
	require.ErrorIs(t, err, ErrInvalidState)

	// second attempt must not restock again
	got, err := svc.GetItem(context.Background(), order.ItemID)
	require.NoError(t, err)
	require.Equal(t, 3, got.OnHand)
}

func TestOrderTransitLifecycle(t *testing.T) {
	repo := newMemRepo()
	svc, _, _ := newTestService(repo)
	item := seedItem(t, repo, 3, 3)

	order, _, err := svc.PlaceOrder(context.Background(), item.ID, PlaceOrderInput{DeceasedName: "A", Actor: "marge"})
	require.NoError(t, err)

	delayed, err := svc.MarkDelayed(context.Background(), order.ID, "marge")
	require.NoError(t, err)
	require.Equal(t, OrderStatusDelayed, delayed.Status)

	// delayed orders cannot arrive directly; they re-enter through shipped
	_, _, err = svc.MarkArrived(context.Background(), order.ID, ArrivalInput{Actor: "ben"})
	require.ErrorIs(t, err, ErrInvalidState)

	shipped, err := svc.MarkShipped(context.Background(), order.ID, "marge")
	require.NoError(t, err)
	require.Equal(t, OrderStatusShipped, shipped.Status)

	arrived, _, err := svc.MarkArrived(context.Background(), order.ID, ArrivalInput{Actor: "ben"})
	require.NoError(t, err)
	require.Equal(t, OrderStatusArrived, arrived.Status)

	_, err = svc.MarkShipped(context.Background(), order.ID, "marge")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestRecordReturnWithReplacement(t *testing.T) {
	repo := newMemRepo()
	svc, _, _ := newTestService(repo)
	item := seedItem(t, repo, 2, 3)

	ret, updated, err := svc.RecordReturn(context.Background(), item.ID, ReturnInput{
		Reason: "Damaged in transit", Actor: "marge",
		FamilyName: "Whitfield family", ExpectsReplacement: true, PONumber: "PO-1002",
	})
	require.NoError(t, err)
	require.NotZero(t, ret.ReplacementOrderID)
	require.Equal(t, DispositionNone, ret.Disposition)

	// a replacement does not draw from the shelf
	require.Equal(t, 2, updated.OnHand)
	require.Equal(t, 1, updated.OnOrder)

	replacement, err := svc.GetOrder(context.Background(), ret.ReplacementOrderID)
	require.NoError(t, err)
	require.True(t, replacement.IsReturnReplacement)
	require.Equal(t, 1, replacement.Quantity)

	history, err := svc.ListHistory(context.Background(), item.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestRecordReturnRestock(t *testing.T) {
	repo := newMemRepo()
	svc, _, _ := newTestService(repo)
	item := seedItem(t, repo, 1, 3)

	ret, updated, err := svc.RecordReturn(context.Background(), item.ID, ReturnInput{
		Reason: "Family changed selection", Actor: "marge", Disposition: DispositionRestock,
	})
	require.NoError(t, err)
	require.Zero(t, ret.ReplacementOrderID)
	require.Equal(t, 2, updated.OnHand)

	history, err := svc.ListHistory(context.Background(), item.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, ActionReturnRecorded, history[0].Action)
	require.Equal(t, 1, history[0].QuantityChange)
}

func TestRecordReturnValidation(t *testing.T) {
	repo := newMemRepo()
	svc, _, _ := newTestService(repo)
	item := seedItem(t, repo, 1, 3)

	_, _, err := svc.RecordReturn(context.Background(), item.ID, ReturnInput{Actor: "marge"})
	require.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.RecordReturn(context.Background(), item.ID, ReturnInput{Reason: "x", Actor: "marge", Disposition: "SHRED"})
	require.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.RecordReturn(context.Background(), item.ID, ReturnInput{Reason: "x", Actor: "marge", ExpectsReplacement: true})
	require.ErrorIs(t, err, ErrValidation)
}

func TestAdjustInventory(t *testing.T) {
	repo := newMemRepo()
	svc, _, _ := newTestService(repo)
	item := seedItem(t, repo, 2, 3)
	ctx := context.Background()

	updated, rec, err := svc.AdjustInventory(ctx, item.ID, AdjustmentInput{
		Type: AdjustmentAdd, Quantity: 3, Reason: "Found in storage", Actor: "marge",
	})
	require.NoError(t, err)
	require.Equal(t, 5, updated.OnHand)
	require.Equal(t, 3, rec.QuantityChange)

	// removal larger than on-hand clamps at zero
	updated, rec, err = svc.AdjustInventory(ctx, item.ID, AdjustmentInput{
		Type: AdjustmentRemove, Quantity: 7, Reason: "Water damage", Actor: "marge",
	})
	require.NoError(t, err)
	require.Equal(t, 0, updated.OnHand)
	require.Equal(t, -7, rec.QuantityChange)

	updated, _, err = svc.AdjustInventory(ctx, item.ID, AdjustmentInput{
		Type: AdjustmentCorrection, Quantity: 4, Reason: "Recount", Actor: "marge",
	})
	require.NoError(t, err)
	require.Equal(t, 4, updated.OnHand)
}

func TestAdjustInventoryValidation(t *testing.T) {
	repo := newMemRepo()
	svc, _, _ := newTestService(repo)
	item := seedItem(t, repo, 2, 3)
	ctx := context.Background()

	_, _, err := svc.AdjustInventory(ctx, item.ID, AdjustmentInput{Type: AdjustmentAdd, Quantity: 1})
	require.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.AdjustInventory(ctx, item.ID, AdjustmentInput{Type: AdjustmentAdd, Quantity: -1, Reason: "x", Actor: "y"})
	require.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.AdjustInventory(ctx, item.ID, AdjustmentInput{Type: AdjustmentCorrection, Quantity: 0, Reason: "x", Actor: "y"})
	require.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.AdjustInventory(ctx, item.ID, AdjustmentInput{Type: "reset", Quantity: 1, Reason: "x", Actor: "y"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestRecordBackorder(t *testing.T) {
	repo := newMemRepo()
	svc, _, integration := newTestService(repo)
	item := seedItem(t, repo, 1, 3)
	ctx := context.Background()

	updated, err := svc.RecordBackorder(ctx, item.ID, BackorderInput{
		Quantity: 2, Reason: "Supplier out of stock", Actor: "marge",
	})
	require.NoError(t, err)
	require.Equal(t, 2, updated.BackorderedQuantity)
	require.Equal(t, "Supplier out of stock", updated.BackorderReason)
	require.NotNil(t, updated.BackorderDate)
	firstDate := *updated.BackorderDate

	// growing an existing bucket keeps the original date
	updated, err = svc.RecordBackorder(ctx, item.ID, BackorderInput{
		Quantity: 1, Reason: "Model discontinued", Actor: "marge",
	})
	require.NoError(t, err)
	require.Equal(t, 3, updated.BackorderedQuantity)
	require.Equal(t, "Model discontinued", updated.BackorderReason)
	require.Equal(t, firstDate, *updated.BackorderDate)

	require.Equal(t, StatusBackordered, updated.Status())
	require.Len(t, integration.backorders, 2)

	_, err = svc.RecordBackorder(ctx, item.ID, BackorderInput{Quantity: 0, Reason: "x"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestResolveInstructions(t *testing.T) {
	repo := newMemRepo()
	audit := &memAudit{}
	suppliers := &memSuppliers{instructions: map[string]string{"Batesville": "Call rep before noon"}}
	svc := NewService(repo, audit, nil, suppliers, nil)
	ctx := context.Background()

	item, err := repo.CreateItem(ctx, StockItem{Kind: KindCasket, Name: "Oak Standard", Supplier: "Batesville"})
	require.NoError(t, err)

	got, err := svc.ResolveInstructions(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, "Call rep before noon", got)

	override, err := repo.CreateItem(ctx, StockItem{
		Kind: KindCasket, Name: "Oak Premium", Supplier: "Batesville",
		OrderingInstructions: "Order via portal only",
	})
	require.NoError(t, err)

	got, err = svc.ResolveInstructions(ctx, override.ID)
	require.NoError(t, err)
	require.Equal(t, "Order via portal only", got)
}

func TestListOrdersTriagedSorting(t *testing.T) {
	repo := newMemRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()
	item := seedItem(t, repo, 5, 3)

	place := func(expected *time.Time) Order {
		order, _, err := svc.PlaceOrder(ctx, item.ID, PlaceOrderInput{
			DeceasedName: "Doe", Actor: "pat", ExpectedDate: expected,
		})
		require.NoError(t, err)
		return order
	}
	date := func(day int) *time.Time {
		d := time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
		return &d
	}

	place(nil)
	late := place(date(8))
	onTime := place(date(25))
	urgent := place(date(12))

	listed, total, err := svc.ListOrdersTriaged(ctx, OrderFilter{})
	require.NoError(t, err)
	require.Equal(t, 4, total)
	require.Equal(t, late.ID, listed[0].ID)
	require.Equal(t, triage.TierLate, listed[0].Triage.Tier)
	require.Equal(t, urgent.ID, listed[1].ID)
	require.Equal(t, triage.TierUrgent, listed[1].Triage.Tier)
	require.Equal(t, onTime.ID, listed[2].ID)
	require.Equal(t, triage.TierUnscheduled, listed[3].Triage.Tier)
}

func TestStockStatusTiers(t *testing.T) {
	require.Equal(t, StatusOutOfStock, StockItem{OnHand: 0, BackorderedQuantity: 2}.Status())
	require.Equal(t, StatusBackordered, StockItem{OnHand: 1, BackorderedQuantity: 1, TargetQuantity: 5}.Status())
	require.Equal(t, StatusLowStock, StockItem{OnHand: 1, OnOrder: 1, TargetQuantity: 5}.Status())
	require.Equal(t, StatusWellStocked, StockItem{OnHand: 3, OnOrder: 2, TargetQuantity: 5}.Status())

	// backordered units never count toward coverage
	item := StockItem{OnHand: 1, OnOrder: 1, BackorderedQuantity: 10, TargetQuantity: 5}
	require.Equal(t, 2, item.Coverage())
	require.Equal(t, 3, item.Shortage())
}
