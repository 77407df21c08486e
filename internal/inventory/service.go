package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/caskwell/caskwell/internal/shared"
	"github.com/caskwell/caskwell/internal/triage"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateItem(ctx context.Context, item StockItem) (StockItem, error)
	GetItem(ctx context.Context, id int64) (StockItem, error)
	ListItems(ctx context.Context, filter ListFilter) ([]StockItem, int, error)
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, int, error)
	ListHistory(ctx context.Context, itemID int64, limit int) ([]HistoryRecord, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SupplierPort resolves ordering instructions kept on the supplier record.
type SupplierPort interface {
	InstructionsByName(ctx context.Context, name string) (string, error)
}

// Service is the inventory ledger. It applies exactly one class of
// mutation per business event and keeps on-hand, on-order and backordered
// quantities consistent with the order and history trail. Every mutation
// runs inside a single repository transaction with the item row locked so
// concurrent calls against the same item serialize at the storage layer.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	suppliers   SupplierPort
	integration IntegrationHandler
	clock       func() time.Time
}

// NewService builds Service. Audit, idempotency, suppliers and integration
// are optional.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, suppliers SupplierPort, integration IntegrationHandler) *Service {
	return &Service{
		repo:        repo,
		audit:       audit,
		idempotency: idem,
		suppliers:   suppliers,
		integration: integration,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// CreateItem adds a catalog entry with its opening stock level.
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (StockItem, error) {
	if input.Kind != KindCasket && input.Kind != KindUrn {
		return StockItem{}, fmt.Errorf("%w: kind must be CASKET or URN", ErrValidation)
	}
	if strings.TrimSpace(input.Name) == "" {
		return StockItem{}, fmt.Errorf("%w: name required", ErrValidation)
	}
	if input.OnHand < 0 || input.TargetQuantity < 0 {
		return StockItem{}, fmt.Errorf("%w: quantities must not be negative", ErrValidation)
	}
	item := StockItem{
		Kind:                 input.Kind,
		Name:                 strings.TrimSpace(input.Name),
		Model:                input.Model,
		Supplier:             input.Supplier,
		Location:             input.Location,
		Cost:                 input.Cost,
		Price:                input.Price,
		OnHand:               input.OnHand,
		TargetQuantity:       input.TargetQuantity,
		OrderingInstructions: input.OrderingInstructions,
	}
	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return StockItem{}, err
	}
	s.recordAudit(ctx, "", "ITEM_CREATE", created.ID, map[string]any{"name": created.Name, "kind": created.Kind})
	return created, nil
}

// PlaceOrder creates a supplier order and mutates the item in the same
// transaction. A regular order sells one unit off the shelf, so it needs
// stock on hand; a return-replacement does not. Backordered orders feed
// the backorder bucket instead of on-order.
func (s *Service) PlaceOrder(ctx context.Context, itemID int64, input PlaceOrderInput) (Order, StockItem, error) {
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	if input.Quantity < 0 {
		return Order{}, StockItem{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if strings.TrimSpace(input.DeceasedName) == "" {
		return Order{}, StockItem{}, fmt.Errorf("%w: deceased or family name required", ErrValidation)
	}

	now := s.clock()
	var (
		order Order
		item  StockItem
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.GetItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		order, err = s.applyPlaceOrder(ctx, tx, &item, input, now)
		if err != nil {
			return err
		}
		return tx.UpdateItemQuantities(ctx, item)
	})
	if err != nil {
		return Order{}, StockItem{}, err
	}

	s.recordAudit(ctx, input.Actor, "ORDER_PLACE", order.ID, map[string]any{
		"item_id":     itemID,
		"quantity":    order.Quantity,
		"po_number":   order.PONumber,
		"backordered": order.IsBackordered,
		"replacement": order.IsReturnReplacement,
	})
	if order.IsBackordered && s.integration != nil {
		evt := BackorderRecordedEvent{ItemID: item.ID, ItemName: item.Name, Quantity: order.Quantity, Reason: item.BackorderReason, At: now}
		if err := s.integration.HandleBackorderRecorded(ctx, evt); err != nil {
			return Order{}, StockItem{}, err
		}
	}
	return order, item, nil
}

// applyPlaceOrder mutates the locked item and writes the order and history
// rows. The caller persists the item afterwards so a chained replacement
// order shares the same write.
func (s *Service) applyPlaceOrder(ctx context.Context, tx TxRepository, item *StockItem, input PlaceOrderInput, now time.Time) (Order, error) {
	if !input.IsReturnReplacement {
		if item.OnHand <= 0 {
			return Order{}, ErrInsufficientStock
		}
		item.OnHand -= input.Quantity
		if item.OnHand < 0 {
			item.OnHand = 0
		}
	}
	if input.IsBackordered {
		if item.BackorderedQuantity == 0 {
			item.BackorderReason = input.BackorderReason
			stamp := now
			item.BackorderDate = &stamp
		}
		item.BackorderedQuantity += input.Quantity
	} else {
		item.OnOrder += input.Quantity
	}

	order := Order{
		ItemID:              item.ID,
		Quantity:            input.Quantity,
		PONumber:            input.PONumber,
		DeceasedName:        strings.TrimSpace(input.DeceasedName),
		OrderDate:           now,
		ExpectedDate:        input.ExpectedDate,
		Status:              OrderStatusPending,
		IsBackordered:       input.IsBackordered,
		IsReturnReplacement: input.IsReturnReplacement,
	}
	id, err := tx.InsertOrder(ctx, order)
	if err != nil {
		return Order{}, err
	}
	order.ID = id

	action := ActionOrderPlaced
	change := -input.Quantity
	if input.IsReturnReplacement {
		action = ActionReplacementOrdered
		change = 0
	}
	rec := HistoryRecord{
		ItemID:         item.ID,
		Action:         action,
		QuantityChange: change,
		PerformedBy:    input.Actor,
		Notes:          fmt.Sprintf("PO %s for %s", order.PONumber, order.DeceasedName),
		RefID:          uuid.NewString(),
		RecordedAt:     now,
	}
	if _, err := tx.InsertHistory(ctx, rec); err != nil {
		return Order{}, err
	}
	return order, nil
}

// MarkArrived closes an open order and restocks the item. Arrival relieves
// whichever bucket the order was filed under: on-order for regular orders,
// the backorder bucket for backordered ones.
func (s *Service) MarkArrived(ctx context.Context, orderID int64, input ArrivalInput) (Order, StockItem, error) {
	if strings.TrimSpace(input.Actor) == "" {
		return Order{}, StockItem{}, fmt.Errorf("%w: actor required", ErrValidation)
	}
	arrival := input.ArrivalDate
	if arrival.IsZero() {
		arrival = s.clock()
	}

	key := fmt.Sprintf("inventory:arrive:%d", orderID)
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
			return Order{}, StockItem{}, err
		}
		insertedKey = true
	}

	var (
		order Order
		item  StockItem
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != OrderStatusPending && order.Status != OrderStatusShipped {
			return fmt.Errorf("%w: cannot mark %s order as arrived", ErrInvalidState, order.Status)
		}
		item, err = tx.GetItemForUpdate(ctx, order.ItemID)
		if err != nil {
			return err
		}

		item.OnHand += order.Quantity
		if order.IsBackordered {
			item.BackorderedQuantity -= order.Quantity
			if item.BackorderedQuantity <= 0 {
				item.BackorderedQuantity = 0
				item.BackorderReason = ""
				item.BackorderDate = nil
			}
		} else {
			item.OnOrder -= order.Quantity
			if item.OnOrder < 0 {
				item.OnOrder = 0
			}
		}

		order.Status = OrderStatusArrived
		order.ActualArrivalDate = &arrival
		order.ArrivedMarkedBy = strings.TrimSpace(input.Actor)
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		if err := tx.UpdateItemQuantities(ctx, item); err != nil {
			return err
		}
		rec := HistoryRecord{
			ItemID:         item.ID,
			Action:         ActionOrderArrived,
			QuantityChange: order.Quantity,
			PerformedBy:    order.ArrivedMarkedBy,
			Notes:          fmt.Sprintf("PO %s arrived", order.PONumber),
			RefID:          uuid.NewString(),
			RecordedAt:     arrival,
		}
		_, err = tx.InsertHistory(ctx, rec)
		return err
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
		return Order{}, StockItem{}, err
	}

	s.recordAudit(ctx, input.Actor, "ORDER_ARRIVE", order.ID, map[string]any{
		"item_id":  item.ID,
		"quantity": order.Quantity,
	})
	if s.integration != nil {
		evt := OrderArrivedEvent{OrderID: order.ID, ItemID: item.ID, ItemName: item.Name, Quantity: order.Quantity, At: arrival}
		if err := s.integration.HandleOrderArrived(ctx, evt); err != nil {
			return Order{}, StockItem{}, err
		}
	}
	return order, item, nil
}

// MarkShipped moves a pending or delayed order into transit.
func (s *Service) MarkShipped(ctx context.Context, orderID int64, actor string) (Order, error) {
	return s.transitionOrder(ctx, orderID, actor, OrderStatusShipped, []OrderStatus{OrderStatusPending, OrderStatusDelayed}, "ORDER_SHIP")
}

// MarkDelayed flags a pending or shipped order as delayed. The state is
// re-enterable: a delayed order goes back through shipped before arrival.
func (s *Service) MarkDelayed(ctx context.Context, orderID int64, actor string) (Order, error) {
	return s.transitionOrder(ctx, orderID, actor, OrderStatusDelayed, []OrderStatus{OrderStatusPending, OrderStatusShipped}, "ORDER_DELAY")
}

func (s *Service) transitionOrder(ctx context.Context, orderID int64, actor string, to OrderStatus, from []OrderStatus, auditAction string) (Order, error) {
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		allowed := false
		for _, st := range from {
			if order.Status == st {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: cannot move %s order to %s", ErrInvalidState, order.Status, to)
		}
		order.Status = to
		return tx.UpdateOrder(ctx, order)
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, actor, auditAction, order.ID, map[string]any{"item_id": order.ItemID})
	return order, nil
}

// RecordReturn files a return against an item. The sale already reduced
// on-hand, so by default the return is a pure audit append; a RESTOCK
// disposition puts the unit back on the shelf. When a replacement is
// expected the replacement order is created in the same transaction.
func (s *Service) RecordReturn(ctx context.Context, itemID int64, input ReturnInput) (ReturnRecord, StockItem, error) {
	if strings.TrimSpace(input.Reason) == "" || strings.TrimSpace(input.Actor) == "" {
		return ReturnRecord{}, StockItem{}, fmt.Errorf("%w: reason and actor required", ErrValidation)
	}
	if input.Disposition == "" {
		input.Disposition = DispositionNone
	}
	switch input.Disposition {
	case DispositionNone, DispositionRestock, DispositionDispose:
	default:
		return ReturnRecord{}, StockItem{}, fmt.Errorf("%w: unknown disposition %q", ErrValidation, input.Disposition)
	}
	if input.ExpectsReplacement && strings.TrimSpace(input.FamilyName) == "" {
		return ReturnRecord{}, StockItem{}, fmt.Errorf("%w: family name required for replacement order", ErrValidation)
	}

	now := s.clock()
	var (
		ret  ReturnRecord
		item StockItem
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.GetItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}

		change := 0
		if input.Disposition == DispositionRestock {
			item.OnHand++
			change = 1
		}

		ret = ReturnRecord{
			ItemID:             item.ID,
			Reason:             strings.TrimSpace(input.Reason),
			Notes:              input.Notes,
			RecordedBy:         strings.TrimSpace(input.Actor),
			Disposition:        input.Disposition,
			ExpectsReplacement: input.ExpectsReplacement,
			RecordedAt:         now,
		}

		if input.ExpectsReplacement {
			replacement, err := s.applyPlaceOrder(ctx, tx, &item, PlaceOrderInput{
				Quantity:            1,
				DeceasedName:        input.FamilyName,
				PONumber:            input.PONumber,
				ExpectedDate:        input.ExpectedDate,
				IsReturnReplacement: true,
				Actor:               input.Actor,
			}, now)
			if err != nil {
				return err
			}
			ret.ReplacementOrderID = replacement.ID
		}

		id, err := tx.InsertReturn(ctx, ret)
		if err != nil {
			return err
		}
		ret.ID = id

		if err := tx.UpdateItemQuantities(ctx, item); err != nil {
			return err
		}
		rec := HistoryRecord{
			ItemID:         item.ID,
			Action:         ActionReturnRecorded,
			QuantityChange: change,
			Reason:         ret.Reason,
			PerformedBy:    ret.RecordedBy,
			Notes:          input.Notes,
			RefID:          uuid.NewString(),
			RecordedAt:     now,
		}
		_, err = tx.InsertHistory(ctx, rec)
		return err
	})
	if err != nil {
		return ReturnRecord{}, StockItem{}, err
	}

	s.recordAudit(ctx, input.Actor, "RETURN_RECORD", ret.ID, map[string]any{
		"item_id":     itemID,
		"disposition": ret.Disposition,
		"replacement": ret.ReplacementOrderID,
	})
	return ret, item, nil
}

// AdjustInventory applies a manual stock correction. Add and remove take a
// positive count; correction takes a signed delta. On-hand clamps at zero.
func (s *Service) AdjustInventory(ctx context.Context, itemID int64, input AdjustmentInput) (StockItem, HistoryRecord, error) {
	if strings.TrimSpace(input.Reason) == "" || strings.TrimSpace(input.Actor) == "" {
		return StockItem{}, HistoryRecord{}, fmt.Errorf("%w: reason and actor required", ErrValidation)
	}
	var delta int
	switch input.Type {
	case AdjustmentAdd:
		if input.Quantity <= 0 {
			return StockItem{}, HistoryRecord{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
		}
		delta = input.Quantity
	case AdjustmentRemove:
		if input.Quantity <= 0 {
			return StockItem{}, HistoryRecord{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
		}
		delta = -input.Quantity
	case AdjustmentCorrection:
		if input.Quantity == 0 {
			return StockItem{}, HistoryRecord{}, fmt.Errorf("%w: correction delta must be non-zero", ErrValidation)
		}
		delta = input.Quantity
	default:
		return StockItem{}, HistoryRecord{}, fmt.Errorf("%w: unknown adjustment type %q", ErrValidation, input.Type)
	}

	now := s.clock()
	var (
		item StockItem
		rec  HistoryRecord
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.GetItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		item.OnHand += delta
		if item.OnHand < 0 {
			item.OnHand = 0
		}
		if err := tx.UpdateItemQuantities(ctx, item); err != nil {
			return err
		}
		rec = HistoryRecord{
			ItemID:         item.ID,
			Action:         ActionAdjustment,
			QuantityChange: delta,
			Reason:         strings.TrimSpace(input.Reason),
			PerformedBy:    strings.TrimSpace(input.Actor),
			Notes:          input.Notes,
			RefID:          uuid.NewString(),
			RecordedAt:     now,
		}
		id, err := tx.InsertHistory(ctx, rec)
		if err != nil {
			return err
		}
		rec.ID = id
		return nil
	})
	if err != nil {
		return StockItem{}, HistoryRecord{}, err
	}

	s.recordAudit(ctx, input.Actor, "STOCK_ADJUST", itemID, map[string]any{
		"type":   input.Type,
		"delta":  delta,
		"reason": input.Reason,
	})
	return item, rec, nil
}

// RecordBackorder flags units the supplier accepted but cannot currently
// deliver. The bucket is excluded from coverage until arrival relieves it.
func (s *Service) RecordBackorder(ctx context.Context, itemID int64, input BackorderInput) (StockItem, error) {
	if input.Quantity <= 0 {
		return StockItem{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if strings.TrimSpace(input.Reason) == "" {
		return StockItem{}, fmt.Errorf("%w: reason required", ErrValidation)
	}

	now := s.clock()
	var item StockItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.GetItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if item.BackorderedQuantity == 0 {
			stamp := now
			item.BackorderDate = &stamp
		}
		item.BackorderedQuantity += input.Quantity
		item.BackorderReason = strings.TrimSpace(input.Reason)
		if err := tx.UpdateItemQuantities(ctx, item); err != nil {
			return err
		}
		rec := HistoryRecord{
			ItemID:         item.ID,
			Action:         ActionBackorderRecorded,
			QuantityChange: 0,
			Reason:         item.BackorderReason,
			PerformedBy:    input.Actor,
			RefID:          uuid.NewString(),
			RecordedAt:     now,
		}
		_, err = tx.InsertHistory(ctx, rec)
		return err
	})
	if err != nil {
		return StockItem{}, err
	}

	s.recordAudit(ctx, input.Actor, "BACKORDER_RECORD", itemID, map[string]any{
		"quantity": input.Quantity,
		"reason":   input.Reason,
	})
	if s.integration != nil {
		evt := BackorderRecordedEvent{ItemID: item.ID, ItemName: item.Name, Quantity: input.Quantity, Reason: item.BackorderReason, At: now}
		if err := s.integration.HandleBackorderRecorded(ctx, evt); err != nil {
			return StockItem{}, err
		}
	}
	return item, nil
}

// GetItem returns one stock item.
func (s *Service) GetItem(ctx context.Context, id int64) (StockItem, error) {
	return s.repo.GetItem(ctx, id)
}

// ListItems returns stock items with the total match count.
func (s *Service) ListItems(ctx context.Context, filter ListFilter) ([]StockItem, int, error) {
	return s.repo.ListItems(ctx, filter)
}

// GetOrder returns one supplier order.
func (s *Service) GetOrder(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders returns supplier orders with the total match count.
func (s *Service) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, int, error) {
	return s.repo.ListOrders(ctx, filter)
}

// ListedOrder pairs an order with its delivery triage for combined
// listings.
type ListedOrder struct {
	Order
	Triage triage.Assessment `json:"triage"`
}

// ListOrdersTriaged annotates orders with delivery triage and sorts them
// late first, most overdue at the top. Orders without an expected date
// sort last.
func (s *Service) ListOrdersTriaged(ctx context.Context, filter OrderFilter) ([]ListedOrder, int, error) {
	orders, total, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	now := s.clock()
	listed := make([]ListedOrder, 0, len(orders))
	for _, order := range orders {
		listed = append(listed, ListedOrder{
			Order:  order,
			Triage: triage.Assess(order.ExpectedDate, now, triage.StockOrderRule),
		})
	}
	sort.SliceStable(listed, func(i, j int) bool {
		return triage.Compare(listed[i].Triage, listed[j].Triage) < 0
	})
	return listed, total, nil
}

// ListHistory returns the append-only history trail for one item, newest
// first.
func (s *Service) ListHistory(ctx context.Context, itemID int64, limit int) ([]HistoryRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListHistory(ctx, itemID, limit)
}

// ResolveInstructions returns the ordering instructions for an item. An
// item-level override wins; otherwise the supplier's standing
// instructions apply.
func (s *Service) ResolveInstructions(ctx context.Context, itemID int64) (string, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return "", err
	}
	if item.OrderingInstructions != "" {
		return item.OrderingInstructions, nil
	}
	if s.suppliers == nil || item.Supplier == "" {
		return "", nil
	}
	instructions, err := s.suppliers.InstructionsByName(ctx, item.Supplier)
	if err != nil {
		return "", err
	}
	return instructions, nil
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "inventory",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
