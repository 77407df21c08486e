package inventory

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

const itemColumns = `id, kind, name, model, supplier, location, cost, price,
	on_hand, on_order, target_quantity, backordered_quantity,
	COALESCE(backorder_reason, ''), backorder_date,
	COALESCE(ordering_instructions, ''), created_at, updated_at`

const orderColumns = `id, item_id, quantity, COALESCE(po_number, ''),
	deceased_name, order_date, expected_date, status, is_backordered,
	is_return_replacement, actual_arrival_date, COALESCE(arrived_marked_by, '')`

func scanItem(row pgx.Row) (StockItem, error) {
	var (
		item          StockItem
		backorderDate *time.Time
	)
	err := row.Scan(&item.ID, &item.Kind, &item.Name, &item.Model, &item.Supplier,
		&item.Location, &item.Cost, &item.Price, &item.OnHand, &item.OnOrder,
		&item.TargetQuantity, &item.BackorderedQuantity, &item.BackorderReason,
		&backorderDate, &item.OrderingInstructions, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockItem{}, ErrNotFound
		}
		return StockItem{}, err
	}
	item.BackorderDate = backorderDate
	return item, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var order Order
	err := row.Scan(&order.ID, &order.ItemID, &order.Quantity, &order.PONumber,
		&order.DeceasedName, &order.OrderDate, &order.ExpectedDate, &order.Status,
		&order.IsBackordered, &order.IsReturnReplacement, &order.ActualArrivalDate,
		&order.ArrivedMarkedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	return order, nil
}

// CreateItem inserts a catalog entry and returns it with generated fields.
func (r *Repository) CreateItem(ctx context.Context, item StockItem) (StockItem, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO stock_items
		(kind, name, model, supplier, location, cost, price, on_hand, on_order,
		 target_quantity, backordered_quantity, ordering_instructions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, 0, $10)
		RETURNING `+itemColumns,
		item.Kind, item.Name, item.Model, item.Supplier, item.Location,
		item.Cost, item.Price, item.OnHand, item.TargetQuantity, item.OrderingInstructions)
	return scanItem(row)
}

// GetItem fetches one stock item.
func (r *Repository) GetItem(ctx context.Context, id int64) (StockItem, error) {
	return scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM stock_items WHERE id=$1`, id))
}

// ListItems returns items filtered by kind and search term, paginated.
func (r *Repository) ListItems(ctx context.Context, filter ListFilter) ([]StockItem, int, error) {
	query := `SELECT ` + itemColumns + ` FROM stock_items WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM stock_items WHERE 1=1`
	var args []any
	argCount := 0

	if filter.Kind != "" {
		argCount++
		clause := ` AND kind=$` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, filter.Kind)
	}
	if filter.Search != "" {
		argCount++
		clause := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR model ILIKE $` + strconv.Itoa(argCount) + ` OR supplier ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filter.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name, id`
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, perPage)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []StockItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// GetOrder fetches one supplier order.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
}

// ListOrders returns supplier orders, optionally only open ones.
func (r *Repository) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, int, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM orders WHERE 1=1`
	var args []any
	argCount := 0

	if filter.ItemID != 0 {
		argCount++
		clause := ` AND item_id=$` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, filter.ItemID)
	}
	if filter.ActiveOnly {
		clause := ` AND status <> 'ARRIVED'`
		query += clause
		countQuery += clause
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY order_date DESC, id DESC`
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, perPage)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListHistory returns the newest history entries for an item.
func (r *Repository) ListHistory(ctx context.Context, itemID int64, limit int) ([]HistoryRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, action, quantity_change,
		COALESCE(reason, ''), COALESCE(performed_by, ''), COALESCE(notes, ''),
		COALESCE(ref_id::text, ''), recorded_at
		FROM stock_history WHERE item_id=$1 ORDER BY recorded_at DESC, id DESC LIMIT $2`, itemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		if err := rows.Scan(&rec.ID, &rec.ItemID, &rec.Action, &rec.QuantityChange,
			&rec.Reason, &rec.PerformedBy, &rec.Notes, &rec.RefID, &rec.RecordedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Transactional operations

func (r *txRepo) GetItemForUpdate(ctx context.Context, id int64) (StockItem, error) {
	return scanItem(r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM stock_items WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepo) UpdateItemQuantities(ctx context.Context, item StockItem) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_items SET
		on_hand=$2, on_order=$3, backordered_quantity=$4,
		backorder_reason=NULLIF($5, ''), backorder_date=$6, updated_at=NOW()
		WHERE id=$1`,
		item.ID, item.OnHand, item.OnOrder, item.BackorderedQuantity,
		item.BackorderReason, item.BackorderDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) InsertOrder(ctx context.Context, order Order) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO orders
		(item_id, quantity, po_number, deceased_name, order_date, expected_date,
		 status, is_backordered, is_return_replacement)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9) RETURNING id`,
		order.ItemID, order.Quantity, order.PONumber, order.DeceasedName,
		order.OrderDate, order.ExpectedDate, order.Status,
		order.IsBackordered, order.IsReturnReplacement).Scan(&id)
	return id, err
}

func (r *txRepo) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	return scanOrder(r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepo) UpdateOrder(ctx context.Context, order Order) error {
	tag, err := r.tx.Exec(ctx, `UPDATE orders SET
		status=$2, actual_arrival_date=$3, arrived_marked_by=NULLIF($4, '')
		WHERE id=$1`,
		order.ID, order.Status, order.ActualArrivalDate, order.ArrivedMarkedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) InsertHistory(ctx context.Context, rec HistoryRecord) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_history
		(item_id, action, quantity_change, reason, performed_by, notes, ref_id, recorded_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, '')::uuid, $8)
		RETURNING id`,
		rec.ItemID, rec.Action, rec.QuantityChange, rec.Reason,
		rec.PerformedBy, rec.Notes, rec.RefID, rec.RecordedAt).Scan(&id)
	return id, err
}

func (r *txRepo) InsertReturn(ctx context.Context, ret ReturnRecord) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO returns
		(item_id, reason, notes, recorded_by, disposition, expects_replacement,
		 replacement_order_id, recorded_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, 0), $8) RETURNING id`,
		ret.ItemID, ret.Reason, ret.Notes, ret.RecordedBy, ret.Disposition,
		ret.ExpectsReplacement, ret.ReplacementOrderID, ret.RecordedAt).Scan(&id)
	return id, err
}

var _ TxRepository = (*txRepo)(nil)
