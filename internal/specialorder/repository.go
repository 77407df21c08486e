package specialorder

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists special orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, casket_name, COALESCE(model, ''), COALESCE(supplier, ''),
	family_name, service_date, expected_delivery, COALESCE(notes, ''),
	COALESCE(supplier_order_number, ''), status, created_at, updated_at`

func scan(row pgx.Row) (SpecialOrder, error) {
	var order SpecialOrder
	err := row.Scan(&order.ID, &order.CasketName, &order.Model, &order.Supplier,
		&order.FamilyName, &order.ServiceDate, &order.ExpectedDelivery,
		&order.Notes, &order.SupplierOrderNumber, &order.Status,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SpecialOrder{}, ErrNotFound
		}
		return SpecialOrder{}, err
	}
	return order, nil
}

// Create inserts a special order and returns it with generated fields.
func (r *Repository) Create(ctx context.Context, order SpecialOrder) (SpecialOrder, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO special_orders
		(casket_name, model, supplier, family_name, service_date,
		 expected_delivery, notes, supplier_order_number, status)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9)
		RETURNING `+columns,
		order.CasketName, order.Model, order.Supplier, order.FamilyName,
		order.ServiceDate, order.ExpectedDelivery, order.Notes,
		order.SupplierOrderNumber, order.Status)
	return scan(row)
}

// Get fetches one special order.
func (r *Repository) Get(ctx context.Context, id int64) (SpecialOrder, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM special_orders WHERE id=$1`, id))
}

// List returns special orders, optionally only open ones.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]SpecialOrder, int, error) {
	query := `SELECT ` + columns + ` FROM special_orders`
	countQuery := `SELECT COUNT(*) FROM special_orders`
	if filter.ActiveOnly {
		clause := ` WHERE status <> 'ARRIVED'`
		query += clause
		countQuery += clause
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	query += ` ORDER BY service_date, id LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []SpecialOrder
	for rows.Next() {
		order, err := scan(rows)
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

// Transition updates the status only when the current status is one of
// the allowed source states, so concurrent transitions cannot race past
// the lifecycle check.
func (r *Repository) Transition(ctx context.Context, id int64, to Status, from []Status) (SpecialOrder, error) {
	states := make([]string, len(from))
	for i, st := range from {
		states[i] = string(st)
	}
	order, err := scan(r.pool.QueryRow(ctx, `UPDATE special_orders
		SET status=$2, updated_at=NOW()
		WHERE id=$1 AND status = ANY($3)
		RETURNING `+columns, id, to, states))
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return SpecialOrder{}, err
	}
	// distinguish a missing row from a lifecycle violation
	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return SpecialOrder{}, getErr
	}
	return SpecialOrder{}, fmt.Errorf("%w: cannot move %s order to %s", ErrInvalidState, current.Status, to)
}
