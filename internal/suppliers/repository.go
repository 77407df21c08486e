package suppliers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists suppliers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, name, COALESCE(contact, ''), COALESCE(phone, ''),
	COALESCE(ordering_instructions, ''), created_at, updated_at`

func scan(row pgx.Row) (Supplier, error) {
	var supplier Supplier
	err := row.Scan(&supplier.ID, &supplier.Name, &supplier.Contact,
		&supplier.Phone, &supplier.OrderingInstructions,
		&supplier.CreatedAt, &supplier.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, ErrNotFound
		}
		return Supplier{}, err
	}
	return supplier, nil
}

func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

// Create inserts a supplier and returns it with generated fields.
func (r *Repository) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO suppliers
		(name, contact, phone, ordering_instructions)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''))
		RETURNING `+columns,
		supplier.Name, supplier.Contact, supplier.Phone, supplier.OrderingInstructions)
	created, err := scan(row)
	if err != nil {
		return Supplier{}, mapConstraint(err)
	}
	return created, nil
}

// Get fetches one supplier by id.
func (r *Repository) Get(ctx context.Context, id int64) (Supplier, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM suppliers WHERE id=$1`, id))
}

// GetByName fetches one supplier by exact name.
func (r *Repository) GetByName(ctx context.Context, name string) (Supplier, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM suppliers WHERE name=$1`, name))
}

// List returns all suppliers ordered by name.
func (r *Repository) List(ctx context.Context) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM suppliers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Supplier
	for rows.Next() {
		supplier, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, supplier)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update replaces the mutable fields of a supplier.
func (r *Repository) Update(ctx context.Context, id int64, supplier Supplier) (Supplier, error) {
	row := r.pool.QueryRow(ctx, `UPDATE suppliers SET
		name=$2, contact=NULLIF($3, ''), phone=NULLIF($4, ''),
		ordering_instructions=NULLIF($5, ''), updated_at=NOW()
		WHERE id=$1 RETURNING `+columns,
		id, supplier.Name, supplier.Contact, supplier.Phone, supplier.OrderingInstructions)
	updated, err := scan(row)
	if err != nil {
		return Supplier{}, mapConstraint(err)
	}
	return updated, nil
}

// Delete removes a supplier.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM suppliers WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
