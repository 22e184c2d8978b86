package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fakturo/fakturo/internal/platform/db"
)

// ErrNotFound indicates the product does not exist.
var ErrNotFound = errors.New("product not found")

// Repository persists products.
type Repository interface {
	Get(ctx context.Context, id int64) (*Product, error)
	List(ctx context.Context, req ListProductsRequest) ([]Product, int, error)
	Create(ctx context.Context, p Product) (int64, error)
	Update(ctx context.Context, id int64, p Product) error
	Delete(ctx context.Context, id int64) error
	AdjustStock(ctx context.Context, id int64, delta int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const productColumns = `id, code, name, description, unit_price, tax_rate, stock, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	var unitPrice, taxRate pgtype.Numeric
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &unitPrice, &taxRate, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.UnitPrice = db.DecimalFromNumeric(unitPrice)
	p.TaxRate = db.DecimalFromNumeric(taxRate)
	return &p, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return scanProduct(r.pool.QueryRow(ctx, query, id))
}

func (r *repository) List(ctx context.Context, req ListProductsRequest) ([]Product, int, error) {
	where := ""
	var args []interface{}
	argPos := 1

	if req.Search != "" {
		where = fmt.Sprintf("WHERE code ILIKE $%d OR name ILIKE $%d", argPos, argPos)
		args = append(args, "%"+req.Search+"%")
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM products %s", where), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
		SELECT %s FROM products %s
		ORDER BY code, id
		LIMIT $%d OFFSET $%d
	`, productColumns, where, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, p Product) (int64, error) {
	query := `
		INSERT INTO products (code, name, description, unit_price, tax_rate, stock)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		p.Code, p.Name, p.Description,
		db.NumericFromDecimal(p.UnitPrice), db.NumericFromDecimal(p.TaxRate), p.Stock,
	).Scan(&id)
	return id, err
}

func (r *repository) Update(ctx context.Context, id int64, p Product) error {
	query := `
		UPDATE products
		SET code = $1, name = $2, description = $3, unit_price = $4, tax_rate = $5,
		    stock = $6, updated_at = NOW()
		WHERE id = $7`
	tag, err := r.pool.Exec(ctx, query,
		p.Code, p.Name, p.Description,
		db.NumericFromDecimal(p.UnitPrice), db.NumericFromDecimal(p.TaxRate), p.Stock, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) AdjustStock(ctx context.Context, id int64, delta int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2`, delta, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
