package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the client does not exist.
var ErrNotFound = errors.New("client not found")

// Repository persists clients.
type Repository interface {
	Get(ctx context.Context, id int64) (*Client, error)
	List(ctx context.Context, req ListClientsRequest) ([]Client, int, error)
	Create(ctx context.Context, c Client) (int64, error)
	Update(ctx context.Context, id int64, c Client) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const clientColumns = `id, name, address, tax_id, phone, email, country, city, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`
	var c Client
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Address, &c.TaxID, &c.Phone, &c.Email, &c.Country, &c.City,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) List(ctx context.Context, req ListClientsRequest) ([]Client, int, error) {
	where := ""
	var args []interface{}
	argPos := 1

	if req.Search != "" {
		where = fmt.Sprintf("WHERE name ILIKE $%d OR tax_id ILIKE $%d", argPos, argPos)
		args = append(args, "%"+req.Search+"%")
		argPos++
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM clients %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
		SELECT %s FROM clients %s
		ORDER BY name, id
		LIMIT $%d OFFSET $%d
	`, clientColumns, where, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Address, &c.TaxID, &c.Phone, &c.Email, &c.Country, &c.City,
			&c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, c Client) (int64, error) {
	query := `
		INSERT INTO clients (name, address, tax_id, phone, email, country, city)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		c.Name, c.Address, c.TaxID, c.Phone, c.Email, c.Country, c.City,
	).Scan(&id)
	return id, err
}

func (r *repository) Update(ctx context.Context, id int64, c Client) error {
	query := `
		UPDATE clients
		SET name = $1, address = $2, tax_id = $3, phone = $4, email = $5,
		    country = $6, city = $7, updated_at = NOW()
		WHERE id = $8`
	tag, err := r.pool.Exec(ctx, query,
		c.Name, c.Address, c.TaxID, c.Phone, c.Email, c.Country, c.City, id,
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
	tag, err := r.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
