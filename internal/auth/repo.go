package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested user does not exist.
var ErrNotFound = errors.New("auth: user not found")

// Repository persists users and session metadata in PostgreSQL.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, email, fullName, passwordHash, role string) (*User, error)
	List(ctx context.Context) ([]User, error)
	CreateSession(ctx context.Context, id string, userID int64, expiresAt, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const userColumns = `id, email, full_name, password_hash, role, is_active, created_at, updated_at`

func (r *repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *repository) FindByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *repository) Create(ctx context.Context, email, fullName, passwordHash, role string) (*User, error) {
	query := `
		INSERT INTO users (email, full_name, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING ` + userColumns
	return r.scanUser(r.pool.QueryRow(ctx, query, email, fullName, passwordHash, role))
}

func (r *repository) List(ctx context.Context) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *repository) CreateSession(ctx context.Context, id string, userID int64, expiresAt, ip, ua string) error {
	query := `
		INSERT INTO sessions (id, user_id, expires_at, ip_address, user_agent)
		VALUES ($1, $2, $3::timestamptz, $4, $5)
		ON CONFLICT (id) DO UPDATE SET expires_at = EXCLUDED.expires_at`
	_, err := r.pool.Exec(ctx, query, id, userID, expiresAt, ip, ua)
	return err
}

func (r *repository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (r *repository) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
