package deliveries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fakturo/fakturo/internal/platform/db"
)

// ErrNotFound indicates the delivery note does not exist.
var ErrNotFound = errors.New("delivery note not found")

// Repository persists delivery notes and their lines.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*DeliveryNote, error)
	List(ctx context.Context, req ListDeliveryNotesRequest) ([]WithDetails, int, error)
	Create(ctx context.Context, dn DeliveryNote) (int64, error)
	InsertLine(ctx context.Context, line Line) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	UpdateStatus(ctx context.Context, id int64, status Status, deliveredAt *time.Time) error
	Delete(ctx context.Context, id int64) error
	DeleteLines(ctx context.Context, noteID int64) error
	GenerateNumber(ctx context.Context, date time.Time) (string, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const noteColumns = `id, number, client_id, final_invoice_id, issue_date, delivery_date, status,
	driver_name, vehicle_reg, tracking_ref, notes, created_by, created_at, updated_at`

func scanNote(row pgx.Row) (*DeliveryNote, error) {
	var dn DeliveryNote
	var issueDate pgtype.Date
	err := row.Scan(
		&dn.ID, &dn.Number, &dn.ClientID, &dn.FinalInvoiceID, &issueDate, &dn.DeliveryDate,
		&dn.Status, &dn.DriverName, &dn.VehicleReg, &dn.TrackingRef, &dn.Notes,
		&dn.CreatedBy, &dn.CreatedAt, &dn.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if issueDate.Valid {
		dn.IssueDate = issueDate.Time
	}
	return &dn, nil
}

func (r *repository) loadLines(ctx context.Context, noteID int64) ([]Line, error) {
	query := `SELECT id, delivery_note_id, product_id, description, quantity, line_order, created_at
		FROM delivery_note_lines WHERE delivery_note_id = $1 ORDER BY line_order, id`
	rows, err := r.db.Query(ctx, query, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.DeliveryNoteID, &l.ProductID, &l.Description, &l.Quantity, &l.LineOrder, &l.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*DeliveryNote, error) {
	query := `SELECT ` + noteColumns + ` FROM delivery_notes WHERE id = $1`
	dn, err := scanNote(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	dn.Lines, err = r.loadLines(ctx, dn.ID)
	if err != nil {
		return nil, err
	}
	return dn, nil
}

func (r *repository) List(ctx context.Context, req ListDeliveryNotesRequest) ([]WithDetails, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if req.ClientID != nil {
		conditions = append(conditions, fmt.Sprintf("d.client_id = $%d", argPos))
		args = append(args, *req.ClientID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("d.status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM delivery_notes d %s", whereClause)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
		SELECT d.id, d.number, d.client_id, d.final_invoice_id, d.issue_date, d.delivery_date,
		       d.status, d.driver_name, d.vehicle_reg, d.tracking_ref, d.notes,
		       d.created_by, d.created_at, d.updated_at,
		       c.name AS client_name,
		       i.number AS invoice_number
		FROM delivery_notes d
		JOIN clients c ON d.client_id = c.id
		LEFT JOIN invoices i ON d.final_invoice_id = i.id
		%s
		ORDER BY d.issue_date DESC, d.id DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []WithDetails
	for rows.Next() {
		var d WithDetails
		var issueDate pgtype.Date
		err := rows.Scan(
			&d.ID, &d.Number, &d.ClientID, &d.FinalInvoiceID, &issueDate, &d.DeliveryDate,
			&d.Status, &d.DriverName, &d.VehicleReg, &d.TrackingRef, &d.Notes,
			&d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
			&d.ClientName, &d.InvoiceNumber,
		)
		if err != nil {
			return nil, 0, err
		}
		if issueDate.Valid {
			d.IssueDate = issueDate.Time
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, dn DeliveryNote) (int64, error) {
	query := `
		INSERT INTO delivery_notes (
			number, client_id, final_invoice_id, issue_date, status,
			driver_name, vehicle_reg, tracking_ref, notes, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query,
		dn.Number, dn.ClientID, dn.FinalInvoiceID, dn.IssueDate, dn.Status,
		dn.DriverName, dn.VehicleReg, dn.TrackingRef, dn.Notes, dn.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert delivery note: %w", err)
	}
	return id, nil
}

func (r *repository) InsertLine(ctx context.Context, line Line) (int64, error) {
	query := `
		INSERT INTO delivery_note_lines (delivery_note_id, product_id, description, quantity, line_order)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query,
		line.DeliveryNoteID, line.ProductID, line.Description, line.Quantity, line.LineOrder,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert delivery note line: %w", err)
	}
	return id, nil
}

var allowedNoteColumns = map[string]bool{
	"issue_date":   true,
	"driver_name":  true,
	"vehicle_reg":  true,
	"tracking_ref": true,
	"notes":        true,
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	setClauses := make([]string, 0, len(updates)+1)
	args := make([]interface{}, 0, len(updates)+1)
	argPos := 1
	for col, val := range updates {
		if !allowedNoteColumns[col] {
			return fmt.Errorf("column %q is not updatable", col)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, argPos))
		args = append(args, val)
		argPos++
	}
	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE delivery_notes SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status, deliveredAt *time.Time) error {
	query := `UPDATE delivery_notes SET status = $1, delivery_date = $2, updated_at = now() WHERE id = $3`
	tag, err := r.db.Exec(ctx, query, status, deliveredAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM delivery_notes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) DeleteLines(ctx context.Context, noteID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM delivery_note_lines WHERE delivery_note_id = $1`, noteID)
	return err
}

func (r *repository) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	period := date.Format("0601")
	query := `
		INSERT INTO document_sequences (doc_type, period, seq)
		VALUES ('delivery_note', $1, 1)
		ON CONFLICT (doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq`
	var seq int
	if err := r.db.QueryRow(ctx, query, period).Scan(&seq); err != nil {
		return "", err
	}
	return fmt.Sprintf("DN-%s-%04d", period, seq), nil
}
