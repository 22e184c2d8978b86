package invoices

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
	"github.com/fakturo/fakturo/internal/proformas"
)

// ErrNotFound indicates the invoice does not exist.
var ErrNotFound = errors.New("invoice not found")

// Repository persists final invoices. The conversion queries touching the
// proformas and document_lines tables live here so the whole workflow runs
// against a single transaction handle.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Invoice, error)
	GetByNumber(ctx context.Context, number string) (*Invoice, error)
	List(ctx context.Context, req ListInvoicesRequest) ([]WithDetails, int, error)
	Create(ctx context.Context, inv Invoice) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status Status, paidAt *time.Time) error
	Delete(ctx context.Context, id int64) error
	GenerateNumber(ctx context.Context, date time.Time) (string, error)

	GetProformaForUpdate(ctx context.Context, proformaID int64) (*proformas.Proforma, error)
	ReassignLines(ctx context.Context, proformaID, invoiceID int64) (int64, error)
	ReleaseLines(ctx context.Context, invoiceID int64) error
	LinkProforma(ctx context.Context, proformaID, invoiceID int64) error
	UnlinkProforma(ctx context.Context, proformaID int64) error
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

const invoiceColumns = `id, number, client_id, proforma_id, issue_date, due_date, status, payment_type,
	notes, subtotal, tax_total, stamp_tax, total, paid_at, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var issueDate, dueDate pgtype.Date
	var subtotal, taxTotal, stampTax, total pgtype.Numeric
	err := row.Scan(
		&inv.ID, &inv.Number, &inv.ClientID, &inv.ProformaID, &issueDate, &dueDate, &inv.Status,
		&inv.PaymentType, &inv.Notes, &subtotal, &taxTotal, &stampTax, &total, &inv.PaidAt,
		&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if issueDate.Valid {
		inv.IssueDate = issueDate.Time
	}
	if dueDate.Valid {
		inv.DueDate = dueDate.Time
	}
	inv.Subtotal = db.DecimalFromNumeric(subtotal)
	inv.TaxTotal = db.DecimalFromNumeric(taxTotal)
	inv.StampTax = db.DecimalFromNumeric(stampTax)
	inv.Total = db.DecimalFromNumeric(total)
	return &inv, nil
}

func (r *repository) loadLines(ctx context.Context, invoiceID int64) ([]proformas.Line, error) {
	query := `SELECT id, proforma_id, invoice_id, product_id, description, quantity,
		unit_price, tax_rate, discount_pct, total_excl, tax_amount, total, line_order, created_at, updated_at
		FROM document_lines WHERE invoice_id = $1 ORDER BY line_order, id`
	rows, err := r.db.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []proformas.Line
	for rows.Next() {
		l, err := proformas.ScanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	inv, err := scanInvoice(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	inv.Lines, err = r.loadLines(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *repository) GetByNumber(ctx context.Context, number string) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE number = $1`
	inv, err := scanInvoice(r.db.QueryRow(ctx, query, number))
	if err != nil {
		return nil, err
	}
	inv.Lines, err = r.loadLines(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *repository) List(ctx context.Context, req ListInvoicesRequest) ([]WithDetails, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if req.ClientID != nil {
		conditions = append(conditions, fmt.Sprintf("i.client_id = $%d", argPos))
		args = append(args, *req.ClientID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("i.status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("i.issue_date >= $%d", argPos))
		args = append(args, *req.DateFrom)
		argPos++
	}
	if req.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("i.issue_date <= $%d", argPos))
		args = append(args, *req.DateTo)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM invoices i %s", whereClause)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
		SELECT i.id, i.number, i.client_id, i.proforma_id, i.issue_date, i.due_date, i.status,
		       i.payment_type, i.notes, i.subtotal, i.tax_total, i.stamp_tax, i.total, i.paid_at,
		       i.created_by, i.created_at, i.updated_at,
		       c.name AS client_name,
		       p.number AS proforma_number
		FROM invoices i
		JOIN clients c ON i.client_id = c.id
		LEFT JOIN proformas p ON i.proforma_id = p.id
		%s
		ORDER BY i.issue_date DESC, i.id DESC
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
		var issueDate, dueDate pgtype.Date
		var subtotal, taxTotal, stampTax, totalAmt pgtype.Numeric
		err := rows.Scan(
			&d.ID, &d.Number, &d.ClientID, &d.ProformaID, &issueDate, &dueDate, &d.Status,
			&d.PaymentType, &d.Notes, &subtotal, &taxTotal, &stampTax, &totalAmt, &d.PaidAt,
			&d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
			&d.ClientName, &d.ProformaNumber,
		)
		if err != nil {
			return nil, 0, err
		}
		if issueDate.Valid {
			d.IssueDate = issueDate.Time
		}
		if dueDate.Valid {
			d.DueDate = dueDate.Time
		}
		d.Subtotal = db.DecimalFromNumeric(subtotal)
		d.TaxTotal = db.DecimalFromNumeric(taxTotal)
		d.StampTax = db.DecimalFromNumeric(stampTax)
		d.Total = db.DecimalFromNumeric(totalAmt)
		out = append(out, d)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, inv Invoice) (int64, error) {
	query := `
		INSERT INTO invoices (
			number, client_id, proforma_id, issue_date, due_date, status, payment_type, notes,
			subtotal, tax_total, stamp_tax, total, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query,
		inv.Number, inv.ClientID, inv.ProformaID, inv.IssueDate, inv.DueDate, inv.Status,
		inv.PaymentType, inv.Notes,
		db.NumericFromDecimal(inv.Subtotal), db.NumericFromDecimal(inv.TaxTotal),
		db.NumericFromDecimal(inv.StampTax), db.NumericFromDecimal(inv.Total), inv.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert invoice: %w", err)
	}
	return id, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status, paidAt *time.Time) error {
	query := `UPDATE invoices SET status = $1, paid_at = $2, updated_at = now() WHERE id = $3`
	tag, err := r.db.Exec(ctx, query, status, paidAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	period := date.Format("0601")
	query := `
		INSERT INTO document_sequences (doc_type, period, seq)
		VALUES ('invoice', $1, 1)
		ON CONFLICT (doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq`
	var seq int
	if err := r.db.QueryRow(ctx, query, period).Scan(&seq); err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%s-%04d", period, seq), nil
}

// GetProformaForUpdate loads a proforma row with a row lock so concurrent
// conversions of the same proforma serialize on the precondition check.
func (r *repository) GetProformaForUpdate(ctx context.Context, proformaID int64) (*proformas.Proforma, error) {
	query := `SELECT id, number, client_id, issue_date, due_date, status, payment_type, notes,
		subtotal, tax_total, stamp_tax, total, final_invoice_id, created_by, created_at, updated_at
		FROM proformas WHERE id = $1 FOR UPDATE`
	var p proformas.Proforma
	var issueDate, dueDate pgtype.Date
	var subtotal, taxTotal, stampTax, total pgtype.Numeric
	err := r.db.QueryRow(ctx, query, proformaID).Scan(
		&p.ID, &p.Number, &p.ClientID, &issueDate, &dueDate, &p.Status, &p.PaymentType, &p.Notes,
		&subtotal, &taxTotal, &stampTax, &total, &p.FinalInvoiceID, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, proformas.ErrNotFound
		}
		return nil, err
	}
	if issueDate.Valid {
		p.IssueDate = issueDate.Time
	}
	if dueDate.Valid {
		p.DueDate = dueDate.Time
	}
	p.Subtotal = db.DecimalFromNumeric(subtotal)
	p.TaxTotal = db.DecimalFromNumeric(taxTotal)
	p.StampTax = db.DecimalFromNumeric(stampTax)
	p.Total = db.DecimalFromNumeric(total)
	return &p, nil
}

// ReassignLines points the proforma's line items at the invoice without
// duplicating them. Returns the number of lines moved.
func (r *repository) ReassignLines(ctx context.Context, proformaID, invoiceID int64) (int64, error) {
	query := `UPDATE document_lines SET invoice_id = $1, updated_at = now() WHERE proforma_id = $2`
	tag, err := r.db.Exec(ctx, query, invoiceID, proformaID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ReleaseLines detaches all line items from an invoice. The proforma_id on
// each line is untouched, so the lines fall back to their source proforma.
func (r *repository) ReleaseLines(ctx context.Context, invoiceID int64) error {
	query := `UPDATE document_lines SET invoice_id = NULL, updated_at = now() WHERE invoice_id = $1`
	_, err := r.db.Exec(ctx, query, invoiceID)
	return err
}

func (r *repository) LinkProforma(ctx context.Context, proformaID, invoiceID int64) error {
	query := `UPDATE proformas SET final_invoice_id = $1, updated_at = now() WHERE id = $2`
	tag, err := r.db.Exec(ctx, query, invoiceID, proformaID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return proformas.ErrNotFound
	}
	return nil
}

func (r *repository) UnlinkProforma(ctx context.Context, proformaID int64) error {
	query := `UPDATE proformas SET final_invoice_id = NULL, updated_at = now() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, proformaID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return proformas.ErrNotFound
	}
	return nil
}
