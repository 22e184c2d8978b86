package proformas

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

// ErrNotFound indicates the proforma does not exist.
var ErrNotFound = errors.New("proforma not found")

// Repository persists proformas and their lines.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Proforma, error)
	GetByNumber(ctx context.Context, number string) (*Proforma, error)
	List(ctx context.Context, req ListProformasRequest) ([]WithDetails, int, error)
	Create(ctx context.Context, p Proforma) (int64, error)
	InsertLine(ctx context.Context, line Line) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	Delete(ctx context.Context, id int64) error
	DeleteLines(ctx context.Context, proformaID int64) error
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

const proformaColumns = `id, number, client_id, issue_date, due_date, status, payment_type, notes,
	subtotal, tax_total, stamp_tax, total, final_invoice_id, created_by, created_at, updated_at`

func scanProforma(row pgx.Row) (*Proforma, error) {
	var p Proforma
	var issueDate, dueDate pgtype.Date
	var subtotal, taxTotal, stampTax, total pgtype.Numeric
	err := row.Scan(
		&p.ID, &p.Number, &p.ClientID, &issueDate, &dueDate, &p.Status, &p.PaymentType, &p.Notes,
		&subtotal, &taxTotal, &stampTax, &total, &p.FinalInvoiceID, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
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

const lineColumns = `id, proforma_id, invoice_id, product_id, description, quantity,
	unit_price, tax_rate, discount_pct, total_excl, tax_amount, total, line_order, created_at, updated_at`

// ScanLine reads one document line row. Shared with the invoices repository,
// which reads the same table through the invoice_id column.
func ScanLine(row pgx.Row) (Line, error) {
	var l Line
	var unitPrice, taxRate, discountPct, totalExcl, taxAmount, total pgtype.Numeric
	err := row.Scan(
		&l.ID, &l.ProformaID, &l.InvoiceID, &l.ProductID, &l.Description, &l.Quantity,
		&unitPrice, &taxRate, &discountPct, &totalExcl, &taxAmount, &total, &l.LineOrder,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return Line{}, err
	}
	l.UnitPrice = db.DecimalFromNumeric(unitPrice)
	l.TaxRate = db.DecimalFromNumeric(taxRate)
	l.DiscountPct = db.DecimalFromNumeric(discountPct)
	l.TotalExcl = db.DecimalFromNumeric(totalExcl)
	l.TaxAmount = db.DecimalFromNumeric(taxAmount)
	l.Total = db.DecimalFromNumeric(total)
	return l, nil
}

func (r *repository) loadLines(ctx context.Context, proformaID int64) ([]Line, error) {
	query := `SELECT ` + lineColumns + ` FROM document_lines WHERE proforma_id = $1 ORDER BY line_order, id`
	rows, err := r.db.Query(ctx, query, proformaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		l, err := ScanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Proforma, error) {
	query := `SELECT ` + proformaColumns + ` FROM proformas WHERE id = $1`
	p, err := scanProforma(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	p.Lines, err = r.loadLines(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repository) GetByNumber(ctx context.Context, number string) (*Proforma, error) {
	query := `SELECT ` + proformaColumns + ` FROM proformas WHERE number = $1`
	p, err := scanProforma(r.db.QueryRow(ctx, query, number))
	if err != nil {
		return nil, err
	}
	p.Lines, err = r.loadLines(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repository) List(ctx context.Context, req ListProformasRequest) ([]WithDetails, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if req.ClientID != nil {
		conditions = append(conditions, fmt.Sprintf("p.client_id = $%d", argPos))
		args = append(args, *req.ClientID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("p.issue_date >= $%d", argPos))
		args = append(args, *req.DateFrom)
		argPos++
	}
	if req.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("p.issue_date <= $%d", argPos))
		args = append(args, *req.DateTo)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM proformas p %s", whereClause)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
		SELECT p.id, p.number, p.client_id, p.issue_date, p.due_date, p.status, p.payment_type, p.notes,
		       p.subtotal, p.tax_total, p.stamp_tax, p.total, p.final_invoice_id, p.created_by,
		       p.created_at, p.updated_at,
		       c.name AS client_name,
		       i.number AS final_invoice_number
		FROM proformas p
		JOIN clients c ON p.client_id = c.id
		LEFT JOIN invoices i ON p.final_invoice_id = i.id
		%s
		ORDER BY p.issue_date DESC, p.id DESC
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
			&d.ID, &d.Number, &d.ClientID, &issueDate, &dueDate, &d.Status, &d.PaymentType, &d.Notes,
			&subtotal, &taxTotal, &stampTax, &totalAmt, &d.FinalInvoiceID, &d.CreatedBy,
			&d.CreatedAt, &d.UpdatedAt,
			&d.ClientName, &d.FinalInvoiceNumber,
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

func (r *repository) Create(ctx context.Context, p Proforma) (int64, error) {
	query := `
		INSERT INTO proformas (
			number, client_id, issue_date, due_date, status, payment_type, notes,
			subtotal, tax_total, stamp_tax, total, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query,
		p.Number, p.ClientID, p.IssueDate, p.DueDate, p.Status, p.PaymentType, p.Notes,
		db.NumericFromDecimal(p.Subtotal), db.NumericFromDecimal(p.TaxTotal),
		db.NumericFromDecimal(p.StampTax), db.NumericFromDecimal(p.Total), p.CreatedBy,
	).Scan(&id)
	return id, err
}

func (r *repository) InsertLine(ctx context.Context, line Line) (int64, error) {
	query := `
		INSERT INTO document_lines (
			proforma_id, invoice_id, product_id, description, quantity,
			unit_price, tax_rate, discount_pct, total_excl, tax_amount, total, line_order
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query,
		line.ProformaID, line.InvoiceID, line.ProductID, line.Description, line.Quantity,
		db.NumericFromDecimal(line.UnitPrice), db.NumericFromDecimal(line.TaxRate),
		db.NumericFromDecimal(line.DiscountPct), db.NumericFromDecimal(line.TotalExcl),
		db.NumericFromDecimal(line.TaxAmount), db.NumericFromDecimal(line.Total), line.LineOrder,
	).Scan(&id)
	return id, err
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	allowed := map[string]bool{
		"issue_date": true, "due_date": true, "payment_type": true, "notes": true,
		"subtotal": true, "tax_total": true, "stamp_tax": true, "total": true,
	}

	var setClauses []string
	var args []interface{}
	argPos := 1
	for field, value := range updates {
		if !allowed[field] {
			return fmt.Errorf("proformas: column %q is not updatable", field)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field, argPos))
		args = append(args, value)
		argPos++
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE proformas SET %s WHERE id = $%d`, strings.Join(setClauses, ", "), argPos)
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE proformas SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM proformas WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) DeleteLines(ctx context.Context, proformaID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_lines WHERE proforma_id = $1`, proformaID)
	return err
}

// GenerateNumber allocates the next sequential proforma number, PF-{YYMM}-{SEQ}.
func (r *repository) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	period := date.Format("0601")
	query := `
		INSERT INTO document_sequences (doc_type, period, seq)
		VALUES ('proforma', $1, 1)
		ON CONFLICT (doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq`
	var seq int
	if err := r.db.QueryRow(ctx, query, period).Scan(&seq); err != nil {
		return "", err
	}
	return fmt.Sprintf("PF-%s-%04d", period, seq), nil
}
