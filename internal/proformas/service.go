package proformas

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fakturo/fakturo/internal/clients"
	"github.com/fakturo/fakturo/internal/money"
	"github.com/fakturo/fakturo/internal/platform/httpx"
	"github.com/fakturo/fakturo/internal/products"
)

// ErrInvalidStatus indicates a status-machine precondition was violated.
var ErrInvalidStatus = httpx.ErrInvalidTransition

// Service provides proforma business logic.
type Service struct {
	repo        Repository
	clientRepo  clients.Repository
	productRepo products.Repository
}

// NewService constructs a Service.
func NewService(repo Repository, clientRepo clients.Repository, productRepo products.Repository) *Service {
	return &Service{repo: repo, clientRepo: clientRepo, productRepo: productRepo}
}

// buildLines snapshots product price/tax into lines and computes derived
// amounts. Inputs are validated before anything is persisted.
func (s *Service) buildLines(ctx context.Context, reqs []LineRequest) ([]Line, error) {
	lines := make([]Line, 0, len(reqs))
	for i, lr := range reqs {
		product, err := s.productRepo.Get(ctx, lr.ProductID)
		if err != nil {
			return nil, fmt.Errorf("verify product %d: %w", lr.ProductID, err)
		}

		ml := money.Line{
			Quantity:    lr.Quantity,
			UnitPrice:   product.UnitPrice,
			DiscountPct: lr.DiscountPct,
			TaxRate:     product.TaxRate,
		}
		if err := ml.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		totalExcl, taxAmount, total := money.LineTotals(ml)

		line := Line{
			ProductID:   lr.ProductID,
			Description: lr.Description,
			Quantity:    lr.Quantity,
			UnitPrice:   product.UnitPrice,
			TaxRate:     product.TaxRate,
			DiscountPct: lr.DiscountPct,
			TotalExcl:   totalExcl,
			TaxAmount:   taxAmount,
			Total:       total,
			LineOrder:   lr.LineOrder,
		}
		if line.LineOrder == 0 {
			line.LineOrder = i + 1
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Create builds a new DRAFT proforma with computed totals.
func (s *Service) Create(ctx context.Context, req CreateProformaRequest, createdBy int64) (*Proforma, error) {
	if req.DueDate.Before(req.IssueDate) {
		return nil, fmt.Errorf("%w: due_date must not precede issue_date", httpx.ErrValidation)
	}
	if !req.PaymentType.IsValid() {
		return nil, fmt.Errorf("%w: unknown payment type %q", httpx.ErrValidation, req.PaymentType)
	}

	if _, err := s.clientRepo.Get(ctx, req.ClientID); err != nil {
		return nil, fmt.Errorf("verify client: %w", err)
	}

	lines, err := s.buildLines(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	subtotal, taxTotal := sumLines(lines)
	stampTax := money.StampDuty(subtotal, req.PaymentType)

	number, err := s.repo.GenerateNumber(ctx, req.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("generate proforma number: %w", err)
	}

	proforma := Proforma{
		Number:      number,
		ClientID:    req.ClientID,
		IssueDate:   req.IssueDate,
		DueDate:     req.DueDate,
		Status:      StatusDraft,
		PaymentType: req.PaymentType,
		Notes:       req.Notes,
		Subtotal:    subtotal,
		TaxTotal:    taxTotal,
		StampTax:    stampTax,
		Total:       money.GrandTotal(subtotal, taxTotal, stampTax),
		CreatedBy:   createdBy,
	}

	var proformaID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.Create(ctx, proforma)
		if err != nil {
			return fmt.Errorf("create proforma: %w", err)
		}
		proformaID = id

		for _, line := range lines {
			line.ProformaID = &proformaID
			if _, err := repo.InsertLine(ctx, line); err != nil {
				return fmt.Errorf("insert proforma line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, proformaID)
}

// Update modifies a DRAFT proforma; replacing lines recomputes totals.
func (s *Service) Update(ctx context.Context, id int64, req UpdateProformaRequest) (*Proforma, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get proforma: %w", err)
	}
	if !existing.Status.CanEdit() {
		return nil, fmt.Errorf("%w: only DRAFT proformas can be updated, current status %s", ErrInvalidStatus, existing.Status)
	}

	paymentType := existing.PaymentType
	if req.PaymentType != nil {
		if !req.PaymentType.IsValid() {
			return nil, fmt.Errorf("%w: unknown payment type %q", httpx.ErrValidation, *req.PaymentType)
		}
		paymentType = *req.PaymentType
	}

	subtotal, taxTotal := existing.Subtotal, existing.TaxTotal
	var linesToInsert []Line
	if req.Lines != nil {
		linesToInsert, err = s.buildLines(ctx, *req.Lines)
		if err != nil {
			return nil, err
		}
		subtotal, taxTotal = sumLines(linesToInsert)
	}
	stampTax := money.StampDuty(subtotal, paymentType)

	updates := make(map[string]interface{})
	if req.IssueDate != nil {
		updates["issue_date"] = *req.IssueDate
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
	}
	if req.PaymentType != nil {
		updates["payment_type"] = *req.PaymentType
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	// Totals change whenever lines or payment type change.
	if req.Lines != nil || req.PaymentType != nil {
		updates["subtotal"] = subtotal.String()
		updates["tax_total"] = taxTotal.String()
		updates["stamp_tax"] = stampTax.String()
		updates["total"] = money.GrandTotal(subtotal, taxTotal, stampTax).String()
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if len(updates) > 0 {
			if err := repo.Update(ctx, id, updates); err != nil {
				return err
			}
		}
		if req.Lines != nil {
			if err := repo.DeleteLines(ctx, id); err != nil {
				return err
			}
			for _, line := range linesToInsert {
				line.ProformaID = &id
				if _, err := repo.InsertLine(ctx, line); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update proforma: %w", err)
	}

	return s.repo.Get(ctx, id)
}

// Send marks a DRAFT proforma as sent to the client.
func (s *Service) Send(ctx context.Context, id int64) (*Proforma, error) {
	return s.transition(ctx, id, StatusSent, func(p *Proforma) error {
		if !p.Status.CanSend() {
			return fmt.Errorf("%w: can only send DRAFT proformas, current status %s", ErrInvalidStatus, p.Status)
		}
		return nil
	})
}

// Approve records client approval of a SENT proforma.
func (s *Service) Approve(ctx context.Context, id int64) (*Proforma, error) {
	return s.transition(ctx, id, StatusApproved, func(p *Proforma) error {
		if !p.Status.CanDecide() {
			return fmt.Errorf("%w: can only approve SENT proformas, current status %s", ErrInvalidStatus, p.Status)
		}
		return nil
	})
}

// Reject records client rejection of a SENT proforma.
func (s *Service) Reject(ctx context.Context, id int64) (*Proforma, error) {
	return s.transition(ctx, id, StatusRejected, func(p *Proforma) error {
		if !p.Status.CanDecide() {
			return fmt.Errorf("%w: can only reject SENT proformas, current status %s", ErrInvalidStatus, p.Status)
		}
		return nil
	})
}

// UndoApprove returns an APPROVED proforma to SENT. Conversion must be undone
// first when a final invoice exists.
func (s *Service) UndoApprove(ctx context.Context, id int64) (*Proforma, error) {
	return s.transition(ctx, id, StatusSent, func(p *Proforma) error {
		if p.Status != StatusApproved {
			return fmt.Errorf("%w: proforma %s is not approved, current status %s", ErrInvalidStatus, p.Number, p.Status)
		}
		if p.Converted() {
			return fmt.Errorf("%w: proforma %s was already converted, undo the conversion first", ErrInvalidStatus, p.Number)
		}
		return nil
	})
}

func (s *Service) transition(ctx context.Context, id int64, target Status, guard func(*Proforma) error) (*Proforma, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get proforma: %w", err)
	}
	if err := guard(existing); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, target); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a proforma. Approved proformas cannot be deleted.
func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get proforma: %w", err)
	}
	if !existing.Status.CanDelete() {
		return fmt.Errorf("%w: proforma %s cannot be deleted in status %s", ErrInvalidStatus, existing.Number, existing.Status)
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.DeleteLines(ctx, id); err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
}

func (s *Service) Get(ctx context.Context, id int64) (*Proforma, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListProformasRequest) ([]WithDetails, int, error) {
	return s.repo.List(ctx, req)
}

func sumLines(lines []Line) (subtotal, taxTotal decimal.Decimal) {
	for _, l := range lines {
		subtotal = subtotal.Add(l.TotalExcl)
		taxTotal = taxTotal.Add(l.TaxAmount)
	}
	return subtotal, taxTotal
}
