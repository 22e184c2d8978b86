package invoices

import (
	"context"
	"fmt"
	"time"

	"github.com/fakturo/fakturo/internal/observability"
	"github.com/fakturo/fakturo/internal/platform/httpx"
	"github.com/fakturo/fakturo/internal/proformas"
)

// ErrInvalidStatus indicates a status-machine precondition was violated.
var ErrInvalidStatus = httpx.ErrInvalidTransition

// Service provides final invoice business logic, including the conversion
// workflow from approved proformas.
type Service struct {
	repo         Repository
	proformaRepo proformas.Repository
	metrics      *observability.Metrics
	now          func() time.Time
}

// NewService constructs a Service. metrics may be nil.
func NewService(repo Repository, proformaRepo proformas.Repository, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, proformaRepo: proformaRepo, metrics: metrics, now: time.Now}
}

func (s *Service) observeConversion(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveConversion(outcome)
	}
}

// ConvertFromProforma derives a final invoice from an approved proforma.
// Number allocation, header copy, line re-association and back-link all
// commit together or not at all.
func (s *Service) ConvertFromProforma(ctx context.Context, proformaID, createdBy int64) (*ConversionResult, error) {
	var invoiceID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		p, err := repo.GetProformaForUpdate(ctx, proformaID)
		if err != nil {
			return fmt.Errorf("load proforma %d: %w", proformaID, err)
		}
		if p.Status != proformas.StatusApproved {
			return fmt.Errorf("%w: proforma %s must be approved to convert, current status %s", ErrInvalidStatus, p.Number, p.Status)
		}
		if p.Converted() {
			return fmt.Errorf("%w: proforma %s was already converted to invoice %d", ErrInvalidStatus, p.Number, *p.FinalInvoiceID)
		}

		number, err := repo.GenerateNumber(ctx, p.IssueDate)
		if err != nil {
			return fmt.Errorf("generate invoice number: %w", err)
		}

		invoiceID, err = repo.Create(ctx, Invoice{
			Number:      number,
			ClientID:    p.ClientID,
			ProformaID:  &p.ID,
			IssueDate:   p.IssueDate,
			DueDate:     p.DueDate,
			Status:      StatusUnpaid,
			PaymentType: p.PaymentType,
			Notes:       p.Notes,
			Subtotal:    p.Subtotal,
			TaxTotal:    p.TaxTotal,
			StampTax:    p.StampTax,
			Total:       p.Total,
			CreatedBy:   createdBy,
		})
		if err != nil {
			return err
		}

		moved, err := repo.ReassignLines(ctx, p.ID, invoiceID)
		if err != nil {
			return fmt.Errorf("reassign lines: %w", err)
		}
		if moved == 0 {
			return fmt.Errorf("%w: proforma %s has no line items to convert", httpx.ErrValidation, p.Number)
		}

		if err := repo.LinkProforma(ctx, p.ID, invoiceID); err != nil {
			return fmt.Errorf("link proforma: %w", err)
		}
		return nil
	})
	if err != nil {
		s.observeConversion("failed")
		return nil, err
	}
	s.observeConversion("converted")

	return s.loadResult(ctx, proformaID, invoiceID)
}

// UndoConvert deletes the invoice derived from a proforma and restores the
// line items to the proforma alone. The proforma stays approved.
func (s *Service) UndoConvert(ctx context.Context, proformaID int64) (*proformas.Proforma, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		p, err := repo.GetProformaForUpdate(ctx, proformaID)
		if err != nil {
			return fmt.Errorf("load proforma %d: %w", proformaID, err)
		}
		if !p.Converted() {
			return fmt.Errorf("%w: proforma %s has no final invoice to undo", ErrInvalidStatus, p.Number)
		}
		invoiceID := *p.FinalInvoiceID

		inv, err := repo.Get(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("load invoice %d: %w", invoiceID, err)
		}
		if inv.Status != StatusUnpaid {
			return fmt.Errorf("%w: invoice %s is %s, only unpaid invoices can be removed", ErrInvalidStatus, inv.Number, inv.Status)
		}

		if err := repo.ReleaseLines(ctx, invoiceID); err != nil {
			return fmt.Errorf("release lines: %w", err)
		}
		if err := repo.UnlinkProforma(ctx, proformaID); err != nil {
			return fmt.Errorf("unlink proforma: %w", err)
		}
		if err := repo.Delete(ctx, invoiceID); err != nil {
			return fmt.Errorf("delete invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.observeConversion("undone")

	return s.proformaRepo.Get(ctx, proformaID)
}

// MarkPaid records payment of an unpaid invoice.
func (s *Service) MarkPaid(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if !inv.Status.CanMarkPaid() {
		return nil, fmt.Errorf("%w: invoice %s cannot be paid in status %s", ErrInvalidStatus, inv.Number, inv.Status)
	}
	paidAt := s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, StatusPaid, &paidAt); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListInvoicesRequest) ([]WithDetails, int, error) {
	return s.repo.List(ctx, req)
}

func (s *Service) loadResult(ctx context.Context, proformaID, invoiceID int64) (*ConversionResult, error) {
	inv, err := s.repo.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	p, err := s.proformaRepo.Get(ctx, proformaID)
	if err != nil {
		return nil, err
	}
	return &ConversionResult{Proforma: p, Invoice: inv}, nil
}
