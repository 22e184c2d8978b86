package deliveries

import (
	"context"
	"fmt"
	"time"

	"github.com/fakturo/fakturo/internal/clients"
	"github.com/fakturo/fakturo/internal/invoices"
	"github.com/fakturo/fakturo/internal/platform/httpx"
	"github.com/fakturo/fakturo/internal/products"
)

// ErrInvalidStatus indicates a status-machine precondition was violated.
var ErrInvalidStatus = httpx.ErrInvalidTransition

// Service provides delivery note business logic.
type Service struct {
	repo        Repository
	clientRepo  clients.Repository
	productRepo products.Repository
	invoiceRepo invoices.Repository
	now         func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, clientRepo clients.Repository, productRepo products.Repository, invoiceRepo invoices.Repository) *Service {
	return &Service{
		repo:        repo,
		clientRepo:  clientRepo,
		productRepo: productRepo,
		invoiceRepo: invoiceRepo,
		now:         time.Now,
	}
}

func (s *Service) buildLines(ctx context.Context, reqs []LineRequest) ([]Line, error) {
	lines := make([]Line, 0, len(reqs))
	for i, lr := range reqs {
		if _, err := s.productRepo.Get(ctx, lr.ProductID); err != nil {
			return nil, fmt.Errorf("verify product %d: %w", lr.ProductID, err)
		}
		line := Line{
			ProductID:   lr.ProductID,
			Description: lr.Description,
			Quantity:    lr.Quantity,
			LineOrder:   lr.LineOrder,
		}
		if line.LineOrder == 0 {
			line.LineOrder = i + 1
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Create builds a new PENDING delivery note.
func (s *Service) Create(ctx context.Context, req CreateDeliveryNoteRequest, createdBy int64) (*DeliveryNote, error) {
	if _, err := s.clientRepo.Get(ctx, req.ClientID); err != nil {
		return nil, fmt.Errorf("verify client: %w", err)
	}
	if req.FinalInvoiceID != nil {
		if _, err := s.invoiceRepo.Get(ctx, *req.FinalInvoiceID); err != nil {
			return nil, fmt.Errorf("verify invoice: %w", err)
		}
	}

	lines, err := s.buildLines(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	number, err := s.repo.GenerateNumber(ctx, req.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("generate delivery note number: %w", err)
	}

	note := DeliveryNote{
		Number:         number,
		ClientID:       req.ClientID,
		FinalInvoiceID: req.FinalInvoiceID,
		IssueDate:      req.IssueDate,
		Status:         StatusPending,
		DriverName:     req.DriverName,
		VehicleReg:     req.VehicleReg,
		TrackingRef:    req.TrackingRef,
		Notes:          req.Notes,
		CreatedBy:      createdBy,
	}

	var noteID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.Create(ctx, note)
		if err != nil {
			return err
		}
		noteID = id
		for _, line := range lines {
			line.DeliveryNoteID = noteID
			if _, err := repo.InsertLine(ctx, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, noteID)
}

// Update modifies a PENDING delivery note.
func (s *Service) Update(ctx context.Context, id int64, req UpdateDeliveryNoteRequest) (*DeliveryNote, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get delivery note: %w", err)
	}
	if !existing.Status.CanEdit() {
		return nil, fmt.Errorf("%w: only PENDING delivery notes can be updated, current status %s", ErrInvalidStatus, existing.Status)
	}

	var linesToInsert []Line
	if req.Lines != nil {
		linesToInsert, err = s.buildLines(ctx, *req.Lines)
		if err != nil {
			return nil, err
		}
	}

	updates := make(map[string]interface{})
	if req.IssueDate != nil {
		updates["issue_date"] = *req.IssueDate
	}
	if req.DriverName != nil {
		updates["driver_name"] = *req.DriverName
	}
	if req.VehicleReg != nil {
		updates["vehicle_reg"] = *req.VehicleReg
	}
	if req.TrackingRef != nil {
		updates["tracking_ref"] = *req.TrackingRef
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
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
				line.DeliveryNoteID = id
				if _, err := repo.InsertLine(ctx, line); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update delivery note: %w", err)
	}

	return s.repo.Get(ctx, id)
}

// MarkDelivered records goods receipt and stamps the delivery date.
func (s *Service) MarkDelivered(ctx context.Context, id int64) (*DeliveryNote, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get delivery note: %w", err)
	}
	if !existing.Status.CanMarkDelivered() {
		return nil, fmt.Errorf("%w: delivery note %s cannot be delivered in status %s", ErrInvalidStatus, existing.Number, existing.Status)
	}
	deliveredAt := s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, StatusDelivered, &deliveredAt); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Cancel calls off a pending shipment.
func (s *Service) Cancel(ctx context.Context, id int64) (*DeliveryNote, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get delivery note: %w", err)
	}
	if !existing.Status.CanCancel() {
		return nil, fmt.Errorf("%w: delivery note %s cannot be cancelled in status %s", ErrInvalidStatus, existing.Number, existing.Status)
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusCancelled, nil); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a delivery note. Delivered notes are kept for the record.
func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get delivery note: %w", err)
	}
	if existing.Status == StatusDelivered {
		return fmt.Errorf("%w: delivery note %s was delivered and cannot be deleted", ErrInvalidStatus, existing.Number)
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.DeleteLines(ctx, id); err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
}

func (s *Service) Get(ctx context.Context, id int64) (*DeliveryNote, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListDeliveryNotesRequest) ([]WithDetails, int, error) {
	return s.repo.List(ctx, req)
}
