package reports

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fakturo/fakturo/internal/invoices"
)

const listPageSize = 500

// Service assembles reports from persisted invoices. Identical concurrent
// builds are deduplicated so a slow month-end export cannot pile up.
type Service struct {
	invoiceRepo invoices.Repository
	buildGroup  singleflight.Group
	now         func() time.Time
}

// NewService constructs a Service.
func NewService(invoiceRepo invoices.Repository) *Service {
	return &Service{invoiceRepo: invoiceRepo, now: time.Now}
}

// BuildEtat104 loads the month's final invoices and aggregates them.
func (s *Service) BuildEtat104(ctx context.Context, year int, month time.Month) (Etat104Report, error) {
	key := fmt.Sprintf("etat104:%04d-%02d", year, month)
	resultChan := s.buildGroup.DoChan(key, func() (interface{}, error) {
		return s.buildEtat104(ctx, year, month)
	})
	select {
	case <-ctx.Done():
		return Etat104Report{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return Etat104Report{}, res.Err
		}
		return res.Val.(Etat104Report), nil
	}
}

func (s *Service) buildEtat104(ctx context.Context, year int, month time.Month) (Etat104Report, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)

	var source []invoices.WithDetails
	offset := 0
	for {
		page, total, err := s.invoiceRepo.List(ctx, invoices.ListInvoicesRequest{
			DateFrom: &from,
			DateTo:   &to,
			Limit:    listPageSize,
			Offset:   offset,
		})
		if err != nil {
			return Etat104Report{}, fmt.Errorf("load invoices for %04d-%02d: %w", year, month, err)
		}
		source = append(source, page...)
		offset += len(page)
		if len(page) == 0 || offset >= total {
			break
		}
	}

	return BuildEtat104(source, year, month, s.now().UTC()), nil
}
