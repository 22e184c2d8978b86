package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fakturo/fakturo/internal/platform/httpx"
)

// Service provides product business logic.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("%w: product code is required", httpx.ErrValidation)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name is required", httpx.ErrValidation)
	}
	if p.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: unit price must not be negative", httpx.ErrValidation)
	}
	if p.TaxRate.IsNegative() {
		return fmt.Errorf("%w: tax rate must not be negative", httpx.ErrValidation)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	if id <= 0 {
		return nil, errors.New("invalid product ID")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListProductsRequest) ([]Product, int, error) {
	return s.repo.List(ctx, req)
}

func (s *Service) Create(ctx context.Context, form ProductForm) (*Product, error) {
	p := productFromForm(form)
	if err := s.validate(p); err != nil {
		return nil, err
	}
	id, err := s.repo.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, form ProductForm) (*Product, error) {
	if id <= 0 {
		return nil, errors.New("invalid product ID")
	}
	p := productFromForm(form)
	if err := s.validate(p); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, id, p); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("invalid product ID")
	}
	return s.repo.Delete(ctx, id)
}

func productFromForm(form ProductForm) Product {
	return Product{
		Code:        strings.TrimSpace(form.Code),
		Name:        strings.TrimSpace(form.Name),
		Description: form.Description,
		UnitPrice:   form.UnitPrice,
		TaxRate:     form.TaxRate,
		Stock:       form.Stock,
	}
}
