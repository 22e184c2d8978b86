package clients

import (
	"context"
	"errors"
	"strings"
)

// Service provides client business logic.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id int64) (*Client, error) {
	if id <= 0 {
		return nil, errors.New("invalid client ID")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListClientsRequest) ([]Client, int, error) {
	return s.repo.List(ctx, req)
}

func (s *Service) Create(ctx context.Context, form ClientForm) (*Client, error) {
	if strings.TrimSpace(form.Name) == "" {
		return nil, errors.New("client name is required")
	}
	id, err := s.repo.Create(ctx, clientFromForm(form))
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, form ClientForm) (*Client, error) {
	if id <= 0 {
		return nil, errors.New("invalid client ID")
	}
	if strings.TrimSpace(form.Name) == "" {
		return nil, errors.New("client name is required")
	}
	if err := s.repo.Update(ctx, id, clientFromForm(form)); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("invalid client ID")
	}
	return s.repo.Delete(ctx, id)
}

func clientFromForm(form ClientForm) Client {
	return Client{
		Name:    strings.TrimSpace(form.Name),
		Address: form.Address,
		TaxID:   form.TaxID,
		Phone:   form.Phone,
		Email:   form.Email,
		Country: form.Country,
		City:    form.City,
	}
}
