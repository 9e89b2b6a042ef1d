package clients

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("client not found")

type Service struct {
	clients Repository
}

func NewService(clients Repository) *Service {
	return &Service{clients: clients}
}

func (s *Service) Create(ctx context.Context, req CreateClientRequest) (*Client, error) {
	if req.CompanyName == "" {
		return nil, fmt.Errorf("company_name is required")
	}

	cl := &Client{
		CompanyName: req.CompanyName,
		ContactName: req.ContactName,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		Status:      StatusActive,
		Notes:       req.Notes,
	}
	if err := s.clients.Create(ctx, cl); err != nil {
		return nil, err
	}
	return cl, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Client, error) {
	cl, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	return cl, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Client, int, error) {
	return s.clients.List(ctx, f)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateClientRequest) (*Client, error) {
	cl, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}

	if req.CompanyName != nil {
		if *req.CompanyName == "" {
			return nil, fmt.Errorf("company_name cannot be empty")
		}
		cl.CompanyName = *req.CompanyName
	}
	if req.ContactName != nil {
		cl.ContactName = req.ContactName
	}
	if req.Email != nil {
		cl.Email = req.Email
	}
	if req.Phone != nil {
		cl.Phone = req.Phone
	}
	if req.Address != nil {
		cl.Address = req.Address
	}
	if req.Status != nil {
		if *req.Status != StatusActive && *req.Status != StatusInactive {
			return nil, fmt.Errorf("invalid status: %s", *req.Status)
		}
		cl.Status = *req.Status
	}
	if req.Notes != nil {
		cl.Notes = req.Notes
	}

	if err := s.clients.Update(ctx, cl); err != nil {
		return nil, err
	}
	return cl, nil
}

// Deactivate marks a client inactive. Orders and devices keep referencing
// the row by id, so it is never removed.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if _, err := s.clients.GetByID(ctx, id); err != nil {
		return ErrNotFound
	}
	return s.clients.Deactivate(ctx, id)
}
