package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrNotFound = errors.New("order not found")

// StateError reports a refused status change. Handlers return its message
// verbatim with a 400.
type StateError struct {
	Message string
}

func (e *StateError) Error() string { return e.Message }

type Service struct {
	orders Repository
}

func NewService(orders Repository) *Service {
	return &Service{orders: orders}
}

// nextOrderNo allocates the next order number for the current year,
// formatted ORD-{year}-NNNN. Numbering restarts at 0001 each January, the
// same way the lab numbers its invoices.
func (s *Service) nextOrderNo(ctx context.Context) (string, error) {
	prefix := fmt.Sprintf("ORD-%d-", time.Now().Year())

	last, err := s.orders.LastOrderNoForYear(ctx, prefix+"%")
	if err != nil {
		return "", fmt.Errorf("look up last order number: %w", err)
	}

	next := 1
	if last != "" {
		if n, err := strconv.Atoi(last[strings.LastIndex(last, "-")+1:]); err == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, next), nil
}

// Create stores a new order in status pending with a freshly allocated order
// number, and seeds the history with the pending row. Both writes commit
// together.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest, createdBy int64) (*Order, error) {
	if req.ClientID == 0 {
		return nil, fmt.Errorf("client_id is required")
	}
	if req.ClientName == "" {
		return nil, fmt.Errorf("client_name is required")
	}
	if req.Quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1")
	}

	orderNo, err := s.nextOrderNo(ctx)
	if err != nil {
		return nil, err
	}

	o := &Order{
		OrderNo:     orderNo,
		ClientID:    req.ClientID,
		ClientName:  req.ClientName,
		Description: req.Description,
		Quantity:    req.Quantity,
		Status:      StatusPending,
		Notes:       req.Notes,
		CreatedBy:   createdBy,
	}

	err = s.orders.Transact(ctx, func(txRepo Repository) error {
		if err := txRepo.Create(ctx, o); err != nil {
			return err
		}
		return txRepo.AppendStatusChange(ctx, &StatusChange{
			OrderID:   o.ID,
			Status:    StatusPending,
			ChangedBy: createdBy,
		})
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Order, int, error) {
	return s.orders.List(ctx, f)
}

// Update edits the order's describable fields. Terminal orders are frozen.
func (s *Service) Update(ctx context.Context, id int64, req UpdateOrderRequest) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if terminalStatus(o.Status) {
		return nil, &StateError{Message: fmt.Sprintf("cannot edit a %s order", o.Status)}
	}

	if req.Description != nil {
		o.Description = req.Description
	}
	if req.Quantity != nil {
		if *req.Quantity < 1 {
			return nil, fmt.Errorf("quantity must be at least 1")
		}
		o.Quantity = *req.Quantity
	}
	if req.Notes != nil {
		o.Notes = req.Notes
	}

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// ChangeStatus moves an order to a new status and appends the history row in
// the same transaction.
func (s *Service) ChangeStatus(ctx context.Context, id int64, status string, changedBy int64, note *string) (*Order, error) {
	if !validStatus(status) {
		return nil, &StateError{Message: fmt.Sprintf("invalid status: %s", status)}
	}

	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if o.Status == status {
		return nil, &StateError{Message: fmt.Sprintf("order is already %s", status)}
	}
	if terminalStatus(o.Status) {
		return nil, &StateError{Message: fmt.Sprintf("cannot change status of a %s order", o.Status)}
	}

	o.Status = status
	err = s.orders.Transact(ctx, func(txRepo Repository) error {
		if err := txRepo.Update(ctx, o); err != nil {
			return err
		}
		return txRepo.AppendStatusChange(ctx, &StatusChange{
			OrderID:   o.ID,
			Status:    status,
			ChangedBy: changedBy,
			Note:      note,
		})
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// History returns the order's status changes, oldest first.
func (s *Service) History(ctx context.Context, id int64) ([]*StatusChange, error) {
	if _, err := s.orders.GetByID(ctx, id); err != nil {
		return nil, ErrNotFound
	}
	return s.orders.ListStatusChanges(ctx, id)
}

// Delete removes an order outright. Only pending orders qualify; anything
// further along is part of the operational record.
func (s *Service) Delete(ctx context.Context, id int64) error {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if o.Status != StatusPending {
		return &StateError{Message: fmt.Sprintf("only pending orders can be deleted, this one is %s", o.Status)}
	}
	return s.orders.Delete(ctx, id)
}
