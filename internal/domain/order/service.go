package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/messaging"
)

// Service implements customer order reads and back office status changes.
type Service struct {
	orders Repository
	events messaging.Publisher
}

// NewService creates an order Service.
func NewService(orders Repository, events messaging.Publisher) *Service {
	return &Service{orders: orders, events: events}
}

// ListForUser returns the user's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// GetForUser returns an order owned by userID.
func (s *Service) GetForUser(ctx context.Context, userID, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

// Get returns any order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// List returns orders matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, errors.Wrapf(ErrInvalidStatus, "%q", f.Status)
	}
	return s.orders.List(ctx, f)
}

// SetStatus sets any enumerated status. Back office staff may correct
// mistakes, so the forward order is not enforced.
func (s *Service) SetStatus(ctx context.Context, id string, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, errors.Wrapf(ErrInvalidStatus, "%q", status)
	}
	return s.transition(ctx, id, func(*Order) (Status, error) {
		return status, nil
	})
}

// Advance moves the order to the next status of the forward flow.
func (s *Service) Advance(ctx context.Context, id string) (*Order, error) {
	return s.transition(ctx, id, func(o *Order) (Status, error) {
		next, ok := o.Status.Next()
		if !ok {
			return "", ErrTerminal
		}
		return next, nil
	})
}

// Cancel cancels a non-terminal order.
func (s *Service) Cancel(ctx context.Context, id string) (*Order, error) {
	return s.transition(ctx, id, func(o *Order) (Status, error) {
		if o.Status.Terminal() {
			return "", ErrTerminal
		}
		return StatusCancelled, nil
	})
}

// UpdateTracking records the courier tracking details.
func (s *Service) UpdateTracking(ctx context.Context, id, number, link string) (*Order, error) {
	if err := s.orders.UpdateTracking(ctx, id, number, link); err != nil {
		return nil, errors.Wrap(err, "update tracking")
	}
	return s.orders.GetByID(ctx, id)
}

func (s *Service) transition(ctx context.Context, id string, next func(*Order) (Status, error)) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	to, err := next(o)
	if err != nil {
		return nil, err
	}
	from := o.Status
	if to == from {
		return o, nil
	}

	if err := s.orders.UpdateStatus(ctx, id, to); err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	o.Status = to

	zctx.From(ctx).Info("Order status changed",
		zap.String("order_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	if err := s.events.Publish(ctx, messaging.OrderStatusChanged{
		OrderID: id,
		UserID:  o.UserID,
		From:    string(from),
		To:      string(to),
	}); err != nil {
		zctx.From(ctx).Warn("Publish status change", zap.Error(err))
	}

	return o, nil
}
