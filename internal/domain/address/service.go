package address

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Service implements address book operations for a customer.
type Service struct {
	repo Repository
}

// NewService creates an address Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the user's addresses, default first.
func (s *Service) List(ctx context.Context, userID string) ([]Address, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Get returns one of the user's addresses.
func (s *Service) Get(ctx context.Context, userID, id string) (*Address, error) {
	return s.repo.Get(ctx, userID, id)
}

// Create stores a new address. The first address of a user becomes the
// default.
func (s *Service) Create(ctx context.Context, a *Address) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if !a.IsDefault {
		existing, err := s.repo.ListByUser(ctx, a.UserID)
		if err != nil {
			return errors.Wrap(err, "list addresses")
		}
		a.IsDefault = len(existing) == 0
	}
	a.ID = uuid.New().String()
	a.CreatedAt = time.Now().UTC()

	if err := s.repo.Create(ctx, a); err != nil {
		return errors.Wrap(err, "create address")
	}
	return nil
}

// Update replaces an existing address of the user.
func (s *Service) Update(ctx context.Context, a *Address) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return errors.Wrap(err, "update address")
	}
	return nil
}

// Delete removes one of the user's addresses.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}

// Default returns the user's default address, falling back to the first
// one. It returns ErrNotFound when the user has none.
func Default(addrs []Address) (*Address, error) {
	if len(addrs) == 0 {
		return nil, ErrNotFound
	}
	for i := range addrs {
		if addrs[i].IsDefault {
			return &addrs[i], nil
		}
	}
	return &addrs[0], nil
}
