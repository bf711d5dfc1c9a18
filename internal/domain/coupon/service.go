package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Service implements coupon administration.
type Service struct {
	repo  Repository
	guard *BloomGuard
}

// NewService creates a Service. guard may be nil.
func NewService(repo Repository, guard *BloomGuard) *Service {
	return &Service{repo: repo, guard: guard}
}

// List returns every coupon, newest first.
func (s *Service) List(ctx context.Context) ([]Coupon, error) {
	return s.repo.List(ctx)
}

// Create validates and stores a new coupon. The code is stored upper-case.
func (s *Service) Create(ctx context.Context, c *Coupon) error {
	c.Code = NormalizeCode(c.Code)
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return errors.Wrap(err, "create coupon")
	}
	if s.guard != nil {
		s.guard.Add(c.Code)
	}
	return nil
}

// Update replaces the definition of an existing coupon. The usage counter is
// left untouched.
func (s *Service) Update(ctx context.Context, c *Coupon) error {
	c.Code = NormalizeCode(c.Code)
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return errors.Wrap(err, "update coupon")
	}
	if s.guard != nil {
		s.guard.Add(c.Code)
	}
	return nil
}

// Delete removes a coupon.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// SetActive toggles whether a coupon can be redeemed.
func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	return s.repo.SetActive(ctx, id, active)
}
