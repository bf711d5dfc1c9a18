package coupon

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	coupons map[string]*Coupon
	err     error

	lookups int
	created []*Coupon
}

func newMockCouponRepo(coupons ...*Coupon) *mockCouponRepo {
	m := &mockCouponRepo{coupons: make(map[string]*Coupon)}
	for _, c := range coupons {
		m.coupons[strings.ToUpper(c.Code)] = c
	}
	return m
}

func (m *mockCouponRepo) FindActiveByCode(_ context.Context, code string) (*Coupon, error) {
	m.lookups++
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.coupons[strings.ToUpper(code)]
	if !ok || !c.Active {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *mockCouponRepo) ListCodes(_ context.Context) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	codes := make([]string, 0, len(m.coupons))
	for code := range m.coupons {
		codes = append(codes, code)
	}
	return codes, nil
}

func (m *mockCouponRepo) IncrementUses(_ context.Context, code string) error {
	c, ok := m.coupons[code]
	if !ok {
		return ErrNotFound
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return ErrUsageExceeded
	}
	c.UsedCount++
	return nil
}

func (m *mockCouponRepo) List(_ context.Context) ([]Coupon, error) {
	var out []Coupon
	for _, c := range m.coupons {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockCouponRepo) Create(_ context.Context, c *Coupon) error {
	m.created = append(m.created, c)
	m.coupons[c.Code] = c
	return nil
}

func (m *mockCouponRepo) Update(_ context.Context, c *Coupon) error {
	m.coupons[c.Code] = c
	return nil
}

func (m *mockCouponRepo) Delete(_ context.Context, id string) error {
	for code, c := range m.coupons {
		if c.ID == id {
			delete(m.coupons, code)
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockCouponRepo) SetActive(_ context.Context, id string, active bool) error {
	for _, c := range m.coupons {
		if c.ID == id {
			c.Active = active
			return nil
		}
	}
	return ErrNotFound
}

func TestEvaluator_Evaluate(t *testing.T) {
	ctx := context.Background()
	repo := newMockCouponRepo(&Coupon{
		Code:         "SAVE10",
		DiscountType: DiscountPercentage,
		Value:        decimal.NewFromInt(10),
		Active:       true,
	})
	e := NewEvaluator(repo)
	e.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	t.Run("case insensitive", func(t *testing.T) {
		d, err := e.Evaluate(ctx, " save10 ", decimal.NewFromInt(250))
		require.NoError(t, err)
		assert.Equal(t, "SAVE10", d.Code)
		assert.True(t, decimal.NewFromInt(25).Equal(d.Amount))
	})

	t.Run("idempotent", func(t *testing.T) {
		first, err := e.Evaluate(ctx, "SAVE10", decimal.NewFromInt(999))
		require.NoError(t, err)
		second, err := e.Evaluate(ctx, "SAVE10", decimal.NewFromInt(999))
		require.NoError(t, err)
		assert.True(t, first.Amount.Equal(second.Amount))
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := e.Evaluate(ctx, "NOPE", decimal.NewFromInt(100))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty code", func(t *testing.T) {
		_, err := e.Evaluate(ctx, "   ", decimal.NewFromInt(100))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("repository failure is wrapped", func(t *testing.T) {
		failing := NewEvaluator(&mockCouponRepo{err: errors.New("connection refused")})
		_, err := failing.Evaluate(ctx, "SAVE10", decimal.NewFromInt(100))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
		assert.Contains(t, err.Error(), "lookup coupon")
	})
}

func TestBloomGuard(t *testing.T) {
	ctx := context.Background()
	repo := newMockCouponRepo(&Coupon{
		Code:         "KNOWN",
		DiscountType: DiscountFixed,
		Value:        decimal.NewFromInt(5),
		Active:       true,
	})
	g := NewBloomGuard(repo)

	_, err := g.FindActiveByCode(ctx, "UNKNOWN")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, repo.lookups)

	require.NoError(t, g.Refresh(ctx))

	_, err = g.FindActiveByCode(ctx, "UNKNOWN")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, repo.lookups)
	assert.Zero(t, g.Misses(), "absent codes are not added")

	c, err := g.FindActiveByCode(ctx, "known")
	require.NoError(t, err)
	assert.Equal(t, "KNOWN", c.Code)
	assert.Zero(t, g.Misses())

	g.Add("fresh")
	repo.coupons["FRESH"] = &Coupon{Code: "FRESH", DiscountType: DiscountFixed, Value: decimal.NewFromInt(1), Active: true}
	_, err = g.FindActiveByCode(ctx, "FRESH")
	require.NoError(t, err)
	assert.Zero(t, g.Misses())
}

func TestEvaluator_CodeStoredAfterRefresh(t *testing.T) {
	ctx := context.Background()
	repo := newMockCouponRepo()
	g := NewBloomGuard(repo)
	require.NoError(t, g.Refresh(ctx))

	// Written by an import or another instance after the filter was built.
	repo.coupons["IMPORTED"] = &Coupon{
		Code:         "IMPORTED",
		DiscountType: DiscountFixed,
		Value:        decimal.NewFromInt(50),
		Active:       true,
	}

	d, err := NewEvaluator(g).Evaluate(ctx, "imported", decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.Equal(t, "IMPORTED", d.Code)
	assert.True(t, decimal.NewFromInt(50).Equal(d.Amount))
	assert.Equal(t, 1, repo.lookups)
	assert.Equal(t, uint64(1), g.Misses())

	_, err = NewEvaluator(g).Evaluate(ctx, "IMPORTED", decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), g.Misses(), "code is in the filter after the first lookup")
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	repo := newMockCouponRepo()
	g := NewBloomGuard(repo)
	require.NoError(t, g.Refresh(ctx))
	s := NewService(repo, g)

	c := &Coupon{Code: " welcome ", DiscountType: DiscountFixed, Value: decimal.NewFromInt(100), Active: true}
	require.NoError(t, s.Create(ctx, c))

	assert.Equal(t, "WELCOME", c.Code)
	assert.NotEmpty(t, c.ID)
	assert.False(t, c.CreatedAt.IsZero())
	require.Len(t, repo.created, 1)

	found, err := g.FindActiveByCode(ctx, "welcome")
	require.NoError(t, err)
	assert.Equal(t, c.ID, found.ID)

	err = s.Create(ctx, &Coupon{Code: "BAD", DiscountType: DiscountFixed})
	assert.ErrorIs(t, err, ErrInvalidCoupon)
	assert.Len(t, repo.created, 1)
}
