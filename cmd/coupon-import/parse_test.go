package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/storefront/internal/domain/coupon"
)

var testNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestParseCoupons(t *testing.T) {
	const input = `code, discount_type, discount_value, min_order_amount, max_uses, expires_at, is_active, note
welcome10, percentage, 10, 499, , , , first order
FLAT100, fixed, 100, , 50, 2025-06-30, false,
festive, Percentage, 25, , , 2025-12-31T18:30:00Z, true,
`
	coupons, err := parseCoupons(context.Background(), strings.NewReader(input), testNow)
	require.NoError(t, err)
	require.Len(t, coupons, 3)

	welcome := coupons[0]
	assert.Equal(t, "WELCOME10", welcome.Code)
	assert.Equal(t, coupon.DiscountPercentage, welcome.DiscountType)
	assert.True(t, welcome.Value.Equal(decimal.NewFromInt(10)))
	require.NotNil(t, welcome.MinOrderAmount)
	assert.True(t, welcome.MinOrderAmount.Equal(decimal.NewFromInt(499)))
	assert.Nil(t, welcome.MaxUses)
	assert.Nil(t, welcome.ExpiresAt)
	assert.True(t, welcome.Active)
	assert.Equal(t, testNow, welcome.CreatedAt)

	flat := coupons[1]
	require.NotNil(t, flat.MaxUses)
	assert.Equal(t, 50, *flat.MaxUses)
	require.NotNil(t, flat.ExpiresAt)
	assert.Equal(t, time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC), *flat.ExpiresAt)
	assert.False(t, flat.Active)

	festive := coupons[2]
	assert.Equal(t, coupon.DiscountPercentage, festive.DiscountType)
	assert.Equal(t, time.Date(2025, 12, 31, 18, 30, 0, 0, time.UTC), *festive.ExpiresAt)
}

func TestParseCoupons_Invalid(t *testing.T) {
	for _, tc := range []struct {
		name  string
		input string
		err   string
	}{
		{name: "MissingColumn", input: "code,discount_value\nA,1\n", err: `missing column "discount_type"`},
		{name: "BadValue", input: "code,discount_type,discount_value\nA,fixed,ten\n", err: "line 2: discount_value"},
		{name: "Percentage", input: "code,discount_type,discount_value\nA,percentage,10\nB,percentage,101\n", err: "line 3"},
		{name: "UnknownType", input: "code,discount_type,discount_value\nA,bogo,1\n", err: "unsupported discount type"},
		{name: "MaxUses", input: "code,discount_type,discount_value,max_uses\nA,fixed,1,0\n", err: "max uses must be positive"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseCoupons(context.Background(), strings.NewReader(tc.input), testNow)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.err)
		})
	}
}

func TestDedupe(t *testing.T) {
	got := dedupe([]coupon.Coupon{
		{Code: "A", Value: decimal.NewFromInt(1)},
		{Code: "B", Value: decimal.NewFromInt(2)},
		{Code: "A", Value: decimal.NewFromInt(3)},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Code)
	assert.True(t, got[0].Value.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, "B", got[1].Code)
}

func TestReadFiles(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "a.csv")
	require.NoError(t, os.WriteFile(plain, []byte("code,discount_type,discount_value\nSAVE5,fixed,5\nSAVE10,fixed,10\n"), 0o600))

	gzPath := filepath.Join(dir, "b.csv.gz")
	f, err := os.Create(gzPath)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte("code,discount_type,discount_value\nsave5,fixed,7\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	coupons, err := readFiles(context.Background(), zaptest.NewLogger(t), []string{plain, gzPath})
	require.NoError(t, err)
	require.Len(t, coupons, 2)
	assert.Equal(t, "SAVE5", coupons[0].Code)
	assert.True(t, coupons[0].Value.Equal(decimal.NewFromInt(7)), "later file wins")

	_, err = readFiles(context.Background(), zaptest.NewLogger(t), []string{filepath.Join(dir, "missing.csv")})
	require.Error(t, err)
}

type recordingUpserter struct {
	coupons []coupon.Coupon
}

func (r *recordingUpserter) Upsert(_ context.Context, c *coupon.Coupon) error {
	r.coupons = append(r.coupons, *c)
	return nil
}

func TestWriteCoupons(t *testing.T) {
	repo := &recordingUpserter{}
	err := writeCoupons(context.Background(), zaptest.NewLogger(t), repo, []coupon.Coupon{
		{Code: "A"}, {ID: "fixed-id", Code: "B"},
	})
	require.NoError(t, err)
	require.Len(t, repo.coupons, 2)
	assert.NotEmpty(t, repo.coupons[0].ID)
	assert.Equal(t, "fixed-id", repo.coupons[1].ID)
}
