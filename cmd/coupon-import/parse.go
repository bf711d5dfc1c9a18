package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/coupon"
)

// Columns of a coupon file. The header row is required; column order is
// free and unknown columns are ignored.
const (
	colCode           = "code"
	colDiscountType   = "discount_type"
	colDiscountValue  = "discount_value"
	colMinOrderAmount = "min_order_amount"
	colMaxUses        = "max_uses"
	colExpiresAt      = "expires_at"
	colActive         = "is_active"
)

// readFiles parses every file concurrently and merges the results. When a
// code appears more than once the row from the later file, or the later
// row within a file, wins.
func readFiles(ctx context.Context, lg *zap.Logger, files []string) ([]coupon.Coupon, error) {
	results := make([][]coupon.Coupon, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			coupons, err := readFile(ctx, path)
			if err != nil {
				return errors.Wrapf(err, "file %s", path)
			}
			lg.Info("File parsed", zap.String("path", path), zap.Int("coupons", len(coupons)))
			results[i] = coupons
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []coupon.Coupon
	for _, r := range results {
		all = append(all, r...)
	}
	return dedupe(all), nil
}

func readFile(ctx context.Context, path string) ([]coupon.Coupon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "create gzip reader")
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	return parseCoupons(ctx, r, time.Now().UTC())
}

// parseCoupons reads coupon rows from CSV. Every row is validated; the
// first invalid row fails the whole input with its line number.
func parseCoupons(ctx context.Context, r io.Reader, now time.Time) ([]coupon.Coupon, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{colCode, colDiscountType, colDiscountValue} {
		if _, ok := cols[required]; !ok {
			return nil, errors.Errorf("missing column %q", required)
		}
	}

	var coupons []coupon.Coupon
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return coupons, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "read row")
		}
		line, _ := cr.FieldPos(0)

		c, err := parseRow(cols, record, now)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		coupons = append(coupons, c)
	}
}

func parseRow(cols map[string]int, record []string, now time.Time) (coupon.Coupon, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	c := coupon.Coupon{
		Code:         coupon.NormalizeCode(field(colCode)),
		DiscountType: coupon.DiscountType(strings.ToLower(field(colDiscountType))),
		Active:       true,
		CreatedAt:    now,
	}

	var err error
	if c.Value, err = decimal.NewFromString(field(colDiscountValue)); err != nil {
		return c, errors.Wrap(err, "discount_value")
	}
	if v := field(colMinOrderAmount); v != "" {
		amount, err := decimal.NewFromString(v)
		if err != nil {
			return c, errors.Wrap(err, "min_order_amount")
		}
		c.MinOrderAmount = &amount
	}
	if v := field(colMaxUses); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, errors.Wrap(err, "max_uses")
		}
		c.MaxUses = &n
	}
	if v := field(colExpiresAt); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return c, errors.Wrap(err, "expires_at")
		}
		c.ExpiresAt = &t
	}
	if v := field(colActive); v != "" {
		if c.Active, err = strconv.ParseBool(v); err != nil {
			return c, errors.Wrap(err, "is_active")
		}
	}

	return c, c.Validate()
}

// parseTime accepts RFC 3339 timestamps or plain dates, which expire at the
// end of the day in UTC.
func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(24*time.Hour - time.Second), nil
}

// dedupe keeps the last coupon per code, in first-seen order.
func dedupe(coupons []coupon.Coupon) []coupon.Coupon {
	index := make(map[string]int, len(coupons))
	out := make([]coupon.Coupon, 0, len(coupons))
	for _, c := range coupons {
		if i, ok := index[c.Code]; ok {
			out[i] = c
			continue
		}
		index[c.Code] = len(out)
		out = append(out, c)
	}
	return out
}
