package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/storage/postgres"
)

const progressEvery = 1000

func main() {
	var (
		databaseURL string
		dryRun      bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and validate files without writing")
	flag.Usage = func() {
		_, _ = os.Stderr.WriteString("usage: coupon-import [flags] coupons.csv[.gz]...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	files := flag.Args()
	if len(files) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, files, databaseURL, dryRun); err != nil {
		lg.Fatal("Coupon import failed", zap.Error(err))
	}
	lg.Info("Coupon import completed")
}

func run(ctx context.Context, lg *zap.Logger, files []string, databaseURL string, dryRun bool) error {
	coupons, err := readFiles(ctx, lg, files)
	if err != nil {
		return errors.Wrap(err, "read coupon files")
	}
	lg.Info("Coupons parsed", zap.Int("count", len(coupons)))

	if dryRun || len(coupons) == 0 {
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return writeCoupons(ctx, lg, postgres.NewCouponRepository(pool), coupons)
}

// upserter is the subset of the coupon repository the import writes to.
type upserter interface {
	Upsert(ctx context.Context, c *coupon.Coupon) error
}

// writeCoupons upserts coupons by code. Existing coupons keep their id and
// usage counter.
func writeCoupons(ctx context.Context, lg *zap.Logger, repo upserter, coupons []coupon.Coupon) error {
	for i := range coupons {
		c := &coupons[i]
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if err := repo.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}
		if (i+1)%progressEvery == 0 || i+1 == len(coupons) {
			lg.Info("Write progress", zap.Int("written", i+1), zap.Int("total", len(coupons)))
		}
	}
	return nil
}
