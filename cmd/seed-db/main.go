package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type productJSON struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Price         decimal.Decimal `json:"price"`
	ImageURL      string          `json:"image_url"`
	StockQuantity int             `json:"stock_quantity"`
	CODAvailable  bool            `json:"cod_available"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or STORE_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STORE_AUTH_API_KEY_PEPPER env)")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if apiKey == "" {
		apiKey = os.Getenv("STORE_SEED_API_KEY")
	}
	if apiKey == "" {
		lg.Fatal("API key is required: set --api-key or STORE_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("STORE_AUTH_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, productsFile, apiKey, pepper string) error {
	lg.Info("Connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	applied, err := postgres.RunMigrations(ctx, pool)
	if err != nil {
		return errors.Wrap(err, "run migrations")
	}
	lg.Info("Migrations applied", zap.Int("count", applied))

	if err := seedProducts(ctx, lg, postgres.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, lg, postgres.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedAPIKey(ctx, lg, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	return nil
}

func seedProducts(ctx context.Context, lg *zap.Logger, repo *postgres.ProductRepository, productsFile string) error {
	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}
	lg.Info("Upserting products", zap.String("path", productsFile), zap.Int("count", len(products)))

	for _, p := range products {
		if p.StockQuantity < 0 {
			return errors.Wrapf(product.ErrInvalidStock, "product %s", p.ID)
		}
		if err := repo.Upsert(ctx, &product.Product{
			ID:            p.ID,
			Name:          p.Name,
			Description:   p.Description,
			Category:      p.Category,
			Price:         p.Price,
			ImageURL:      p.ImageURL,
			StockQuantity: p.StockQuantity,
			CODAvailable:  p.CODAvailable,
		}); err != nil {
			return err
		}
		lg.Debug("Upserted product", zap.String("id", p.ID), zap.String("name", p.Name))
	}
	return nil
}

func seedCoupons(ctx context.Context, lg *zap.Logger, repo *postgres.CouponRepository) error {
	welcomeMin := decimal.NewFromInt(499)
	festiveMax := 500
	festiveExpiry := time.Now().UTC().AddDate(0, 3, 0)

	coupons := []coupon.Coupon{
		{
			Code:           "WELCOME10",
			DiscountType:   coupon.DiscountPercentage,
			Value:          decimal.NewFromInt(10),
			MinOrderAmount: &welcomeMin,
			Active:         true,
		},
		{
			Code:         "FLAT100",
			DiscountType: coupon.DiscountFixed,
			Value:        decimal.NewFromInt(100),
			Active:       true,
		},
		{
			Code:         "FESTIVE25",
			DiscountType: coupon.DiscountPercentage,
			Value:        decimal.NewFromInt(25),
			MaxUses:      &festiveMax,
			ExpiresAt:    &festiveExpiry,
			Active:       true,
		},
	}

	for i := range coupons {
		c := &coupons[i]
		c.ID = uuid.New().String()
		c.CreatedAt = time.Now().UTC()
		if err := c.Validate(); err != nil {
			return errors.Wrapf(err, "coupon %s", c.Code)
		}
		if err := repo.Upsert(ctx, c); err != nil {
			return err
		}
		lg.Info("Upserted coupon", zap.String("code", c.Code), zap.String("type", string(c.DiscountType)))
	}
	return nil
}

func seedAPIKey(ctx context.Context, lg *zap.Logger, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	info := &auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashAPIKey([]byte(pepper), apiKey),
		Name:    "Default admin key",
		Scopes:  []string{auth.ScopeAdmin},
	}
	if err := repo.Upsert(ctx, info); err != nil {
		return err
	}
	lg.Info("Upserted API key", zap.String("id", info.ID), zap.String("name", info.Name))
	return nil
}
