package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/messaging"
	"github.com/xenking/storefront/internal/messaging/kafka"
	"github.com/xenking/storefront/internal/payment/razorpay"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/internal/storage/redis"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

const (
	serviceName    = "storefront-api"
	healthInterval = 10 * time.Second
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application. m is
// usually the *app.Telemetry of go-faster/sdk.
func Run(ctx context.Context, lg *zap.Logger, m httpmiddleware.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	applied, err := postgres.RunMigrations(ctx, pool)
	if err != nil {
		return errors.Wrap(err, "run migrations")
	}
	lg.Info("Migrations applied", zap.Int("count", applied))

	healthSvc := health.New(lg.Named("health"))
	healthSvc.Register(health.Readiness, "postgres", 5*time.Second, health.Ping(pool))
	healthSvc.Register(health.Liveness, "goroutines", time.Second, health.GoroutineLimit(10000))

	// Checkout sessions live in Redis when configured so that any instance
	// can serve any step of the flow.
	var sessions checkout.SessionStore = checkout.NewMemoryStore(cfg.Checkout.SessionTTL)
	if cfg.RedisURL != "" {
		rdb, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rdb.Close() }()

		store := redis.NewSessionStore(rdb, cfg.Checkout.SessionTTL)
		healthSvc.Register(health.Readiness, "redis", 2*time.Second, health.Ping(store))
		sessions = store
	} else {
		lg.Warn("Redis not configured, checkout sessions are kept in memory")
	}

	var events messaging.Publisher = messaging.LogPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := kafka.NewPublisher(cfg.Kafka.Brokers)
		defer func() {
			if err := publisher.Close(); err != nil {
				lg.Warn("Close kafka publisher", zap.Error(err))
			}
		}()
		events = publisher
	}

	if cfg.Razorpay.KeyID == "" || cfg.Razorpay.KeySecret == "" {
		lg.Warn("Razorpay not configured, online payments are disabled")
	}

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	addressRepo := postgres.NewAddressRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Domain services.
	couponGuard := coupon.NewBloomGuard(couponRepo)
	couponEvaluator := coupon.NewEvaluator(couponGuard)

	checkoutSvc, err := checkout.NewService(checkout.Deps{
		Products:  productRepo,
		Addresses: addressRepo,
		Coupons:   couponEvaluator,
		Gateway:   razorpay.NewClient(cfg.Razorpay),
		Confirmer: payment.NewVerifier(cfg.Razorpay.KeySecret),
		Sessions:  sessions,
		Tx:        postgres.NewUnitOfWork(pool),
		Events:    events,
		Meter:     m.MeterProvider().Meter("storefront/checkout"),
	}, checkout.Options{
		StrictStock: cfg.Checkout.StrictStock,
		Currency:    cfg.Checkout.Currency,
	})
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}

	h := handler.NewHandler(handler.Config{ImageBaseURL: cfg.ImageBaseURL}, handler.Deps{
		Products:    productRepo,
		Coupons:     couponEvaluator,
		CouponAdmin: coupon.NewService(couponRepo, couponGuard),
		Addresses:   address.NewService(addressRepo),
		Checkout:    checkoutSvc,
		Orders:      order.NewService(orderRepo, events),
		Tokens:      auth.NewTokens([]byte(cfg.Auth.JWTSecret)),
		APIKeys:     auth.NewAPIKeys(apikeyRepo, []byte(cfg.Auth.APIKeyPepper)),
	})

	// Route-aware middlewares run inside the router so the matched pattern
	// is known when they finish.
	router := h.Router(
		httpmiddleware.LogRequests(handler.RoutePattern),
		httpmiddleware.Labeler(handler.RoutePattern),
	)
	router.Get("/livez", healthSvc.Livez)
	router.Get("/readyz", healthSvc.Readyz)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Razorpay.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.HeaderAPIKey},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument(serviceName, m),
		),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return healthSvc.Run(gCtx, healthInterval)
	})
	g.Go(func() error {
		return couponGuard.Run(zctx.Base(gCtx, lg.Named("coupons")), cfg.Coupons.BloomRefresh)
	})
	g.Go(func() error {
		// Graceful shutdown: fail readiness, wait for load balancers to
		// notice, then drain.
		<-gCtx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		healthSvc.SetReady(true)
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}
