package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/payment/razorpay"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (STORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL     string `usage:"Redis URL for checkout sessions; in-memory sessions when empty" flag:"redis-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	Auth         AuthConfig
	Razorpay     razorpay.Config
	Kafka        KafkaConfig
	Checkout     CheckoutConfig
	Coupons      CouponsConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// AuthConfig holds the customer token and back office key secrets.
type AuthConfig struct {
	JWTSecret    string `env:"JWT_SECRET" usage:"HS256 secret of customer bearer tokens" flag:"jwt-secret"`
	APIKeyPepper string `env:"API_KEY_PEPPER" usage:"HMAC pepper for API key hashing" flag:"api-key-pepper"`
}

// KafkaConfig enables event publishing. Events are only logged when no
// brokers are set.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka brokers for order and stock events"`
}

// CheckoutConfig tunes checkout sessions and settlement.
type CheckoutConfig struct {
	SessionTTL  time.Duration `default:"2h" usage:"Idle lifetime of a checkout session" flag:"session-ttl"`
	StrictStock bool          `default:"false" usage:"Reject settlement when stock is short instead of clamping at zero" flag:"strict-stock"`
	Currency    string        `default:"INR" usage:"Currency of payment intents"`
}

// CouponsConfig controls the coupon code filter.
type CouponsConfig struct {
	BloomRefresh time.Duration `default:"5m" usage:"Coupon code filter refresh interval" flag:"coupon-refresh"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from a .env file, environment variables,
// YAML config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STORE",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set STORE_DATABASE_URL or DATABASE_URL")
	case c.Auth.JWTSecret == "":
		return errors.New("jwt secret is required: set STORE_AUTH_JWT_SECRET")
	case c.Checkout.SessionTTL <= 0:
		return errors.Errorf("session ttl must be positive, got %s", c.Checkout.SessionTTL)
	}
	if c.Checkout.Currency == "" {
		c.Checkout.Currency = payment.DefaultCurrency
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STORE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
