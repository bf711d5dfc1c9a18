//go:build integration

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage/postgres"
)

const (
	testAPIKey = "integration-admin-key"
	testPepper = "integration-pepper"
	testSecret = "integration-jwt-secret"
	testUserID = "user-integration"
)

var (
	baseURL    string
	httpClient = &http.Client{Timeout: 10 * time.Second}
	userToken  string
)

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "store",
				"POSTGRES_PASSWORD": "store",
				"POSTGRES_DB":       "store",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() { _ = testcontainers.TerminateContainer(ctr) }()

	host, err := ctr.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://store:store@%s:%s/store?sslmode=disable", host, port.Port())

	addr, err := freeAddr()
	if err != nil {
		log.Fatalf("free port: %v", err)
	}
	cfg := &Config{
		Addr:        addr,
		DatabaseURL: dsn,
		Auth:        AuthConfig{JWTSecret: testSecret, APIKeyPepper: testPepper},
		Checkout:    CheckoutConfig{SessionTTL: time.Hour, Currency: "INR"},
		Coupons:     CouponsConfig{BloomRefresh: time.Minute},
		RateLimit:   RateLimitConfig{Max: 1000, Window: time.Minute},
		Graceful:    GracefulConfig{ShutdownTimeout: 5 * time.Second},
	}

	appCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- Run(appCtx, zap.NewNop(), noopTelemetry{}, cfg) }()

	baseURL = "http://" + addr
	if err := waitReady(ctx); err != nil {
		log.Fatalf("wait ready: %v", err)
	}
	if err := seed(ctx, dsn); err != nil {
		log.Fatalf("seed: %v", err)
	}
	userToken, err = auth.NewTokens([]byte(testSecret)).Sign(testUserID, time.Hour)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}

	code := m.Run()

	stop()
	if err := <-done; err != nil {
		log.Printf("run: %v", err)
		return 1
	}
	return code
}

func freeAddr() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().String(), nil
}

func waitReady(ctx context.Context) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			resp, err := httpClient.Get(baseURL + "/readyz")
			if err != nil {
				continue
			}
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
	}
}

func seed(ctx context.Context, dsn string) error {
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	products := postgres.NewProductRepository(pool)
	for _, p := range []product.Product{
		{ID: "ghee", Name: "Ghee", Category: "ghee", Price: decimal.NewFromInt(899), StockQuantity: 10, CODAvailable: true},
		{ID: "saffron", Name: "Saffron", Category: "spices", Price: decimal.NewFromInt(450), StockQuantity: 3},
	} {
		if err := products.Upsert(ctx, &p); err != nil {
			return err
		}
	}

	return postgres.NewAPIKeyRepository(pool).Upsert(ctx, &auth.APIKeyInfo{
		ID:      "integration",
		KeyHash: auth.HashAPIKey([]byte(testPepper), testAPIKey),
		Name:    "integration",
		Scopes:  []string{auth.ScopeAdmin},
	})
}

type reply struct {
	status int
	header http.Header
	body   map[string]any
	list   []any
}

func call(t *testing.T, method, path string, body any, headers ...string) reply {
	t.Helper()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, baseURL+path, rd)
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := httpClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := reply{status: resp.StatusCode, header: resp.Header}
	switch {
	case len(data) == 0:
	case data[0] == '[':
		require.NoError(t, json.Unmarshal(data, &out.list), string(data))
	default:
		require.NoError(t, json.Unmarshal(data, &out.body), string(data))
	}
	return out
}

func asUser(t *testing.T, method, path string, body any) reply {
	t.Helper()
	return call(t, method, path, body, "Authorization", "Bearer "+userToken)
}

func TestHealth(t *testing.T) {
	res := call(t, http.MethodGet, "/livez", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "ok", res.body["status"])

	res = call(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, res.status)
}

func TestMiddlewareStack(t *testing.T) {
	res := call(t, http.MethodGet, "/api/products", nil, "X-Request-ID", "custom-request-id-12345")
	assert.Equal(t, "custom-request-id-12345", res.header.Get("X-Request-ID"))
	assert.NotEmpty(t, res.header.Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, res.header.Get("X-RateLimit-Remaining"))

	res = call(t, http.MethodOptions, "/api/products", nil,
		"Origin", "http://example.com",
		"Access-Control-Request-Method", "GET",
	)
	assert.Equal(t, http.StatusNoContent, res.status)
	assert.NotEmpty(t, res.header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, res.header.Get("Access-Control-Allow-Methods"))
}

func TestCatalog(t *testing.T) {
	res := call(t, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Len(t, res.list, 2)

	res = call(t, http.MethodGet, "/api/products/missing", nil)
	assert.Equal(t, http.StatusNotFound, res.status)

	res = call(t, http.MethodGet, "/api/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.Equal(t, 404.0, res.body["code"])
}

func TestAdminCouponAndCODCheckout(t *testing.T) {
	admin := func(method, path string, body any) reply {
		return call(t, method, path, body, "api_key", testAPIKey)
	}

	res := admin(http.MethodPost, "/api/admin/coupons", map[string]any{
		"code": "it10", "discount_type": "percentage", "discount_value": 10, "max_uses": 1,
	})
	require.Equal(t, http.StatusCreated, res.status, res.body)

	res = asUser(t, http.MethodPost, "/api/addresses", map[string]any{
		"full_name": "Ravi Kumar", "phone": "9000000000", "pincode": "110001",
		"city": "New Delhi", "state": "Delhi", "address": "4 Janpath",
	})
	require.Equal(t, http.StatusCreated, res.status, res.body)
	assert.Equal(t, true, res.body["is_default"], "first address becomes default")

	res = asUser(t, http.MethodPost, "/api/checkout", map[string]any{
		"items": []map[string]any{{"product_id": "ghee", "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, res.status, res.body)
	id := res.body["id"].(string)

	for _, step := range []string{"confirm-address", "confirm-summary"} {
		res = asUser(t, http.MethodPost, "/api/checkout/"+id+"/"+step, nil)
		require.Equal(t, http.StatusOK, res.status, res.body)
	}
	res = asUser(t, http.MethodPost, "/api/checkout/"+id+"/coupon", map[string]any{"code": "IT10"})
	require.Equal(t, http.StatusOK, res.status, res.body)
	assert.Equal(t, 1618.0, res.body["total"])

	res = asUser(t, http.MethodPost, "/api/checkout/"+id+"/payment-method", map[string]any{"payment_method": "cod"})
	require.Equal(t, http.StatusOK, res.status, res.body)

	res = asUser(t, http.MethodPost, "/api/checkout/"+id+"/cod", nil)
	require.Equal(t, http.StatusCreated, res.status, res.body)
	orderID := res.body["id"].(string)
	assert.Equal(t, "pending", res.body["status"])
	assert.Equal(t, 180.0, res.body["discount_amount"])

	res = asUser(t, http.MethodPost, "/api/checkout/"+id+"/cod", nil)
	assert.Equal(t, http.StatusConflict, res.status, "a session settles once")

	res = call(t, http.MethodGet, "/api/products/ghee", nil)
	assert.Equal(t, 8.0, res.body["stock_quantity"])

	res = admin(http.MethodGet, "/api/admin/coupons", nil)
	require.Len(t, res.list, 1)
	assert.Equal(t, 1.0, res.list[0].(map[string]any)["used_count"])

	res = admin(http.MethodPost, "/api/admin/orders/"+orderID+"/advance", nil)
	require.Equal(t, http.StatusOK, res.status, res.body)
	assert.Equal(t, "confirmed", res.body["status"])

	res = asUser(t, http.MethodGet, "/api/orders/"+orderID, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "confirmed", res.body["status"])
}

func TestOnlinePaymentWithoutGateway(t *testing.T) {
	res := asUser(t, http.MethodPost, "/api/checkout", map[string]any{
		"items": []map[string]any{{"product_id": "saffron", "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, res.status, res.body)
	id := res.body["id"].(string)
	assert.Equal(t, false, res.body["cod_allowed"])

	for _, step := range []string{"confirm-address", "confirm-summary"} {
		res = asUser(t, http.MethodPost, "/api/checkout/"+id+"/"+step, nil)
		require.Equal(t, http.StatusOK, res.status, res.body)
	}

	res = asUser(t, http.MethodPost, "/api/checkout/"+id+"/payment", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.status)
}
