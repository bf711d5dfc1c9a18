// Package razorpay implements the payment gateway over the Razorpay Orders API.
package razorpay

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/storefront/internal/domain/payment"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.razorpay.com"

const maxResponseSize = 1 << 20

// Config holds gateway credentials.
type Config struct {
	KeyID     string        `yaml:"key_id" env:"KEY_ID"`
	KeySecret string        `yaml:"key_secret" env:"KEY_SECRET"`
	BaseURL   string        `yaml:"base_url" env:"BASE_URL" default:"https://api.razorpay.com"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT" default:"10s"`
}

// Client creates Razorpay orders.
type Client struct {
	cfg  Config
	http *http.Client
}

var _ payment.Gateway = (*Client)(nil)

// NewClient creates a Client. The HTTP transport is instrumented with
// OpenTelemetry.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// CreateIntent creates a gateway order for req.Amount.
func (c *Client) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	if c.cfg.KeyID == "" || c.cfg.KeySecret == "" {
		return nil, payment.ErrNotConfigured
	}
	if !req.Amount.IsPositive() {
		return nil, payment.ErrInvalidAmount
	}
	if req.Currency == "" {
		req.Currency = payment.DefaultCurrency
	}

	body := encodeOrderRequest(payment.MinorUnits(req.Amount), req.Currency, req.Receipt)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp.StatusCode, data)
	}

	id, amount, currency, err := decodeOrder(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	return &payment.Intent{
		OrderID:  id,
		KeyID:    c.cfg.KeyID,
		Amount:   decimal.New(amount, -2),
		Currency: currency,
	}, nil
}

func encodeOrderRequest(amount int64, currency, receipt string) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("amount")
	e.Int64(amount)
	e.FieldStart("currency")
	e.Str(currency)
	if receipt != "" {
		e.FieldStart("receipt")
		e.Str(receipt)
	}
	e.ObjEnd()
	return e.Bytes()
}

func decodeOrder(data []byte) (id string, amount int64, currency string, err error) {
	d := jx.DecodeBytes(data)
	err = d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			id, err = d.Str()
		case "amount":
			amount, err = d.Int64()
		case "currency":
			currency, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil && id == "" {
		err = errors.New("missing order id")
	}
	return id, amount, currency, err
}

func decodeError(status int, data []byte) error {
	gwErr := &payment.GatewayError{StatusCode: status}
	d := jx.DecodeBytes(data)
	_ = d.Obj(func(d *jx.Decoder, key string) error {
		if key != "error" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "code":
				gwErr.Code, err = d.Str()
			case "description":
				gwErr.Description, err = d.Str()
			default:
				err = d.Skip()
			}
			return err
		})
	})
	if gwErr.Description == "" {
		gwErr.Description = "Failed to create order"
	}
	return gwErr
}
