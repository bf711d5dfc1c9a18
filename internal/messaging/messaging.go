// Package messaging defines storefront domain events and their publishers.
package messaging

import (
	"context"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	TopicOrderPlaced        = "storefront.order.placed"
	TopicStockChanged       = "storefront.stock.changed"
	TopicOrderStatusChanged = "storefront.order.status_changed"
)

// Event is a message published after a state change is committed.
type Event interface {
	Topic() string
	// Key selects the partition; events about the same entity share a key.
	Key() string
	Encode(e *jx.Encoder)
}

// Publisher delivers events. Publishing is best-effort: callers log
// failures and never roll back on them.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Marshal encodes ev as a JSON object.
func Marshal(ev Event) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	ev.Encode(e)
	return append([]byte(nil), e.Bytes()...)
}

// OrderPlaced is emitted once an order is settled.
type OrderPlaced struct {
	OrderID       string
	UserID        string
	Total         decimal.Decimal
	PaymentMethod string
	CouponCode    string
}

func (OrderPlaced) Topic() string { return TopicOrderPlaced }
func (ev OrderPlaced) Key() string { return ev.OrderID }
func (ev OrderPlaced) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("order_id")
	e.Str(ev.OrderID)
	e.FieldStart("user_id")
	e.Str(ev.UserID)
	e.FieldStart("total")
	e.Raw([]byte(ev.Total.StringFixed(2)))
	e.FieldStart("payment_method")
	e.Str(ev.PaymentMethod)
	if ev.CouponCode != "" {
		e.FieldStart("coupon_code")
		e.Str(ev.CouponCode)
	}
	e.ObjEnd()
}

// StockChanged is emitted for every product whose stock was decremented.
type StockChanged struct {
	ProductID string
	Previous  int
	Current   int
}

func (StockChanged) Topic() string { return TopicStockChanged }
func (ev StockChanged) Key() string { return ev.ProductID }
func (ev StockChanged) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("product_id")
	e.Str(ev.ProductID)
	e.FieldStart("previous")
	e.Int(ev.Previous)
	e.FieldStart("current")
	e.Int(ev.Current)
	e.ObjEnd()
}

// OrderStatusChanged is emitted when the back office moves an order.
type OrderStatusChanged struct {
	OrderID string
	UserID  string
	From    string
	To      string
}

func (OrderStatusChanged) Topic() string { return TopicOrderStatusChanged }
func (ev OrderStatusChanged) Key() string { return ev.OrderID }
func (ev OrderStatusChanged) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("order_id")
	e.Str(ev.OrderID)
	e.FieldStart("user_id")
	e.Str(ev.UserID)
	e.FieldStart("from")
	e.Str(ev.From)
	e.FieldStart("to")
	e.Str(ev.To)
	e.ObjEnd()
}

// LogPublisher writes events to the request logger. It is used when no
// broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, events ...Event) error {
	lg := zctx.From(ctx)
	for _, ev := range events {
		lg.Debug("Event",
			zap.String("topic", ev.Topic()),
			zap.String("key", ev.Key()),
			zap.ByteString("payload", Marshal(ev)),
		)
	}
	return nil
}
