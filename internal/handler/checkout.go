package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
)

// startCheckout opens a session for the submitted cart:
// {"items":[{"product_id":"...","quantity":2}]}.
func (h *Handler) startCheckout(w http.ResponseWriter, r *http.Request) {
	var cart []checkout.CartLine
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		if key != "items" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			var line checkout.CartLine
			err := d.Obj(func(d *jx.Decoder, key string) (err error) {
				switch key {
				case "product_id", "id":
					line.ProductID, err = d.Str()
				case "quantity":
					line.Quantity, err = d.Int()
				default:
					err = d.Skip()
				}
				return err
			})
			cart = append(cart, line)
			return err
		})
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	sess, err := h.Checkout.Start(r.Context(), userID(r), cart)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeSession(w, http.StatusCreated, sess)
}

func (h *Handler) getCheckout(w http.ResponseWriter, r *http.Request) {
	h.sessionOp(w, r, h.Checkout.Get)
}

func (h *Handler) confirmAddress(w http.ResponseWriter, r *http.Request) {
	h.sessionOp(w, r, h.Checkout.ConfirmAddress)
}

func (h *Handler) confirmSummary(w http.ResponseWriter, r *http.Request) {
	h.sessionOp(w, r, h.Checkout.ConfirmSummary)
}

func (h *Handler) back(w http.ResponseWriter, r *http.Request) {
	h.sessionOp(w, r, h.Checkout.Back)
}

func (h *Handler) removeCoupon(w http.ResponseWriter, r *http.Request) {
	h.sessionOp(w, r, h.Checkout.RemoveCoupon)
}

func (h *Handler) cancelPayment(w http.ResponseWriter, r *http.Request) {
	h.sessionOp(w, r, h.Checkout.CancelOnlinePayment)
}

func (h *Handler) selectAddress(w http.ResponseWriter, r *http.Request) {
	id, err := decodeStringField(w, r, "address_id")
	if err != nil {
		fail(w, r, err)
		return
	}
	h.sessionOp(w, r, func(ctx context.Context, user, sess string) (*checkout.Session, error) {
		return h.Checkout.SelectAddress(ctx, user, sess, id)
	})
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	code, err := decodeStringField(w, r, "code")
	if err != nil {
		fail(w, r, err)
		return
	}
	h.sessionOp(w, r, func(ctx context.Context, user, sess string) (*checkout.Session, error) {
		return h.Checkout.ApplyCoupon(ctx, user, sess, code)
	})
}

func (h *Handler) setPaymentMethod(w http.ResponseWriter, r *http.Request) {
	method, err := decodeStringField(w, r, "payment_method")
	if err != nil {
		fail(w, r, err)
		return
	}
	h.sessionOp(w, r, func(ctx context.Context, user, sess string) (*checkout.Session, error) {
		return h.Checkout.SetPaymentMethod(ctx, user, sess, order.PaymentMethod(method))
	})
}

func (h *Handler) placeCOD(w http.ResponseWriter, r *http.Request) {
	o, err := h.Checkout.PlaceCOD(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// beginPayment creates the gateway intent the client opens the payment
// widget with.
func (h *Handler) beginPayment(w http.ResponseWriter, r *http.Request) {
	intent, sess, err := h.Checkout.BeginOnlinePayment(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("session")
		encodeSession(e, sess)
		e.FieldStart("payment")
		e.ObjStart()
		strField(e, "gateway_order_id", intent.OrderID)
		strField(e, "key_id", intent.KeyID)
		e.FieldStart("amount")
		encodeMoney(e, intent.Amount)
		e.FieldStart("amount_minor")
		e.Int64(payment.MinorUnits(intent.Amount))
		strField(e, "currency", intent.Currency)
		e.ObjEnd()
		e.ObjEnd()
	})
}

// verifyPayment settles an online payment from the signed widget result.
func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var (
		sessionID string
		conf      payment.Confirmation
	)
	err := decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "session_id":
			sessionID, err = d.Str()
		case "gateway_order_id", "razorpay_order_id":
			conf.OrderID, err = d.Str()
		case "gateway_payment_id", "razorpay_payment_id":
			conf.PaymentID, err = d.Str()
		case "gateway_signature", "razorpay_signature":
			conf.Signature, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil && (sessionID == "" || conf.OrderID == "" || conf.PaymentID == "" || conf.Signature == "") {
		err = errors.Wrap(errBadRequest, "session_id and payment fields are required")
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	o, err := h.Checkout.CompleteOnlinePayment(r.Context(), userID(r), sessionID, conf)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) sessionOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, sessionID string) (*checkout.Session, error)) {
	sess, err := op(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeSession(w, http.StatusOK, sess)
}

// decodeStringField reads a body with a single required string field.
func decodeStringField(w http.ResponseWriter, r *http.Request, name string) (string, error) {
	var (
		v    string
		seen bool
	)
	err := decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		if key != name {
			return d.Skip()
		}
		seen = true
		v, err = d.Str()
		return err
	})
	if err != nil {
		return "", err
	}
	if !seen {
		return "", errors.Wrapf(errBadRequest, "%s required", name)
	}
	return v, nil
}

func writeSession(w http.ResponseWriter, status int, sess *checkout.Session) {
	writeJSON(w, status, func(e *jx.Encoder) { encodeSession(e, sess) })
}

func encodeSession(e *jx.Encoder, s *checkout.Session) {
	e.ObjStart()
	strField(e, "id", s.ID)
	strField(e, "stage", string(s.Stage))
	e.FieldStart("items")
	e.ArrStart()
	for _, l := range s.Lines {
		e.ObjStart()
		strField(e, "product_id", l.ProductID)
		strField(e, "name", l.Name)
		e.FieldStart("price")
		encodeMoney(e, l.Price)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		optStrField(e, "image", l.Image)
		e.FieldStart("cod_available")
		e.Bool(l.CODAvailable)
		e.ObjEnd()
	}
	e.ArrEnd()
	optStrField(e, "address_id", s.AddressID)
	optStrField(e, "coupon_code", s.CouponCode)
	e.FieldStart("subtotal")
	encodeMoney(e, s.Subtotal())
	e.FieldStart("discount")
	encodeMoney(e, s.Discount)
	e.FieldStart("total")
	encodeMoney(e, s.Total())
	strField(e, "payment_method", string(s.PaymentMethod))
	e.FieldStart("cod_allowed")
	e.Bool(s.CODAllowed)
	e.FieldStart("processing")
	e.Bool(s.Processing)
	optStrField(e, "gateway_order_id", s.IntentID)
	optStrField(e, "order_id", s.OrderID)
	e.FieldStart("updated_at")
	encodeTime(e, s.UpdatedAt)
	e.ObjEnd()
}
