package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/order"
)

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.ListForUser(r.Context(), userID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOrders(w, orders)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.GetForUser(r.Context(), userID(r), chi.URLParam(r, "id"))
	writeOrder(w, r, o, err)
}

// adminListOrders lists orders, optionally filtered by ?status= and
// capped by ?limit=.
func (h *Handler) adminListOrders(w http.ResponseWriter, r *http.Request) {
	f := order.Filter{Status: order.Status(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			fail(w, r, errors.Wrap(errBadRequest, "limit must be a positive integer"))
			return
		}
		f.Limit = limit
	}

	orders, err := h.Orders.List(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOrders(w, orders)
}

func (h *Handler) adminGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Get(r.Context(), chi.URLParam(r, "id"))
	writeOrder(w, r, o, err)
}

func (h *Handler) adminSetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := decodeStringField(w, r, "status")
	if err != nil {
		fail(w, r, err)
		return
	}
	o, err := h.Orders.SetStatus(r.Context(), chi.URLParam(r, "id"), order.Status(status))
	writeOrder(w, r, o, err)
}

func (h *Handler) adminAdvance(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Advance(r.Context(), chi.URLParam(r, "id"))
	writeOrder(w, r, o, err)
}

func (h *Handler) adminCancel(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Cancel(r.Context(), chi.URLParam(r, "id"))
	writeOrder(w, r, o, err)
}

func (h *Handler) adminTracking(w http.ResponseWriter, r *http.Request) {
	var number, link string
	err := decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "tracking_number":
			number, err = d.Str()
		case "tracking_link":
			link, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	o, err := h.Orders.UpdateTracking(r.Context(), chi.URLParam(r, "id"), number, link)
	writeOrder(w, r, o, err)
}

func writeOrder(w http.ResponseWriter, r *http.Request, o *order.Order, err error) {
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func writeOrders(w http.ResponseWriter, orders []order.Order) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range orders {
			encodeOrder(e, &orders[i])
		}
		e.ArrEnd()
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	strField(e, "id", o.ID)
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		strField(e, "id", it.ProductID)
		strField(e, "name", it.Name)
		e.FieldStart("price")
		encodeMoney(e, it.Price)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		optStrField(e, "image", it.Image)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("subtotal")
	encodeMoney(e, o.Subtotal)
	e.FieldStart("discount_amount")
	encodeMoney(e, o.Discount)
	e.FieldStart("total")
	encodeMoney(e, o.Total)
	strField(e, "status", string(o.Status))
	strField(e, "payment_method", string(o.PaymentMethod))
	optStrField(e, "coupon_code", o.CouponCode)
	strField(e, "shipping_address", o.ShippingAddress)
	strField(e, "phone", o.Phone)
	optStrField(e, "gateway_order_id", o.GatewayOrderID)
	optStrField(e, "gateway_payment_id", o.GatewayPaymentID)
	optStrField(e, "tracking_number", o.TrackingNumber)
	optStrField(e, "tracking_link", o.TrackingLink)
	e.FieldStart("created_at")
	encodeTime(e, o.CreatedAt)
	if !o.UpdatedAt.IsZero() {
		e.FieldStart("updated_at")
		encodeTime(e, o.UpdatedAt)
	}
	e.ObjEnd()
}
