package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/coupon"
)

func (h *Handler) adminListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.CouponAdmin.List(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range coupons {
			encodeCoupon(e, &coupons[i])
		}
		e.ArrEnd()
	})
}

func (h *Handler) adminCreateCoupon(w http.ResponseWriter, r *http.Request) {
	c := &coupon.Coupon{Active: true}
	if err := decodeCoupon(w, r, c); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.CouponAdmin.Create(r.Context(), c); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCoupon(e, c) })
}

func (h *Handler) adminUpdateCoupon(w http.ResponseWriter, r *http.Request) {
	c := &coupon.Coupon{ID: chi.URLParam(r, "id"), Active: true}
	if err := decodeCoupon(w, r, c); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.CouponAdmin.Update(r.Context(), c); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCoupon(e, c) })
}

func (h *Handler) adminDeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.CouponAdmin.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adminSetCouponActive(w http.ResponseWriter, r *http.Request) {
	var (
		active bool
		seen   bool
	)
	err := decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		if key != "is_active" {
			return d.Skip()
		}
		seen = true
		active, err = d.Bool()
		return err
	})
	if err == nil && !seen {
		err = errors.Wrap(errBadRequest, "is_active required")
	}
	if err == nil {
		err = h.CouponAdmin.SetActive(r.Context(), chi.URLParam(r, "id"), active)
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeCoupon(w http.ResponseWriter, r *http.Request, c *coupon.Coupon) error {
	return decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "code":
			c.Code, err = d.Str()
		case "discount_type":
			var t string
			t, err = d.Str()
			c.DiscountType = coupon.DiscountType(t)
		case "discount_value":
			c.Value, err = decodeMoney(d)
		case "min_order_amount":
			c.MinOrderAmount, err = decodeOptMoney(d)
		case "max_uses":
			c.MaxUses, err = decodeOptInt(d)
		case "expires_at":
			c.ExpiresAt, err = decodeOptTime(d)
		case "is_active":
			c.Active, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.ObjStart()
	strField(e, "id", c.ID)
	strField(e, "code", c.Code)
	strField(e, "discount_type", string(c.DiscountType))
	e.FieldStart("discount_value")
	encodeMoney(e, c.Value)
	e.FieldStart("min_order_amount")
	if c.MinOrderAmount != nil {
		encodeMoney(e, *c.MinOrderAmount)
	} else {
		e.Null()
	}
	e.FieldStart("max_uses")
	if c.MaxUses != nil {
		e.Int(*c.MaxUses)
	} else {
		e.Null()
	}
	e.FieldStart("used_count")
	e.Int(c.UsedCount)
	e.FieldStart("expires_at")
	if c.ExpiresAt != nil {
		encodeTime(e, *c.ExpiresAt)
	} else {
		e.Null()
	}
	e.FieldStart("is_active")
	e.Bool(c.Active)
	if !c.CreatedAt.IsZero() {
		e.FieldStart("created_at")
		encodeTime(e, c.CreatedAt)
	}
	e.ObjEnd()
}
