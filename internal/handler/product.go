package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Products.List(r.Context())
	if err != nil {
		fail(w, r, errors.Wrap(err, "list products"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range products {
			h.encodeProduct(e, &products[i])
		}
		e.ArrEnd()
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProduct(e, p) })
}

// imageURL prefixes relative image paths with the configured base URL.
func (h *Handler) imageURL(path string) string {
	if path == "" || h.imageBaseURL == "" || strings.Contains(path, "://") {
		return path
	}
	return strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

func (h *Handler) encodeProduct(e *jx.Encoder, p *product.Product) {
	e.ObjStart()
	strField(e, "id", p.ID)
	strField(e, "name", p.Name)
	strField(e, "description", p.Description)
	strField(e, "category", p.Category)
	e.FieldStart("price")
	encodeMoney(e, p.Price)
	strField(e, "image", h.imageURL(p.ImageURL))
	e.FieldStart("stock_quantity")
	e.Int(p.StockQuantity)
	e.FieldStart("in_stock")
	e.Bool(p.InStock)
	strField(e, "stock_status", string(p.StockStatus()))
	e.FieldStart("cod_available")
	e.Bool(p.CODAvailable)
	e.ObjEnd()
}

// validateCoupon previews a coupon against a subtotal. Nothing is redeemed.
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var (
		code     string
		subtotal = decimal.Zero
	)
	err := decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "code":
			code, err = d.Str()
		case "subtotal":
			subtotal, err = decodeMoney(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	discount, err := h.Coupons.Evaluate(r.Context(), code, subtotal)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		strField(e, "code", discount.Code)
		e.FieldStart("discount")
		encodeMoney(e, discount.Amount)
		e.FieldStart("total")
		encodeMoney(e, subtotal.Sub(discount.Amount))
		e.ObjEnd()
	})
}

func (h *Handler) adminSetStock(w http.ResponseWriter, r *http.Request) {
	var qty *int
	err := decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		if key != "stock_quantity" {
			return d.Skip()
		}
		qty, err = decodeOptInt(d)
		return err
	})
	if err == nil && qty == nil {
		err = errors.Wrap(errBadRequest, "stock_quantity required")
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	h.updateProduct(w, r, func(id string) error {
		return h.Products.SetStock(r.Context(), id, *qty)
	})
}

func (h *Handler) adminSetCOD(w http.ResponseWriter, r *http.Request) {
	var (
		available bool
		seen      bool
	)
	err := decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		if key != "cod_available" {
			return d.Skip()
		}
		seen = true
		available, err = d.Bool()
		return err
	})
	if err == nil && !seen {
		err = errors.Wrap(errBadRequest, "cod_available required")
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	h.updateProduct(w, r, func(id string) error {
		return h.Products.SetCODAvailable(r.Context(), id, available)
	})
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request, update func(id string) error) {
	id := chi.URLParam(r, "id")
	if err := update(id); err != nil {
		fail(w, r, err)
		return
	}
	p, err := h.Products.GetByID(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProduct(e, p) })
}
