// Package handler serves the storefront REST API under /api.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored.
	ImageBaseURL string
}

// TokenVerifier resolves a customer bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// KeyAuthenticator resolves a back office API key.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error)
}

// CouponEvaluator previews coupon discounts.
type CouponEvaluator interface {
	Evaluate(ctx context.Context, code string, subtotal decimal.Decimal) (coupon.Discount, error)
}

// Deps are the domain services behind the API.
type Deps struct {
	Products    product.Repository
	Coupons     CouponEvaluator
	CouponAdmin *coupon.Service
	Addresses   *address.Service
	Checkout    *checkout.Service
	Orders      *order.Service
	Tokens      TokenVerifier
	APIKeys     KeyAuthenticator
}

// Handler maps HTTP requests to domain operations.
type Handler struct {
	Deps
	imageBaseURL string
}

// NewHandler creates a Handler.
func NewHandler(cfg Config, deps Deps) *Handler {
	return &Handler{Deps: deps, imageBaseURL: cfg.ImageBaseURL}
}

// Router builds the API router. middlewares run inside the router, after
// the route context is available to RoutePattern.
func (h *Handler) Router(middlewares ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middlewares...)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)
		r.Post("/coupons/validate", h.validateCoupon)

		r.Group(func(r chi.Router) {
			r.Use(h.requireUser)

			r.Get("/addresses", h.listAddresses)
			r.Post("/addresses", h.createAddress)
			r.Put("/addresses/{id}", h.updateAddress)
			r.Delete("/addresses/{id}", h.deleteAddress)

			r.Post("/checkout", h.startCheckout)
			r.Route("/checkout/{id}", func(r chi.Router) {
				r.Get("/", h.getCheckout)
				r.Post("/address", h.selectAddress)
				r.Post("/confirm-address", h.confirmAddress)
				r.Post("/confirm-summary", h.confirmSummary)
				r.Post("/back", h.back)
				r.Post("/coupon", h.applyCoupon)
				r.Delete("/coupon", h.removeCoupon)
				r.Post("/payment-method", h.setPaymentMethod)
				r.Post("/cod", h.placeCOD)
				r.Post("/payment", h.beginPayment)
				r.Post("/payment/cancel", h.cancelPayment)
			})
			r.Post("/payments/verify", h.verifyPayment)

			r.Get("/orders", h.listOrders)
			r.Get("/orders/{id}", h.getOrder)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)

			r.Get("/orders", h.adminListOrders)
			r.Get("/orders/{id}", h.adminGetOrder)
			r.Put("/orders/{id}/status", h.adminSetStatus)
			r.Post("/orders/{id}/advance", h.adminAdvance)
			r.Post("/orders/{id}/cancel", h.adminCancel)
			r.Put("/orders/{id}/tracking", h.adminTracking)

			r.Get("/coupons", h.adminListCoupons)
			r.Post("/coupons", h.adminCreateCoupon)
			r.Put("/coupons/{id}", h.adminUpdateCoupon)
			r.Delete("/coupons/{id}", h.adminDeleteCoupon)
			r.Put("/coupons/{id}/active", h.adminSetCouponActive)

			r.Put("/products/{id}/stock", h.adminSetStock)
			r.Put("/products/{id}/cod", h.adminSetCOD)
		})
	})
	return r
}

// RoutePattern returns the chi route pattern that served r.
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
