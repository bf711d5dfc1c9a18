package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/stock"
)

var errForbidden = errors.New("forbidden")

// statusBySentinel maps domain sentinels to HTTP statuses. The first match
// in declaration order wins.
var statusBySentinel = []struct {
	err    error
	status int
}{
	{errBadRequest, http.StatusBadRequest},
	{auth.ErrUnauthorized, http.StatusUnauthorized},
	{checkout.ErrUnauthenticated, http.StatusUnauthorized},
	{errForbidden, http.StatusForbidden},

	{product.ErrNotFound, http.StatusNotFound},
	{order.ErrNotFound, http.StatusNotFound},
	{address.ErrNotFound, http.StatusNotFound},
	{checkout.ErrSessionNotFound, http.StatusNotFound},

	{coupon.ErrNotFound, http.StatusUnprocessableEntity},
	{coupon.ErrExpired, http.StatusUnprocessableEntity},
	{coupon.ErrUsageExceeded, http.StatusUnprocessableEntity},
	{coupon.ErrMinimumNotMet, http.StatusUnprocessableEntity},
	{coupon.ErrInvalidCoupon, http.StatusUnprocessableEntity},
	{product.ErrInvalidStock, http.StatusUnprocessableEntity},
	{order.ErrInvalidStatus, http.StatusUnprocessableEntity},
	{order.ErrInvalidTotals, http.StatusUnprocessableEntity},
	{order.ErrEmptyItems, http.StatusUnprocessableEntity},
	{checkout.ErrInvalidQuantity, http.StatusUnprocessableEntity},
	{checkout.ErrNoAddress, http.StatusUnprocessableEntity},
	{checkout.ErrCODUnavailable, http.StatusUnprocessableEntity},
	{payment.ErrInvalidAmount, http.StatusUnprocessableEntity},

	{checkout.ErrEmptyCart, http.StatusConflict},
	{checkout.ErrWrongStage, http.StatusConflict},
	{checkout.ErrPaymentMethod, http.StatusConflict},
	{checkout.ErrPaymentInProgress, http.StatusConflict},
	{checkout.ErrSessionBusy, http.StatusConflict},
	{checkout.ErrAlreadyPlaced, http.StatusConflict},
	{order.ErrTerminal, http.StatusConflict},
	{coupon.ErrDuplicateCode, http.StatusConflict},
	{stock.ErrInsufficientStock, http.StatusConflict},

	{payment.ErrSignatureMismatch, http.StatusBadRequest},
	{checkout.ErrIntentMismatch, http.StatusBadRequest},
	{payment.ErrNotConfigured, http.StatusServiceUnavailable},
}

// fail writes the error response for err. Unknown errors are logged and
// reported as 500 with their message.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *address.ValidationError
		gateway    *payment.GatewayError
	)
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusUnprocessableEntity, validation.Error())
		return
	case errors.As(err, &gateway):
		zctx.From(r.Context()).Warn("Payment gateway error", zap.Error(err))
		writeError(w, http.StatusBadGateway, gateway.Error())
		return
	}

	for _, m := range statusBySentinel {
		if errors.Is(err, m.err) {
			writeError(w, m.status, message(err, m.err))
			return
		}
	}

	// Persistence failures abort the step and are reported as they are so
	// the customer knows which step to retry.
	zctx.From(r.Context()).Error("Request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, err.Error())
}

// message picks the client-facing text: typed errors carry useful detail,
// wrapped sentinels keep only the sentinel text.
func message(err, sentinel error) string {
	var (
		minimum   *coupon.MinimumNotMetError
		stage     *checkout.StageError
		shortfall *stock.InsufficientStockError
		missing   *product.NotFoundError
	)
	switch {
	case errors.As(err, &minimum):
		return minimum.Error()
	case errors.As(err, &stage):
		return stage.Error()
	case errors.As(err, &shortfall):
		return shortfall.Error()
	case errors.As(err, &missing):
		return missing.Error()
	case sentinel == coupon.ErrInvalidCoupon, sentinel == errBadRequest, sentinel == order.ErrInvalidStatus:
		return err.Error()
	}
	return sentinel.Error()
}
