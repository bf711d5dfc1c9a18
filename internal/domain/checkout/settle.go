package checkout

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/stock"
	"github.com/xenking/storefront/internal/messaging"
)

// receiptMaxLen is the gateway limit on receipt identifiers.
const receiptMaxLen = 40

// PlaceCOD settles the session as a cash on delivery order. Eligibility
// and the coupon are re-checked against current data first.
func (s *Service) PlaceCOD(ctx context.Context, userID, sessionID string) (*order.Order, error) {
	release, err := s.lock(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := readyToPay(sess); err != nil {
		return nil, err
	}
	if sess.PaymentMethod != order.PaymentCOD {
		return nil, errors.Wrapf(ErrPaymentMethod, "session uses %s", sess.PaymentMethod)
	}

	if err := s.recheckCOD(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.refreshDiscount(ctx, sess); err != nil {
		if saveErr := s.save(ctx, sess); saveErr != nil {
			zctx.From(ctx).Warn("Save session after coupon rejection", zap.Error(saveErr))
		}
		return nil, err
	}
	addr, err := s.shippingAddress(ctx, sess)
	if err != nil {
		return nil, err
	}

	return s.settle(ctx, sess, addr, order.PaymentCOD, payment.Confirmation{})
}

// BeginOnlinePayment creates a gateway payment intent for the session
// total and marks the session as processing. The session is locked for
// the duration so that concurrent calls cannot open two intents.
func (s *Service) BeginOnlinePayment(ctx context.Context, userID, sessionID string) (*payment.Intent, *Session, error) {
	release, err := s.lock(ctx, userID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	sess, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if err := readyToPay(sess); err != nil {
		return nil, nil, err
	}
	if sess.Processing {
		return nil, nil, ErrPaymentInProgress
	}
	if sess.PaymentMethod != order.PaymentRazorpay {
		return nil, nil, errors.Wrapf(ErrPaymentMethod, "session uses %s", sess.PaymentMethod)
	}
	if _, err := s.shippingAddress(ctx, sess); err != nil {
		return nil, nil, err
	}
	if err := s.refreshDiscount(ctx, sess); err != nil {
		if saveErr := s.save(ctx, sess); saveErr != nil {
			zctx.From(ctx).Warn("Save session after coupon rejection", zap.Error(saveErr))
		}
		return nil, nil, err
	}

	intent, err := s.Gateway.CreateIntent(ctx, payment.IntentRequest{
		Amount:   sess.Total(),
		Currency: s.opts.Currency,
		Receipt:  receipt(sess.ID),
	})
	if err != nil {
		s.paymentFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "intent")))
		return nil, nil, errors.Wrap(err, "create payment intent")
	}

	sess.IntentID = intent.OrderID
	sess.Processing = true
	if err := s.save(ctx, sess); err != nil {
		return nil, nil, err
	}
	return intent, sess, nil
}

// CompleteOnlinePayment verifies the gateway confirmation and settles the
// session as a paid order. On a signature mismatch no order is created
// and the session returns to the payment stage for a retry.
func (s *Service) CompleteOnlinePayment(ctx context.Context, userID, sessionID string, conf payment.Confirmation) (*order.Order, error) {
	release, err := s.lock(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Stage == StagePlaced {
		return nil, ErrAlreadyPlaced
	}
	if sess.Stage != StagePayment {
		return nil, &StageError{Op: "complete payment", Stage: sess.Stage}
	}
	if !sess.Processing || sess.IntentID == "" || conf.OrderID != sess.IntentID {
		return nil, ErrIntentMismatch
	}

	if err := s.Confirmer.Verify(conf); err != nil {
		s.paymentFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "signature")))
		zctx.From(ctx).Warn("Payment verification failed",
			zap.String("session_id", sess.ID),
			zap.String("gateway_order_id", conf.OrderID),
			zap.Error(err),
		)
		sess.resetPayment()
		if saveErr := s.save(ctx, sess); saveErr != nil {
			zctx.From(ctx).Warn("Save session after verification failure", zap.Error(saveErr))
		}
		return nil, err
	}

	addr, err := s.shippingAddress(ctx, sess)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, sess, addr, order.PaymentRazorpay, conf)
}

// CancelOnlinePayment abandons the open payment intent. Nothing else
// changes.
func (s *Service) CancelOnlinePayment(ctx context.Context, userID, sessionID string) (*Session, error) {
	release, err := s.lock(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.update(ctx, userID, sessionID, func(sess *Session) error {
		if sess.Stage == StagePlaced {
			return ErrAlreadyPlaced
		}
		sess.resetPayment()
		return nil
	})
}

// settle records the order, redeems the coupon and reconciles stock in
// one transaction, then clears the session cart.
func (s *Service) settle(
	ctx context.Context,
	sess *Session,
	addr *address.Address,
	method order.PaymentMethod,
	conf payment.Confirmation,
) (*order.Order, error) {
	lg := zctx.From(ctx).With(
		zap.String("session_id", sess.ID),
		zap.String("payment_method", string(method)),
	)

	items := sess.Items()
	subtotal := order.Subtotal(items)
	o := &order.Order{
		ID:                uuid.New().String(),
		UserID:            sess.UserID,
		CheckoutSessionID: sess.ID,
		Items:             items,
		Subtotal:          subtotal,
		Discount:          sess.Discount,
		Total:             subtotal.Sub(sess.Discount),
		Status:            method.InitialStatus(),
		PaymentMethod:     method,
		CouponCode:        sess.CouponCode,
		ShippingAddress:   addr.Format(),
		Phone:             addr.Phone,
		GatewayOrderID:    conf.OrderID,
		GatewayPaymentID:  conf.PaymentID,
		CreatedAt:         s.now().UTC(),
	}
	if err := o.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate order")
	}

	lines := make([]stock.Line, len(items))
	for i, it := range items {
		lines[i] = stock.Line{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	var changes []stock.Result
	err := s.Tx.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		if err := repos.Orders.Create(ctx, o); err != nil {
			if errors.Is(err, order.ErrDuplicate) {
				return ErrAlreadyPlaced
			}
			return errors.Wrap(err, "create order")
		}

		if o.CouponCode != "" {
			if err := repos.Coupons.IncrementUses(ctx, o.CouponCode); err != nil {
				// A captured online payment is honoured even when the
				// coupon ran out in the meantime.
				if !errors.Is(err, coupon.ErrUsageExceeded) || method != order.PaymentRazorpay {
					return errors.Wrap(err, "redeem coupon")
				}
				lg.Warn("Coupon redeemed beyond its usage limit", zap.String("coupon", o.CouponCode))
			}
		}

		res, err := stock.NewReconciler(repos.Stock, s.opts.StrictStock).Reconcile(ctx, lines)
		if err != nil {
			return errors.Wrap(err, "reconcile stock")
		}
		changes = res
		return nil
	})
	if err != nil {
		if method == order.PaymentRazorpay {
			lg.Error("Settlement failed after payment capture",
				zap.String("gateway_order_id", conf.OrderID),
				zap.String("gateway_payment_id", conf.PaymentID),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.settled.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", string(method))))
	lg.Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("total", o.Total.StringFixed(2)),
	)

	events := make([]messaging.Event, 0, len(changes)+1)
	events = append(events, messaging.OrderPlaced{
		OrderID:       o.ID,
		UserID:        o.UserID,
		Total:         o.Total,
		PaymentMethod: string(o.PaymentMethod),
		CouponCode:    o.CouponCode,
	})
	for _, c := range changes {
		events = append(events, messaging.StockChanged{
			ProductID: c.ProductID,
			Previous:  c.Previous,
			Current:   c.Current,
		})
	}
	if err := s.Events.Publish(ctx, events...); err != nil {
		lg.Warn("Publish order events", zap.Error(err))
	}

	sess.Lines = nil
	sess.Stage = StagePlaced
	sess.OrderID = o.ID
	sess.resetPayment()
	if err := s.save(ctx, sess); err != nil {
		// The order is committed; a stale session is rejected by the
		// unique checkout session constraint on retry.
		lg.Error("Clear checkout session", zap.Error(err))
	}

	return o, nil
}

// recheckCOD verifies cash on delivery against current catalog flags and
// forces online payment when an item is no longer eligible.
func (s *Service) recheckCOD(ctx context.Context, sess *Session) error {
	products, err := s.Products.GetByIDs(ctx, sess.ProductIDs())
	if err != nil {
		return errors.Wrap(err, "get products")
	}
	allowed := len(products) == len(sess.Lines)
	for _, p := range products {
		if !p.CODAvailable {
			allowed = false
		}
	}
	if allowed {
		return nil
	}

	sess.CODAllowed = false
	sess.PaymentMethod = order.PaymentRazorpay
	if err := s.save(ctx, sess); err != nil {
		zctx.From(ctx).Warn("Save session after COD recheck", zap.Error(err))
	}
	return ErrCODUnavailable
}

func readyToPay(sess *Session) error {
	switch sess.Stage {
	case StagePayment:
		return nil
	case StagePlaced:
		return ErrAlreadyPlaced
	default:
		return &StageError{Op: "pay", Stage: sess.Stage}
	}
}

// receipt derives the gateway receipt id from the session id.
func receipt(sessionID string) string {
	r := "order_" + strings.ReplaceAll(sessionID, "-", "")
	if len(r) > receiptMaxLen {
		r = r[:receiptMaxLen]
	}
	return r
}
