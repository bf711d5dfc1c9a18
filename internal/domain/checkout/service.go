package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/messaging"
)

// Options tune settlement behaviour.
type Options struct {
	// StrictStock fails settlement when a product has fewer units than
	// ordered instead of clamping its stock at zero.
	StrictStock bool
	// Currency of gateway payment intents.
	Currency string
}

// Deps are the collaborators of the checkout Service.
type Deps struct {
	Products  ProductReader
	Addresses AddressReader
	Coupons   CouponEvaluator
	Gateway   payment.Gateway
	Confirmer payment.Confirmer
	Sessions  SessionStore
	Tx        UnitOfWork
	Events    messaging.Publisher
	Meter     metric.Meter
}

// Service orchestrates checkout sessions.
type Service struct {
	Deps
	opts Options
	now  func() time.Time

	settled         metric.Int64Counter
	paymentFailures metric.Int64Counter
}

// NewService creates a checkout Service.
func NewService(deps Deps, opts Options) (*Service, error) {
	if opts.Currency == "" {
		opts.Currency = payment.DefaultCurrency
	}
	if deps.Events == nil {
		deps.Events = messaging.LogPublisher{}
	}

	if deps.Meter == nil {
		deps.Meter = noop.NewMeterProvider().Meter("checkout")
	}

	s := &Service{Deps: deps, opts: opts, now: time.Now}
	var err error
	if s.settled, err = deps.Meter.Int64Counter("storefront.checkout.settled",
		metric.WithDescription("Orders settled by checkout"),
	); err != nil {
		return nil, errors.Wrap(err, "settled counter")
	}
	if s.paymentFailures, err = deps.Meter.Int64Counter("storefront.checkout.payment_failures",
		metric.WithDescription("Failed online payment attempts"),
	); err != nil {
		return nil, errors.Wrap(err, "payment failures counter")
	}
	return s, nil
}

// Start opens a checkout session for the cart. Cash on delivery
// eligibility is evaluated here against the current catalog flags and
// re-checked at settlement.
func (s *Service) Start(ctx context.Context, userID string, cart []CartLine) (*Session, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	merged, err := mergeCart(cart)
	if err != nil {
		return nil, err
	}
	if len(merged) == 0 {
		return nil, ErrEmptyCart
	}

	lines, err := s.snapshot(ctx, merged)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sess := &Session{
		ID:            uuid.New().String(),
		UserID:        userID,
		Stage:         StageAddress,
		Lines:         lines,
		PaymentMethod: order.PaymentRazorpay,
		CODAllowed:    codAllowed(lines),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	addrs, err := s.Addresses.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list addresses")
	}
	if def, err := address.Default(addrs); err == nil {
		sess.AddressID = def.ID
	}

	if err := s.Sessions.Save(ctx, sess); err != nil {
		return nil, errors.Wrap(err, "save session")
	}
	return sess, nil
}

// Get returns the user's session.
func (s *Service) Get(ctx context.Context, userID, sessionID string) (*Session, error) {
	return s.load(ctx, userID, sessionID)
}

// SelectAddress picks one of the user's addresses for shipping.
func (s *Service) SelectAddress(ctx context.Context, userID, sessionID, addressID string) (*Session, error) {
	return s.update(ctx, userID, sessionID, func(sess *Session) error {
		if sess.Stage != StageAddress {
			return &StageError{Op: "select address", Stage: sess.Stage}
		}
		if _, err := s.Addresses.Get(ctx, userID, addressID); err != nil {
			return err
		}
		sess.AddressID = addressID
		return nil
	})
}

// ConfirmAddress moves from the address stage to the summary.
func (s *Service) ConfirmAddress(ctx context.Context, userID, sessionID string) (*Session, error) {
	return s.update(ctx, userID, sessionID, func(sess *Session) error {
		if sess.Stage != StageAddress {
			return &StageError{Op: "confirm address", Stage: sess.Stage}
		}
		if _, err := s.shippingAddress(ctx, sess); err != nil {
			return err
		}
		sess.Stage = StageSummary
		return nil
	})
}

// ConfirmSummary moves from the summary to the payment stage.
func (s *Service) ConfirmSummary(ctx context.Context, userID, sessionID string) (*Session, error) {
	return s.update(ctx, userID, sessionID, func(sess *Session) error {
		if sess.Stage != StageSummary {
			return &StageError{Op: "confirm summary", Stage: sess.Stage}
		}
		sess.Stage = StagePayment
		return nil
	})
}

// Back returns to the previous stage without other changes.
func (s *Service) Back(ctx context.Context, userID, sessionID string) (*Session, error) {
	return s.update(ctx, userID, sessionID, func(sess *Session) error {
		switch sess.Stage {
		case StageSummary:
			sess.Stage = StageAddress
		case StagePayment:
			if sess.Processing {
				return ErrPaymentInProgress
			}
			sess.Stage = StageSummary
		default:
			return &StageError{Op: "back", Stage: sess.Stage}
		}
		return nil
	})
}

// ApplyCoupon evaluates code against the cart subtotal. A rejected coupon
// leaves the session unchanged.
func (s *Service) ApplyCoupon(ctx context.Context, userID, sessionID, code string) (*Session, error) {
	return s.update(ctx, userID, sessionID, func(sess *Session) error {
		if err := editable(sess, "apply coupon"); err != nil {
			return err
		}
		d, err := s.Coupons.Evaluate(ctx, code, sess.Subtotal())
		if err != nil {
			return err
		}
		sess.CouponCode = d.Code
		sess.Discount = d.Amount
		return nil
	})
}

// RemoveCoupon drops the applied coupon.
func (s *Service) RemoveCoupon(ctx context.Context, userID, sessionID string) (*Session, error) {
	return s.update(ctx, userID, sessionID, func(sess *Session) error {
		if err := editable(sess, "remove coupon"); err != nil {
			return err
		}
		sess.clearCoupon()
		return nil
	})
}

// SetPaymentMethod selects how the order will be paid.
func (s *Service) SetPaymentMethod(ctx context.Context, userID, sessionID string, method order.PaymentMethod) (*Session, error) {
	return s.update(ctx, userID, sessionID, func(sess *Session) error {
		if sess.Stage != StagePayment {
			return &StageError{Op: "set payment method", Stage: sess.Stage}
		}
		if sess.Processing {
			return ErrPaymentInProgress
		}
		if !method.Valid() {
			return errors.Wrapf(ErrPaymentMethod, "unknown method %q", method)
		}
		if method == order.PaymentCOD && !sess.CODAllowed {
			return ErrCODUnavailable
		}
		sess.PaymentMethod = method
		return nil
	})
}

func (s *Service) load(ctx context.Context, userID, sessionID string) (*Session, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	sess, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// lock claims the session before a payment step.
func (s *Service) lock(ctx context.Context, userID, sessionID string) (func(), error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	release, err := s.Sessions.Lock(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionBusy) {
			return nil, err
		}
		return nil, errors.Wrap(err, "lock session")
	}
	return release, nil
}

// update loads the session, applies fn and saves it when fn succeeds.
func (s *Service) update(ctx context.Context, userID, sessionID string, fn func(*Session) error) (*Session, error) {
	sess, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = s.now().UTC()
	if err := s.Sessions.Save(ctx, sess); err != nil {
		return errors.Wrap(err, "save session")
	}
	return nil
}

func (s *Service) shippingAddress(ctx context.Context, sess *Session) (*address.Address, error) {
	if sess.AddressID == "" {
		return nil, ErrNoAddress
	}
	addr, err := s.Addresses.Get(ctx, sess.UserID, sess.AddressID)
	if err != nil {
		if errors.Is(err, address.ErrNotFound) {
			return nil, ErrNoAddress
		}
		return nil, errors.Wrap(err, "get address")
	}
	return addr, nil
}

// snapshot loads the cart products and copies their current name, price
// and image.
func (s *Service) snapshot(ctx context.Context, cart []CartLine) ([]Line, error) {
	ids := make([]string, len(cart))
	for i, l := range cart {
		ids[i] = l.ProductID
	}
	products, err := s.Products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]Line, len(cart))
	for i, l := range cart {
		p, ok := byID[l.ProductID]
		if !ok {
			return nil, &product.NotFoundError{ProductID: l.ProductID}
		}
		lines[i] = Line{
			ProductID:    p.ID,
			Name:         p.Name,
			Price:        p.Price,
			Quantity:     l.Quantity,
			Image:        p.ImageURL,
			CODAvailable: p.CODAvailable,
		}
	}
	return lines, nil
}

// editable reports whether the order contents may still change.
func editable(sess *Session, op string) error {
	if sess.Stage != StageSummary && sess.Stage != StagePayment {
		return &StageError{Op: op, Stage: sess.Stage}
	}
	if sess.Processing {
		return ErrPaymentInProgress
	}
	return nil
}

// mergeCart sums duplicate product lines, keeping first-seen order.
func mergeCart(cart []CartLine) ([]CartLine, error) {
	index := make(map[string]int, len(cart))
	merged := make([]CartLine, 0, len(cart))
	for _, l := range cart {
		if l.Quantity <= 0 {
			return nil, errors.Wrapf(ErrInvalidQuantity, "product %s", l.ProductID)
		}
		if i, ok := index[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(merged)
		merged = append(merged, l)
	}
	return merged, nil
}

func codAllowed(lines []Line) bool {
	for _, l := range lines {
		if !l.CODAvailable {
			return false
		}
	}
	return true
}

// refreshDiscount re-evaluates the applied coupon against the current
// coupon state. A coupon that is no longer valid is dropped from the
// session and its error returned.
func (s *Service) refreshDiscount(ctx context.Context, sess *Session) error {
	if sess.CouponCode == "" {
		sess.Discount = decimal.Zero
		return nil
	}
	d, err := s.Coupons.Evaluate(ctx, sess.CouponCode, sess.Subtotal())
	if err != nil {
		sess.clearCoupon()
		return err
	}
	sess.Discount = d.Amount
	return nil
}
