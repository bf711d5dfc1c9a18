package checkout

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/stock"
	"github.com/xenking/storefront/internal/messaging"
)

// fakeDB is an in-memory store with all-or-nothing transactions.
type fakeDB struct {
	mu       sync.Mutex
	products map[string]product.Product
	coupons  map[string]coupon.Coupon
	orders   []order.Order

	failOrderCreate error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		products: make(map[string]product.Product),
		coupons:  make(map[string]coupon.Coupon),
	}
}

func (db *fakeDB) addProduct(id string, price int64, qty int, cod bool) {
	db.products[id] = product.Product{
		ID:            id,
		Name:          strings.ToUpper(id),
		Price:         decimal.NewFromInt(price),
		ImageURL:      "/img/" + id + ".jpg",
		StockQuantity: qty,
		InStock:       qty > 0,
		CODAvailable:  cod,
	}
}

func (db *fakeDB) addCoupon(c coupon.Coupon) {
	c.Active = true
	db.coupons[c.Code] = c
}

func (db *fakeDB) stockOf(id string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.products[id].StockQuantity
}

func (db *fakeDB) usedCount(code string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.coupons[code].UsedCount
}

// ProductReader.
func (db *fakeDB) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []product.Product
	for _, id := range ids {
		if p, ok := db.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// coupon.Finder.
func (db *fakeDB) FindActiveByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.coupons[coupon.NormalizeCode(code)]
	if !ok || !c.Active {
		return nil, coupon.ErrNotFound
	}
	return &c, nil
}

func (db *fakeDB) InTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	products := maps.Clone(db.products)
	coupons := maps.Clone(db.coupons)
	orders := slices.Clone(db.orders)

	tx := &fakeTx{db: db}
	if err := fn(ctx, Repositories{Orders: tx, Coupons: tx, Stock: tx}); err != nil {
		db.products, db.coupons, db.orders = products, coupons, orders
		return err
	}
	return nil
}

// fakeTx operates on fakeDB state while its lock is held by InTx.
type fakeTx struct {
	db *fakeDB
}

func (tx *fakeTx) Create(_ context.Context, o *order.Order) error {
	if tx.db.failOrderCreate != nil {
		return tx.db.failOrderCreate
	}
	for _, existing := range tx.db.orders {
		if existing.CheckoutSessionID == o.CheckoutSessionID {
			return order.ErrDuplicate
		}
	}
	tx.db.orders = append(tx.db.orders, *o)
	return nil
}

func (tx *fakeTx) IncrementUses(_ context.Context, code string) error {
	c, ok := tx.db.coupons[code]
	if !ok {
		return coupon.ErrNotFound
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return coupon.ErrUsageExceeded
	}
	c.UsedCount++
	tx.db.coupons[code] = c
	return nil
}

func (tx *fakeTx) Decrement(_ context.Context, id string, qty int) (stock.Result, error) {
	p, ok := tx.db.products[id]
	if !ok {
		return stock.Result{}, &product.NotFoundError{ProductID: id}
	}
	prev := p.StockQuantity
	p.StockQuantity = max(prev-qty, 0)
	p.InStock = p.StockQuantity > 0
	tx.db.products[id] = p
	return stock.Result{ProductID: id, Previous: prev, Current: p.StockQuantity, Shortfall: max(qty-prev, 0)}, nil
}

func (tx *fakeTx) DecrementStrict(_ context.Context, id string, qty int) (stock.Result, error) {
	p, ok := tx.db.products[id]
	if !ok {
		return stock.Result{}, &product.NotFoundError{ProductID: id}
	}
	if p.StockQuantity < qty {
		return stock.Result{}, &stock.InsufficientStockError{ProductID: id, Requested: qty, Available: p.StockQuantity}
	}
	prev := p.StockQuantity
	p.StockQuantity -= qty
	p.InStock = p.StockQuantity > 0
	tx.db.products[id] = p
	return stock.Result{ProductID: id, Previous: prev, Current: p.StockQuantity}, nil
}

type fakeAddresses struct {
	addrs []address.Address
}

func (f *fakeAddresses) ListByUser(_ context.Context, userID string) ([]address.Address, error) {
	var out []address.Address
	for _, a := range f.addrs {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAddresses) Get(_ context.Context, userID, id string) (*address.Address, error) {
	for _, a := range f.addrs {
		if a.ID == id && a.UserID == userID {
			return &a, nil
		}
	}
	return nil, address.ErrNotFound
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []payment.IntentRequest
	err      error
	seq      int

	// When set, CreateIntent signals entered and waits for release.
	entered chan struct{}
	release chan struct{}
}

func (g *fakeGateway) CreateIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	err := g.err
	g.seq++
	seq := g.seq
	g.mu.Unlock()

	if g.entered != nil {
		g.entered <- struct{}{}
		<-g.release
	}
	if err != nil {
		return nil, err
	}
	return &payment.Intent{
		OrderID:  "order_gw" + strings.Repeat("x", seq),
		KeyID:    "rzp_test",
		Amount:   req.Amount,
		Currency: req.Currency,
	}, nil
}

func (g *fakeGateway) requestCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []messaging.Event
}

func (r *recordingPublisher) Publish(_ context.Context, events ...messaging.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *recordingPublisher) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Topic()
	}
	return out
}

var errBoom = errors.New("boom")
