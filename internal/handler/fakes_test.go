package handler

import (
	"context"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/stock"
)

type memProducts struct {
	mu    sync.Mutex
	items map[string]product.Product
}

func (m *memProducts) put(id string, price int64, qty int, cod bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id] = product.Product{
		ID: id, Name: "Product " + id, Price: decimal.NewFromInt(price), ImageURL: "/img/" + id + ".jpg",
		StockQuantity: qty, InStock: qty > 0, CODAvailable: cod,
	}
}

func (m *memProducts) List(context.Context) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]product.Product, 0, len(m.items))
	for _, p := range m.items {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b product.Product) int {
		if a.ID < b.ID {
			return -1
		}
		return 1
	})
	return out, nil
}

func (m *memProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, &product.NotFoundError{ProductID: id}
	}
	return &p, nil
}

func (m *memProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.items[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProducts) SetStock(_ context.Context, id string, qty int) error {
	if qty < 0 {
		return product.ErrInvalidStock
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return &product.NotFoundError{ProductID: id}
	}
	p.StockQuantity, p.InStock = qty, qty > 0
	m.items[id] = p
	return nil
}

func (m *memProducts) SetCODAvailable(_ context.Context, id string, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return &product.NotFoundError{ProductID: id}
	}
	p.CODAvailable = available
	m.items[id] = p
	return nil
}

func (m *memProducts) Decrement(_ context.Context, id string, qty int) (stock.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return stock.Result{}, &product.NotFoundError{ProductID: id}
	}
	res := stock.Result{ProductID: id, Previous: p.StockQuantity, Current: max(0, p.StockQuantity-qty)}
	res.Shortfall = max(0, qty-p.StockQuantity)
	p.StockQuantity, p.InStock = res.Current, res.Current > 0
	m.items[id] = p
	return res, nil
}

func (m *memProducts) DecrementStrict(ctx context.Context, id string, qty int) (stock.Result, error) {
	p, err := m.GetByID(ctx, id)
	if err != nil {
		return stock.Result{}, err
	}
	if p.StockQuantity < qty {
		return stock.Result{}, &stock.InsufficientStockError{ProductID: id, Requested: qty, Available: p.StockQuantity}
	}
	return m.Decrement(ctx, id, qty)
}

type memOrders struct {
	mu     sync.Mutex
	orders []order.Order

	failCreate error
}

func (m *memOrders) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return m.failCreate
	}
	m.orders = append(m.orders, *o)
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *memOrders) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) List(_ context.Context, f order.Filter) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for _, o := range m.orders {
		if f.Status == "" || o.Status == f.Status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id string, status order.Status) error {
	return m.update(id, func(o *order.Order) { o.Status = status })
}

func (m *memOrders) UpdateTracking(_ context.Context, id, number, link string) error {
	return m.update(id, func(o *order.Order) { o.TrackingNumber, o.TrackingLink = number, link })
}

func (m *memOrders) update(id string, fn func(*order.Order)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].ID == id {
			fn(&m.orders[i])
			return nil
		}
	}
	return order.ErrNotFound
}

type memAddresses struct {
	mu    sync.Mutex
	addrs []address.Address
}

func (m *memAddresses) ListByUser(_ context.Context, userID string) ([]address.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []address.Address
	for _, a := range m.addrs {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(a, b address.Address) int {
		switch {
		case a.IsDefault == b.IsDefault:
			return 0
		case a.IsDefault:
			return -1
		}
		return 1
	})
	return out, nil
}

func (m *memAddresses) Get(_ context.Context, userID, id string) (*address.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.addrs {
		if a.ID == id && a.UserID == userID {
			return &a, nil
		}
	}
	return nil, address.ErrNotFound
}

func (m *memAddresses) Create(_ context.Context, a *address.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearDefault(a)
	m.addrs = append(m.addrs, *a)
	return nil
}

func (m *memAddresses) Update(_ context.Context, a *address.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.addrs {
		if m.addrs[i].ID == a.ID && m.addrs[i].UserID == a.UserID {
			m.clearDefault(a)
			m.addrs[i] = *a
			return nil
		}
	}
	return address.ErrNotFound
}

func (m *memAddresses) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.addrs)
	m.addrs = slices.DeleteFunc(m.addrs, func(a address.Address) bool {
		return a.ID == id && a.UserID == userID
	})
	if len(m.addrs) == n {
		return address.ErrNotFound
	}
	return nil
}

func (m *memAddresses) clearDefault(a *address.Address) {
	if !a.IsDefault {
		return
	}
	for i := range m.addrs {
		if m.addrs[i].UserID == a.UserID {
			m.addrs[i].IsDefault = false
		}
	}
}

type memCoupons struct {
	mu      sync.Mutex
	coupons []coupon.Coupon
}

func (m *memCoupons) FindActiveByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.coupons {
		if c.Code == coupon.NormalizeCode(code) && c.Active {
			return &c, nil
		}
	}
	return nil, coupon.ErrNotFound
}

func (m *memCoupons) ListCodes(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var codes []string
	for _, c := range m.coupons {
		codes = append(codes, c.Code)
	}
	return codes, nil
}

func (m *memCoupons) IncrementUses(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.coupons {
		c := &m.coupons[i]
		if c.Code != coupon.NormalizeCode(code) {
			continue
		}
		if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
			return coupon.ErrUsageExceeded
		}
		c.UsedCount++
		return nil
	}
	return coupon.ErrNotFound
}

func (m *memCoupons) List(context.Context) ([]coupon.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.coupons), nil
}

func (m *memCoupons) Create(_ context.Context, c *coupon.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.coupons {
		if existing.Code == c.Code {
			return coupon.ErrDuplicateCode
		}
	}
	m.coupons = append(m.coupons, *c)
	return nil
}

func (m *memCoupons) Update(_ context.Context, c *coupon.Coupon) error {
	return m.update(c.ID, func(existing *coupon.Coupon) {
		used := existing.UsedCount
		*existing = *c
		existing.UsedCount = used
	})
}

func (m *memCoupons) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.coupons)
	m.coupons = slices.DeleteFunc(m.coupons, func(c coupon.Coupon) bool { return c.ID == id })
	if len(m.coupons) == n {
		return coupon.ErrNotFound
	}
	return nil
}

func (m *memCoupons) SetActive(_ context.Context, id string, active bool) error {
	return m.update(id, func(c *coupon.Coupon) { c.Active = active })
}

func (m *memCoupons) update(id string, fn func(*coupon.Coupon)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.coupons {
		if m.coupons[i].ID == id {
			fn(&m.coupons[i])
			return nil
		}
	}
	return coupon.ErrNotFound
}

// memTx runs settlement against the in-memory stores without rollback.
type memTx struct {
	products *memProducts
	orders   *memOrders
	coupons  *memCoupons
}

func (tx *memTx) InTx(ctx context.Context, fn func(ctx context.Context, repos checkout.Repositories) error) error {
	return fn(ctx, checkout.Repositories{Orders: tx.orders, Coupons: tx.coupons, Stock: tx.products})
}

type fakeGateway struct{}

func (fakeGateway) CreateIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	return &payment.Intent{OrderID: "order_test1", KeyID: "rzp_test", Amount: req.Amount, Currency: req.Currency}, nil
}

type fakeKeys map[string]*auth.APIKeyInfo

func (k fakeKeys) Authenticate(_ context.Context, key string) (*auth.APIKeyInfo, error) {
	info, ok := k[key]
	if !ok {
		return nil, auth.ErrUnauthorized
	}
	return info, nil
}
