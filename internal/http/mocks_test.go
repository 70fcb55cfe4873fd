package http

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fjod/go_storefront/internal/checkout"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/stock"
	"github.com/fjod/go_storefront/pkg/logger"
)

const testTimeout = 5 * time.Second

var discard = logger.Discard()

// --- catalog ---

type catalogMock struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
	err      error
}

func newCatalog(products ...*domain.Product) *catalogMock {
	m := &catalogMock{products: make(map[string]*domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *catalogMock) GetAllProducts(ctx context.Context) ([]*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *catalogMock) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, stock.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func mug(stockLevel int) *domain.Product {
	return &domain.Product{
		ID:    "sku-mug-001",
		Name:  "Mug",
		Price: decimal.RequireFromString("12.50"),
		Stock: stockLevel,
	}
}

// --- reviews ---

type reviewsMock struct {
	mu      sync.RWMutex
	reviews []domain.Review
}

func (m *reviewsMock) CreateReview(ctx context.Context, review *domain.Review) error {
	if err := review.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	review.ID = "review-1"
	review.CreatedAt = time.Now().UTC()
	m.reviews = append(m.reviews, *review)
	return nil
}

func (m *reviewsMock) ListReviews(ctx context.Context, productID string, limit int64) ([]domain.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Review
	for _, r := range m.reviews {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	return out, nil
}

// --- carts: an in-memory store that runs the real cart rules ---

type cartsMock struct {
	mu     sync.RWMutex
	carts  map[string]*domain.Cart
	report domain.StockReport
	err    error
}

func newCarts() *cartsMock {
	return &cartsMock{carts: make(map[string]*domain.Cart)}
}

func (m *cartsMock) cart(owner domain.Owner) *domain.Cart {
	c, ok := m.carts[owner.Key()]
	if !ok {
		c = domain.NewCart(owner)
		m.carts[owner.Key()] = c
	}
	return c
}

func (m *cartsMock) mutate(owner domain.Owner, fn func(*domain.Cart) error) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c := m.cart(owner)
	if err := fn(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (m *cartsMock) Get(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	return m.mutate(owner, func(*domain.Cart) error { return nil })
}

func (m *cartsMock) AddItem(ctx context.Context, owner domain.Owner, product domain.Product, requestedQty, currentStock int) (*domain.Cart, error) {
	return m.mutate(owner, func(c *domain.Cart) error { return c.AddItem(product, requestedQty, currentStock) })
}

func (m *cartsMock) UpdateQuantity(ctx context.Context, owner domain.Owner, productID string, newQty, currentStock int) (*domain.Cart, error) {
	return m.mutate(owner, func(c *domain.Cart) error { return c.UpdateQuantity(productID, newQty, currentStock) })
}

func (m *cartsMock) Decrement(ctx context.Context, owner domain.Owner, productID string) (*domain.Cart, error) {
	return m.mutate(owner, func(c *domain.Cart) error {
		_, err := c.Decrement(productID)
		return err
	})
}

func (m *cartsMock) RemoveItem(ctx context.Context, owner domain.Owner, productID string) (*domain.Cart, error) {
	return m.mutate(owner, func(c *domain.Cart) error {
		c.Remove(productID)
		return nil
	})
}

func (m *cartsMock) Clear(ctx context.Context, owner domain.Owner) error {
	_, err := m.mutate(owner, func(c *domain.Cart) error {
		c.Clear()
		return nil
	})
	return err
}

func (m *cartsMock) Refresh(ctx context.Context, owner domain.Owner) (*domain.Cart, domain.StockReport, error) {
	c, err := m.mutate(owner, func(c *domain.Cart) error {
		c.ApplyStock(m.report)
		return nil
	})
	return c, m.report, err
}

func (m *cartsMock) SignIn(ctx context.Context, guestID, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := m.cart(domain.Owner{UserID: userID})
	if guest, ok := m.carts[guestID]; ok {
		user = domain.MergeCarts(user, guest)
		m.carts[userID] = user
		delete(m.carts, guestID)
	}
	return user, nil
}

// --- wishlists ---

type wishlistsMock struct {
	mu    sync.RWMutex
	lists map[string]*domain.Wishlist
}

func newWishlists() *wishlistsMock {
	return &wishlistsMock{lists: make(map[string]*domain.Wishlist)}
}

func (m *wishlistsMock) list(owner domain.Owner) *domain.Wishlist {
	w, ok := m.lists[owner.Key()]
	if !ok {
		w = domain.NewWishlist(owner)
		m.lists[owner.Key()] = w
	}
	return w
}

func (m *wishlistsMock) Get(ctx context.Context, owner domain.Owner) (*domain.Wishlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(owner), nil
}

func (m *wishlistsMock) Toggle(ctx context.Context, owner domain.Owner, productID string) (*domain.Wishlist, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.list(owner)
	added := w.Toggle(productID)
	return w, added, nil
}

func (m *wishlistsMock) Remove(ctx context.Context, owner domain.Owner, productID string) (*domain.Wishlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.list(owner)
	w.Remove(productID)
	return w, nil
}

func (m *wishlistsMock) SignIn(ctx context.Context, guestID, userID string) (*domain.Wishlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := m.list(domain.Owner{UserID: userID})
	if guest, ok := m.lists[guestID]; ok {
		user = domain.MergeWishlists(user, guest)
		m.lists[userID] = user
		delete(m.lists, guestID)
	}
	return user, nil
}

// --- checkout ---

type checkoutMock struct {
	mu       sync.RWMutex
	draft    *checkout.DraftResult
	confirm  *checkout.ConfirmResult
	orders   []*domain.Order
	err      error
	requests []checkout.DraftRequest
	owners   []domain.Owner
}

func (m *checkoutMock) Draft(ctx context.Context, owner domain.Owner, req checkout.DraftRequest) (*checkout.DraftResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	m.owners = append(m.owners, owner)
	return m.draft, m.err
}

func (m *checkoutMock) RetryIntent(ctx context.Context, owner domain.Owner, orderID string) (*checkout.DraftResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.draft, m.err
}

func (m *checkoutMock) Confirm(ctx context.Context, owner domain.Owner, orderID string) (*checkout.ConfirmResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.confirm, m.err
}

func (m *checkoutMock) Orders(ctx context.Context, owner domain.Owner) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Order
	for _, o := range m.orders {
		if o.OwnedBy(owner) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *checkoutMock) Order(ctx context.Context, owner domain.Owner, orderID string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, o := range m.orders {
		if o.ID == orderID && o.OwnedBy(owner) {
			return o, nil
		}
	}
	return nil, &domain.NotFoundError{Kind: "order", ID: orderID}
}

func pendingOrder(id string, owner domain.Owner) *domain.Order {
	items := []domain.CartLineItem{{
		ProductID:     "sku-mug-001",
		Name:          "Mug",
		UnitPrice:     decimal.RequireFromString("12.50"),
		Quantity:      2,
		StockSnapshot: 40,
	}}
	return domain.NewPendingOrder(id, owner, "key-"+id, items, validShipping(), decimal.RequireFromString("0.10"))
}

func validShipping() domain.ShippingDetails {
	return domain.ShippingDetails{
		Name:        "Ada Lovelace",
		Email:       "ada@example.com",
		AddressLine: "12 Analytical Way",
		City:        "London",
		State:       "LDN",
		Zip:         "N1 9GU",
		Country:     "GB",
	}
}
