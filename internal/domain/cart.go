package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Owner identifies who owns a cart or wishlist for the current session.
// A signed-in user always wins over the guest session.
type Owner struct {
	UserID  string
	GuestID string
}

func (o Owner) IsGuest() bool {
	return o.UserID == ""
}

func (o Owner) Valid() bool {
	return o.UserID != "" || o.GuestID != ""
}

// Key is the storage key of the owner: the user id, or the guest session id.
func (o Owner) Key() string {
	if o.IsGuest() {
		return o.GuestID
	}
	return o.UserID
}

type CartLineItem struct {
	ProductID     string          `json:"product_id"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int             `json:"quantity"`
	StockSnapshot int             `json:"stock_snapshot"`
}

func (i CartLineItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Validate checks the invariants a stored line item must satisfy before it enters the core.
func (i CartLineItem) Validate() error {
	v := &ValidationError{}
	if i.ProductID == "" {
		v.Add("product_id", "required")
	}
	if !i.UnitPrice.IsPositive() {
		v.Add("unit_price", "must be greater than 0")
	}
	if i.Quantity < 1 {
		v.Add("quantity", "must be at least 1")
	}
	if i.StockSnapshot < 0 {
		v.Add("stock_snapshot", "must not be negative")
	}
	return v.OrNil()
}

type Cart struct {
	Owner     Owner          `json:"-"`
	Items     []CartLineItem `json:"items"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func NewCart(owner Owner) *Cart {
	now := time.Now().UTC()
	return &Cart{Owner: owner, Items: []CartLineItem{}, CreatedAt: now, UpdatedAt: now}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Total is recomputed from the line items on every call.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

func (c *Cart) Count() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

func (c *Cart) find(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) Item(productID string) (CartLineItem, bool) {
	idx := c.find(productID)
	if idx < 0 {
		return CartLineItem{}, false
	}
	return c.Items[idx], true
}

// AddItem upserts a line item. On an existing line the quantities are combined and the
// combined quantity is checked against currentStock. The cart is untouched on error.
func (c *Cart) AddItem(p Product, requestedQty, currentStock int) error {
	if requestedQty < 1 {
		return NewValidationError("quantity", "must be at least 1")
	}
	if !p.Price.IsPositive() {
		return NewValidationError("unit_price", "must be greater than 0")
	}
	if requestedQty > currentStock {
		return &InsufficientStockError{ProductID: p.ID, Requested: requestedQty, Available: currentStock}
	}

	idx := c.find(p.ID)
	if idx < 0 {
		c.Items = append(c.Items, CartLineItem{
			ProductID:     p.ID,
			Name:          p.Name,
			UnitPrice:     p.Price,
			Quantity:      requestedQty,
			StockSnapshot: currentStock,
		})
		c.touch()
		return nil
	}

	combined := c.Items[idx].Quantity + requestedQty
	if combined > currentStock {
		return &InsufficientStockError{ProductID: p.ID, Requested: combined, Available: currentStock}
	}
	c.Items[idx].Quantity = combined
	c.Items[idx].StockSnapshot = currentStock
	c.Items[idx].Name = p.Name
	c.Items[idx].UnitPrice = p.Price
	c.touch()
	return nil
}

func (c *Cart) UpdateQuantity(productID string, newQty, currentStock int) error {
	if newQty < 1 {
		return NewValidationError("quantity", "must be at least 1")
	}
	if newQty > currentStock {
		return &InsufficientStockError{ProductID: productID, Requested: newQty, Available: currentStock}
	}
	idx := c.find(productID)
	if idx < 0 {
		return &NotFoundError{Kind: "cart item", ID: productID}
	}
	c.Items[idx].Quantity = newQty
	c.Items[idx].StockSnapshot = currentStock
	c.touch()
	return nil
}

// Decrement lowers the quantity by one as a user action. It never fails on stock: a quantity
// still above the latest stock snapshot is clamped down to it. Reaching zero removes the line.
func (c *Cart) Decrement(productID string) (removed bool, err error) {
	idx := c.find(productID)
	if idx < 0 {
		return false, &NotFoundError{Kind: "cart item", ID: productID}
	}

	item := &c.Items[idx]
	qty := item.Quantity - 1
	if qty > item.StockSnapshot && item.StockSnapshot > 0 {
		qty = item.StockSnapshot
	}
	if qty < 1 {
		c.Remove(productID)
		return true, nil
	}
	item.Quantity = qty
	c.touch()
	return false, nil
}

// Remove is idempotent.
func (c *Cart) Remove(productID string) {
	idx := c.find(productID)
	if idx < 0 {
		return
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	c.touch()
}

func (c *Cart) Clear() {
	c.Items = []CartLineItem{}
	c.touch()
}

// Snapshot copies the line items by value so later cart mutations cannot reach them.
func (c *Cart) Snapshot() []CartLineItem {
	out := make([]CartLineItem, len(c.Items))
	copy(out, c.Items)
	return out
}

// ApplyStock stores the latest fetched stock as the snapshot of every matching line.
func (c *Cart) ApplyStock(report StockReport) {
	for _, v := range report.Items {
		if idx := c.find(v.ProductID); idx >= 0 {
			c.Items[idx].StockSnapshot = v.Available
		}
	}
	c.touch()
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}

// MergeCarts folds a guest cart into the server cart: shared products have their quantities
// summed, the rest are appended. Stock is not checked here; the next validation pass does it.
func MergeCarts(server, guest *Cart) *Cart {
	merged := &Cart{
		Owner:     server.Owner,
		Items:     server.Snapshot(),
		CreatedAt: server.CreatedAt,
	}
	if merged.CreatedAt.IsZero() {
		merged.CreatedAt = time.Now().UTC()
	}
	for _, g := range guest.Items {
		if idx := merged.find(g.ProductID); idx >= 0 {
			merged.Items[idx].Quantity += g.Quantity
			continue
		}
		merged.Items = append(merged.Items, g)
	}
	merged.touch()
	return merged
}
