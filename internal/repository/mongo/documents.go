package mongo

import (
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	cartsCollection     = "carts"
	wishlistsCollection = "wishlists"
	reviewsCollection   = "reviews"
)

func bsonD(keys ...string) bson.D {
	d := make(bson.D, 0, len(keys))
	for _, k := range keys {
		d = append(d, bson.E{Key: k, Value: 1})
	}
	return d
}

// Prices are stored as decimal strings so no precision is lost on the way through BSON.
type cartItemDocument struct {
	ProductID     string    `bson:"product_id"`
	Name          string    `bson:"name"`
	UnitPrice     string    `bson:"unit_price"`
	Quantity      int       `bson:"quantity"`
	StockSnapshot int       `bson:"stock_snapshot"`
	AddedAt       time.Time `bson:"added_at"`
}

type cartDocument struct {
	ID        string             `bson:"_id,omitempty"`
	UserID    string             `bson:"user_id"`
	Items     []cartItemDocument `bson:"items"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

func toCartDocument(c *domain.Cart) cartDocument {
	items := make([]cartItemDocument, len(c.Items))
	for i, it := range c.Items {
		items[i] = cartItemDocument{
			ProductID:     it.ProductID,
			Name:          it.Name,
			UnitPrice:     it.UnitPrice.String(),
			Quantity:      it.Quantity,
			StockSnapshot: it.StockSnapshot,
			AddedAt:       c.UpdatedAt,
		}
	}
	return cartDocument{
		UserID:    c.Owner.UserID,
		Items:     items,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// toDomain maps the stored shape into the core type and fails fast on anything malformed.
func (d cartDocument) toDomain() (*domain.Cart, error) {
	if d.UserID == "" {
		return nil, fmt.Errorf("%w: cart %s has no user_id", domain.ErrMalformedDocument, d.ID)
	}
	c := &domain.Cart{
		Owner:     domain.Owner{UserID: d.UserID},
		Items:     make([]domain.CartLineItem, 0, len(d.Items)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	seen := make(map[string]struct{}, len(d.Items))
	for _, it := range d.Items {
		price, err := decimal.NewFromString(it.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("%w: cart %s item %s price %q", domain.ErrMalformedDocument, d.UserID, it.ProductID, it.UnitPrice)
		}
		item := domain.CartLineItem{
			ProductID:     it.ProductID,
			Name:          it.Name,
			UnitPrice:     price,
			Quantity:      it.Quantity,
			StockSnapshot: it.StockSnapshot,
		}
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("%w: cart %s: %v", domain.ErrMalformedDocument, d.UserID, err)
		}
		if _, dup := seen[it.ProductID]; dup {
			return nil, fmt.Errorf("%w: cart %s lists product %s twice", domain.ErrMalformedDocument, d.UserID, it.ProductID)
		}
		seen[it.ProductID] = struct{}{}
		c.Items = append(c.Items, item)
	}
	return c, nil
}

type wishlistDocument struct {
	UserID     string    `bson:"user_id"`
	ProductIDs []string  `bson:"product_ids"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func (d wishlistDocument) toDomain() (*domain.Wishlist, error) {
	if d.UserID == "" {
		return nil, fmt.Errorf("%w: wishlist has no user_id", domain.ErrMalformedDocument)
	}
	ids := d.ProductIDs
	if ids == nil {
		ids = []string{}
	}
	return &domain.Wishlist{Owner: domain.Owner{UserID: d.UserID}, ProductIDs: ids, UpdatedAt: d.UpdatedAt}, nil
}

type reviewDocument struct {
	ID        string    `bson:"_id"`
	ProductID string    `bson:"product_id"`
	UserID    string    `bson:"user_id"`
	Rating    int       `bson:"rating"`
	Body      string    `bson:"body"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d reviewDocument) toDomain() (domain.Review, error) {
	r := domain.Review{
		ID:        d.ID,
		ProductID: d.ProductID,
		UserID:    d.UserID,
		Rating:    d.Rating,
		Body:      d.Body,
		CreatedAt: d.CreatedAt,
	}
	if err := r.Validate(); err != nil {
		return domain.Review{}, fmt.Errorf("%w: review %s: %v", domain.ErrMalformedDocument, d.ID, err)
	}
	return r, nil
}
