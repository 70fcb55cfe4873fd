package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Fixed keys of the guest session storage.
const (
	guestCartKey     = "cart"
	guestWishlistKey = "wishlist"
)

// GuestStore keeps carts and wishlists of sessions without an identity. Values are JSON arrays
// (line items, product ids) rewritten after every mutation and kept for ttl since the last write.
type GuestStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewGuestStore(client *redis.Client, ttl time.Duration) *GuestStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &GuestStore{client: client, ttl: ttl}
}

func guestKey(guestID, name string) string {
	return fmt.Sprintf("guest:%s:%s", guestID, name)
}

// LoadCart returns an empty cart when nothing is stored for the session.
func (g *GuestStore) LoadCart(ctx context.Context, guestID string) (*domain.Cart, error) {
	cart := domain.NewCart(domain.Owner{GuestID: guestID})

	data, err := g.client.Get(ctx, guestKey(guestID, guestCartKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return cart, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get guest cart failed: %w", err)
	}

	var items []domain.CartLineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: guest cart %s: %v", domain.ErrMalformedDocument, guestID, err)
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("%w: guest cart %s: %v", domain.ErrMalformedDocument, guestID, err)
		}
	}
	cart.Items = items
	return cart, nil
}

func (g *GuestStore) SaveCart(ctx context.Context, guestID string, cart *domain.Cart) error {
	items := cart.Items
	if items == nil {
		items = []domain.CartLineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal guest cart failed: %w", err)
	}
	if err := g.client.Set(ctx, guestKey(guestID, guestCartKey), data, g.ttl).Err(); err != nil {
		return fmt.Errorf("redis set guest cart failed: %w", err)
	}
	return nil
}

func (g *GuestStore) DeleteCart(ctx context.Context, guestID string) error {
	if err := g.client.Del(ctx, guestKey(guestID, guestCartKey)).Err(); err != nil {
		return fmt.Errorf("redis delete guest cart failed: %w", err)
	}
	return nil
}

func (g *GuestStore) LoadWishlist(ctx context.Context, guestID string) (*domain.Wishlist, error) {
	w := domain.NewWishlist(domain.Owner{GuestID: guestID})

	data, err := g.client.Get(ctx, guestKey(guestID, guestWishlistKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get guest wishlist failed: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("%w: guest wishlist %s: %v", domain.ErrMalformedDocument, guestID, err)
	}
	for _, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("%w: guest wishlist %s: empty product id", domain.ErrMalformedDocument, guestID)
		}
	}
	w.ProductIDs = ids
	return w, nil
}

func (g *GuestStore) SaveWishlist(ctx context.Context, guestID string, w *domain.Wishlist) error {
	ids := w.ProductIDs
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal guest wishlist failed: %w", err)
	}
	if err := g.client.Set(ctx, guestKey(guestID, guestWishlistKey), data, g.ttl).Err(); err != nil {
		return fmt.Errorf("redis set guest wishlist failed: %w", err)
	}
	return nil
}

func (g *GuestStore) DeleteWishlist(ctx context.Context, guestID string) error {
	if err := g.client.Del(ctx, guestKey(guestID, guestWishlistKey)).Err(); err != nil {
		return fmt.Errorf("redis delete guest wishlist failed: %w", err)
	}
	return nil
}
