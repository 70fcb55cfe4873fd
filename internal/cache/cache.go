package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_storefront/internal/domain"
)

// CartCache holds read copies of server carts. Every user has a version counter;
// Invalidate bumps it and a fill lands only when the version it read is still current.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Version(ctx context.Context, userID string) (int64, error)
	Fill(ctx context.Context, userID string, cart *domain.Cart, version int64) error
	Invalidate(ctx context.Context, userID string) error
}

var (
	ErrCacheMiss = errors.New("cache miss")
	// ErrStaleFill means the cart was written after the fill read it; nothing was cached.
	ErrStaleFill = errors.New("cache fill is stale")
)
