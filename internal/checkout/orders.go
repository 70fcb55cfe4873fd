package checkout

import (
	"context"

	"github.com/fjod/go_storefront/internal/domain"
)

// Orders lists the owner's order history, newest first.
func (s *Service) Orders(ctx context.Context, owner domain.Owner) ([]*domain.Order, error) {
	if !owner.Valid() {
		return nil, domain.NewValidationError("owner", "user or guest session required")
	}
	return s.orders.ListOrdersByOwner(ctx, owner)
}

func (s *Service) Order(ctx context.Context, owner domain.Owner, orderID string) (*domain.Order, error) {
	return s.ownedOrder(ctx, owner, orderID)
}
