package wishlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/keylock"
	"github.com/fjod/go_storefront/internal/repository/mongo"
)

type ServerRepository interface {
	GetWishlist(ctx context.Context, userID string) (*domain.Wishlist, error)
	UpsertWishlist(ctx context.Context, w *domain.Wishlist) error
}

type GuestStorage interface {
	LoadWishlist(ctx context.Context, guestID string) (*domain.Wishlist, error)
	SaveWishlist(ctx context.Context, guestID string, w *domain.Wishlist) error
	DeleteWishlist(ctx context.Context, guestID string) error
}

// Store keeps saved products per owner. Wishlists are not stock gated.
type Store struct {
	repo  ServerRepository
	guest GuestStorage
	log   *slog.Logger
	locks *keylock.Mutex
}

func NewStore(repo ServerRepository, guest GuestStorage, log *slog.Logger) *Store {
	return &Store{
		repo:  repo,
		guest: guest,
		log:   log.With("component", "wishlist_store"),
		locks: keylock.New(),
	}
}

func (s *Store) Get(ctx context.Context, owner domain.Owner) (*domain.Wishlist, error) {
	if !owner.Valid() {
		return nil, domain.NewValidationError("owner", "user or guest session required")
	}
	return s.load(ctx, owner)
}

// Toggle returns true when the product was added.
func (s *Store) Toggle(ctx context.Context, owner domain.Owner, productID string) (*domain.Wishlist, bool, error) {
	var added bool
	w, err := s.mutate(ctx, owner, productID, func(w *domain.Wishlist) {
		added = w.Toggle(productID)
	})
	return w, added, err
}

func (s *Store) Remove(ctx context.Context, owner domain.Owner, productID string) (*domain.Wishlist, error) {
	return s.mutate(ctx, owner, productID, func(w *domain.Wishlist) {
		w.Remove(productID)
	})
}

// SignIn unions the guest wishlist into the user's and drops the guest copy after the server write.
func (s *Store) SignIn(ctx context.Context, guestID, userID string) (*domain.Wishlist, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "required")
	}
	user := domain.Owner{UserID: userID}
	unlock := s.locks.Lock(user.Key())
	defer unlock()

	server, err := s.load(ctx, user)
	if err != nil {
		return nil, err
	}
	if guestID == "" {
		return server, nil
	}

	guest, err := s.guest.LoadWishlist(ctx, guestID)
	if err != nil {
		return nil, fmt.Errorf("load guest wishlist: %w", err)
	}
	if len(guest.ProductIDs) == 0 {
		return server, nil
	}

	merged := domain.MergeWishlists(server, guest)
	if err := s.repo.UpsertWishlist(ctx, merged); err != nil {
		return nil, err
	}
	if err := s.guest.DeleteWishlist(ctx, guestID); err != nil {
		s.log.ErrorContext(ctx, "guest wishlist delete after merge failed",
			"guest_id", guestID, "user_id", userID, "error", err)
	}
	return merged, nil
}

func (s *Store) mutate(ctx context.Context, owner domain.Owner, productID string, fn func(*domain.Wishlist)) (*domain.Wishlist, error) {
	if !owner.Valid() {
		return nil, domain.NewValidationError("owner", "user or guest session required")
	}
	if productID == "" {
		return nil, domain.NewValidationError("product_id", "required")
	}
	unlock := s.locks.Lock(owner.Key())
	defer unlock()

	w, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	fn(w)

	if owner.IsGuest() {
		err = s.guest.SaveWishlist(ctx, owner.GuestID, w)
	} else {
		err = s.repo.UpsertWishlist(ctx, w)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Store) load(ctx context.Context, owner domain.Owner) (*domain.Wishlist, error) {
	if owner.IsGuest() {
		return s.guest.LoadWishlist(ctx, owner.GuestID)
	}
	w, err := s.repo.GetWishlist(ctx, owner.UserID)
	if errors.Is(err, mongo.ErrWishlistNotFound) {
		return domain.NewWishlist(owner), nil
	}
	if err != nil {
		return nil, err
	}
	w.Owner = owner
	return w, nil
}
