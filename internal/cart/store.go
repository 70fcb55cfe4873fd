package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_storefront/internal/cache"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/keylock"
	"github.com/fjod/go_storefront/internal/repository/mongo"
	"golang.org/x/sync/singleflight"
)

// ServerRepository is the durable store of signed-in users' carts.
type ServerRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	UpsertCart(ctx context.Context, cart *domain.Cart) error
	DeleteCart(ctx context.Context, userID string) error
}

// GuestStorage is the session-scoped persisted copy of a guest cart.
type GuestStorage interface {
	LoadCart(ctx context.Context, guestID string) (*domain.Cart, error)
	SaveCart(ctx context.Context, guestID string, cart *domain.Cart) error
	DeleteCart(ctx context.Context, guestID string) error
}

type StockValidator interface {
	Validate(ctx context.Context, items []domain.CartLineItem) (domain.StockReport, error)
}

type Store struct {
	repo      ServerRepository
	cache     cache.CartCache
	guest     GuestStorage
	validator StockValidator
	log       *slog.Logger

	sfg   singleflight.Group // Prevents cache stampede
	locks *keylock.Mutex
}

func NewStore(repo ServerRepository, c cache.CartCache, guest GuestStorage, validator StockValidator, log *slog.Logger) *Store {
	return &Store{
		repo:      repo,
		cache:     c,
		guest:     guest,
		validator: validator,
		log:       log.With("component", "cart_store"),
		locks:     keylock.New(),
	}
}

func (s *Store) Get(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	if !owner.Valid() {
		return nil, domain.NewValidationError("owner", "user or guest session required")
	}
	return s.load(ctx, owner)
}

// GetDirect reads the cart from its durable store, skipping the cache.
func (s *Store) GetDirect(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	if !owner.Valid() {
		return nil, domain.NewValidationError("owner", "user or guest session required")
	}
	unlock := s.locks.Lock(owner.Key())
	defer unlock()
	return s.loadDirect(ctx, owner)
}

func (s *Store) AddItem(ctx context.Context, owner domain.Owner, product domain.Product, requestedQty, currentStock int) (*domain.Cart, error) {
	return s.mutate(ctx, owner, func(c *domain.Cart) error {
		return c.AddItem(product, requestedQty, currentStock)
	})
}

func (s *Store) UpdateQuantity(ctx context.Context, owner domain.Owner, productID string, newQty, currentStock int) (*domain.Cart, error) {
	return s.mutate(ctx, owner, func(c *domain.Cart) error {
		return c.UpdateQuantity(productID, newQty, currentStock)
	})
}

func (s *Store) Decrement(ctx context.Context, owner domain.Owner, productID string) (*domain.Cart, error) {
	return s.mutate(ctx, owner, func(c *domain.Cart) error {
		_, err := c.Decrement(productID)
		return err
	})
}

func (s *Store) RemoveItem(ctx context.Context, owner domain.Owner, productID string) (*domain.Cart, error) {
	return s.mutate(ctx, owner, func(c *domain.Cart) error {
		c.Remove(productID)
		return nil
	})
}

// Clear empties the cart. A user cart document is deleted, a guest copy is dropped from storage.
func (s *Store) Clear(ctx context.Context, owner domain.Owner) error {
	if !owner.Valid() {
		return domain.NewValidationError("owner", "user or guest session required")
	}
	unlock := s.locks.Lock(owner.Key())
	defer unlock()

	if owner.IsGuest() {
		return s.guest.DeleteCart(ctx, owner.GuestID)
	}

	err := s.repo.DeleteCart(ctx, owner.UserID)
	if err != nil && !errors.Is(err, mongo.ErrCartNotFound) {
		s.log.ErrorContext(ctx, "repo delete cart failed", "user_id", owner.UserID, "error", err)
		return err
	}
	s.invalidateCache(owner.UserID)
	return nil
}

// SignIn folds the guest cart into the user's server cart. The guest copy is removed only after
// the merged cart is durably written, so a retry after a failed write merges again from scratch.
func (s *Store) SignIn(ctx context.Context, guestID, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "required")
	}
	user := domain.Owner{UserID: userID}
	unlock := s.locks.Lock(user.Key())
	defer unlock()

	server, err := s.loadDirect(ctx, user)
	if err != nil {
		return nil, err
	}
	if guestID == "" {
		return server, nil
	}

	guest, err := s.guest.LoadCart(ctx, guestID)
	if err != nil {
		return nil, fmt.Errorf("load guest cart: %w", err)
	}
	if guest.IsEmpty() {
		return server, nil
	}

	merged := domain.MergeCarts(server, guest)
	if err := s.save(ctx, merged); err != nil {
		return nil, err
	}

	if err := s.guest.DeleteCart(ctx, guestID); err != nil {
		// A leftover guest copy merges again on the next sign-in.
		s.log.ErrorContext(ctx, "guest cart delete after merge failed",
			"guest_id", guestID, "user_id", userID, "error", err)
	}
	s.log.InfoContext(ctx, "guest cart merged", "user_id", userID, "items", len(merged.Items))
	return merged, nil
}

// Refresh re-reads stock for every line and stores it as the new snapshot.
func (s *Store) Refresh(ctx context.Context, owner domain.Owner) (*domain.Cart, domain.StockReport, error) {
	var report domain.StockReport
	c, err := s.mutate(ctx, owner, func(c *domain.Cart) error {
		r, err := s.validator.Validate(ctx, c.Items)
		if err != nil {
			return err
		}
		report = r
		c.ApplyStock(r)
		return nil
	})
	if err != nil {
		return nil, domain.StockReport{}, err
	}
	return c, report, nil
}

func (s *Store) mutate(ctx context.Context, owner domain.Owner, fn func(*domain.Cart) error) (*domain.Cart, error) {
	if !owner.Valid() {
		return nil, domain.NewValidationError("owner", "user or guest session required")
	}
	unlock := s.locks.Lock(owner.Key())
	defer unlock()

	c, err := s.loadDirect(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// load serves reads: users go through the cache with singleflight.
func (s *Store) load(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	if owner.IsGuest() {
		return s.guest.LoadCart(ctx, owner.GuestID)
	}

	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(owner.UserID, func() (interface{}, error) {
		c, err := s.cache.Get(ctx, owner.UserID)
		if err == nil {
			return c, nil // cart is in cache
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WarnContext(ctx, "cache get failed", "user_id", owner.UserID, "error", err)
		}

		// The version is read before the repo so a write in between voids the fill.
		version, verr := s.cache.Version(ctx, owner.UserID)
		if verr != nil {
			s.log.WarnContext(ctx, "cache version read failed", "user_id", owner.UserID, "error", verr)
		}

		c, err = s.fromRepo(ctx, owner)
		if err != nil {
			return nil, err
		}

		if verr == nil {
			go s.fill(owner.UserID, cloneCart(c), version)
		}

		return c, nil
	})
	if err != nil {
		return nil, err
	}

	// Callers sharing a flight must not share the pointer.
	return cloneCart(v.(*domain.Cart)), nil
}

// loadDirect bypasses the cache; used under the owner lock before a write.
func (s *Store) loadDirect(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	if owner.IsGuest() {
		return s.guest.LoadCart(ctx, owner.GuestID)
	}
	return s.fromRepo(ctx, owner)
}

func (s *Store) fromRepo(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	c, err := s.repo.GetCart(ctx, owner.UserID)
	if errors.Is(err, mongo.ErrCartNotFound) {
		return domain.NewCart(owner), nil
	}
	if err != nil {
		return nil, err
	}
	c.Owner = owner
	return c, nil
}

func (s *Store) save(ctx context.Context, c *domain.Cart) error {
	if c.Owner.IsGuest() {
		return s.guest.SaveCart(ctx, c.Owner.GuestID, c)
	}
	if err := s.repo.UpsertCart(ctx, c); err != nil {
		s.log.ErrorContext(ctx, "repo upsert cart failed", "user_id", c.Owner.UserID, "error", err)
		return err
	}
	s.invalidateCache(c.Owner.UserID)
	return nil
}

func (s *Store) fill(userID string, c *domain.Cart, version int64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.cache.Fill(ctx, userID, c, version)
	switch {
	case errors.Is(err, cache.ErrStaleFill):
		s.log.Debug("cache fill skipped, cart changed", "user_id", userID)
	case err != nil:
		s.log.Warn("cache set failed", "user_id", userID, "error", err)
	}
}

func (s *Store) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.log.Warn("cache invalidate failed", "user_id", userID, "error", err)
	}
}

func cloneCart(c *domain.Cart) *domain.Cart {
	out := *c
	out.Items = c.Snapshot()
	return &out
}
