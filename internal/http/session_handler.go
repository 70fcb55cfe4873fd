package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
)

type CartMerger interface {
	SignIn(ctx context.Context, guestID, userID string) (*domain.Cart, error)
}

type WishlistMerger interface {
	SignIn(ctx context.Context, guestID, userID string) (*domain.Wishlist, error)
}

type SessionHandler struct {
	carts     CartMerger
	wishlists WishlistMerger
	timeout   time.Duration
	log       *slog.Logger
}

func NewSessionHandler(carts CartMerger, wishlists WishlistMerger, timeout time.Duration, log *slog.Logger) *SessionHandler {
	return &SessionHandler{
		carts:     carts,
		wishlists: wishlists,
		timeout:   timeout,
		log:       log,
	}
}

// SignIn folds the guest cart and wishlist of this session into the signed-in user's.
// Calling it again is harmless: the guest copies are gone after a successful merge.
func (h *SessionHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerFromContext(r.Context())
	if owner.IsGuest() {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	cart, err := h.carts.SignIn(ctx, owner.GuestID, owner.UserID)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	list, err := h.wishlists.SignIn(ctx, owner.GuestID, owner.UserID)
	if err != nil {
		handleError(w, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, SignInResponse{
		Cart:     toCartResponse(cart),
		Wishlist: toWishlistResponse(list),
	})
}
