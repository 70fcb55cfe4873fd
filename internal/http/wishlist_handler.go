package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fjod/go_storefront/internal/domain"
)

type WishlistService interface {
	Get(ctx context.Context, owner domain.Owner) (*domain.Wishlist, error)
	Toggle(ctx context.Context, owner domain.Owner, productID string) (*domain.Wishlist, bool, error)
	Remove(ctx context.Context, owner domain.Owner, productID string) (*domain.Wishlist, error)
}

type WishlistHandler struct {
	wishlists WishlistService
	catalog   Catalog
	timeout   time.Duration
	log       *slog.Logger
}

func NewWishlistHandler(wishlists WishlistService, catalog Catalog, timeout time.Duration, log *slog.Logger) *WishlistHandler {
	return &WishlistHandler{
		wishlists: wishlists,
		catalog:   catalog,
		timeout:   timeout,
		log:       log,
	}
}

func (h *WishlistHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.wishlists.Get(ctx, ownerFromContext(r.Context()))
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toWishlistResponse(list))
}

func (h *WishlistHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	if _, err := lookupProduct(ctx, h.catalog, productID); err != nil {
		handleError(w, h.log, err)
		return
	}

	list, added, err := h.wishlists.Toggle(ctx, ownerFromContext(r.Context()), productID)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ToggleWishlistResponse{Wishlist: toWishlistResponse(list), Added: added})
}

// Remove does not consult the catalog so products gone from it can still be dropped.
func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.wishlists.Remove(ctx, ownerFromContext(r.Context()), chi.URLParam(r, "product_id"))
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toWishlistResponse(list))
}
