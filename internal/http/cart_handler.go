package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fjod/go_storefront/internal/domain"
)

const maxLineQuantity = 99

type CartService interface {
	Get(ctx context.Context, owner domain.Owner) (*domain.Cart, error)
	AddItem(ctx context.Context, owner domain.Owner, product domain.Product, requestedQty, currentStock int) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, owner domain.Owner, productID string, newQty, currentStock int) (*domain.Cart, error)
	Decrement(ctx context.Context, owner domain.Owner, productID string) (*domain.Cart, error)
	RemoveItem(ctx context.Context, owner domain.Owner, productID string) (*domain.Cart, error)
	Clear(ctx context.Context, owner domain.Owner) error
	Refresh(ctx context.Context, owner domain.Owner) (*domain.Cart, domain.StockReport, error)
}

type CartHandler struct {
	carts   CartService
	catalog Catalog
	timeout time.Duration
	log     *slog.Logger
}

func NewCartHandler(carts CartService, catalog Catalog, timeout time.Duration, log *slog.Logger) *CartHandler {
	return &CartHandler{
		carts:   carts,
		catalog: catalog,
		timeout: timeout,
		log:     log,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.Get(ctx, ownerFromContext(r.Context()))
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(cart))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > maxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	// Price and stock always come from the catalog, never from the client.
	product, err := lookupProduct(ctx, h.catalog, req.ProductID)
	if err != nil {
		handleError(w, h.log, err)
		return
	}

	cart, err := h.carts.AddItem(ctx, ownerFromContext(r.Context()), *product, req.Quantity, product.Stock)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, toCartResponse(cart))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")

	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity <= 0 || req.Quantity > maxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	product, err := lookupProduct(ctx, h.catalog, productID)
	if err != nil {
		handleError(w, h.log, err)
		return
	}

	cart, err := h.carts.UpdateQuantity(ctx, ownerFromContext(r.Context()), productID, req.Quantity, product.Stock)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(cart))
}

func (h *CartHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.Decrement(ctx, ownerFromContext(r.Context()), chi.URLParam(r, "product_id"))
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(cart))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.RemoveItem(ctx, ownerFromContext(r.Context()), chi.URLParam(r, "product_id"))
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(cart))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerFromContext(r.Context())
	if err := h.carts.Clear(ctx, owner); err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(domain.NewCart(owner)))
}

// Validate re-reads stock for every line and reports what would block checkout.
func (h *CartHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, report, err := h.carts.Refresh(ctx, ownerFromContext(r.Context()))
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ValidateCartResponse{
		Cart:  toCartResponse(cart),
		Stock: report,
		OK:    report.OK(),
	})
}
