package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/stock"
)

const reviewsPageSize = 50

type Catalog interface {
	GetAllProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type Reviews interface {
	CreateReview(ctx context.Context, review *domain.Review) error
	ListReviews(ctx context.Context, productID string, limit int64) ([]domain.Review, error)
}

type ProductHandler struct {
	catalog Catalog
	reviews Reviews
	timeout time.Duration
	log     *slog.Logger
}

func NewProductHandler(catalog Catalog, reviews Reviews, timeout time.Duration, log *slog.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		reviews: reviews,
		timeout: timeout,
		log:     log,
	}
}

type CreateReviewRequestDTO struct {
	Rating int    `json:"rating"`
	Body   string `json:"body"`
}

// GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.catalog.GetAllProducts(ctx)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	products := make([]ProductResponse, len(list))
	for i, p := range list {
		products[i] = toProductResponse(p)
	}

	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}

// GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := lookupProduct(ctx, h.catalog, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toProductResponse(p))
}

// GET /api/v1/products/{id}/reviews
func (h *ProductHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "id")
	if _, err := lookupProduct(ctx, h.catalog, productID); err != nil {
		handleError(w, h.log, err)
		return
	}
	h.respondReviews(ctx, w, productID, http.StatusOK)
}

// POST /api/v1/products/{id}/reviews
func (h *ProductHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerFromContext(r.Context())
	if owner.IsGuest() {
		respondError(w, http.StatusUnauthorized, "unauthorized", "sign in to review products")
		return
	}

	productID := chi.URLParam(r, "id")
	if _, err := lookupProduct(ctx, h.catalog, productID); err != nil {
		handleError(w, h.log, err)
		return
	}

	var req CreateReviewRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	review := &domain.Review{
		ProductID: productID,
		UserID:    owner.UserID,
		Rating:    req.Rating,
		Body:      req.Body,
	}
	if err := h.reviews.CreateReview(ctx, review); err != nil {
		handleError(w, h.log, err)
		return
	}
	h.respondReviews(ctx, w, productID, http.StatusCreated)
}

func (h *ProductHandler) respondReviews(ctx context.Context, w http.ResponseWriter, productID string, status int) {
	list, err := h.reviews.ListReviews(ctx, productID, reviewsPageSize)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	if list == nil {
		list = []domain.Review{}
	}
	respondJSON(w, status, ReviewsResponse{Reviews: list})
}

// lookupProduct turns a missing catalog entry into a NotFoundError.
func lookupProduct(ctx context.Context, catalog Catalog, id string) (*domain.Product, error) {
	if id == "" {
		return nil, domain.NewValidationError("product_id", "required")
	}
	p, err := catalog.GetProduct(ctx, id)
	if errors.Is(err, stock.ErrProductNotFound) {
		return nil, &domain.NotFoundError{Kind: "product", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
