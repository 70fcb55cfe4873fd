package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fjod/go_storefront/internal/checkout"
	"github.com/fjod/go_storefront/internal/domain"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	maxIdempotencyKeyLen = 255
)

type CheckoutService interface {
	Draft(ctx context.Context, owner domain.Owner, req checkout.DraftRequest) (*checkout.DraftResult, error)
	RetryIntent(ctx context.Context, owner domain.Owner, orderID string) (*checkout.DraftResult, error)
	Confirm(ctx context.Context, owner domain.Owner, orderID string) (*checkout.ConfirmResult, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	timeout  time.Duration
	log      *slog.Logger
}

func NewCheckoutHandler(svc CheckoutService, timeout time.Duration, log *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: svc,
		timeout:  timeout,
		log:      log,
	}
}

type InitiateCheckoutRequestDTO struct {
	IdempotencyKey string                 `json:"idempotency_key"`
	Shipping       domain.ShippingDetails `json:"shipping"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req InitiateCheckoutRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get(IdempotencyKeyHeader)
	}
	// One key per checkout attempt; a re-POST with the same key resumes the same order.
	switch {
	case req.IdempotencyKey == "":
		handleError(w, h.log, domain.NewValidationError("idempotency_key", "required"))
		return
	case len(req.IdempotencyKey) > maxIdempotencyKeyLen:
		handleError(w, h.log, domain.NewValidationError("idempotency_key", "must be at most 255 characters"))
		return
	}

	res, err := h.checkout.Draft(ctx, ownerFromContext(r.Context()), checkout.DraftRequest{
		IdempotencyKey: req.IdempotencyKey,
		Shipping:       req.Shipping,
	})
	if err != nil {
		handleError(w, h.log, err)
		return
	}

	status := http.StatusCreated
	if res.Reused {
		status = http.StatusOK
	}
	respondJSON(w, status, CheckoutResponse{
		Order:        toOrderResponse(res.Order),
		ClientSecret: res.ClientSecret,
		Reused:       res.Reused,
	})
}

// POST /api/v1/checkout/{order_id}/intent
func (h *CheckoutHandler) RetryIntent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.checkout.RetryIntent(ctx, ownerFromContext(r.Context()), chi.URLParam(r, "order_id"))
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, CheckoutResponse{
		Order:        toOrderResponse(res.Order),
		ClientSecret: res.ClientSecret,
		Reused:       res.Reused,
	})
}

// POST /api/v1/checkout/{order_id}/confirm
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.checkout.Confirm(ctx, ownerFromContext(r.Context()), chi.URLParam(r, "order_id"))
	if err != nil {
		handleError(w, h.log, err)
		return
	}

	status := http.StatusOK
	if !res.State.Settled() {
		status = http.StatusAccepted
	}
	respondJSON(w, status, ConfirmResponse{
		Order: toOrderResponse(res.Order),
		State: string(res.State),
	})
}
