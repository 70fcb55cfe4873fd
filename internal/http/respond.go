package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/pkg/circuitbreaker"
)

type ErrorResponse struct {
	Error   string              `json:"error"`
	Code    string              `json:"code,omitempty"`
	Details string              `json:"details,omitempty"`
	OrderID string              `json:"order_id,omitempty"`
	Fields  map[string]string   `json:"fields,omitempty"`
	Stock   *domain.StockReport `json:"stock,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// handleError maps the domain error taxonomy to a status code and body.
func handleError(w http.ResponseWriter, log *slog.Logger, err error) {
	var (
		validation   *domain.ValidationError
		insufficient *domain.InsufficientStockError
		notFound     *domain.NotFoundError
		blocked      *domain.StockBlockedError
		intentErr    *domain.PaymentIntentError
		confirmErr   *domain.PaymentConfirmationError
		reconcileErr *domain.ReconciliationError
	)

	switch {
	case errors.As(err, &validation):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  err.Error(),
			Code:   "validation_failed",
			Fields: validation.Fields,
		})
	case errors.As(err, &insufficient):
		respondJSON(w, http.StatusConflict, ErrorResponse{
			Error:   err.Error(),
			Code:    "insufficient_stock",
			Details: insufficient.ProductID,
		})
	case errors.As(err, &notFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &blocked):
		respondJSON(w, http.StatusConflict, ErrorResponse{
			Error: err.Error(),
			Code:  "stock_blocked",
			Stock: &blocked.Report,
		})
	case errors.Is(err, domain.ErrEmptyCart):
		respondError(w, http.StatusConflict, "empty_cart", err.Error())
	case errors.Is(err, domain.ErrCheckoutInProgress):
		respondError(w, http.StatusConflict, "checkout_in_progress", err.Error())
	case errors.As(err, &reconcileErr):
		log.Error("payment taken but order not marked paid",
			"order_id", reconcileErr.OrderID, "payment_intent_id", reconcileErr.PaymentIntentID, "error", err)
		respondJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "payment succeeded but the order could not be updated, contact support with the payment id",
			Code:    "reconciliation_failed",
			Details: reconcileErr.PaymentIntentID,
			OrderID: reconcileErr.OrderID,
		})
	case errors.As(err, &intentErr):
		respondJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "payment could not be started, retry with the order id",
			Code:    "payment_intent_failed",
			OrderID: intentErr.OrderID,
		})
	case errors.As(err, &confirmErr):
		code := "payment_declined"
		if confirmErr.Terminal {
			code = "payment_canceled"
		}
		respondJSON(w, http.StatusPaymentRequired, ErrorResponse{
			Error:   confirmErr.Reason,
			Code:    code,
			Details: confirmErr.PaymentIntentID,
			OrderID: confirmErr.OrderID,
		})
	case errors.Is(err, domain.ErrIllegalTransition):
		respondError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, circuitbreaker.ErrOpen):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "dependency temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		log.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
