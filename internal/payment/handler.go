package payment

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/go_storefront/pkg/circuitbreaker"
)

const maxIntentBody = 1 << 16

// IdempotencyKeyHeader carries IntentRequest.IdempotencyKey on the intent endpoint.
const IdempotencyKeyHeader = "Idempotency-Key"

// IntentHandler serves POST /api/create-payment-intent in front of a Processor.
type IntentHandler struct {
	processor IntentClient
	log       *slog.Logger
}

func NewIntentHandler(processor IntentClient, log *slog.Logger) *IntentHandler {
	return &IntentHandler{processor: processor, log: log.With("component", "intent_handler")}
}

func (h *IntentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeIntentError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body intentRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIntentBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeIntentError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Currency == "" {
		body.Currency = "usd"
	}
	if body.Currency != "usd" {
		writeIntentError(w, http.StatusBadRequest, "unsupported currency")
		return
	}

	req := body.toDomain()
	req.IdempotencyKey = r.Header.Get(IdempotencyKeyHeader)
	if err := req.Validate(); err != nil {
		writeIntentError(w, http.StatusBadRequest, err.Error())
		return
	}

	intent, err := h.processor.CreateIntent(r.Context(), req)
	if err != nil {
		h.log.ErrorContext(r.Context(), "create payment intent failed", "order_id", req.OrderID, "error", err)
		switch {
		case errors.Is(err, ErrInvalidRequest):
			writeIntentError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, circuitbreaker.ErrOpen):
			writeIntentError(w, http.StatusServiceUnavailable, "payment provider unavailable")
		default:
			writeIntentError(w, http.StatusInternalServerError, "failed to create payment intent")
		}
		return
	}

	writeIntentJSON(w, http.StatusOK, intentResponse{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID})
}

func writeIntentJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeIntentError(w http.ResponseWriter, status int, msg string) {
	writeIntentJSON(w, status, intentErrorResponse{Error: msg})
}
