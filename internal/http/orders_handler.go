package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fjod/go_storefront/internal/domain"
)

type OrderLister interface {
	Orders(ctx context.Context, owner domain.Owner) ([]*domain.Order, error)
	Order(ctx context.Context, owner domain.Owner, orderID string) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderLister
	timeout time.Duration
	log     *slog.Logger
}

func NewOrdersHandler(orders OrderLister, timeout time.Duration, log *slog.Logger) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
		log:     log,
	}
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.orders.Orders(ctx, ownerFromContext(r.Context()))
	if err != nil {
		handleError(w, h.log, err)
		return
	}

	orders := make([]OrderResponse, len(list))
	for i, o := range list {
		orders[i] = toOrderResponse(o)
	}
	respondJSON(w, http.StatusOK, OrdersResponse{Orders: orders})
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.Order(ctx, ownerFromContext(r.Context()), chi.URLParam(r, "order_id"))
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(order))
}
