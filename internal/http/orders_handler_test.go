package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_storefront/internal/domain"
)

func TestListOrders_OnlyOwnOrders(t *testing.T) {
	mine := pendingOrder("order-1", signedIn)
	theirs := pendingOrder("order-2", domain.Owner{UserID: "user-2"})
	handler := NewOrdersHandler(&checkoutMock{orders: []*domain.Order{mine, theirs}}, testTimeout, discard)

	rec := httptest.NewRecorder()
	handler.ListOrders(rec, withOwnerCtx(httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil), signedIn))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeInto[OrdersResponse](t, rec)
	require.Len(t, resp.Orders, 1)
	assert.Equal(t, "order-1", resp.Orders[0].ID)
	assert.Len(t, resp.Orders[0].Items, 1)
	assert.Equal(t, "Ada Lovelace", resp.Orders[0].Shipping.Name)
}

func TestListOrders_Empty(t *testing.T) {
	handler := NewOrdersHandler(&checkoutMock{}, testTimeout, discard)

	rec := httptest.NewRecorder()
	handler.ListOrders(rec, withOwnerCtx(httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil), signedIn))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"orders":[]}`, rec.Body.String())
}

func TestListOrders_BackendError(t *testing.T) {
	handler := NewOrdersHandler(&checkoutMock{err: errors.New("connection refused")}, testTimeout, discard)

	rec := httptest.NewRecorder()
	handler.ListOrders(rec, withOwnerCtx(httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil), signedIn))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestGetOrder_PaidShowsTransaction(t *testing.T) {
	order := pendingOrder("order-1", signedIn)
	order.Status = domain.OrderStatusPaid
	order.PaymentIntentID = "pi_1"
	order.Payment = &domain.PaymentRecord{TransactionID: "pi_1", Amount: order.Total, Currency: "usd"}
	handler := NewOrdersHandler(&checkoutMock{orders: []*domain.Order{order}}, testTimeout, discard)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/order-1", nil)
	rec := httptest.NewRecorder()
	handler.GetOrder(rec, withURLParam(withOwnerCtx(req, signedIn), "order_id", "order-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeInto[OrderResponse](t, rec)
	assert.Equal(t, "paid", resp.Status)
	assert.Equal(t, "pi_1", resp.TransactionID)
}

func TestGetOrder_ForeignOrderIsNotFound(t *testing.T) {
	order := pendingOrder("order-1", domain.Owner{UserID: "user-2"})
	handler := NewOrdersHandler(&checkoutMock{orders: []*domain.Order{order}}, testTimeout, discard)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/order-1", nil)
	rec := httptest.NewRecorder()
	handler.GetOrder(rec, withURLParam(withOwnerCtx(req, signedIn), "order_id", "order-1"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
