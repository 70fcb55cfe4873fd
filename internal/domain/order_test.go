package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taxRate = decimal.RequireFromString("0.10")

func TestNewPendingOrder_Amounts(t *testing.T) {
	items := []CartLineItem{{ProductID: "p1", Name: "Mug", UnitPrice: decimal.RequireFromString("10.50"), Quantity: 2, StockSnapshot: 5}}

	o := NewPendingOrder("o1", Owner{UserID: "u1"}, "key", items, ShippingDetails{}, taxRate)

	assert.Equal(t, OrderStatusPending, o.Status)
	assert.Equal(t, "21.00", o.Subtotal.StringFixed(2))
	assert.Equal(t, "2.10", o.Tax.StringFixed(2))
	assert.Equal(t, "23.10", o.Total.StringFixed(2))
	assert.True(t, o.Total.Equal(o.Subtotal.Mul(decimal.RequireFromString("1.10"))))
	assert.Equal(t, DefaultCurrency, o.Currency)
	assert.Empty(t, o.PaymentIntentID)

	items[0].Quantity = 99
	assert.Equal(t, 2, o.Items[0].Quantity, "order items are copied by value")
}

func TestAmounts_RoundsTaxToCents(t *testing.T) {
	items := []CartLineItem{{ProductID: "p1", UnitPrice: decimal.RequireFromString("19.99"), Quantity: 2}}
	subtotal, tax, total := Amounts(items, taxRate)
	assert.Equal(t, "39.98", subtotal.StringFixed(2))
	assert.Equal(t, "4.00", tax.StringFixed(2))
	assert.Equal(t, "43.98", total.StringFixed(2))
}

func TestCanTransitionTo(t *testing.T) {
	assert.True(t, CanTransitionTo(OrderStatusPending, OrderStatusPaid))
	assert.True(t, CanTransitionTo(OrderStatusPending, OrderStatusFailed))
	assert.False(t, CanTransitionTo(OrderStatusPaid, OrderStatusPending))
	assert.False(t, CanTransitionTo(OrderStatusFailed, OrderStatusPaid))
	assert.False(t, CanTransitionTo(OrderStatusPaid, OrderStatusPaid))
	assert.True(t, OrderStatusFailed.IsTerminal())
	assert.False(t, OrderStatusPending.IsTerminal())
}

func TestOrder_OwnedBy(t *testing.T) {
	user := &Order{UserID: "u1", GuestID: "g1"}
	assert.True(t, user.OwnedBy(Owner{UserID: "u1"}))
	assert.False(t, user.OwnedBy(Owner{GuestID: "g1"}))

	guest := &Order{GuestID: "g1"}
	assert.True(t, guest.OwnedBy(Owner{GuestID: "g1"}))
	assert.False(t, guest.OwnedBy(Owner{GuestID: "g2"}))
	assert.False(t, (&Order{}).OwnedBy(Owner{}))
}

func TestShippingDetails_Validate(t *testing.T) {
	ok := ShippingDetails{Name: "Ann", Email: "ann@example.com", AddressLine: "1 Main St", City: "Springfield", State: "IL", Zip: "62701", Country: "US"}
	require.NoError(t, ok.Validate())

	bad := ok
	bad.City = "  "
	bad.Email = "not-an-email"
	err := bad.Validate()
	var v *ValidationError
	require.ErrorAs(t, err, &v)
	assert.Contains(t, v.Fields, "city")
	assert.Contains(t, v.Fields, "email")
	assert.ErrorIs(t, err, ErrValidation)

	bad.Email = "ann@localhost"
	v = nil
	require.ErrorAs(t, bad.Validate(), &v)
	assert.Contains(t, v.Fields, "email")
}

func TestJudge(t *testing.T) {
	assert.Equal(t, StockOK, Judge("p", 2, 5, true).Status)
	assert.Equal(t, StockOK, Judge("p", 5, 5, true).Status)

	reduced := Judge("p", 3, 1, true)
	assert.Equal(t, StockReduced, reduced.Status)
	assert.Equal(t, 1, reduced.Available)

	assert.Equal(t, StockUnavailable, Judge("p", 1, 0, true).Status)
	assert.Equal(t, StockUnavailable, Judge("p", 1, 7, false).Status)

	report := StockReport{Items: []StockVerdict{Judge("a", 1, 1, true), Judge("b", 3, 1, true)}}
	assert.False(t, report.OK())
	require.Len(t, report.Blocked(), 1)
	assert.Equal(t, "b", report.Blocked()[0].ProductID)
}

func TestErrorsMatchSentinels(t *testing.T) {
	assert.ErrorIs(t, &PaymentIntentError{OrderID: "o", Err: assert.AnError}, ErrPaymentIntent)
	assert.ErrorIs(t, &PaymentIntentError{OrderID: "o", Err: assert.AnError}, assert.AnError)
	rec := &ReconciliationError{OrderID: "o", PaymentIntentID: "pi_1", Err: assert.AnError}
	assert.ErrorIs(t, rec, ErrReconciliation)
	assert.Contains(t, rec.Error(), "contact support with payment id pi_1")
	assert.ErrorIs(t, &StockBlockedError{}, ErrStockBlocked)
	assert.ErrorIs(t, &NotFoundError{Kind: "order", ID: "x"}, ErrNotFound)
}

func TestWishlist_ToggleAndMerge(t *testing.T) {
	w := NewWishlist(Owner{GuestID: "g"})
	assert.True(t, w.Toggle("a"))
	assert.True(t, w.Toggle("b"))
	assert.False(t, w.Toggle("a"))
	assert.Equal(t, []string{"b"}, w.ProductIDs)

	server := NewWishlist(Owner{UserID: "u"})
	server.Toggle("b")
	server.Toggle("c")
	w.Toggle("d")

	merged := MergeWishlists(server, w)
	assert.Equal(t, []string{"b", "c", "d"}, merged.ProductIDs)
	assert.Equal(t, Owner{UserID: "u"}, merged.Owner)
}
