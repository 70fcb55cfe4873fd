package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
	OrderStatusFailed  OrderStatus = "failed"
)

const DefaultCurrency = "usd"

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusFailed
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusFailed:
		return true
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo allows pending -> paid and pending -> failed only. Orders never move backward.
func CanTransitionTo(from, to OrderStatus) bool {
	return from == OrderStatusPending && (to == OrderStatusPaid || to == OrderStatusFailed)
}

type PaymentRecord struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PaidAt        time.Time       `json:"paid_at"`
}

type Order struct {
	ID              string
	UserID          string
	GuestID         string
	IdempotencyKey  string
	Items           []CartLineItem
	Shipping        ShippingDetails
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
	Currency        string
	Status          OrderStatus
	PaymentIntentID string
	IntentAttempts  int
	Payment         *PaymentRecord
	FailureReason   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (o *Order) Owner() Owner {
	return Owner{UserID: o.UserID, GuestID: o.GuestID}
}

// OwnedBy reports whether the session may see or act on the order.
func (o *Order) OwnedBy(owner Owner) bool {
	if o.UserID != "" {
		return o.UserID == owner.UserID
	}
	return o.GuestID != "" && o.GuestID == owner.GuestID
}

// Amounts computes subtotal, tax (rounded to cents) and total for a set of line items.
func Amounts(items []CartLineItem, taxRate decimal.Decimal) (subtotal, tax, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	tax = subtotal.Mul(taxRate).Round(2)
	total = subtotal.Add(tax)
	return subtotal, tax, total
}

// NewPendingOrder drafts an order from a cart snapshot. The items are copied by value.
func NewPendingOrder(id string, owner Owner, idempotencyKey string, items []CartLineItem, shipping ShippingDetails, taxRate decimal.Decimal) *Order {
	snapshot := make([]CartLineItem, len(items))
	copy(snapshot, items)
	subtotal, tax, total := Amounts(snapshot, taxRate)
	now := time.Now().UTC()
	return &Order{
		ID:             id,
		UserID:         owner.UserID,
		GuestID:        owner.GuestID,
		IdempotencyKey: idempotencyKey,
		Items:          snapshot,
		Shipping:       shipping,
		Subtotal:       subtotal,
		Tax:            tax,
		Total:          total,
		Currency:       DefaultCurrency,
		Status:         OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ConfirmationState is the state of one payment confirmation attempt.
type ConfirmationState string

const (
	ConfirmationAwaiting   ConfirmationState = "awaiting_confirmation"
	ConfirmationConfirming ConfirmationState = "confirming"
	ConfirmationSucceeded  ConfirmationState = "succeeded"
	ConfirmationFailed     ConfirmationState = "failed"
)

// Settled reports whether the attempt has reached an outcome.
func (s ConfirmationState) Settled() bool {
	return s == ConfirmationSucceeded || s == ConfirmationFailed
}
