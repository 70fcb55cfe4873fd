package orders

import (
	"errors"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound          = errors.New("order not found")
	ErrDuplicateOrder         = errors.New("order for this idempotency key already exists")
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

const EventOrderPaid = "order.paid"

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

// OrderPaidEvent is the payload consumed by the receipt renderer.
type OrderPaidEvent struct {
	OrderID         string                 `json:"order_id"`
	UserID          string                 `json:"user_id,omitempty"`
	GuestID         string                 `json:"guest_id,omitempty"`
	Email           string                 `json:"email"`
	Items           []domain.CartLineItem  `json:"items"`
	Shipping        domain.ShippingDetails `json:"shipping"`
	Subtotal        decimal.Decimal        `json:"subtotal"`
	Tax             decimal.Decimal        `json:"tax"`
	Total           decimal.Decimal        `json:"total"`
	Currency        string                 `json:"currency"`
	PaymentIntentID string                 `json:"payment_intent_id"`
	Payment         domain.PaymentRecord   `json:"payment"`
}
