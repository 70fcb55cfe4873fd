package checkout

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/payment"
	"github.com/shopspring/decimal"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)
	ListOrdersByOwner(ctx context.Context, owner domain.Owner) ([]*domain.Order, error)
	ListStalePendingOrders(ctx context.Context, before time.Time, limit int) ([]*domain.Order, error)
	NextIntentAttempt(ctx context.Context, orderID string) (int, error)
	SetPaymentIntent(ctx context.Context, orderID, intentID string) error
	MarkPaid(ctx context.Context, orderID string, payment domain.PaymentRecord) (bool, error)
	MarkFailed(ctx context.Context, orderID, reason string) (bool, error)
}

// CartStore reads carts from their durable store; checkout never drafts from a cached copy.
type CartStore interface {
	GetDirect(ctx context.Context, owner domain.Owner) (*domain.Cart, error)
	Clear(ctx context.Context, owner domain.Owner) error
}

type StockValidator interface {
	Validate(ctx context.Context, items []domain.CartLineItem) (domain.StockReport, error)
}

type Options struct {
	TaxRate        decimal.Decimal
	PaymentTimeout time.Duration
}

type Service struct {
	orders    OrderRepository
	carts     CartStore
	validator StockValidator
	intents   payment.IntentClient
	confirmer payment.Confirmer
	guard     *Guard
	opts      Options
	log       *slog.Logger
	now       func() time.Time
}

func NewService(
	orders OrderRepository,
	carts CartStore,
	validator StockValidator,
	intents payment.IntentClient,
	confirmer payment.Confirmer,
	opts Options,
	log *slog.Logger,
) *Service {
	if opts.PaymentTimeout <= 0 {
		opts.PaymentTimeout = 10 * time.Second
	}
	return &Service{
		orders:    orders,
		carts:     carts,
		validator: validator,
		intents:   intents,
		confirmer: confirmer,
		guard:     NewGuard(),
		opts:      opts,
		log:       log.With("component", "checkout"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) acquire(owner domain.Owner) (func(), error) {
	if !owner.Valid() {
		return nil, domain.NewValidationError("owner", "user or guest session required")
	}
	release, ok := s.guard.TryAcquire(owner.Key())
	if !ok {
		return nil, domain.ErrCheckoutInProgress
	}
	return release, nil
}
