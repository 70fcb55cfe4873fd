package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/payment"
	"github.com/fjod/go_storefront/internal/repository/orders"
	"github.com/google/uuid"
)

type DraftRequest struct {
	IdempotencyKey string
	Shipping       domain.ShippingDetails
}

type DraftResult struct {
	Order        *domain.Order
	ClientSecret string
	Reused       bool
}

// Draft turns the owner's cart into a pending order and requests a payment intent for it.
// When the intent request fails the order stays pending and a *domain.PaymentIntentError
// carrying its id is returned next to the result, so the caller can RetryIntent.
func (s *Service) Draft(ctx context.Context, owner domain.Owner, req DraftRequest) (*DraftResult, error) {
	release, err := s.acquire(owner)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := req.Shipping.Validate(); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.orderForKey(ctx, owner, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return s.resume(ctx, existing)
		}
	}

	cart, err := s.carts.GetDirect(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	report, err := s.validator.Validate(ctx, cart.Items)
	if err != nil {
		return nil, fmt.Errorf("validate stock: %w", err)
	}
	if !report.OK() {
		return nil, &domain.StockBlockedError{Report: report}
	}

	order := domain.NewPendingOrder(uuid.NewString(), owner, req.IdempotencyKey, cart.Snapshot(), req.Shipping, s.opts.TaxRate)
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, orders.ErrDuplicateOrder) {
			// Lost a race on the idempotency key.
			existing, getErr := s.orderForKey(ctx, owner, req.IdempotencyKey)
			if getErr != nil {
				return nil, getErr
			}
			if existing != nil {
				return s.resume(ctx, existing)
			}
		}
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.log.InfoContext(ctx, "order drafted",
		"order_id", order.ID, "owner", owner.Key(), "items", len(order.Items), "total", order.Total.StringFixed(2))

	secret, err := s.requestIntent(ctx, order)
	return &DraftResult{Order: order, ClientSecret: secret}, err
}

// RetryIntent hands out a payment intent for a pending order, requesting a new one only
// when the order has none the customer can still complete.
func (s *Service) RetryIntent(ctx context.Context, owner domain.Owner, orderID string) (*DraftResult, error) {
	release, err := s.acquire(owner)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := s.ownedOrder(ctx, owner, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusPending {
		return nil, fmt.Errorf("order %s is %s: %w", order.ID, order.Status, domain.ErrIllegalTransition)
	}

	return s.continueIntent(ctx, order)
}

// resume continues an order found by idempotency key.
func (s *Service) resume(ctx context.Context, order *domain.Order) (*DraftResult, error) {
	s.log.InfoContext(ctx, "duplicate checkout request",
		"order_id", order.ID, "idempotency_key", order.IdempotencyKey, "status", order.Status)

	if order.Status != domain.OrderStatusPending {
		return &DraftResult{Order: order, Reused: true}, nil
	}
	return s.continueIntent(ctx, order)
}

// continueIntent keeps the order on its current intent while the customer can still pay
// it, reconciling it if it already succeeded. Only a canceled or unknown intent is replaced.
func (s *Service) continueIntent(ctx context.Context, order *domain.Order) (*DraftResult, error) {
	if order.PaymentIntentID != "" {
		stateCtx, cancel := context.WithTimeout(ctx, s.opts.PaymentTimeout)
		state, err := s.confirmer.IntentStatus(stateCtx, order.PaymentIntentID)
		cancel()

		switch {
		case errors.Is(err, payment.ErrIntentNotFound):
			s.log.WarnContext(ctx, "current intent unknown to processor, replacing",
				"order_id", order.ID, "payment_intent_id", order.PaymentIntentID)
		case err != nil:
			s.log.ErrorContext(ctx, "read current intent failed",
				"order_id", order.ID, "payment_intent_id", order.PaymentIntentID, "error", err)
			return &DraftResult{Order: order, Reused: true},
				&domain.PaymentIntentError{OrderID: order.ID, Err: fmt.Errorf("read current intent: %w", err)}
		case state.Status == payment.StatusSucceeded:
			paid, err := s.settle(ctx, order, state)
			if err != nil {
				return nil, err
			}
			return &DraftResult{Order: paid, Reused: true}, nil
		case state.Status.Open():
			if state.ClientSecret == "" {
				return &DraftResult{Order: order, Reused: true}, &domain.PaymentIntentError{
					OrderID: order.ID,
					Err:     fmt.Errorf("intent %s is still open but its client secret is unavailable", state.ID),
				}
			}
			return &DraftResult{Order: order, ClientSecret: state.ClientSecret, Reused: true}, nil
		}
	}

	secret, err := s.requestIntent(ctx, order)
	return &DraftResult{Order: order, ClientSecret: secret, Reused: true}, err
}

// requestIntent binds a new intent to the order. Each call is a new attempt with its own
// idempotency key.
func (s *Service) requestIntent(ctx context.Context, order *domain.Order) (string, error) {
	attempt, err := s.orders.NextIntentAttempt(ctx, order.ID)
	if err != nil {
		return "", &domain.PaymentIntentError{OrderID: order.ID, Err: fmt.Errorf("count intent attempt: %w", err)}
	}
	order.IntentAttempts = attempt

	intentCtx, cancel := context.WithTimeout(ctx, s.opts.PaymentTimeout)
	defer cancel()

	intent, err := s.intents.CreateIntent(intentCtx, payment.IntentRequest{
		OrderID:        order.ID,
		UserID:         order.UserID,
		Amount:         order.Total,
		Currency:       order.Currency,
		IdempotencyKey: fmt.Sprintf("%s-%d", order.ID, attempt),
	})
	if err != nil {
		s.log.ErrorContext(ctx, "payment intent request failed", "order_id", order.ID, "error", err)
		return "", &domain.PaymentIntentError{OrderID: order.ID, Err: err}
	}

	if err := s.orders.SetPaymentIntent(ctx, order.ID, intent.ID); err != nil {
		return "", &domain.PaymentIntentError{OrderID: order.ID, Err: fmt.Errorf("store intent id: %w", err)}
	}
	order.PaymentIntentID = intent.ID
	return intent.ClientSecret, nil
}

// orderForKey returns nil when no order exists for the key.
func (s *Service) orderForKey(ctx context.Context, owner domain.Owner, key string) (*domain.Order, error) {
	order, err := s.orders.GetOrderByIdempotencyKey(ctx, key)
	if errors.Is(err, orders.ErrIdempotencyKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if !order.OwnedBy(owner) {
		return nil, domain.NewValidationError("idempotency_key", "already used")
	}
	return order, nil
}

func (s *Service) ownedOrder(ctx context.Context, owner domain.Owner, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		return nil, &domain.NotFoundError{Kind: "order", ID: orderID}
	}
	if err != nil {
		return nil, err
	}
	if !order.OwnedBy(owner) {
		return nil, &domain.NotFoundError{Kind: "order", ID: orderID}
	}
	return order, nil
}
