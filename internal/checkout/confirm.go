package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/payment"
)

type ConfirmResult struct {
	Order *domain.Order
	State domain.ConfirmationState
}

// Confirm reads the intent status and moves the attempt on. A successful payment is
// reconciled before Confirm returns. requires_action leaves the attempt awaiting
// confirmation and processing reports it as confirming; call Confirm again once the
// customer is back from the redirect or the processor has settled.
func (s *Service) Confirm(ctx context.Context, owner domain.Owner, orderID string) (*ConfirmResult, error) {
	release, err := s.acquire(owner)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := s.ownedOrder(ctx, owner, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case domain.OrderStatusPaid:
		return &ConfirmResult{Order: order, State: domain.ConfirmationSucceeded}, nil
	case domain.OrderStatusFailed:
		return &ConfirmResult{Order: order, State: domain.ConfirmationFailed}, &domain.PaymentConfirmationError{
			OrderID:         order.ID,
			PaymentIntentID: order.PaymentIntentID,
			Reason:          order.FailureReason,
			Terminal:        true,
		}
	}
	if order.PaymentIntentID == "" {
		return nil, domain.NewValidationError("payment_intent_id", "no payment intent for this order yet")
	}

	stateCtx, cancel := context.WithTimeout(ctx, s.opts.PaymentTimeout)
	defer cancel()
	state, err := s.confirmer.IntentStatus(stateCtx, order.PaymentIntentID)
	if err != nil {
		s.log.ErrorContext(ctx, "read payment intent failed",
			"order_id", order.ID, "payment_intent_id", order.PaymentIntentID, "error", err)
		return nil, &domain.PaymentConfirmationError{
			OrderID:         order.ID,
			PaymentIntentID: order.PaymentIntentID,
			Reason:          "payment status unavailable, try again",
		}
	}

	switch state.Status {
	case payment.StatusSucceeded:
		paid, err := s.settle(ctx, order, state)
		if err != nil {
			return nil, err
		}
		return &ConfirmResult{Order: paid, State: domain.ConfirmationSucceeded}, nil

	case payment.StatusCanceled:
		reason := state.LastError
		if reason == "" {
			reason = "payment canceled"
		}
		if _, err := s.orders.MarkFailed(ctx, order.ID, reason); err != nil {
			return nil, fmt.Errorf("mark order failed: %w", err)
		}
		order.Status = domain.OrderStatusFailed
		order.FailureReason = reason
		s.log.WarnContext(ctx, "payment canceled", "order_id", order.ID, "payment_intent_id", state.ID)
		return &ConfirmResult{Order: order, State: domain.ConfirmationFailed}, &domain.PaymentConfirmationError{
			OrderID:         order.ID,
			PaymentIntentID: state.ID,
			Reason:          reason,
			Terminal:        true,
		}

	case payment.StatusRequiresPaymentMethod:
		if state.LastError == "" {
			return &ConfirmResult{Order: order, State: domain.ConfirmationAwaiting}, nil
		}
		// Declined: the order and the cart stay as they are for another attempt.
		s.log.InfoContext(ctx, "payment declined", "order_id", order.ID, "reason", state.LastError)
		return &ConfirmResult{Order: order, State: domain.ConfirmationFailed}, &domain.PaymentConfirmationError{
			OrderID:         order.ID,
			PaymentIntentID: state.ID,
			Reason:          state.LastError,
		}

	case payment.StatusProcessing:
		return &ConfirmResult{Order: order, State: domain.ConfirmationConfirming}, nil

	default:
		return &ConfirmResult{Order: order, State: domain.ConfirmationAwaiting}, nil
	}
}

// settle reconciles a succeeded intent after checking it charged the order total.
func (s *Service) settle(ctx context.Context, order *domain.Order, state payment.IntentState) (*domain.Order, error) {
	if !state.Amount.Equal(order.Total) {
		return nil, &domain.ReconciliationError{
			OrderID:         order.ID,
			PaymentIntentID: state.ID,
			Err:             fmt.Errorf("intent amount %s does not match order total %s", state.Amount.StringFixed(2), order.Total.StringFixed(2)),
		}
	}
	return s.reconcile(ctx, order.ID, state.ID)
}

// Reconcile marks the order paid for a succeeded intent and then clears the owner's cart.
// It is safe to call any number of times: only the call that moves the order out of
// pending clears the cart and enqueues the order.paid event.
func (s *Service) Reconcile(ctx context.Context, orderID, intentID string) (*domain.Order, error) {
	return s.reconcile(ctx, orderID, intentID)
}

func (s *Service) reconcile(ctx context.Context, orderID, intentID string) (*domain.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, &domain.ReconciliationError{OrderID: orderID, PaymentIntentID: intentID, Err: err}
	}

	switch order.Status {
	case domain.OrderStatusPaid:
		return order, nil
	case domain.OrderStatusFailed:
		return nil, &domain.ReconciliationError{
			OrderID:         orderID,
			PaymentIntentID: intentID,
			Err:             fmt.Errorf("order is failed: %w", domain.ErrIllegalTransition),
		}
	}
	if order.PaymentIntentID != intentID {
		return nil, &domain.ReconciliationError{
			OrderID:         orderID,
			PaymentIntentID: intentID,
			Err:             fmt.Errorf("order is bound to payment intent %q", order.PaymentIntentID),
		}
	}

	record := domain.PaymentRecord{
		TransactionID: intentID,
		Amount:        order.Total,
		Currency:      order.Currency,
		PaidAt:        s.now(),
	}
	won, err := s.orders.MarkPaid(ctx, orderID, record)
	if err != nil {
		s.log.ErrorContext(ctx, "mark order paid failed",
			"order_id", orderID, "payment_intent_id", intentID, "error", err)
		return nil, &domain.ReconciliationError{OrderID: orderID, PaymentIntentID: intentID, Err: err}
	}

	if !won {
		current, err := s.orders.GetOrderByID(ctx, orderID)
		if err != nil {
			return nil, &domain.ReconciliationError{OrderID: orderID, PaymentIntentID: intentID, Err: err}
		}
		if current.Status != domain.OrderStatusPaid {
			return nil, &domain.ReconciliationError{
				OrderID:         orderID,
				PaymentIntentID: intentID,
				Err:             fmt.Errorf("order moved to %s: %w", current.Status, domain.ErrIllegalTransition),
			}
		}
		return current, nil
	}

	order.Status = domain.OrderStatusPaid
	order.Payment = &record
	s.log.InfoContext(ctx, "order paid", "order_id", orderID, "payment_intent_id", intentID)

	// The paid record is durable from here on; a failed clear only leaves items in the cart.
	if err := s.carts.Clear(ctx, order.Owner()); err != nil {
		s.log.ErrorContext(ctx, "clear cart after payment failed", "order_id", orderID, "owner", order.Owner().Key(), "error", err)
	}
	return order, nil
}

// RecoverPending settles pending orders whose payment finished without the customer
// coming back to confirm. It returns how many orders left pending.
func (s *Service) RecoverPending(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.orders.ListStalePendingOrders(ctx, s.now().Add(-olderThan), 100)
	if err != nil {
		return 0, fmt.Errorf("list stale orders: %w", err)
	}

	settled := 0
	for _, order := range stale {
		state, err := s.confirmer.IntentStatus(ctx, order.PaymentIntentID)
		if err != nil {
			s.log.WarnContext(ctx, "recovery: read intent failed", "order_id", order.ID, "error", err)
			continue
		}
		switch state.Status {
		case payment.StatusSucceeded:
			if _, err := s.settle(ctx, order, state); err != nil {
				s.log.ErrorContext(ctx, "recovery: reconcile failed", "order_id", order.ID, "error", err)
				continue
			}
			settled++
		case payment.StatusCanceled:
			ok, err := s.orders.MarkFailed(ctx, order.ID, "payment canceled")
			if err != nil {
				s.log.ErrorContext(ctx, "recovery: mark failed", "order_id", order.ID, "error", err)
				continue
			}
			if ok {
				settled++
			}
		}
	}
	if settled > 0 {
		s.log.InfoContext(ctx, "recovered pending orders", "count", settled)
	}
	return settled, nil
}
