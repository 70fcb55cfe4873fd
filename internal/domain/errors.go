package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinels for errors.Is matching. Every typed error below reports Is(true) for its sentinel.
var (
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrNotFound            = errors.New("not found")
	ErrPaymentIntent       = errors.New("payment intent request failed")
	ErrPaymentConfirmation = errors.New("payment confirmation failed")
	ErrReconciliation      = errors.New("payment reconciliation failed")
	ErrStockBlocked        = errors.New("checkout blocked by stock")
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrCheckoutInProgress  = errors.New("checkout already in progress")
	ErrIllegalTransition   = errors.New("illegal transition of order status")
	ErrMalformedDocument   = errors.New("malformed document")
)

type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// OrNil returns nil when no field failed, so callers can return it directly.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// PaymentIntentError leaves the order pending; the caller retries against OrderID.
type PaymentIntentError struct {
	OrderID string
	Err     error
}

func (e *PaymentIntentError) Error() string {
	return fmt.Sprintf("payment intent for order %s failed: %v", e.OrderID, e.Err)
}

func (e *PaymentIntentError) Unwrap() error { return e.Err }

func (e *PaymentIntentError) Is(target error) bool { return target == ErrPaymentIntent }

type PaymentConfirmationError struct {
	OrderID         string
	PaymentIntentID string
	Reason          string
	Terminal        bool
}

func (e *PaymentConfirmationError) Error() string {
	return fmt.Sprintf("payment %s for order %s not confirmed: %s", e.PaymentIntentID, e.OrderID, e.Reason)
}

func (e *PaymentConfirmationError) Is(target error) bool { return target == ErrPaymentConfirmation }

// ReconciliationError means the processor took the money but the paid write failed.
// The payment id must reach the user so support can repair the record.
type ReconciliationError struct {
	OrderID         string
	PaymentIntentID string
	Err             error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("payment %s succeeded but order %s could not be marked paid, contact support with payment id %s: %v",
		e.PaymentIntentID, e.OrderID, e.PaymentIntentID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

func (e *ReconciliationError) Is(target error) bool { return target == ErrReconciliation }

type StockBlockedError struct {
	Report StockReport
}

func (e *StockBlockedError) Error() string {
	blocked := e.Report.Blocked()
	ids := make([]string, 0, len(blocked))
	for _, v := range blocked {
		ids = append(ids, fmt.Sprintf("%s(%s)", v.ProductID, v.Status))
	}
	return "checkout blocked by stock: " + strings.Join(ids, ", ")
}

func (e *StockBlockedError) Is(target error) bool { return target == ErrStockBlocked }
