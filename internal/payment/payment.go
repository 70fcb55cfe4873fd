// Package payment talks to the payment processor: it creates payment intents for
// drafted orders and reports an intent's status back to checkout.
//
// Amounts cross this package boundary as decimal major units (12.34 dollars).
// Conversion to processor minor units happens only inside a Processor.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrIntentNotFound = errors.New("payment intent not found")
	ErrInvalidRequest = errors.New("invalid payment intent request")
)

type IntentStatus string

const (
	StatusRequiresPaymentMethod IntentStatus = "requires_payment_method"
	StatusRequiresConfirmation  IntentStatus = "requires_confirmation"
	StatusRequiresAction        IntentStatus = "requires_action"
	StatusProcessing            IntentStatus = "processing"
	StatusSucceeded             IntentStatus = "succeeded"
	StatusCanceled              IntentStatus = "canceled"
)

// Open reports whether the customer can still complete an intent with its client secret.
func (s IntentStatus) Open() bool {
	switch s {
	case StatusRequiresPaymentMethod, StatusRequiresConfirmation, StatusRequiresAction, StatusProcessing:
		return true
	}
	return false
}

// IntentRequest asks for an intent. Requests sharing an IdempotencyKey yield the same intent.
type IntentRequest struct {
	OrderID        string
	UserID         string
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string
}

type Intent struct {
	ID           string
	ClientSecret string
}

// IntentState is a processor's view of an intent at the time it was read.
type IntentState struct {
	ID           string
	Status       IntentStatus
	Amount       decimal.Decimal
	Currency     string
	LastError    string
	ClientSecret string
}

// IntentClient requests payment intents on behalf of checkout.
type IntentClient interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
}

// Confirmer reports the current status of an intent.
type Confirmer interface {
	IntentStatus(ctx context.Context, intentID string) (IntentState, error)
}

// Processor is a payment provider. Stripe and the sandbox implement it.
type Processor interface {
	IntentClient
	Confirmer
}

// Validate checks a request before it reaches a processor.
func (r IntentRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return errors.Join(ErrInvalidRequest, errors.New("amount must be greater than 0"))
	}
	if !r.Amount.Equal(r.Amount.Round(2)) {
		return errors.Join(ErrInvalidRequest, errors.New("amount has more than two decimal places"))
	}
	if r.OrderID == "" {
		return errors.Join(ErrInvalidRequest, errors.New("metadata.orderId is required"))
	}
	return nil
}

// MinorUnits converts a decimal amount to cents.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits converts cents back to a decimal amount.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
