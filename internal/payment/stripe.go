package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fjod/go_storefront/pkg/circuitbreaker"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeProcessor creates and reads Stripe PaymentIntents.
type StripeProcessor struct {
	api     *client.API
	breaker *circuitbreaker.Breaker[*stripe.PaymentIntent]
	log     *slog.Logger
}

func NewStripeProcessor(secretKey string, backends *stripe.Backends, log *slog.Logger) *StripeProcessor {
	api := &client.API{}
	api.Init(secretKey, backends)

	return &StripeProcessor{
		api: api,
		breaker: circuitbreaker.New[*stripe.PaymentIntent](circuitbreaker.Settings{
			Name:      "stripe",
			Logger:    log,
			IsFailure: isStripeOutage,
		}),
		log: log.With("component", "stripe_processor"),
	}
}

func (p *StripeProcessor) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if err := req.Validate(); err != nil {
		return Intent{}, err
	}
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(MinorUnits(req.Amount)),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.AddMetadata("orderId", req.OrderID)
	if req.UserID != "" {
		params.AddMetadata("userId", req.UserID)
	}

	pi, err := p.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return p.api.PaymentIntents.New(params)
	})
	if err != nil {
		p.log.ErrorContext(ctx, "create payment intent failed", "order_id", req.OrderID, "error", err)
		return Intent{}, fmt.Errorf("stripe create payment intent: %w", err)
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (p *StripeProcessor) IntentStatus(ctx context.Context, intentID string) (IntentState, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := p.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return p.api.PaymentIntents.Get(intentID, params)
	})
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return IntentState{}, fmt.Errorf("%w: %s", ErrIntentNotFound, intentID)
		}
		return IntentState{}, fmt.Errorf("stripe get payment intent: %w", err)
	}

	state := IntentState{
		ID:           pi.ID,
		Status:       IntentStatus(pi.Status),
		Amount:       FromMinorUnits(pi.Amount),
		Currency:     string(pi.Currency),
		ClientSecret: pi.ClientSecret,
	}
	if pi.LastPaymentError != nil {
		state.LastError = pi.LastPaymentError.Msg
	}
	return state, nil
}

// Card declines and bad requests are answers, not outages.
func isStripeOutage(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode == 0 || stripeErr.HTTPStatusCode >= http.StatusInternalServerError ||
			stripeErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled)
}
