package payment

import "github.com/shopspring/decimal"

type intentMetadata struct {
	OrderID string `json:"orderId"`
	UserID  string `json:"userId,omitempty"`
}

// intentRequest is the JSON body of POST /api/create-payment-intent.
type intentRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Metadata intentMetadata  `json:"metadata"`
}

type intentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

type intentErrorResponse struct {
	Error string `json:"error"`
}

func toWire(req IntentRequest) intentRequest {
	currency := req.Currency
	if currency == "" {
		currency = "usd"
	}
	return intentRequest{
		Amount:   req.Amount,
		Currency: currency,
		Metadata: intentMetadata{OrderID: req.OrderID, UserID: req.UserID},
	}
}

func (r intentRequest) toDomain() IntentRequest {
	return IntentRequest{
		OrderID:  r.Metadata.OrderID,
		UserID:   r.Metadata.UserID,
		Amount:   r.Amount,
		Currency: r.Currency,
	}
}
