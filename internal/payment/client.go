package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/pkg/circuitbreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrIntentRejected is returned when the intent endpoint answers with an error status.
var ErrIntentRejected = errors.New("payment intent endpoint rejected the request")

// HTTPIntentClient calls a create-payment-intent endpoint over HTTP.
type HTTPIntentClient struct {
	url     string
	client  *http.Client
	breaker *circuitbreaker.Breaker[Intent]
	log     *slog.Logger
}

func NewHTTPIntentClient(url string, timeout time.Duration, log *slog.Logger) *HTTPIntentClient {
	return &HTTPIntentClient{
		url: url,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuitbreaker.New[Intent](circuitbreaker.Settings{
			Name:   "payment-intent",
			Logger: log,
			// 4xx answers mean the request was bad, not that the endpoint is down.
			IsFailure: func(err error) bool { return !errors.Is(err, ErrInvalidRequest) },
		}),
		log: log.With("component", "intent_client"),
	}
}

func (c *HTTPIntentClient) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if err := req.Validate(); err != nil {
		return Intent{}, err
	}
	return c.breaker.Execute(func() (Intent, error) {
		return c.post(ctx, req)
	})
}

func (c *HTTPIntentClient) post(ctx context.Context, req IntentRequest) (Intent, error) {
	body, err := json.Marshal(toWire(req))
	if err != nil {
		return Intent{}, fmt.Errorf("marshal intent request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Intent{}, fmt.Errorf("build intent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set(IdempotencyKeyHeader, req.IdempotencyKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Intent{}, fmt.Errorf("call intent endpoint: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Intent{}, fmt.Errorf("read intent response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e intentErrorResponse
		_ = json.Unmarshal(raw, &e)
		c.log.WarnContext(ctx, "intent endpoint returned error",
			"order_id", req.OrderID, "status", resp.StatusCode, "error", e.Error)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return Intent{}, fmt.Errorf("%w: %w: status %d: %s", ErrIntentRejected, ErrInvalidRequest, resp.StatusCode, e.Error)
		}
		return Intent{}, fmt.Errorf("%w: status %d: %s", ErrIntentRejected, resp.StatusCode, e.Error)
	}

	var out intentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Intent{}, fmt.Errorf("decode intent response: %w", err)
	}
	if out.ClientSecret == "" || out.PaymentIntentID == "" {
		return Intent{}, fmt.Errorf("%w: response without client secret or intent id", ErrIntentRejected)
	}
	return Intent{ID: out.PaymentIntentID, ClientSecret: out.ClientSecret}, nil
}
