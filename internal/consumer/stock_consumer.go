package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/repository/orders"
)

type StockDecrementer interface {
	DecrementForOrder(ctx context.Context, orderID string, items []domain.CartLineItem) (bool, error)
}

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StockConsumer applies the authoritative stock decrement for paid orders. Messages are
// committed only after the decrement is stored, and the store dedupes by order id, so a
// redelivered event never decrements twice.
type StockConsumer struct {
	store      StockDecrementer
	reader     MessageReader
	retryDelay time.Duration
	log        *slog.Logger
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewStockConsumer(store StockDecrementer, reader MessageReader, log *slog.Logger) *StockConsumer {
	return &StockConsumer{
		store:      store,
		reader:     reader,
		retryDelay: time.Second,
		log:        log.With("component", "stock_consumer"),
	}
}

func (c *StockConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.processMessage(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.log.ErrorContext(ctx, "stock consumer", "error", err)
		}
	}
}

func (c *StockConsumer) Close() error {
	return c.reader.Close()
}

func (c *StockConsumer) processMessage(ctx context.Context) error {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return fmt.Errorf("error reading message: %w", err)
	}

	if eventType(m) != orders.EventOrderPaid {
		return c.reader.CommitMessages(ctx, m)
	}

	var event orders.OrderPaidEvent
	if err := json.Unmarshal(m.Value, &event); err != nil || event.OrderID == "" {
		// Poison message: log and skip so the partition keeps moving.
		c.log.ErrorContext(ctx, "unparseable order.paid event", "offset", m.Offset, "error", err)
		return c.reader.CommitMessages(ctx, m)
	}

	applied, err := c.decrement(ctx, event)
	if err != nil {
		return err
	}
	if applied {
		c.log.InfoContext(ctx, "stock decremented", "order_id", event.OrderID, "lines", len(event.Items))
	} else {
		c.log.InfoContext(ctx, "stock already decremented, skipping", "order_id", event.OrderID)
	}
	return c.reader.CommitMessages(ctx, m)
}

// decrement retries until the store accepts the write or ctx ends. An uncommitted message
// is not redelivered before a rebalance.
func (c *StockConsumer) decrement(ctx context.Context, event orders.OrderPaidEvent) (bool, error) {
	for {
		applied, err := c.store.DecrementForOrder(ctx, event.OrderID, event.Items)
		if err == nil {
			return applied, nil
		}
		c.log.ErrorContext(ctx, "decrement stock failed, retrying", "order_id", event.OrderID, "error", err)

		select {
		case <-ctx.Done():
			return false, fmt.Errorf("decrement stock for order %s: %w", event.OrderID, ctx.Err())
		case <-time.After(c.retryDelay):
		}
	}
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
