package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjod/go_storefront/internal/repository/orders"
	"github.com/segmentio/kafka-go"
)

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*orders.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

// Recoverer settles orders whose payment completed without a confirmation call.
type Recoverer interface {
	RecoverPending(ctx context.Context, olderThan time.Duration) (int, error)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OutboxPoller struct {
	timeout        time.Duration
	eventTick      time.Duration
	recoveryTick   time.Duration
	recoveryWindow time.Duration
	batchSize      int
	repo           OutboxRepository
	recoverer      Recoverer
	writer         MessageWriter
	log            *slog.Logger
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

func NewOutboxPoller(repo OutboxRepository, recoverer Recoverer, writer MessageWriter, eventTick time.Duration, log *slog.Logger) *OutboxPoller {
	if eventTick <= 0 {
		eventTick = time.Second
	}
	return &OutboxPoller{
		timeout:        5 * time.Second,
		eventTick:      eventTick,
		recoveryTick:   time.Minute,
		recoveryWindow: 15 * time.Minute,
		batchSize:      100,
		repo:           repo,
		recoverer:      recoverer,
		writer:         writer,
		log:            log.With("component", "outbox_poller"),
	}
}

// Run polls until ctx is done.
func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.recoverPendingOrders(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to fetch events", "error", err)
		return
	}

	for _, event := range events {
		if err := p.publishToKafka(ctx, event); err != nil {
			p.log.ErrorContext(ctx, "failed to publish event", "event_id", event.ID, "error", err)
			continue
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.ErrorContext(ctx, "failed to mark event as processed", "event_id", event.ID, "error", err)
			continue
		}
	}
}

func (p *OutboxPoller) recoverPendingOrders(ctx context.Context) {
	if p.recoverer == nil {
		return
	}
	if _, err := p.recoverer.RecoverPending(ctx, p.recoveryWindow); err != nil {
		p.log.ErrorContext(ctx, "failed to recover pending orders", "error", err)
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *orders.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order_id for ordering
		Value: event.Payload,             // Already JSON from database
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
