package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/repository/orders"
	"github.com/fjod/go_storefront/pkg/logger"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

type MockRepository struct {
	m            sync.RWMutex
	OutboxEvents []*orders.OutboxEvent
	FetchErr     error
	MarkErr      error
	ProcessedIDs []int64
}

func (m *MockRepository) GetUnprocessedEvents(context.Context, int) ([]*orders.OutboxEvent, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	ev := m.OutboxEvents
	m.OutboxEvents = nil // Return events once
	return ev, nil
}

func (m *MockRepository) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.ProcessedIDs = append(m.ProcessedIDs, id)
	return nil
}

func (m *MockRepository) processed() []int64 {
	m.m.RLock()
	defer m.m.RUnlock()
	return append([]int64{}, m.ProcessedIDs...)
}

type MockWriter struct {
	m        sync.Mutex
	Messages []kafkaGo.Message
	FailKey  string
}

func (w *MockWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	w.m.Lock()
	defer w.m.Unlock()
	for _, msg := range msgs {
		if string(msg.Key) == w.FailKey {
			return errors.New("broker unavailable")
		}
	}
	w.Messages = append(w.Messages, msgs...)
	return nil
}

func (w *MockWriter) Close() error { return nil }

type MockRecoverer struct {
	m     sync.Mutex
	calls int
	err   error
}

func (r *MockRecoverer) RecoverPending(context.Context, time.Duration) (int, error) {
	r.m.Lock()
	defer r.m.Unlock()
	r.calls++
	return 0, r.err
}

func event(id int64, orderID string) *orders.OutboxEvent {
	return &orders.OutboxEvent{
		ID:          id,
		AggregateID: orderID,
		EventType:   orders.EventOrderPaid,
		Payload:     json.RawMessage(fmt.Sprintf(`{"order_id":%q,"user_id":"user-456"}`, orderID)),
		CreatedAt:   time.Now(),
	}
}

func TestProcessUnpublishedEvents(t *testing.T) {
	repo := &MockRepository{OutboxEvents: []*orders.OutboxEvent{event(1, "order-1"), event(2, "order-2")}}
	writer := &MockWriter{}
	poller := NewOutboxPoller(repo, nil, writer, time.Second, logger.Discard())

	poller.processUnpublishedEvents(context.Background())

	require.Len(t, writer.Messages, 2)
	assert.Equal(t, "order-1", string(writer.Messages[0].Key))
	assert.Equal(t, "event_type", writer.Messages[0].Headers[0].Key)
	assert.Equal(t, orders.EventOrderPaid, string(writer.Messages[0].Headers[0].Value))
	assert.Equal(t, []int64{1, 2}, repo.processed())
}

func TestProcessUnpublishedEvents_FailedPublishStaysUnprocessed(t *testing.T) {
	repo := &MockRepository{OutboxEvents: []*orders.OutboxEvent{event(1, "order-1"), event(2, "order-2")}}
	writer := &MockWriter{FailKey: "order-1"}
	poller := NewOutboxPoller(repo, nil, writer, time.Second, logger.Discard())

	poller.processUnpublishedEvents(context.Background())

	assert.Equal(t, []int64{2}, repo.processed())
}

func TestProcessUnpublishedEvents_FetchError(t *testing.T) {
	repo := &MockRepository{FetchErr: errors.New("db down")}
	writer := &MockWriter{}
	poller := NewOutboxPoller(repo, nil, writer, time.Second, logger.Discard())

	poller.processUnpublishedEvents(context.Background())

	assert.Empty(t, writer.Messages)
}

func TestRun_PublishesAndRecovers(t *testing.T) {
	repo := &MockRepository{OutboxEvents: []*orders.OutboxEvent{event(7, "order-7")}}
	recoverer := &MockRecoverer{err: errors.New("stripe down")}
	poller := NewOutboxPoller(repo, recoverer, &MockWriter{}, 10*time.Millisecond, logger.Discard())
	poller.recoveryTick = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(repo.processed()) == 1 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		recoverer.m.Lock()
		defer recoverer.m.Unlock()
		return recoverer.calls > 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop on context cancel")
	}
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	// Start Kafka container using testcontainers Kafka module
	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func TestOutboxPoller_PublishesEventsToKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Kafka container test in short mode")
	}
	brokerAddr, cleanup := setupKafka(t)
	defer cleanup()

	const topic = "order-events"
	writer := NewKafkaWriter(topic, brokerAddr)
	defer writer.Close()

	repo := &MockRepository{OutboxEvents: []*orders.OutboxEvent{event(1, "order-123")}}
	poller := NewOutboxPoller(repo, nil, writer, time.Second, logger.Discard())
	poller.timeout = 10 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	go poller.Run(ctx)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    topic,
		GroupID:  "test-consumer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "order-123", string(msg.Key))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "order-123", payload["order_id"])

	require.Eventually(t, func() bool { return len(repo.processed()) == 1 }, 10*time.Second, 100*time.Millisecond)
}
