package orders

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}
	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)

	err = repo.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func testOrder(owner domain.Owner, key string) *domain.Order {
	items := []domain.CartLineItem{{
		ProductID:     "p1",
		Name:          "Mug",
		UnitPrice:     decimal.RequireFromString("25.00"),
		Quantity:      2,
		StockSnapshot: 5,
	}}
	shipping := domain.ShippingDetails{
		Name:        "Ada Lovelace",
		Email:       "ada@example.com",
		AddressLine: "1 Analytical Way",
		City:        "London",
		State:       "LDN",
		Zip:         "N1",
		Country:     "GB",
	}
	return domain.NewPendingOrder(uuid.NewString(), owner, key, items, shipping, decimal.RequireFromString("0.10"))
}

func TestOrdersRepository(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	user := domain.Owner{UserID: "user-1"}

	t.Run("create and read back", func(t *testing.T) {
		order := testOrder(user, "key-1")
		require.NoError(t, repo.CreateOrder(ctx, order))

		got, err := repo.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPending, got.Status)
		assert.True(t, got.Subtotal.Equal(decimal.RequireFromString("50.00")))
		assert.True(t, got.Tax.Equal(decimal.RequireFromString("5.00")))
		assert.True(t, got.Total.Equal(decimal.RequireFromString("55.00")))
		assert.Equal(t, order.Items[0].ProductID, got.Items[0].ProductID)
		assert.Equal(t, "ada@example.com", got.Shipping.Email)
		assert.Nil(t, got.Payment)

		byKey, err := repo.GetOrderByIdempotencyKey(ctx, "key-1")
		require.NoError(t, err)
		assert.Equal(t, order.ID, byKey.ID)
	})

	t.Run("duplicate idempotency key", func(t *testing.T) {
		require.NoError(t, repo.CreateOrder(ctx, testOrder(user, "key-dup")))
		err := repo.CreateOrder(ctx, testOrder(user, "key-dup"))
		assert.ErrorIs(t, err, ErrDuplicateOrder)
	})

	t.Run("orders without key do not collide", func(t *testing.T) {
		require.NoError(t, repo.CreateOrder(ctx, testOrder(user, "")))
		require.NoError(t, repo.CreateOrder(ctx, testOrder(user, "")))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetOrderByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrOrderNotFound)
		_, err = repo.GetOrderByIdempotencyKey(ctx, "nope")
		assert.ErrorIs(t, err, ErrIdempotencyKeyNotFound)
	})

	t.Run("list is owner scoped", func(t *testing.T) {
		other := domain.Owner{UserID: "user-2"}
		require.NoError(t, repo.CreateOrder(ctx, testOrder(other, "")))

		list, err := repo.ListOrdersByOwner(ctx, other)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "user-2", list[0].UserID)

		guestList, err := repo.ListOrdersByOwner(ctx, domain.Owner{GuestID: "nobody"})
		require.NoError(t, err)
		assert.Empty(t, guestList)
	})

	t.Run("intent attempts count up while pending", func(t *testing.T) {
		order := testOrder(user, "")
		require.NoError(t, repo.CreateOrder(ctx, order))

		first, err := repo.NextIntentAttempt(ctx, order.ID)
		require.NoError(t, err)
		second, err := repo.NextIntentAttempt(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, first)
		assert.Equal(t, 2, second)

		got, err := repo.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.IntentAttempts)

		_, err = repo.MarkFailed(ctx, order.ID, "canceled")
		require.NoError(t, err)
		_, err = repo.NextIntentAttempt(ctx, order.ID)
		assert.ErrorIs(t, err, domain.ErrIllegalTransition)

		_, err = repo.NextIntentAttempt(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("mark paid writes one outbox event", func(t *testing.T) {
		order := testOrder(user, "")
		require.NoError(t, repo.CreateOrder(ctx, order))
		require.NoError(t, repo.SetPaymentIntent(ctx, order.ID, "pi_123"))

		payment := domain.PaymentRecord{
			TransactionID: "pi_123",
			Amount:        order.Total,
			Currency:      "usd",
			PaidAt:        time.Now().UTC(),
		}
		ok, err := repo.MarkPaid(ctx, order.ID, payment)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.MarkPaid(ctx, order.ID, payment)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := repo.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPaid, got.Status)
		require.NotNil(t, got.Payment)
		assert.Equal(t, "pi_123", got.Payment.TransactionID)

		events, err := repo.GetUnprocessedEvents(ctx, 100)
		require.NoError(t, err)
		var mine []*OutboxEvent
		for _, e := range events {
			if e.AggregateID == order.ID {
				mine = append(mine, e)
			}
		}
		require.Len(t, mine, 1)
		assert.Equal(t, EventOrderPaid, mine[0].EventType)

		var event OrderPaidEvent
		require.NoError(t, json.Unmarshal(mine[0].Payload, &event))
		assert.Equal(t, "pi_123", event.PaymentIntentID)
		assert.Equal(t, "ada@example.com", event.Email)

		require.NoError(t, repo.MarkEventAsProcessed(ctx, mine[0].ID))
		events, err = repo.GetUnprocessedEvents(ctx, 100)
		require.NoError(t, err)
		for _, e := range events {
			assert.NotEqual(t, mine[0].ID, e.ID)
		}

		// A paid order cannot be failed or get a new intent.
		failed, err := repo.MarkFailed(ctx, order.ID, "late decline")
		require.NoError(t, err)
		assert.False(t, failed)
		assert.ErrorIs(t, repo.SetPaymentIntent(ctx, order.ID, "pi_other"), domain.ErrIllegalTransition)
	})

	t.Run("concurrent mark paid has one winner", func(t *testing.T) {
		order := testOrder(user, "")
		require.NoError(t, repo.CreateOrder(ctx, order))

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.MarkPaid(ctx, order.ID, domain.PaymentRecord{TransactionID: "pi_race", Amount: order.Total, Currency: "usd"})
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, winners)
	})

	t.Run("stale pending orders", func(t *testing.T) {
		order := testOrder(domain.Owner{UserID: "user-stale"}, "")
		require.NoError(t, repo.CreateOrder(ctx, order))

		list, err := repo.ListStalePendingOrders(ctx, time.Now().Add(time.Hour), 100)
		require.NoError(t, err)
		for _, o := range list {
			assert.NotEqual(t, order.ID, o.ID, "orders without an intent are not stale")
		}

		require.NoError(t, repo.SetPaymentIntent(ctx, order.ID, "pi_stale"))
		list, err = repo.ListStalePendingOrders(ctx, time.Now().Add(time.Hour), 100)
		require.NoError(t, err)
		found := false
		for _, o := range list {
			found = found || o.ID == order.ID
		}
		assert.True(t, found)

		list, err = repo.ListStalePendingOrders(ctx, time.Now().Add(-time.Hour), 100)
		require.NoError(t, err)
		for _, o := range list {
			assert.NotEqual(t, order.ID, o.ID)
		}
	})

	t.Run("mark failed", func(t *testing.T) {
		order := testOrder(user, "")
		require.NoError(t, repo.CreateOrder(ctx, order))

		ok, err := repo.MarkFailed(ctx, order.ID, "card canceled")
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := repo.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusFailed, got.Status)
		assert.Equal(t, "card canceled", got.FailureReason)

		_, err = repo.MarkFailed(ctx, uuid.NewString(), "x")
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}
