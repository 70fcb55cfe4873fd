package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	slog.Info("connected to postgres", "host", cred.Host, "db", cred.DBName)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

const orderColumns = `id, user_id, guest_id, idempotency_key, items, shipping, subtotal, tax, total, currency,
	status, payment_intent_id, intent_attempts, payment, failure_reason, created_at, updated_at`

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	shippingJSON, err := json.Marshal(order.Shipping)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping: %w", err)
	}

	query := `INSERT INTO orders (id, user_id, guest_id, idempotency_key, items, shipping, subtotal, tax, total,
	              currency, status, payment_intent_id, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`

	_, insertErr := r.db.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		order.GuestID,
		nullString(order.IdempotencyKey),
		itemsJSON,
		shippingJSON,
		order.Subtotal,
		order.Tax,
		order.Total,
		order.Currency,
		order.Status,
		order.PaymentIntentID,
		order.CreatedAt)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	if !validID(id) {
		return nil, ErrOrderNotFound
	}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *Repository) GetOrderByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE idempotency_key = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by idempotency key: %w", err)
	}
	return order, nil
}

// ListOrdersByOwner returns the newest orders first. A signed-in user only sees their own orders.
func (r *Repository) ListOrdersByOwner(ctx context.Context, owner domain.Owner) ([]*domain.Order, error) {
	column, value := "user_id", owner.UserID
	if owner.IsGuest() {
		column, value = "guest_id", owner.GuestID
	}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + column + ` = $1 AND ` + column + ` <> '' ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("query orders by owner: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

// ListStalePendingOrders returns pending orders with an intent that have not moved since before,
// skipping anything older than a week.
func (r *Repository) ListStalePendingOrders(ctx context.Context, before time.Time, limit int) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE status = 'pending' AND payment_intent_id <> '' AND updated_at < $1
	            AND created_at > NOW() - INTERVAL '7 days'
	          ORDER BY updated_at LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale pending orders: %w", err)
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		out = append(out, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// SetPaymentIntent records the intent on a pending order.
func (r *Repository) SetPaymentIntent(ctx context.Context, orderID, intentID string) error {
	if !validID(orderID) {
		return ErrOrderNotFound
	}
	query := `UPDATE orders SET payment_intent_id = $2, updated_at = NOW() WHERE id = $1 AND status = 'pending'`

	res, err := r.db.ExecContext(ctx, query, orderID, intentID)
	if err != nil {
		return fmt.Errorf("set payment intent: %w", err)
	}
	return r.checkTransition(ctx, res, orderID)
}

// NextIntentAttempt counts a new intent request for a pending order and returns its number.
func (r *Repository) NextIntentAttempt(ctx context.Context, orderID string) (int, error) {
	if !validID(orderID) {
		return 0, ErrOrderNotFound
	}
	query := `UPDATE orders SET intent_attempts = intent_attempts + 1, updated_at = NOW()
	          WHERE id = $1 AND status = 'pending'
	          RETURNING intent_attempts`

	var attempt int
	err := r.db.QueryRowContext(ctx, query, orderID).Scan(&attempt)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetOrderByID(ctx, orderID); getErr != nil {
			return 0, getErr
		}
		return 0, fmt.Errorf("order %s: %w", orderID, domain.ErrIllegalTransition)
	}
	if err != nil {
		return 0, fmt.Errorf("next intent attempt: %w", err)
	}
	return attempt, nil
}

// MarkPaid moves a pending order to paid and enqueues the order.paid event in the same
// transaction. It returns false when the order was no longer pending; nothing is written then.
func (r *Repository) MarkPaid(ctx context.Context, orderID string, payment domain.PaymentRecord) (bool, error) {
	if !validID(orderID) {
		return false, ErrOrderNotFound
	}
	paymentJSON, err := json.Marshal(payment)
	if err != nil {
		return false, fmt.Errorf("failed to marshal payment: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE orders SET status = 'paid', payment = $2, updated_at = NOW()
	          WHERE id = $1 AND status = 'pending'
	          RETURNING ` + orderColumns

	order, err := scanOrder(tx.QueryRowContext(ctx, query, orderID, paymentJSON))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetOrderByID(ctx, orderID); getErr != nil {
			return false, getErr
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mark order paid: %w", err)
	}

	event := OrderPaidEvent{
		OrderID:         order.ID,
		UserID:          order.UserID,
		GuestID:         order.GuestID,
		Email:           order.Shipping.Email,
		Items:           order.Items,
		Shipping:        order.Shipping,
		Subtotal:        order.Subtotal,
		Tax:             order.Tax,
		Total:           order.Total,
		Currency:        order.Currency,
		PaymentIntentID: order.PaymentIntentID,
		Payment:         payment,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return false, fmt.Errorf("failed to marshal order.paid event: %w", err)
	}

	outbox := `INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at) VALUES ($1, $2, $3, NOW())`
	if _, err := tx.ExecContext(ctx, outbox, order.ID, EventOrderPaid, payload); err != nil {
		return false, fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit mark paid: %w", err)
	}
	return true, nil
}

// MarkFailed moves a pending order to failed. Returns false when it was not pending.
func (r *Repository) MarkFailed(ctx context.Context, orderID, reason string) (bool, error) {
	if !validID(orderID) {
		return false, ErrOrderNotFound
	}
	query := `UPDATE orders SET status = 'failed', failure_reason = $2, updated_at = NOW()
	          WHERE id = $1 AND status = 'pending'`

	res, err := r.db.ExecContext(ctx, query, orderID, reason)
	if err != nil {
		return false, fmt.Errorf("mark order failed: %w", err)
	}
	if err := r.checkTransition(ctx, res, orderID); err != nil {
		if errors.Is(err, domain.ErrIllegalTransition) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM outbox_events WHERE processed_at IS NULL ORDER BY id LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}

func (r *Repository) checkTransition(ctx context.Context, res sql.Result, orderID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := r.GetOrderByID(ctx, orderID); err != nil {
		return err
	}
	return fmt.Errorf("order %s: %w", orderID, domain.ErrIllegalTransition)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order          domain.Order
		idempotencyKey sql.NullString
		itemsJSON      []byte
		shippingJSON   []byte
		paymentJSON    []byte
		status         string
	)
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.GuestID,
		&idempotencyKey,
		&itemsJSON,
		&shippingJSON,
		&order.Subtotal,
		&order.Tax,
		&order.Total,
		&order.Currency,
		&status,
		&order.PaymentIntentID,
		&order.IntentAttempts,
		&paymentJSON,
		&order.FailureReason,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	order.IdempotencyKey = idempotencyKey.String
	order.Status = domain.OrderStatus(status)
	if !order.Status.Valid() {
		return nil, fmt.Errorf("%w: order %s has status %q", domain.ErrMalformedDocument, order.ID, status)
	}
	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(shippingJSON, &order.Shipping); err != nil {
		return nil, fmt.Errorf("unmarshal shipping: %w", err)
	}
	if len(paymentJSON) > 0 {
		var p domain.PaymentRecord
		if err := json.Unmarshal(paymentJSON, &p); err != nil {
			return nil, fmt.Errorf("unmarshal payment: %w", err)
		}
		order.Payment = &p
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return &order, nil
}

// Order ids are UUIDs; anything else cannot exist and would fail the cast in SQL.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

