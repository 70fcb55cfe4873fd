package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/stock"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// ErrProductNotFound is shared with the stock validator so missing products read as unavailable.
var ErrProductNotFound = stock.ErrProductNotFound

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

const productColumns = `id, name, description, price, image_url, stock, created_at`

func (r *Repository) GetAllProducts(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetStock reads the live stock level. It is never cached.
func (r *Repository) GetStock(ctx context.Context, productID string) (int, error) {
	var qty int
	err := r.db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = ?`, productID).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query stock: %w", err)
	}
	return qty, nil
}

// SetStock overwrites the stock level of an existing product.
func (r *Repository) SetStock(ctx context.Context, productID string, qty int) error {
	if qty < 0 {
		return domain.NewValidationError("stock", "must not be negative")
	}
	res, err := r.db.ExecContext(ctx, `UPDATE products SET stock = ? WHERE id = ?`, qty, productID)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DecrementForOrder takes the paid quantities of one order out of stock, at most once per order.
// Stock floors at zero. Lines whose product left the catalog are skipped. It reports false when
// the order was already applied.
func (r *Repository) DecrementForOrder(ctx context.Context, orderID string, items []domain.CartLineItem) (bool, error) {
	if orderID == "" {
		return false, domain.NewValidationError("order_id", "required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO stock_decrements (order_id) VALUES (?)`, orderID)
	if err != nil {
		return false, fmt.Errorf("failed to record decrement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = MAX(stock - ?, 0) WHERE id = ?`,
			item.Quantity, item.ProductID,
		); err != nil {
			return false, fmt.Errorf("failed to decrement stock of %s: %w", item.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit decrement: %w", err)
	}
	return true, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.ImageURL, &p.Stock, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	amount, err := decimal.NewFromString(price)
	if err != nil || !amount.IsPositive() {
		return nil, fmt.Errorf("%w: product %s has price %q", domain.ErrMalformedDocument, p.ID, price)
	}
	p.Price = amount
	return &p, nil
}
