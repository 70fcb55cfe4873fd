package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fjod/go_storefront/internal/domain"
	"golang.org/x/sync/errgroup"
)

// ErrProductNotFound must be returned by readers for products gone from the catalog.
var ErrProductNotFound = errors.New("product not found")

type Reader interface {
	GetStock(ctx context.Context, productID string) (int, error)
}

// Validator re-reads live stock for every line item. It keeps no state between calls:
// stock is owned elsewhere and may change between two page visits.
type Validator struct {
	reader        Reader
	maxConcurrent int
	log           *slog.Logger
}

func NewValidator(reader Reader, maxConcurrent int, log *slog.Logger) *Validator {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	if log == nil {
		log = slog.Default()
	}
	return &Validator{reader: reader, maxConcurrent: maxConcurrent, log: log}
}

// Validate returns one verdict per line item, in cart order.
func (v *Validator) Validate(ctx context.Context, items []domain.CartLineItem) (domain.StockReport, error) {
	verdicts := make([]domain.StockVerdict, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.maxConcurrent)

	for idx := range items {
		g.Go(func() error {
			item := items[idx]
			available, err := v.reader.GetStock(gctx, item.ProductID)
			if errors.Is(err, ErrProductNotFound) {
				verdicts[idx] = domain.Judge(item.ProductID, item.Quantity, 0, false)
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read stock for product %s: %w", item.ProductID, err)
			}
			verdicts[idx] = domain.Judge(item.ProductID, item.Quantity, available, true)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return domain.StockReport{}, err
	}

	report := domain.StockReport{Items: verdicts}
	if !report.OK() {
		v.log.InfoContext(ctx, "stock validation flagged items", slog.Int("blocked", len(report.Blocked())))
	}
	return report, nil
}
