package stock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReader struct {
	m     sync.RWMutex
	stock map[string]int
	err   error
	calls int
}

func (r *mockReader) GetStock(_ context.Context, productID string) (int, error) {
	r.m.Lock()
	defer r.m.Unlock()
	r.calls++
	if r.err != nil {
		return 0, r.err
	}
	s, ok := r.stock[productID]
	if !ok {
		return 0, ErrProductNotFound
	}
	return s, nil
}

func (r *mockReader) set(productID string, n int) {
	r.m.Lock()
	defer r.m.Unlock()
	r.stock[productID] = n
}

func line(id string, qty int) domain.CartLineItem {
	return domain.CartLineItem{ProductID: id, Name: id, UnitPrice: decimal.NewFromInt(1), Quantity: qty, StockSnapshot: qty}
}

func TestValidate_AllOK(t *testing.T) {
	reader := &mockReader{stock: map[string]int{"a": 5, "b": 1}}
	v := NewValidator(reader, 2, logger.Discard())

	report, err := v.Validate(context.Background(), []domain.CartLineItem{line("a", 2), line("b", 1)})
	require.NoError(t, err)
	assert.True(t, report.OK())
	require.Len(t, report.Items, 2)
	assert.Equal(t, "a", report.Items[0].ProductID)
	assert.Equal(t, "b", report.Items[1].ProductID)
}

func TestValidate_StockDroppedAfterAdd(t *testing.T) {
	reader := &mockReader{stock: map[string]int{"a": 5}}
	v := NewValidator(reader, 4, logger.Discard())
	items := []domain.CartLineItem{line("a", 3)}

	report, err := v.Validate(context.Background(), items)
	require.NoError(t, err)
	assert.True(t, report.OK())

	reader.set("a", 1)
	report, err = v.Validate(context.Background(), items)
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, domain.StockReduced, report.Items[0].Status)
	assert.Equal(t, 1, report.Items[0].Available)
	assert.Equal(t, 2, reader.calls, "every call must re-read stock")
}

func TestValidate_Unavailable(t *testing.T) {
	reader := &mockReader{stock: map[string]int{"zero": 0}}
	v := NewValidator(reader, 0, nil)

	report, err := v.Validate(context.Background(), []domain.CartLineItem{line("zero", 1), line("gone", 1)})
	require.NoError(t, err)
	assert.Equal(t, domain.StockUnavailable, report.Items[0].Status)
	assert.Equal(t, domain.StockUnavailable, report.Items[1].Status)
	assert.Len(t, report.Blocked(), 2)
}

func TestValidate_ReaderError(t *testing.T) {
	reader := &mockReader{err: errors.New("catalog down")}
	v := NewValidator(reader, 1, logger.Discard())

	_, err := v.Validate(context.Background(), []domain.CartLineItem{line("a", 1)})
	require.ErrorContains(t, err, "catalog down")
}

func TestValidate_EmptyCart(t *testing.T) {
	v := NewValidator(&mockReader{}, 1, logger.Discard())
	report, err := v.Validate(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Empty(t, report.Items)
}
