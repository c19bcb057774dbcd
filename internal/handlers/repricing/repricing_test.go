package repricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"freshmart/internal/domain"
)

type fakeCatalog struct {
	products []domain.Product
	listErr  error
	failIDs  map[string]bool
	updated  map[string]decimal.Decimal
}

func (f *fakeCatalog) ListRepricable(context.Context) ([]domain.Product, error) {
	return f.products, f.listErr
}

func (f *fakeCatalog) UpdatePrice(_ context.Context, id string, price decimal.Decimal) error {
	if f.failIDs[id] {
		return errors.New("row locked")
	}
	if f.updated == nil {
		f.updated = map[string]decimal.Decimal{}
	}
	f.updated[id] = price
	return nil
}

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func product(id string, price string, expiryDays int) domain.Product {
	d := decimal.RequireFromString(price)
	expiry := now.Add(time.Duration(expiryDays) * 24 * time.Hour)
	return domain.Product{
		ID:                    id,
		Price:                 d,
		OriginalPrice:         d,
		ExpiryDate:            &expiry,
		DynamicPricingEnabled: true,
		SellerID:              "s1",
	}
}

func TestRunRepricesAndReportsChanges(t *testing.T) {
	t.Parallel()
	far := product("p-far", "100", 60) // outside the window, unchanged
	near := product("p-near", "200", 15)
	catalog := &fakeCatalog{products: []domain.Product{far, near}}

	h := New(catalog)
	h.now = func() time.Time { return now }

	res, err := h.Run(context.Background(), nil)
	require.NoError(t, err)

	got := res.(Result)
	require.Equal(t, 1, got.UpdatedProducts)
	require.Len(t, got.Details, 1)
	require.Equal(t, "p-near", got.Details[0].ProductID)
	require.True(t, got.Details[0].NewPrice.Equal(decimal.RequireFromString("130")))
	require.True(t, catalog.updated["p-near"].Equal(decimal.RequireFromString("130")))
	require.NotContains(t, catalog.updated, "p-far")
}

func TestRunIsolatesRowFailures(t *testing.T) {
	t.Parallel()
	catalog := &fakeCatalog{
		products: []domain.Product{product("p1", "100", 2), product("p2", "100", 2)},
		failIDs:  map[string]bool{"p1": true},
	}
	h := New(catalog)
	h.now = func() time.Time { return now }

	res, err := h.Run(context.Background(), nil)
	require.NoError(t, err, "a failing row must not abort the loop")

	got := res.(Result)
	require.Equal(t, 1, got.UpdatedProducts)
	require.Equal(t, 1, got.FailedUpdates)
	require.Contains(t, catalog.updated, "p2")
}

func TestRunSurfacesCatalogFailure(t *testing.T) {
	t.Parallel()
	h := New(&fakeCatalog{listErr: errors.New("db gone")})
	_, err := h.Run(context.Background(), nil)
	require.Error(t, err)
}

func TestMissingExpiryLeavesPriceAlone(t *testing.T) {
	t.Parallel()
	p := product("p1", "50", 2)
	p.ExpiryDate = nil
	catalog := &fakeCatalog{products: []domain.Product{p}}
	h := New(catalog)
	h.now = func() time.Time { return now }

	res, err := h.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 0, res.(Result).UpdatedProducts)
}
