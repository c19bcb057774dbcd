package report

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"freshmart/internal/domain"
)

type fakeOrders struct {
	orders   []domain.Order
	gotLimit int
}

func (f *fakeOrders) RecentOrders(_ context.Context, limit int) ([]domain.Order, error) {
	f.gotLimit = limit
	return f.orders, nil
}

type fakeCatalog struct {
	products []domain.Product
}

func (f *fakeCatalog) ListProducts(context.Context) ([]domain.Product, error) {
	return f.products, nil
}

func order(amount string) domain.Order {
	return domain.Order{TotalAmount: decimal.RequireFromString(amount)}
}

func TestSalesReport(t *testing.T) {
	t.Parallel()
	orders := &fakeOrders{orders: []domain.Order{order("10.50"), order("20.00"), order("0.49")}}
	h := New(orders, &fakeCatalog{})

	res, err := h.Run(context.Background(), domain.Params{"reportType": "sales"})
	require.NoError(t, err)

	got := res.(SalesReport)
	require.Equal(t, 3, got.OrderCount)
	require.True(t, got.TotalSales.Equal(decimal.RequireFromString("30.99")))
	require.True(t, got.AverageOrderValue.Equal(decimal.RequireFromString("10.33")))
	require.Equal(t, DefaultOrderLimit, orders.gotLimit)
}

func TestSalesReportZeroOrders(t *testing.T) {
	t.Parallel()
	h := New(&fakeOrders{}, &fakeCatalog{})

	res, err := h.Run(context.Background(), domain.Params{"reportType": "sales"})
	require.NoError(t, err)

	got := res.(SalesReport)
	require.Equal(t, 0, got.OrderCount)
	require.True(t, got.AverageOrderValue.IsZero(), "average over zero orders is zero, not a fault")
}

func TestSalesReportHonorsOrderLimit(t *testing.T) {
	t.Parallel()
	orders := &fakeOrders{}
	h := New(orders, &fakeCatalog{})

	_, err := h.Run(context.Background(), domain.Params{"reportType": "sales", "orderLimit": float64(25)})
	require.NoError(t, err)
	require.Equal(t, 25, orders.gotLimit)
}

func TestInventoryReport(t *testing.T) {
	t.Parallel()
	catalog := &fakeCatalog{products: []domain.Product{
		{Price: decimal.RequireFromString("4.00"), StockQuantity: 3},
		{Price: decimal.RequireFromString("10.00"), StockQuantity: 5},
		{Price: decimal.RequireFromString("2.50"), StockQuantity: 100},
	}}
	h := New(&fakeOrders{}, catalog)

	res, err := h.Run(context.Background(), domain.Params{"reportType": "inventory"})
	require.NoError(t, err)

	got := res.(InventoryReport)
	require.Equal(t, 3, got.TotalProducts)
	require.Equal(t, 2, got.LowStockItems)
	// 4*3 + 10*5 + 2.5*100 = 312
	require.True(t, got.TotalInventoryValue.Equal(decimal.RequireFromString("312")))
}

func TestUnknownReportType(t *testing.T) {
	t.Parallel()
	h := New(&fakeOrders{}, &fakeCatalog{})

	for _, params := range []domain.Params{
		nil,
		{"reportType": "outlook"},
		{"reportType": 7},
	} {
		require.ErrorIs(t, h.ValidateParams(params), ErrUnknownReportType)
		_, err := h.Run(context.Background(), params)
		require.ErrorIs(t, err, ErrUnknownReportType)
	}

	require.NoError(t, h.ValidateParams(domain.Params{"reportType": "inventory"}))
}
