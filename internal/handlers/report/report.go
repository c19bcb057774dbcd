// Package report implements the report-generation task: sales and
// inventory aggregates over the order and product tables.
package report

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"freshmart/internal/domain"
)

// ErrUnknownReportType is returned for a reportType parameter outside
// {sales, inventory}.
var ErrUnknownReportType = errors.New("unknown report type")

const (
	ReportSales     = "sales"
	ReportInventory = "inventory"

	DefaultOrderLimit        = 100
	DefaultLowStockThreshold = 5
)

type Orders interface {
	RecentOrders(ctx context.Context, limit int) ([]domain.Order, error)
}

type Catalog interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

type Handler struct {
	orders  Orders
	catalog Catalog
	now     func() time.Time
}

func New(orders Orders, catalog Catalog) *Handler {
	return &Handler{orders: orders, catalog: catalog, now: time.Now}
}

func (h *Handler) Type() domain.TaskType { return domain.TaskReportGeneration }

func (h *Handler) ValidateParams(params domain.Params) error {
	if _, err := reportType(params); err != nil {
		return err
	}
	if _, err := intParam(params, "orderLimit", DefaultOrderLimit); err != nil {
		return err
	}
	_, err := intParam(params, "lowStockThreshold", DefaultLowStockThreshold)
	return err
}

func reportType(params domain.Params) (string, error) {
	v, ok := params["reportType"]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: reportType is required", ErrUnknownReportType)
	}
	s, ok := v.(string)
	if !ok || (s != ReportSales && s != ReportInventory) {
		return "", fmt.Errorf("%w: %v", ErrUnknownReportType, v)
	}
	return s, nil
}

func intParam(params domain.Params, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		if n < 1 || n != math.Trunc(n) {
			return 0, fmt.Errorf("%s must be a positive integer, got %v", key, n)
		}
		return int(n), nil
	case int:
		if n < 1 {
			return 0, fmt.Errorf("%s must be a positive integer, got %d", key, n)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s must be a positive integer, got %T", key, v)
	}
}

type SalesReport struct {
	ReportType        string          `json:"report_type"`
	TotalSales        decimal.Decimal `json:"total_sales"`
	OrderCount        int             `json:"order_count"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	GeneratedAt       time.Time       `json:"generated_at"`
}

type InventoryReport struct {
	ReportType          string          `json:"report_type"`
	TotalProducts       int             `json:"total_products"`
	LowStockItems       int             `json:"low_stock_items"`
	TotalInventoryValue decimal.Decimal `json:"total_inventory_value"`
	GeneratedAt         time.Time       `json:"generated_at"`
}

func (h *Handler) Run(ctx context.Context, params domain.Params) (any, error) {
	kind, err := reportType(params)
	if err != nil {
		return nil, err
	}
	switch kind {
	case ReportSales:
		return h.sales(ctx, params)
	default:
		return h.inventory(ctx, params)
	}
}

func (h *Handler) sales(ctx context.Context, params domain.Params) (any, error) {
	limit, err := intParam(params, "orderLimit", DefaultOrderLimit)
	if err != nil {
		return nil, err
	}
	orders, err := h.orders.RecentOrders(ctx, limit)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.TotalAmount)
	}
	// Average over zero orders is zero, never a division fault.
	avg := decimal.Zero
	if len(orders) > 0 {
		avg = total.Div(decimal.NewFromInt(int64(len(orders)))).Round(2)
	}
	return SalesReport{
		ReportType:        ReportSales,
		TotalSales:        total,
		OrderCount:        len(orders),
		AverageOrderValue: avg,
		GeneratedAt:       h.now(),
	}, nil
}

func (h *Handler) inventory(ctx context.Context, params domain.Params) (any, error) {
	threshold, err := intParam(params, "lowStockThreshold", DefaultLowStockThreshold)
	if err != nil {
		return nil, err
	}
	products, err := h.catalog.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	lowStock := 0
	value := decimal.Zero
	for _, p := range products {
		if p.StockQuantity <= threshold {
			lowStock++
		}
		value = value.Add(p.Price.Mul(decimal.NewFromInt(int64(p.StockQuantity))))
	}
	return InventoryReport{
		ReportType:          ReportInventory,
		TotalProducts:       len(products),
		LowStockItems:       lowStock,
		TotalInventoryValue: value,
		GeneratedAt:         h.now(),
	}, nil
}
