package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"freshmart/internal/domain"
	"freshmart/internal/schedule"
	"freshmart/internal/store"
)

// seedDemoData inserts a small catalog, a few orders, and one task per
// type so a fresh database has something to run against.
func seedDemoData(ctx context.Context, st *store.Store) error {
	now := time.Now()
	expiry := func(days int) *time.Time {
		t := now.Add(time.Duration(days) * 24 * time.Hour)
		return &t
	}

	products := []domain.Product{
		{Name: "Greek yogurt 500g", Price: decimal.RequireFromString("4.50"), OriginalPrice: decimal.RequireFromString("4.50"), ExpiryDate: expiry(3), DynamicPricingEnabled: true, StockQuantity: 24, SellerID: "seller-dairy"},
		{Name: "Sourdough loaf", Price: decimal.RequireFromString("6.00"), OriginalPrice: decimal.RequireFromString("6.00"), ExpiryDate: expiry(1), DynamicPricingEnabled: true, StockQuantity: 8, SellerID: "seller-bakery"},
		{Name: "Cheddar block 400g", Price: decimal.RequireFromString("9.20"), OriginalPrice: decimal.RequireFromString("9.20"), ExpiryDate: expiry(20), DynamicPricingEnabled: true, StockQuantity: 3, SellerID: "seller-dairy"},
		{Name: "Olive oil 1L", Price: decimal.RequireFromString("14.00"), OriginalPrice: decimal.RequireFromString("14.00"), ExpiryDate: expiry(300), DynamicPricingEnabled: false, StockQuantity: 40, SellerID: "seller-pantry"},
	}
	for _, p := range products {
		if _, err := st.CreateProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %q: %w", p.Name, err)
		}
	}

	for _, amount := range []string{"23.40", "112.10", "7.99"} {
		if _, err := st.CreateOrder(ctx, domain.Order{TotalAmount: decimal.RequireFromString(amount)}); err != nil {
			return fmt.Errorf("seed order: %w", err)
		}
	}

	tasks := []domain.Task{
		{Name: "reprice near-expiry stock", Type: domain.TaskDynamicPricing, Schedule: "1h", Enabled: true},
		{Name: "warn sellers about expiring stock", Type: domain.TaskExpiryNotification, Schedule: "1d", Enabled: true, Parameters: domain.Params{"daysThreshold": 7}},
		{Name: "nightly sales report", Type: domain.TaskReportGeneration, Schedule: "1d", Enabled: true, Parameters: domain.Params{"reportType": "sales"}},
	}
	for i := range tasks {
		next, err := schedule.NextRunFrom(now, tasks[i].Schedule)
		if err != nil {
			return err
		}
		tasks[i].NextRun = next
		if _, err := st.CreateTask(ctx, tasks[i]); err != nil {
			return fmt.Errorf("seed task %q: %w", tasks[i].Name, err)
		}
	}

	log.Info().Int("products", len(products)).Int("tasks", len(tasks)).Msg("seeded demo data")
	return nil
}
