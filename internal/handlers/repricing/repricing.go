// Package repricing implements the dynamic-pricing task: it walks every
// product with dynamic pricing enabled and persists the engine-computed
// discount for its expiry date.
package repricing

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"freshmart/internal/domain"
	"freshmart/internal/pricing"
)

// Catalog is the slice of the store this handler needs.
type Catalog interface {
	ListRepricable(ctx context.Context) ([]domain.Product, error)
	UpdatePrice(ctx context.Context, id string, price decimal.Decimal) error
}

type Handler struct {
	catalog Catalog
	now     func() time.Time
}

func New(catalog Catalog) *Handler {
	return &Handler{catalog: catalog, now: time.Now}
}

func (h *Handler) Type() domain.TaskType { return domain.TaskDynamicPricing }

// ValidateParams accepts anything; repricing takes no parameters.
func (h *Handler) ValidateParams(domain.Params) error { return nil }

type PriceChange struct {
	ProductID string          `json:"product_id"`
	OldPrice  decimal.Decimal `json:"old_price"`
	NewPrice  decimal.Decimal `json:"new_price"`
}

type Result struct {
	UpdatedProducts int           `json:"updated_products"`
	Details         []PriceChange `json:"details"`
	FailedUpdates   int           `json:"failed_updates,omitempty"`
}

// Run reprices the catalog. A failure on one product is logged and
// counted; the loop never aborts because of a single row.
func (h *Handler) Run(ctx context.Context, _ domain.Params) (any, error) {
	products, err := h.catalog.ListRepricable(ctx)
	if err != nil {
		return nil, err
	}

	now := h.now()
	res := Result{Details: []PriceChange{}}
	for _, p := range products {
		next := pricing.Price(p.OriginalPrice, p.Price, p.ExpiryDate, now)
		if next.Equal(p.Price) {
			continue
		}
		if err := h.catalog.UpdatePrice(ctx, p.ID, next); err != nil {
			log.Error().Err(err).Str("product_id", p.ID).Msg("price update failed")
			res.FailedUpdates++
			continue
		}
		res.UpdatedProducts++
		res.Details = append(res.Details, PriceChange{ProductID: p.ID, OldPrice: p.Price, NewPrice: next})
	}
	return res, nil
}
