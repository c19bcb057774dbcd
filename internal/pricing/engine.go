// Package pricing computes expiry-driven discounts for catalog products.
//
// Price is the single engine used by both the batch repricing job and the
// storefront preview endpoint. FallbackPrice is a coarser step-tier table
// kept only for degraded-mode display when the engine output is
// unavailable; nothing in the batch path uses it.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Discounting starts once a product is within this many days of expiry.
const discountWindowDays = 30

var (
	one         = decimal.NewFromInt(1)
	window      = decimal.NewFromInt(discountWindowDays)
	maxDiscount = decimal.NewFromFloat(0.7)
)

// DaysUntilExpiry is the number of whole days between now and expiry,
// clamped at zero for anything already expired.
func DaysUntilExpiry(expiry, now time.Time) int {
	d := expiry.Sub(now)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// Price returns the discounted price for a product.
//
// The discount ramps linearly from 0% at 30 days before expiry to 70% at
// expiry day, capped at 70%, and the result is rounded to 2 decimals. The
// output is monotonically non-increasing as expiry approaches. A missing
// expiry date leaves the current price untouched; more than 30 days out
// the original price applies undiscounted.
func Price(original, current decimal.Decimal, expiry *time.Time, now time.Time) decimal.Decimal {
	if expiry == nil || expiry.IsZero() {
		return current
	}
	days := DaysUntilExpiry(*expiry, now)
	if days > discountWindowDays {
		return original.Round(2)
	}
	discount := window.Sub(decimal.NewFromInt(int64(days))).Div(window).Mul(maxDiscount)
	if discount.GreaterThan(maxDiscount) {
		discount = maxDiscount
	}
	return original.Mul(one.Sub(discount)).Round(2)
}

// FallbackPrice applies the legacy step tiers (70% inside 3 days, 50%
// inside 7, 30% inside 14, 15% inside 30). It exists solely as an offline
// display fallback; it disagrees with Price at non-boundary day counts
// and must not be used for persisted prices.
func FallbackPrice(original decimal.Decimal, expiry *time.Time, now time.Time) decimal.Decimal {
	if expiry == nil || expiry.IsZero() {
		return original.Round(2)
	}
	var off float64
	switch days := DaysUntilExpiry(*expiry, now); {
	case days <= 3:
		off = 0.70
	case days <= 7:
		off = 0.50
	case days <= 14:
		off = 0.30
	case days <= 30:
		off = 0.15
	default:
		return original.Round(2)
	}
	return original.Mul(one.Sub(decimal.NewFromFloat(off))).Round(2)
}
