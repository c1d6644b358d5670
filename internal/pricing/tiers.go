// Package pricing is the pure calculation core: tier resolution, line item
// pricing and aggregate recalculation. Nothing here performs I/O or reads
// ambient state; callers own persistence, locking and identity.
package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"pricing-service/internal/apperr"
	"pricing-service/internal/models"
)

// TierQuote is the result of resolving a quantity against a tier table.
// Current is nil when the quantity is below the smallest tier (list price
// applies); Next is nil when the quantity already sits in the top tier.
type TierQuote struct {
	Current        *models.PriceTier `json:"current,omitempty"`
	Next           *models.PriceTier `json:"next,omitempty"`
	UnitsToNext    int               `json:"units_to_next,omitempty"`
	SavingsPerUnit decimal.Decimal   `json:"savings_per_unit"`
}

// ValidateTierTable rejects malformed tier tables at catalog-load time.
// A valid table is strictly increasing in MinQuantity, non-increasing in
// UnitPrice and non-decreasing in DiscountPercent. Duplicate MinQuantity is
// a data integrity violation, never silently resolved at order time.
func ValidateTierTable(tiers []models.PriceTier) error {
	for i, tier := range tiers {
		if tier.MinQuantity < 1 {
			return apperr.Newf(apperr.CodeTierIntegrity,
				"tier %d: min quantity must be >= 1, got %d", i, tier.MinQuantity)
		}
		if tier.UnitPrice.IsNegative() {
			return apperr.Newf(apperr.CodeTierIntegrity,
				"tier %d: unit price must not be negative", i)
		}
		if tier.DiscountPercent.IsNegative() || tier.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
			return apperr.Newf(apperr.CodeTierIntegrity,
				"tier %d: discount percent must be within [0, 100]", i)
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if tier.MinQuantity <= prev.MinQuantity {
			return apperr.Newf(apperr.CodeTierIntegrity,
				"tier %d: min quantity %d not strictly greater than %d",
				i, tier.MinQuantity, prev.MinQuantity)
		}
		if tier.UnitPrice.GreaterThan(prev.UnitPrice) {
			return apperr.Newf(apperr.CodeTierIntegrity,
				"tier %d: unit price rises with quantity", i)
		}
		if tier.DiscountPercent.LessThan(prev.DiscountPercent) {
			return apperr.Newf(apperr.CodeTierIntegrity,
				"tier %d: discount percent falls with quantity", i)
		}
	}
	return nil
}

// ResolveTier finds the applicable tier for a quantity plus the next upsell
// tier. The input slice is never mutated; it is sorted defensively on a
// copy in case the caller did not order it.
func ResolveTier(tiers []models.PriceTier, quantity int) TierQuote {
	quote := TierQuote{SavingsPerUnit: decimal.Zero}
	if len(tiers) == 0 || quantity < 1 {
		return quote
	}

	sorted := make([]models.PriceTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinQuantity < sorted[j].MinQuantity
	})

	for i := range sorted {
		tier := sorted[i]
		if tier.MinQuantity <= quantity {
			current := tier
			quote.Current = &current
			continue
		}
		next := tier
		quote.Next = &next
		break
	}

	if quote.Next != nil {
		quote.UnitsToNext = quote.Next.MinQuantity - quantity
		if quote.Current != nil {
			quote.SavingsPerUnit = quote.Current.UnitPrice.Sub(quote.Next.UnitPrice)
		}
	}
	return quote
}
