package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pricing-service/internal/apperr"
	"pricing-service/internal/models"
)

var hundred = decimal.NewFromInt(100)

// PriceLineItem prices a quantity of a variant into a fresh line item.
// Effective price precedence: negotiated override, then resolved tier, then
// list price. Quantities above available stock set StockWarning on the line
// rather than failing; orders may proceed with partial availability
// acknowledged. A negotiated price above list is accepted but its discount
// clamps to zero and the line is flagged for review.
func PriceLineItem(variant models.Variant, quantity int, negotiated *decimal.Decimal) (models.OrderLineItem, error) {
	if quantity < 1 {
		return models.OrderLineItem{}, apperr.Newf(apperr.CodeInvalidQuantity,
			"quantity must be a positive integer, got %d", quantity)
	}
	if negotiated != nil && negotiated.IsNegative() {
		return models.OrderLineItem{}, apperr.New(apperr.CodeValidation,
			"negotiated unit price must not be negative")
	}
	if variant.ListUnitPrice.IsNegative() {
		return models.OrderLineItem{}, apperr.Newf(apperr.CodeValidation,
			"variant %s has a negative list price", variant.SKU)
	}

	list := variant.ListUnitPrice
	quote := ResolveTier(variant.Tiers, quantity)

	item := models.OrderLineItem{
		ID:                 uuid.New(),
		SKU:                variant.SKU,
		ProductName:        variant.ProductName,
		VariantDescription: variant.Description,
		Quantity:           quantity,
		ListUnitPrice:      list,
		AvailableStock:     variant.AvailableStock,
		StockWarning:       quantity > variant.AvailableStock,
	}

	switch {
	case negotiated != nil:
		v := *negotiated
		item.NegotiatedUnitPrice = &v
		item.EffectiveUnitPrice = v
		item.FlaggedForReview = v.GreaterThan(list)
		if !item.FlaggedForReview && list.IsPositive() {
			item.AppliedDiscountPercent = list.Sub(v).Div(list).Mul(hundred)
		} else {
			item.AppliedDiscountPercent = decimal.Zero
		}
	case quote.Current != nil:
		item.EffectiveUnitPrice = quote.Current.UnitPrice
		item.AppliedDiscountPercent = quote.Current.DiscountPercent
	default:
		item.EffectiveUnitPrice = list
		item.AppliedDiscountPercent = decimal.Zero
	}

	qty := decimal.NewFromInt(int64(quantity))
	discount := list.Sub(item.EffectiveUnitPrice).Mul(qty)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	item.DiscountAmount = discount
	item.LineTotal = item.EffectiveUnitPrice.Mul(qty)

	return item, nil
}

// RepriceLineItem reprices an existing line against the current catalog
// entry, keeping the line id stable. Used by quantity edits and price
// overrides so the rest of the line is rebuilt, not patched.
func RepriceLineItem(existing models.OrderLineItem, variant models.Variant, quantity int, negotiated *decimal.Decimal) (models.OrderLineItem, error) {
	item, err := PriceLineItem(variant, quantity, negotiated)
	if err != nil {
		return models.OrderLineItem{}, err
	}
	item.ID = existing.ID
	return item, nil
}
