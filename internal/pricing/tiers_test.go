package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricing-service/internal/apperr"
	"pricing-service/internal/models"
)

func tier(minQty int, price int64, discount int64) models.PriceTier {
	return models.PriceTier{
		MinQuantity:     minQty,
		UnitPrice:       decimal.NewFromInt(price),
		DiscountPercent: decimal.NewFromInt(discount),
	}
}

func bulkTiers() []models.PriceTier {
	return []models.PriceTier{
		tier(1, 450, 0),
		tier(5, 428, 5),
		tier(10, 405, 10),
		tier(25, 383, 15),
	}
}

func TestResolveTierCurrentAndNext(t *testing.T) {
	quote := ResolveTier(bulkTiers(), 9)

	require.NotNil(t, quote.Current)
	assert.Equal(t, 5, quote.Current.MinQuantity)
	assert.True(t, quote.Current.UnitPrice.Equal(decimal.NewFromInt(428)))

	require.NotNil(t, quote.Next)
	assert.Equal(t, 10, quote.Next.MinQuantity)
	assert.True(t, quote.Next.UnitPrice.Equal(decimal.NewFromInt(405)))
}

func TestResolveTierTopTierHasNoNext(t *testing.T) {
	quote := ResolveTier(bulkTiers(), 30)

	require.NotNil(t, quote.Current)
	assert.Equal(t, 25, quote.Current.MinQuantity)
	assert.Nil(t, quote.Next)
	assert.Zero(t, quote.UnitsToNext)
}

func TestResolveTierBelowSmallestTier(t *testing.T) {
	tiers := []models.PriceTier{tier(5, 428, 5), tier(10, 405, 10)}

	quote := ResolveTier(tiers, 3)

	assert.Nil(t, quote.Current, "list price applies below the smallest tier")
	require.NotNil(t, quote.Next)
	assert.Equal(t, 5, quote.Next.MinQuantity)
	assert.Equal(t, 2, quote.UnitsToNext)
	assert.True(t, quote.SavingsPerUnit.IsZero(), "no savings projection without a current tier")
}

func TestResolveTierUpsellProjection(t *testing.T) {
	quote := ResolveTier(bulkTiers(), 8)

	require.NotNil(t, quote.Current)
	assert.Equal(t, 5, quote.Current.MinQuantity)
	require.NotNil(t, quote.Next)
	assert.Equal(t, 2, quote.UnitsToNext)
	assert.True(t, quote.SavingsPerUnit.Equal(decimal.NewFromInt(23)))
}

func TestResolveTierDoesNotMutateInput(t *testing.T) {
	tiers := []models.PriceTier{tier(10, 405, 10), tier(1, 450, 0), tier(5, 428, 5)}

	quote := ResolveTier(tiers, 7)

	require.NotNil(t, quote.Current)
	assert.Equal(t, 5, quote.Current.MinQuantity)
	assert.Equal(t, 10, tiers[0].MinQuantity, "input order preserved")
	assert.Equal(t, 1, tiers[1].MinQuantity)
}

func TestResolveTierEmptyTable(t *testing.T) {
	quote := ResolveTier(nil, 12)

	assert.Nil(t, quote.Current)
	assert.Nil(t, quote.Next)
}

func TestValidateTierTableAcceptsMonotonicTable(t *testing.T) {
	assert.NoError(t, ValidateTierTable(bulkTiers()))
	assert.NoError(t, ValidateTierTable(nil))
}

func TestValidateTierTableRejectsDuplicateMinQuantity(t *testing.T) {
	tiers := []models.PriceTier{tier(1, 450, 0), tier(5, 428, 5), tier(5, 420, 6)}

	err := ValidateTierTable(tiers)

	require.Error(t, err)
	assert.Equal(t, apperr.CodeTierIntegrity, apperr.CodeOf(err))
}

func TestValidateTierTableRejectsRisingPrice(t *testing.T) {
	tiers := []models.PriceTier{tier(1, 450, 0), tier(5, 460, 5)}

	err := ValidateTierTable(tiers)

	require.Error(t, err)
	assert.Equal(t, apperr.CodeTierIntegrity, apperr.CodeOf(err))
}

func TestValidateTierTableRejectsFallingDiscount(t *testing.T) {
	tiers := []models.PriceTier{tier(1, 450, 10), tier(5, 428, 5)}

	err := ValidateTierTable(tiers)

	require.Error(t, err)
	assert.Equal(t, apperr.CodeTierIntegrity, apperr.CodeOf(err))
}

func TestValidateTierTableRejectsBadBounds(t *testing.T) {
	assert.Error(t, ValidateTierTable([]models.PriceTier{tier(0, 450, 0)}))
	assert.Error(t, ValidateTierTable([]models.PriceTier{tier(1, -1, 0)}))
	assert.Error(t, ValidateTierTable([]models.PriceTier{tier(1, 450, 101)}))
}
