package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricing-service/internal/models"
)

func pricedOrder(t *testing.T) models.Order {
	t.Helper()
	variant := steelBracketVariant()

	first, err := PriceLineItem(variant, 10, nil)
	require.NoError(t, err)
	second, err := PriceLineItem(variant, 2, nil)
	require.NoError(t, err)

	return models.Order{
		LineItems:           []models.OrderLineItem{first, second},
		OrderDiscountAmount: decimal.NewFromInt(100),
		AmountPaid:          decimal.NewFromInt(1000),
		Status:              models.StatusDraft,
	}
}

func TestRecalculateDerivesTotalsFromLineItems(t *testing.T) {
	order := Recalculate(pricedOrder(t))

	// 10*405 + 2*450
	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(4950)))
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(4850)))
	assert.True(t, order.BalanceDue.Equal(decimal.NewFromInt(3850)))
	assert.Equal(t, models.PaymentStatusPartiallyPaid, order.PaymentStatus)
}

func TestRecalculateIgnoresCachedTotals(t *testing.T) {
	order := pricedOrder(t)
	order.Subtotal = decimal.NewFromInt(999999)
	order.TotalAmount = decimal.NewFromInt(-5)
	order.BalanceDue = decimal.NewFromInt(42)

	order = Recalculate(order)

	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(4950)))
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(4850)))
	assert.True(t, order.BalanceDue.Equal(decimal.NewFromInt(3850)))
}

func TestRecalculateIsIdempotent(t *testing.T) {
	once := Recalculate(pricedOrder(t))
	twice := Recalculate(once)

	assert.True(t, once.Subtotal.Equal(twice.Subtotal))
	assert.True(t, once.TotalAmount.Equal(twice.TotalAmount))
	assert.True(t, once.BalanceDue.Equal(twice.BalanceDue))
	assert.Equal(t, once.PaymentStatus, twice.PaymentStatus)
}

func TestRecalculateEmptyOrderIsNotAnError(t *testing.T) {
	order := Recalculate(models.Order{Status: models.StatusDraft})

	assert.True(t, order.Subtotal.IsZero())
	assert.True(t, order.TotalAmount.IsZero())
	assert.True(t, order.BalanceDue.IsZero())
	assert.Equal(t, models.StatusDraft, order.Status)
	assert.Equal(t, models.PaymentStatusUnpaid, order.PaymentStatus)
}

func TestRecalculatePaymentStatusLadder(t *testing.T) {
	base := pricedOrder(t)

	base.AmountPaid = decimal.Zero
	assert.Equal(t, models.PaymentStatusUnpaid, Recalculate(base).PaymentStatus)

	base.AmountPaid = decimal.NewFromInt(4850)
	assert.Equal(t, models.PaymentStatusPaid, Recalculate(base).PaymentStatus)

	base.AmountPaid = decimal.NewFromInt(5000)
	recalced := Recalculate(base)
	assert.Equal(t, models.PaymentStatusOverpaid, recalced.PaymentStatus)
	assert.True(t, recalced.BalanceDue.IsNegative())
}
