package pricing

import (
	"github.com/shopspring/decimal"

	"pricing-service/internal/models"
)

// Recalculate re-derives subtotal, total, balance due and payment status
// strictly from the order's line items, order-level discount and amount
// paid. It is a total, deterministic and idempotent function: cached totals
// on the input are ignored, and presentation rounding never feeds back into
// the stored values. An empty order is not an error; its subtotal is zero.
func Recalculate(order models.Order) models.Order {
	subtotal := decimal.Zero
	for i := range order.LineItems {
		subtotal = subtotal.Add(order.LineItems[i].LineTotal)
	}

	order.Subtotal = subtotal
	order.TotalAmount = subtotal.Sub(order.OrderDiscountAmount)
	order.BalanceDue = order.TotalAmount.Sub(order.AmountPaid)
	order.PaymentStatus = derivePaymentStatus(order.AmountPaid, order.BalanceDue)
	return order
}

func derivePaymentStatus(paid, balance decimal.Decimal) models.PaymentStatus {
	switch {
	case paid.IsZero():
		return models.PaymentStatusUnpaid
	case balance.IsPositive():
		return models.PaymentStatusPartiallyPaid
	case balance.IsZero():
		return models.PaymentStatusPaid
	default:
		return models.PaymentStatusOverpaid
	}
}
