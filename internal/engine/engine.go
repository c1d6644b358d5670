// Package engine wraps every state-changing order operation in a mutation
// that re-derives the aggregate totals and appends exactly one audit entry.
// Mutations accumulate on a provisional copy inside a Session and are
// committed or discarded as a unit; a rejected mutation leaves both the
// working aggregate and the buffered audit trail unchanged.
package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pricing-service/internal/apperr"
	"pricing-service/internal/models"

	"github.com/google/uuid"
)

// Actor identifies who performs a mutation. Supplied by the caller for
// every operation and recorded verbatim in the audit trail.
type Actor struct {
	Name string
	Role string
}

// Clock supplies audit timestamps so tests can pin time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// NewDraftOrder builds an empty draft aggregate for a customer.
func NewDraftOrder(customerID string, clock Clock) models.Order {
	now := clock.Now()
	return models.Order{
		ID:                  uuid.New(),
		CustomerID:          customerID,
		LineItems:           []models.OrderLineItem{},
		OrderDiscountAmount: decimal.Zero,
		Subtotal:            decimal.Zero,
		TotalAmount:         decimal.Zero,
		AmountPaid:          decimal.Zero,
		BalanceDue:          decimal.Zero,
		Status:              models.StatusDraft,
		PaymentStatus:       models.PaymentStatusUnpaid,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func strPtr(s string) *string {
	return &s
}

func (s *Session) requireEditable() error {
	if !s.working.Status.IsEditable() {
		return apperr.Newf(apperr.CodeInvalidState,
			"order %s is not editable in status %s", s.working.ID, s.working.Status)
	}
	return nil
}

func (s *Session) requireItem(itemID uuid.UUID) (int, error) {
	idx := s.working.FindLineItem(itemID)
	if idx < 0 {
		return -1, apperr.Newf(apperr.CodeNotFound,
			"line item %s not found on order %s", itemID, s.working.ID)
	}
	return idx, nil
}

// requireBalancedAggregate gates edits that shrink the order. The order
// discount must not exceed the new subtotal, and the new total must not
// fall below what has already been paid unless a prior overpayment was
// acknowledged. A shrink past the paid amount needs a refund first, which
// is outside this engine.
func requireBalancedAggregate(next models.Order) error {
	if next.OrderDiscountAmount.GreaterThan(next.Subtotal) {
		return apperr.Newf(apperr.CodeValidation,
			"order discount %s exceeds subtotal %s after edit",
			next.OrderDiscountAmount, next.Subtotal)
	}
	if next.BalanceDue.IsNegative() && !next.OverpaymentAcknowledged {
		return apperr.Newf(apperr.CodeValidation,
			"edit drops the total below the %s already paid; refund or acknowledge the overpayment first",
			next.AmountPaid)
	}
	return nil
}

func describeMoney(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func lineDeltaMetadata(oldTotal, newTotal decimal.Decimal) map[string]any {
	meta := map[string]any{}
	delta := newTotal.Sub(oldTotal)
	if delta.IsPositive() {
		meta["addedAmount"] = delta.String()
	} else if delta.IsNegative() {
		meta["reducedAmount"] = delta.Neg().String()
	}
	return meta
}

func fmtQty(q int) string {
	return fmt.Sprintf("%d", q)
}
