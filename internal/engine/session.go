package engine

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pricing-service/internal/apperr"
	"pricing-service/internal/models"
	"pricing-service/internal/pricing"
)

// Session is an isolated edit session over one order. Open copies the
// aggregate; every accepted mutation updates the working copy, recalculates
// the totals and buffers exactly one audit entry. Commit hands back the
// result for atomic persistence; Discard abandons everything, leaving the
// persisted aggregate and audit log untouched.
type Session struct {
	base        models.Order
	working     models.Order
	entries     []models.AuditEntry
	clock       Clock
	baseVersion int64
}

// Open starts an edit session on a snapshot of the order.
func Open(order models.Order, clock Clock) *Session {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Session{
		base:        order.Clone(),
		working:     order.Clone(),
		clock:       clock,
		baseVersion: order.Version,
	}
}

// Order returns a copy of the current working aggregate.
func (s *Session) Order() models.Order {
	return s.working.Clone()
}

// BaseVersion is the aggregate version the session was opened against.
// Persistence compares it against the stored row to detect a concurrent
// edit and fail the save with a stale-edit conflict.
func (s *Session) BaseVersion() int64 {
	return s.baseVersion
}

// Entries returns a copy of the audit entries buffered so far.
func (s *Session) Entries() []models.AuditEntry {
	out := make([]models.AuditEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Dirty reports whether the session holds uncommitted mutations.
func (s *Session) Dirty() bool {
	return len(s.entries) > 0
}

// Commit returns the mutated aggregate and the full ordered audit batch.
// The session itself performs no I/O; the caller persists both in one
// transaction keyed on BaseVersion.
func (s *Session) Commit() (models.Order, []models.AuditEntry) {
	return s.working.Clone(), s.Entries()
}

// Discard drops all accumulated mutations, restoring the working copy to
// the state the session opened with.
func (s *Session) Discard() {
	s.working = s.base.Clone()
	s.entries = nil
}

// record finalizes one accepted mutation: bump the version, stamp the
// audit entry and append it. Exactly one entry per mutation.
func (s *Session) record(actor Actor, action models.AuditAction, description string, oldValue, newValue *string, metadata map[string]any) {
	seq := s.baseVersion + int64(len(s.entries)) + 1
	now := s.clock.Now()
	s.working.Version = seq
	s.working.UpdatedAt = now
	s.entries = append(s.entries, models.AuditEntry{
		ID:              uuid.New(),
		OrderID:         s.working.ID,
		Sequence:        seq,
		Timestamp:       now,
		Action:          action,
		PerformedBy:     actor.Name,
		PerformedByRole: actor.Role,
		Description:     description,
		OldValue:        oldValue,
		NewValue:        newValue,
		Metadata:        metadata,
	})
}

// MarkCreated records the creation entry for a freshly drafted order.
func (s *Session) MarkCreated(actor Actor) {
	s.record(actor, models.AuditActionOrderCreated,
		fmt.Sprintf("order drafted for customer %s", s.working.CustomerID),
		nil, nil, nil)
}

// AddItem prices the variant at the requested quantity and appends the
// resulting line item.
func (s *Session) AddItem(actor Actor, variant models.Variant, quantity int, negotiated *decimal.Decimal) (models.OrderLineItem, error) {
	if err := s.requireEditable(); err != nil {
		return models.OrderLineItem{}, err
	}
	item, err := pricing.PriceLineItem(variant, quantity, negotiated)
	if err != nil {
		return models.OrderLineItem{}, err
	}

	s.working.LineItems = append(s.working.LineItems, item)
	s.working = pricing.Recalculate(s.working)

	meta := map[string]any{"addedAmount": item.LineTotal.String()}
	if item.StockWarning {
		meta["stockWarning"] = true
	}
	if item.FlaggedForReview {
		meta["flaggedForReview"] = true
	}
	s.record(actor, models.AuditActionItemAdded,
		fmt.Sprintf("added %d x %s (%s)", quantity, variant.SKU, variant.ProductName),
		nil, strPtr(describeMoney(item.LineTotal)), meta)
	return item, nil
}

// RemoveItem deletes a line item from the order. Rejected when the shrunk
// order would fall below the amount already paid or the standing discount.
func (s *Session) RemoveItem(actor Actor, itemID uuid.UUID) error {
	if err := s.requireEditable(); err != nil {
		return err
	}
	idx, err := s.requireItem(itemID)
	if err != nil {
		return err
	}

	removed := s.working.LineItems[idx]
	next := s.working.Clone()
	next.LineItems = append(next.LineItems[:idx], next.LineItems[idx+1:]...)
	next = pricing.Recalculate(next)
	if err := requireBalancedAggregate(next); err != nil {
		return err
	}
	s.working = next

	s.record(actor, models.AuditActionItemRemoved,
		fmt.Sprintf("removed %d x %s", removed.Quantity, removed.SKU),
		strPtr(describeMoney(removed.LineTotal)), nil,
		map[string]any{"reducedAmount": removed.LineTotal.String()})
	return nil
}

// ChangeQuantity reprices a line item at a new quantity against the current
// catalog entry. Any negotiated override on the line is preserved.
func (s *Session) ChangeQuantity(actor Actor, itemID uuid.UUID, quantity int, variant models.Variant) error {
	if err := s.requireEditable(); err != nil {
		return err
	}
	idx, err := s.requireItem(itemID)
	if err != nil {
		return err
	}

	old := s.working.LineItems[idx]
	item, err := pricing.RepriceLineItem(old, variant, quantity, old.NegotiatedUnitPrice)
	if err != nil {
		return err
	}

	next := s.working.Clone()
	next.LineItems[idx] = item
	next = pricing.Recalculate(next)
	if err := requireBalancedAggregate(next); err != nil {
		return err
	}
	s.working = next

	meta := lineDeltaMetadata(old.LineTotal, item.LineTotal)
	if item.StockWarning {
		meta["stockWarning"] = true
	}
	s.record(actor, models.AuditActionQuantityChanged,
		fmt.Sprintf("quantity of %s changed from %d to %d", old.SKU, old.Quantity, quantity),
		strPtr(fmtQty(old.Quantity)), strPtr(fmtQty(quantity)), meta)
	return nil
}

// OverridePrice applies a negotiated unit price to a line item.
func (s *Session) OverridePrice(actor Actor, itemID uuid.UUID, negotiated decimal.Decimal, variant models.Variant) error {
	if err := s.requireEditable(); err != nil {
		return err
	}
	idx, err := s.requireItem(itemID)
	if err != nil {
		return err
	}

	old := s.working.LineItems[idx]
	item, err := pricing.RepriceLineItem(old, variant, old.Quantity, &negotiated)
	if err != nil {
		return err
	}

	next := s.working.Clone()
	next.LineItems[idx] = item
	next = pricing.Recalculate(next)
	if err := requireBalancedAggregate(next); err != nil {
		return err
	}
	s.working = next

	meta := map[string]any{}
	if saved := old.LineTotal.Sub(item.LineTotal); saved.IsPositive() {
		meta["savedAmount"] = saved.String()
	}
	if item.FlaggedForReview {
		meta["flaggedForReview"] = true
	}
	s.record(actor, models.AuditActionPriceOverridden,
		fmt.Sprintf("unit price of %s overridden to %s", old.SKU, describeMoney(negotiated)),
		strPtr(describeMoney(old.EffectiveUnitPrice)),
		strPtr(describeMoney(item.EffectiveUnitPrice)), meta)
	return nil
}

// SetOrderDiscount replaces the order-level discount amount.
func (s *Session) SetOrderDiscount(actor Actor, amount decimal.Decimal) error {
	if err := s.requireEditable(); err != nil {
		return err
	}
	if amount.IsNegative() {
		return apperr.New(apperr.CodeValidation, "order discount must not be negative")
	}
	if amount.GreaterThan(s.working.Subtotal) {
		return apperr.New(apperr.CodeValidation, "order discount exceeds subtotal")
	}

	old := s.working.OrderDiscountAmount
	next := s.working.Clone()
	next.OrderDiscountAmount = amount
	next = pricing.Recalculate(next)
	if err := requireBalancedAggregate(next); err != nil {
		return err
	}
	s.working = next

	meta := map[string]any{}
	if delta := amount.Sub(old); delta.IsPositive() {
		meta["savedAmount"] = delta.String()
	}
	s.record(actor, models.AuditActionOrderDiscountSet,
		fmt.Sprintf("order discount set to %s", describeMoney(amount)),
		strPtr(describeMoney(old)), strPtr(describeMoney(amount)), meta)
	return nil
}

// RecordPayment applies a received payment against the balance due.
// Overpayment is rejected unless the caller explicitly acknowledges it.
func (s *Session) RecordPayment(actor Actor, amount decimal.Decimal, acknowledgeOverpayment bool) error {
	if !s.working.Status.AcceptsPayment() {
		return apperr.Newf(apperr.CodeInvalidState,
			"order %s does not accept payments in status %s", s.working.ID, s.working.Status)
	}
	if !amount.IsPositive() {
		return apperr.New(apperr.CodeValidation, "payment amount must be positive")
	}

	newPaid := s.working.AmountPaid.Add(amount)
	if newPaid.GreaterThan(s.working.TotalAmount) && !acknowledgeOverpayment {
		return apperr.New(apperr.CodeValidation,
			"payment exceeds balance due; overpayment must be acknowledged")
	}

	oldPaid := s.working.AmountPaid
	s.working.AmountPaid = newPaid
	if newPaid.GreaterThan(s.working.TotalAmount) {
		s.working.OverpaymentAcknowledged = true
	}
	s.working = pricing.Recalculate(s.working)

	s.record(actor, models.AuditActionPaymentRecorded,
		fmt.Sprintf("payment of %s recorded", describeMoney(amount)),
		strPtr(describeMoney(oldPaid)), strPtr(describeMoney(newPaid)),
		map[string]any{
			"amount":     amount.String(),
			"balanceDue": s.working.BalanceDue.String(),
		})
	return nil
}

// ChangeStatus advances the order along the lifecycle state machine.
func (s *Session) ChangeStatus(actor Actor, to models.OrderStatus) error {
	if !to.IsValid() {
		return apperr.Newf(apperr.CodeValidation, "unknown order status %q", to)
	}
	from := s.working.Status
	if !from.CanTransition(to) {
		return apperr.Newf(apperr.CodeInvalidState,
			"illegal status transition %s -> %s", from, to)
	}

	s.working.Status = to
	s.working = pricing.Recalculate(s.working)

	action := models.AuditActionStatusChanged
	if from == models.StatusRejected && to == models.StatusPending {
		action = models.AuditActionOrderResubmitted
	}
	s.record(actor, action,
		fmt.Sprintf("status changed from %s to %s", from, to),
		strPtr(string(from)), strPtr(string(to)), nil)
	return nil
}

// Cancel moves the order to Cancelled. Allowed from any state before
// delivery; delivered, completed, rejected and already-cancelled orders
// cannot be cancelled.
func (s *Session) Cancel(actor Actor, reason string) error {
	from := s.working.Status
	if !from.CanCancel() {
		return apperr.Newf(apperr.CodeInvalidState,
			"order %s cannot be cancelled in status %s", s.working.ID, from)
	}

	s.working.Status = models.StatusCancelled
	s.working = pricing.Recalculate(s.working)

	var meta map[string]any
	if reason != "" {
		meta = map[string]any{"reason": reason}
	}
	s.record(actor, models.AuditActionOrderCancelled,
		"order cancelled",
		strPtr(string(from)), strPtr(string(models.StatusCancelled)), meta)
	return nil
}

// Resubmit sends a rejected order back for approval.
func (s *Session) Resubmit(actor Actor) error {
	if s.working.Status != models.StatusRejected {
		return apperr.Newf(apperr.CodeInvalidState,
			"only rejected orders can be resubmitted, order is %s", s.working.Status)
	}
	return s.ChangeStatus(actor, models.StatusPending)
}
