package models

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusDraft     OrderStatus = "DRAFT"
	StatusPending   OrderStatus = "PENDING"
	StatusApproved  OrderStatus = "APPROVED"
	StatusPicking   OrderStatus = "PICKING"
	StatusPacked    OrderStatus = "PACKED"
	StatusReady     OrderStatus = "READY"
	StatusScheduled OrderStatus = "SCHEDULED"
	StatusInTransit OrderStatus = "IN_TRANSIT"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCompleted OrderStatus = "COMPLETED"
	StatusRejected  OrderStatus = "REJECTED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// PaymentStatus is derived from totalAmount vs amountPaid on every recalc.
type PaymentStatus string

const (
	PaymentStatusUnpaid        PaymentStatus = "UNPAID"
	PaymentStatusPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentStatusPaid          PaymentStatus = "PAID"
	PaymentStatusOverpaid      PaymentStatus = "OVERPAID"
)

// statusTransitions is the single authoritative forward-transition table.
// Rejected orders may be resubmitted back to Pending; every other edge is
// one-directional. Cancellation is handled separately by CanCancel.
var statusTransitions = map[OrderStatus][]OrderStatus{
	StatusDraft:     {StatusPending},
	StatusPending:   {StatusApproved, StatusRejected},
	StatusApproved:  {StatusPicking},
	StatusPicking:   {StatusPacked},
	StatusPacked:    {StatusReady},
	StatusReady:     {StatusScheduled},
	StatusScheduled: {StatusInTransit},
	StatusInTransit: {StatusDelivered},
	StatusDelivered: {StatusCompleted},
	StatusRejected:  {StatusPending},
}

// editableStatuses are the states in which structural edits (items,
// quantities, prices, order discount) are permitted. The cutoff is the
// handoff to logistics: once an order is Scheduled its contents are locked.
var editableStatuses = map[OrderStatus]struct{}{
	StatusDraft:    {},
	StatusPending:  {},
	StatusApproved: {},
	StatusPicking:  {},
	StatusPacked:   {},
	StatusReady:    {},
}

// CanTransition reports whether from -> to is a legal status change.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range statusTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsEditable reports whether structural edits are permitted in this status.
func (s OrderStatus) IsEditable() bool {
	_, ok := editableStatuses[s]
	return ok
}

// CanCancel reports whether an order in this status may still be cancelled.
func (s OrderStatus) CanCancel() bool {
	switch s {
	case StatusDelivered, StatusCompleted, StatusCancelled, StatusRejected:
		return false
	}
	return true
}

// AcceptsPayment reports whether payments may be recorded in this status.
// Payments arrive up to and including delivery; cancelled and rejected
// orders take none.
func (s OrderStatus) AcceptsPayment() bool {
	switch s {
	case StatusCancelled, StatusRejected:
		return false
	}
	return true
}

// IsTerminal reports whether the order has reached an end state.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsValid reports whether the value is a known order status.
func (s OrderStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusPicking,
		StatusPacked, StatusReady, StatusScheduled, StatusInTransit,
		StatusDelivered, StatusCompleted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}
