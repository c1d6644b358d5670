package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated    = "ORDER_CREATED"
	EventTypeOrderMutated    = "ORDER_MUTATED"
	EventTypeStatusChanged   = "ORDER_STATUS_CHANGED"
	EventTypePaymentReceived = "PAYMENT_RECEIVED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when a draft order is created
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     string          `json:"order_id"`
	CustomerID  string          `json:"customer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
}

// OrderMutatedEvent published after a committed edit session. Actions lists
// the audit action kinds applied, in order.
type OrderMutatedEvent struct {
	BaseEvent
	OrderID     string          `json:"order_id"`
	Version     int64           `json:"version"`
	Actions     []string        `json:"actions"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	BalanceDue  decimal.Decimal `json:"balance_due"`
	Status      string          `json:"status"`
}

// StatusChangedEvent published when an order changes lifecycle status
type StatusChangedEvent struct {
	BaseEvent
	OrderID   string `json:"order_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// PaymentReceivedEvent consumed from the payment gateway topic; recording
// the payment against the order happens through the mutation engine.
type PaymentReceivedEvent struct {
	BaseEvent
	OrderID           string          `json:"order_id"`
	Amount            decimal.Decimal `json:"amount"`
	Reference         string          `json:"reference"`
	ReceivedBy        string          `json:"received_by"`
	AcceptOverpayment bool            `json:"accept_overpayment"`
}
