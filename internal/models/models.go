package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceTier is one quantity breakpoint in a variant's bulk pricing table.
// Tables are owned by the catalog and immutable once published for an order.
type PriceTier struct {
	MinQuantity     int             `db:"min_quantity" json:"min_quantity"`
	UnitPrice       decimal.Decimal `db:"unit_price" json:"unit_price"`
	DiscountPercent decimal.Decimal `db:"discount_percent" json:"discount_percent"`
}

// Variant is the catalog view of a sellable product variant.
type Variant struct {
	SKU            string          `json:"sku"`
	ProductName    string          `json:"product_name"`
	Description    string          `json:"description"`
	ListUnitPrice  decimal.Decimal `json:"list_unit_price"`
	Tiers          []PriceTier     `json:"tiers"`
	AvailableStock int             `json:"available_stock"`
}

// OrderLineItem is a priced line on an order. Line items are replaced on
// write: every repricing produces a fresh value, never an in-place edit.
type OrderLineItem struct {
	ID                     uuid.UUID        `json:"id"`
	SKU                    string           `json:"sku"`
	ProductName            string           `json:"product_name"`
	VariantDescription     string           `json:"variant_description"`
	Quantity               int              `json:"quantity"`
	ListUnitPrice          decimal.Decimal  `json:"list_unit_price"`
	NegotiatedUnitPrice    *decimal.Decimal `json:"negotiated_unit_price,omitempty"`
	EffectiveUnitPrice     decimal.Decimal  `json:"effective_unit_price"`
	AppliedDiscountPercent decimal.Decimal  `json:"applied_discount_percent"`
	DiscountAmount         decimal.Decimal  `json:"discount_amount"`
	LineTotal              decimal.Decimal  `json:"line_total"`
	AvailableStock         int              `json:"available_stock"`
	StockWarning           bool             `json:"stock_warning"`
	FlaggedForReview       bool             `json:"flagged_for_review"`
}

// Order is the aggregate: line items plus the order-level totals derived
// from them. Totals are never hand-patched; they are re-derived by the
// recalculator after every mutation.
type Order struct {
	ID                      uuid.UUID       `json:"id"`
	CustomerID              string          `json:"customer_id"`
	LineItems               []OrderLineItem `json:"line_items"`
	OrderDiscountAmount     decimal.Decimal `json:"order_discount_amount"`
	Subtotal                decimal.Decimal `json:"subtotal"`
	TotalAmount             decimal.Decimal `json:"total_amount"`
	AmountPaid              decimal.Decimal `json:"amount_paid"`
	BalanceDue              decimal.Decimal `json:"balance_due"`
	OverpaymentAcknowledged bool            `json:"overpayment_acknowledged"`
	Status                  OrderStatus     `json:"status"`
	PaymentStatus           PaymentStatus   `json:"payment_status"`
	Version                 int64           `json:"version"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// Clone returns a deep copy of the order suitable for provisional edits.
func (o Order) Clone() Order {
	dup := o
	dup.LineItems = make([]OrderLineItem, len(o.LineItems))
	copy(dup.LineItems, o.LineItems)
	for i := range dup.LineItems {
		if p := o.LineItems[i].NegotiatedUnitPrice; p != nil {
			v := *p
			dup.LineItems[i].NegotiatedUnitPrice = &v
		}
	}
	return dup
}

// FindLineItem returns the index of the line item with the given id, or -1.
func (o Order) FindLineItem(id uuid.UUID) int {
	for i := range o.LineItems {
		if o.LineItems[i].ID == id {
			return i
		}
	}
	return -1
}

// AuditAction identifies the kind of mutation an audit entry records.
type AuditAction string

const (
	AuditActionOrderCreated     AuditAction = "ORDER_CREATED"
	AuditActionItemAdded        AuditAction = "ITEM_ADDED"
	AuditActionItemRemoved      AuditAction = "ITEM_REMOVED"
	AuditActionQuantityChanged  AuditAction = "QUANTITY_CHANGED"
	AuditActionPriceOverridden  AuditAction = "PRICE_OVERRIDDEN"
	AuditActionOrderDiscountSet AuditAction = "ORDER_DISCOUNT_SET"
	AuditActionPaymentRecorded  AuditAction = "PAYMENT_RECORDED"
	AuditActionStatusChanged    AuditAction = "STATUS_CHANGED"
	AuditActionOrderCancelled   AuditAction = "ORDER_CANCELLED"
	AuditActionOrderResubmitted AuditAction = "ORDER_RESUBMITTED"
)

// AuditEntry is one immutable record of a state-changing action on an order.
// Entries are append-only and strictly ordered by Sequence; corrections are
// recorded as new entries, never by rewriting old ones.
type AuditEntry struct {
	ID              uuid.UUID      `json:"id"`
	OrderID         uuid.UUID      `json:"order_id"`
	Sequence        int64          `json:"sequence"`
	Timestamp       time.Time      `json:"timestamp"`
	Action          AuditAction    `json:"action"`
	PerformedBy     string         `json:"performed_by"`
	PerformedByRole string         `json:"performed_by_role"`
	Description     string         `json:"description"`
	OldValue        *string        `json:"old_value,omitempty"`
	NewValue        *string        `json:"new_value,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}
