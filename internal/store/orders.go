package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"

	"pricing-service/internal/apperr"
	"pricing-service/internal/models"
)

type orderRow struct {
	ID                      uuid.UUID       `db:"id"`
	CustomerID              string          `db:"customer_id"`
	OrderDiscountAmount     decimal.Decimal `db:"order_discount_amount"`
	Subtotal                decimal.Decimal `db:"subtotal"`
	TotalAmount             decimal.Decimal `db:"total_amount"`
	AmountPaid              decimal.Decimal `db:"amount_paid"`
	BalanceDue              decimal.Decimal `db:"balance_due"`
	OverpaymentAcknowledged bool            `db:"overpayment_acknowledged"`
	Status                  string          `db:"status"`
	PaymentStatus           string          `db:"payment_status"`
	Version                 int64           `db:"version"`
	CreatedAt               time.Time       `db:"created_at"`
	UpdatedAt               time.Time       `db:"updated_at"`
}

type lineItemRow struct {
	ID                     uuid.UUID           `db:"id"`
	OrderID                uuid.UUID           `db:"order_id"`
	SKU                    string              `db:"sku"`
	ProductName            string              `db:"product_name"`
	VariantDescription     string              `db:"variant_description"`
	Quantity               int                 `db:"quantity"`
	ListUnitPrice          decimal.Decimal     `db:"list_unit_price"`
	NegotiatedUnitPrice    decimal.NullDecimal `db:"negotiated_unit_price"`
	EffectiveUnitPrice     decimal.Decimal     `db:"effective_unit_price"`
	AppliedDiscountPercent decimal.Decimal     `db:"applied_discount_percent"`
	DiscountAmount         decimal.Decimal     `db:"discount_amount"`
	LineTotal              decimal.Decimal     `db:"line_total"`
	AvailableStock         int                 `db:"available_stock"`
	StockWarning           bool                `db:"stock_warning"`
	FlaggedForReview       bool                `db:"flagged_for_review"`
}

type auditRow struct {
	ID              uuid.UUID      `db:"id"`
	OrderID         uuid.UUID      `db:"order_id"`
	Sequence        int64          `db:"sequence"`
	Timestamp       time.Time      `db:"timestamp"`
	Action          string         `db:"action"`
	PerformedBy     string         `db:"performed_by"`
	PerformedByRole string         `db:"performed_by_role"`
	Description     string         `db:"description"`
	OldValue        sql.NullString `db:"old_value"`
	NewValue        sql.NullString `db:"new_value"`
	Metadata        types.JSONText `db:"metadata"`
}

func (r orderRow) toModel(items []models.OrderLineItem) models.Order {
	return models.Order{
		ID:                      r.ID,
		CustomerID:              r.CustomerID,
		LineItems:               items,
		OrderDiscountAmount:     r.OrderDiscountAmount,
		Subtotal:                r.Subtotal,
		TotalAmount:             r.TotalAmount,
		AmountPaid:              r.AmountPaid,
		BalanceDue:              r.BalanceDue,
		OverpaymentAcknowledged: r.OverpaymentAcknowledged,
		Status:                  models.OrderStatus(r.Status),
		PaymentStatus:           models.PaymentStatus(r.PaymentStatus),
		Version:                 r.Version,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
	}
}

func (r lineItemRow) toModel() models.OrderLineItem {
	item := models.OrderLineItem{
		ID:                     r.ID,
		SKU:                    r.SKU,
		ProductName:            r.ProductName,
		VariantDescription:     r.VariantDescription,
		Quantity:               r.Quantity,
		ListUnitPrice:          r.ListUnitPrice,
		EffectiveUnitPrice:     r.EffectiveUnitPrice,
		AppliedDiscountPercent: r.AppliedDiscountPercent,
		DiscountAmount:         r.DiscountAmount,
		LineTotal:              r.LineTotal,
		AvailableStock:         r.AvailableStock,
		StockWarning:           r.StockWarning,
		FlaggedForReview:       r.FlaggedForReview,
	}
	if r.NegotiatedUnitPrice.Valid {
		v := r.NegotiatedUnitPrice.Decimal
		item.NegotiatedUnitPrice = &v
	}
	return item
}

func (r auditRow) toModel() (models.AuditEntry, error) {
	entry := models.AuditEntry{
		ID:              r.ID,
		OrderID:         r.OrderID,
		Sequence:        r.Sequence,
		Timestamp:       r.Timestamp,
		Action:          models.AuditAction(r.Action),
		PerformedBy:     r.PerformedBy,
		PerformedByRole: r.PerformedByRole,
		Description:     r.Description,
	}
	if r.OldValue.Valid {
		v := r.OldValue.String
		entry.OldValue = &v
	}
	if r.NewValue.Valid {
		v := r.NewValue.String
		entry.NewValue = &v
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &entry.Metadata); err != nil {
			return models.AuditEntry{}, fmt.Errorf("failed to decode audit metadata: %w", err)
		}
	}
	return entry, nil
}

// CreateOrder inserts a new order, its line items and the creation audit
// entries in one transaction.
func (s *Store) CreateOrder(ctx context.Context, order models.Order, entries []models.AuditEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, order_discount_amount, subtotal,
			total_amount, amount_paid, balance_due, overpayment_acknowledged,
			status, payment_status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		order.ID, order.CustomerID, order.OrderDiscountAmount, order.Subtotal,
		order.TotalAmount, order.AmountPaid, order.BalanceDue,
		order.OverpaymentAcknowledged, order.Status, order.PaymentStatus,
		order.Version, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	if err := insertLineItems(ctx, tx, order); err != nil {
		return err
	}
	if err := insertAuditEntries(ctx, tx, entries); err != nil {
		return err
	}

	return tx.Commit()
}

// CommitOrder persists the outcome of an edit session atomically. The
// version predicate detects a concurrent edit: zero rows updated means the
// order moved on since the session opened, and the whole commit is rolled
// back with a stale-edit conflict. No audit rows survive a failed commit.
func (s *Store) CommitOrder(ctx context.Context, order models.Order, baseVersion int64, entries []models.AuditEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET customer_id = $1, order_discount_amount = $2, subtotal = $3,
			total_amount = $4, amount_paid = $5, balance_due = $6,
			overpayment_acknowledged = $7, status = $8, payment_status = $9,
			version = $10, updated_at = $11
		WHERE id = $12 AND version = $13`,
		order.CustomerID, order.OrderDiscountAmount, order.Subtotal,
		order.TotalAmount, order.AmountPaid, order.BalanceDue,
		order.OverpaymentAcknowledged, order.Status, order.PaymentStatus,
		order.Version, order.UpdatedAt, order.ID, baseVersion)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.Newf(apperr.CodeStaleEdit,
			"order %s changed since version %d", order.ID, baseVersion)
	}

	// line items are replace-on-write
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM order_line_items WHERE order_id = $1", order.ID); err != nil {
		return fmt.Errorf("failed to clear line items: %w", err)
	}
	if err := insertLineItems(ctx, tx, order); err != nil {
		return err
	}
	if err := insertAuditEntries(ctx, tx, entries); err != nil {
		return err
	}

	return tx.Commit()
}

func insertLineItems(ctx context.Context, tx *sqlx.Tx, order models.Order) error {
	for _, item := range order.LineItems {
		var negotiated decimal.NullDecimal
		if item.NegotiatedUnitPrice != nil {
			negotiated = decimal.NewNullDecimal(*item.NegotiatedUnitPrice)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_line_items (id, order_id, sku, product_name,
				variant_description, quantity, list_unit_price,
				negotiated_unit_price, effective_unit_price,
				applied_discount_percent, discount_amount, line_total,
				available_stock, stock_warning, flagged_for_review)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			item.ID, order.ID, item.SKU, item.ProductName,
			item.VariantDescription, item.Quantity, item.ListUnitPrice,
			negotiated, item.EffectiveUnitPrice, item.AppliedDiscountPercent,
			item.DiscountAmount, item.LineTotal, item.AvailableStock,
			item.StockWarning, item.FlaggedForReview)
		if err != nil {
			return fmt.Errorf("failed to insert line item %s: %w", item.SKU, err)
		}
	}
	return nil
}

func insertAuditEntries(ctx context.Context, tx *sqlx.Tx, entries []models.AuditEntry) error {
	for _, entry := range entries {
		var metadata types.JSONText
		if entry.Metadata != nil {
			raw, err := json.Marshal(entry.Metadata)
			if err != nil {
				return fmt.Errorf("failed to encode audit metadata: %w", err)
			}
			metadata = types.JSONText(raw)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO audit_entries (id, order_id, sequence, timestamp,
				action, performed_by, performed_by_role, description,
				old_value, new_value, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			entry.ID, entry.OrderID, entry.Sequence, entry.Timestamp,
			entry.Action, entry.PerformedBy, entry.PerformedByRole,
			entry.Description, entry.OldValue, entry.NewValue, metadata)
		if err != nil {
			return fmt.Errorf("failed to insert audit entry: %w", err)
		}
	}
	return nil
}

// GetOrderByID retrieves an order with its line items.
func (s *Store) GetOrderByID(ctx context.Context, id uuid.UUID) (models.Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Order{}, apperr.Newf(apperr.CodeNotFound, "order not found: %s", id)
	}
	if err != nil {
		return models.Order{}, err
	}

	var itemRows []lineItemRow
	err = s.db.SelectContext(ctx, &itemRows,
		"SELECT * FROM order_line_items WHERE order_id = $1 ORDER BY sku", id)
	if err != nil {
		return models.Order{}, err
	}

	items := make([]models.OrderLineItem, 0, len(itemRows))
	for _, r := range itemRows {
		items = append(items, r.toModel())
	}
	return row.toModel(items), nil
}

// GetOrdersByCustomerID retrieves the orders of one customer, newest first.
func (s *Store) GetOrdersByCustomerID(ctx context.Context, customerID string) ([]models.Order, error) {
	var rows []orderRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM orders WHERE customer_id = $1 ORDER BY created_at DESC", customerID)
	if err != nil {
		return nil, err
	}
	orders := make([]models.Order, 0, len(rows))
	for _, r := range rows {
		orders = append(orders, r.toModel(nil))
	}
	return orders, nil
}

// GetAuditEntries returns the full ordered audit trail for an order.
func (s *Store) GetAuditEntries(ctx context.Context, orderID uuid.UUID) ([]models.AuditEntry, error) {
	var rows []auditRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM audit_entries WHERE order_id = $1 ORDER BY sequence", orderID)
	if err != nil {
		return nil, err
	}
	entries := make([]models.AuditEntry, 0, len(rows))
	for _, r := range rows {
		entry, err := r.toModel()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
