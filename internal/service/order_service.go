package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pricing-service/internal/apperr"
	"pricing-service/internal/broker"
	"pricing-service/internal/engine"
	"pricing-service/internal/models"
	"pricing-service/internal/redisclient"
	"pricing-service/internal/store"
	"pricing-service/internal/util"
)

// OrderService drives the mutation engine: it serializes mutations per
// order, loads and persists aggregates, and publishes events after
// successful commits.
type OrderService struct {
	store          *store.Store
	redis          *redisclient.Client
	catalog        *CatalogService
	eventPublisher *broker.EventPublisher
	clock          engine.Clock
	lockTTL        time.Duration
	logger         *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	store *store.Store,
	redis *redisclient.Client,
	catalog *CatalogService,
	eventPublisher *broker.EventPublisher,
	lockTTL time.Duration,
) *OrderService {
	return &OrderService{
		store:          store,
		redis:          redis,
		catalog:        catalog,
		eventPublisher: eventPublisher,
		clock:          engine.SystemClock{},
		lockTTL:        lockTTL,
		logger:         util.NamedLogger("orders"),
	}
}

// CreateOrderRequest represents a request to draft an order
type CreateOrderRequest struct {
	CustomerID string             `json:"customer_id" binding:"required"`
	Items      []OrderItemRequest `json:"items" binding:"required,min=1"`
}

// OrderItemRequest represents one requested line
type OrderItemRequest struct {
	SKU                 string           `json:"sku" binding:"required"`
	Quantity            int              `json:"quantity" binding:"required,min=1"`
	NegotiatedUnitPrice *decimal.Decimal `json:"negotiated_unit_price,omitempty"`
}

// CreateOrder drafts an order from the requested lines. Each line is
// priced against the catalog; negotiated prices on file for the customer
// apply automatically when the request does not carry an explicit override.
func (s *OrderService) CreateOrder(ctx context.Context, actor engine.Actor, req *CreateOrderRequest) (models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	session := engine.Open(engine.NewDraftOrder(req.CustomerID, s.clock), s.clock)
	session.MarkCreated(actor)

	for _, line := range req.Items {
		variant, err := s.catalog.GetVariant(ctx, line.SKU)
		if err != nil {
			return models.Order{}, err
		}

		negotiated := line.NegotiatedUnitPrice
		if negotiated == nil {
			negotiated, err = s.catalog.GetNegotiatedPrice(ctx, line.SKU, req.CustomerID)
			if err != nil {
				return models.Order{}, err
			}
		}

		item, err := session.AddItem(actor, variant, line.Quantity, negotiated)
		if err != nil {
			return models.Order{}, err
		}
		if item.StockWarning {
			util.StockWarningsTotal.Inc()
		}
	}

	order, entries := session.Commit()
	if err := s.store.CreateOrder(ctx, order, entries); err != nil {
		return models.Order{}, apperr.Wrap(apperr.CodeInternal, err, "persist order")
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order drafted",
		zap.String("order_id", order.ID.String()),
		zap.String("customer_id", order.CustomerID),
		zap.Int("items", len(order.LineItems)))

	event := &models.OrderCreatedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderCreated),
		OrderID:     order.ID.String(),
		CustomerID:  order.CustomerID,
		TotalAmount: order.TotalAmount,
		ItemCount:   len(order.LineItems),
	}
	if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return order, nil
}

// mutate runs one edit session against an order under the per-order lock.
// At most one mutation is in flight per order id; a held lock rejects the
// request with a conflict instead of interleaving. The session commits
// all-or-nothing against the version the aggregate was loaded at.
func (s *OrderService) mutate(ctx context.Context, orderID uuid.UUID, fn func(*engine.Session) error) (models.Order, error) {
	locked, err := s.redis.AcquireOrderLock(ctx, orderID.String(), s.lockTTL)
	if err != nil {
		return models.Order{}, apperr.Wrap(apperr.CodeInternal, err, "acquire order lock")
	}
	if !locked {
		return models.Order{}, apperr.Newf(apperr.CodeConflict,
			"another mutation is in flight for order %s", orderID)
	}
	defer func() {
		if err := s.redis.ReleaseOrderLock(context.Background(), orderID.String()); err != nil {
			s.logger.Error("Failed to release order lock",
				zap.String("order_id", orderID.String()), zap.Error(err))
		}
	}()

	current, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}

	session := engine.Open(current, s.clock)
	if err := fn(session); err != nil {
		util.MutationsRejectedTotal.WithLabelValues(string(apperr.CodeOf(err))).Inc()
		session.Discard()
		return models.Order{}, err
	}
	if !session.Dirty() {
		return current, nil
	}

	order, entries := session.Commit()

	start := time.Now()
	err = s.store.CommitOrder(ctx, order, session.BaseVersion(), entries)
	util.CommitLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if apperr.HasCode(err, apperr.CodeStaleEdit) {
			util.StaleEditConflictsTotal.Inc()
		}
		return models.Order{}, err
	}

	s.afterCommit(ctx, order, entries)
	return order, nil
}

// afterCommit records metrics and publishes events for a committed batch.
func (s *OrderService) afterCommit(ctx context.Context, order models.Order, entries []models.AuditEntry) {
	actions := make([]string, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, string(entry.Action))
		util.MutationsAcceptedTotal.WithLabelValues(string(entry.Action)).Inc()

		switch entry.Action {
		case models.AuditActionPaymentRecorded:
			util.PaymentsRecordedTotal.Inc()
		case models.AuditActionOrderCancelled:
			util.OrdersCancelledTotal.Inc()
		}

		if isStatusAction(entry.Action) && entry.OldValue != nil && entry.NewValue != nil {
			statusEvent := &models.StatusChangedEvent{
				BaseEvent: newBaseEvent(models.EventTypeStatusChanged),
				OrderID:   order.ID.String(),
				OldStatus: *entry.OldValue,
				NewStatus: *entry.NewValue,
			}
			if err := s.eventPublisher.PublishStatusChanged(ctx, statusEvent); err != nil {
				s.logger.Error("Failed to publish StatusChanged event", zap.Error(err))
			}
		}
	}

	event := &models.OrderMutatedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderMutated),
		OrderID:     order.ID.String(),
		Version:     order.Version,
		Actions:     actions,
		Subtotal:    order.Subtotal,
		TotalAmount: order.TotalAmount,
		BalanceDue:  order.BalanceDue,
		Status:      string(order.Status),
	}
	if err := s.eventPublisher.PublishOrderMutated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderMutated event", zap.Error(err))
	}
}

func isStatusAction(action models.AuditAction) bool {
	switch action {
	case models.AuditActionStatusChanged, models.AuditActionOrderCancelled,
		models.AuditActionOrderResubmitted:
		return true
	}
	return false
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// AddItem prices and appends one line to an order.
func (s *OrderService) AddItem(ctx context.Context, actor engine.Actor, orderID uuid.UUID, req *OrderItemRequest) (models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.AddItem")
	defer span.End()

	return s.mutate(ctx, orderID, func(session *engine.Session) error {
		variant, err := s.catalog.GetVariant(ctx, req.SKU)
		if err != nil {
			return err
		}
		negotiated := req.NegotiatedUnitPrice
		if negotiated == nil {
			negotiated, err = s.catalog.GetNegotiatedPrice(ctx, req.SKU, session.Order().CustomerID)
			if err != nil {
				return err
			}
		}
		item, err := session.AddItem(actor, variant, req.Quantity, negotiated)
		if err != nil {
			return err
		}
		if item.StockWarning {
			util.StockWarningsTotal.Inc()
		}
		return nil
	})
}

// RemoveItem deletes a line from an order.
func (s *OrderService) RemoveItem(ctx context.Context, actor engine.Actor, orderID, itemID uuid.UUID) (models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.RemoveItem")
	defer span.End()

	return s.mutate(ctx, orderID, func(session *engine.Session) error {
		return session.RemoveItem(actor, itemID)
	})
}

// ChangeQuantity reprices a line at a new quantity.
func (s *OrderService) ChangeQuantity(ctx context.Context, actor engine.Actor, orderID, itemID uuid.UUID, quantity int) (models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ChangeQuantity")
	defer span.End()

	return s.mutate(ctx, orderID, func(session *engine.Session) error {
		variant, err := s.variantForItem(ctx, session, itemID)
		if err != nil {
			return err
		}
		return session.ChangeQuantity(actor, itemID, quantity, variant)
	})
}

// OverridePrice applies a negotiated unit price to a line.
func (s *OrderService) OverridePrice(ctx context.Context, actor engine.Actor, orderID, itemID uuid.UUID, price decimal.Decimal) (models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.OverridePrice")
	defer span.End()

	return s.mutate(ctx, orderID, func(session *engine.Session) error {
		variant, err := s.variantForItem(ctx, session, itemID)
		if err != nil {
			return err
		}
		return session.OverridePrice(actor, itemID, price, variant)
	})
}

// SetOrderDiscount replaces the order-level discount.
func (s *OrderService) SetOrderDiscount(ctx context.Context, actor engine.Actor, orderID uuid.UUID, amount decimal.Decimal) (models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SetOrderDiscount")
	defer span.End()

	return s.mutate(ctx, orderID, func(session *engine.Session) error {
		return session.SetOrderDiscount(actor, amount)
	})
}

// RecordPayment applies a received payment against the balance due.
func (s *OrderService) RecordPayment(ctx context.Context, actor engine.Actor, orderID uuid.UUID, amount decimal.Decimal, acknowledgeOverpayment bool) (models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.RecordPayment")
	defer span.End()

	return s.mutate(ctx, orderID, func(session *engine.Session) error {
		return session.RecordPayment(actor, amount, acknowledgeOverpayment)
	})
}

// ChangeStatus advances an order along the lifecycle.
func (s *OrderService) ChangeStatus(ctx context.Context, actor engine.Actor, orderID uuid.UUID, status models.OrderStatus) (models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ChangeStatus")
	defer span.End()

	return s.mutate(ctx, orderID, func(session *engine.Session) error {
		return session.ChangeStatus(actor, status)
	})
}

// Cancel cancels an order that has not yet been delivered.
func (s *OrderService) Cancel(ctx context.Context, actor engine.Actor, orderID uuid.UUID, reason string) (models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Cancel")
	defer span.End()

	return s.mutate(ctx, orderID, func(session *engine.Session) error {
		return session.Cancel(actor, reason)
	})
}

// Resubmit sends a rejected order back for approval.
func (s *OrderService) Resubmit(ctx context.Context, actor engine.Actor, orderID uuid.UUID) (models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Resubmit")
	defer span.End()

	return s.mutate(ctx, orderID, func(session *engine.Session) error {
		return session.Resubmit(actor)
	})
}

// EditOperation is one step of a batch edit. Op selects the mutation; the
// remaining fields are read per-op.
type EditOperation struct {
	Op       string           `json:"op" binding:"required,oneof=add_item remove_item change_quantity override_price set_discount"`
	SKU      string           `json:"sku,omitempty"`
	ItemID   *uuid.UUID       `json:"item_id,omitempty"`
	Quantity int              `json:"quantity,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
}

// EditOrderRequest is a batch of edit operations applied in one session
type EditOrderRequest struct {
	Operations []EditOperation `json:"operations" binding:"required,min=1"`
}

// EditOrder applies a batch of operations in a single edit session. The
// batch is all-or-nothing: one rejected operation discards every change and
// the order keeps the state and version it had before the call.
func (s *OrderService) EditOrder(ctx context.Context, actor engine.Actor, orderID uuid.UUID, req *EditOrderRequest) (models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.EditOrder")
	defer span.End()

	return s.mutate(ctx, orderID, func(session *engine.Session) error {
		for i, op := range req.Operations {
			if err := s.applyOperation(ctx, session, actor, op); err != nil {
				return apperr.Wrap(apperr.CodeOf(err), err,
					fmt.Sprintf("operation %d (%s) rejected", i, op.Op))
			}
		}
		return nil
	})
}

func (s *OrderService) applyOperation(ctx context.Context, session *engine.Session, actor engine.Actor, op EditOperation) error {
	switch op.Op {
	case "add_item":
		variant, err := s.catalog.GetVariant(ctx, op.SKU)
		if err != nil {
			return err
		}
		negotiated := op.Price
		if negotiated == nil {
			negotiated, err = s.catalog.GetNegotiatedPrice(ctx, op.SKU, session.Order().CustomerID)
			if err != nil {
				return err
			}
		}
		item, err := session.AddItem(actor, variant, op.Quantity, negotiated)
		if err != nil {
			return err
		}
		if item.StockWarning {
			util.StockWarningsTotal.Inc()
		}
		return nil

	case "remove_item":
		if op.ItemID == nil {
			return apperr.New(apperr.CodeValidation, "remove_item requires item_id")
		}
		return session.RemoveItem(actor, *op.ItemID)

	case "change_quantity":
		if op.ItemID == nil {
			return apperr.New(apperr.CodeValidation, "change_quantity requires item_id")
		}
		variant, err := s.variantForItem(ctx, session, *op.ItemID)
		if err != nil {
			return err
		}
		return session.ChangeQuantity(actor, *op.ItemID, op.Quantity, variant)

	case "override_price":
		if op.ItemID == nil || op.Price == nil {
			return apperr.New(apperr.CodeValidation, "override_price requires item_id and price")
		}
		variant, err := s.variantForItem(ctx, session, *op.ItemID)
		if err != nil {
			return err
		}
		return session.OverridePrice(actor, *op.ItemID, *op.Price, variant)

	case "set_discount":
		if op.Amount == nil {
			return apperr.New(apperr.CodeValidation, "set_discount requires amount")
		}
		return session.SetOrderDiscount(actor, *op.Amount)
	}
	return apperr.Newf(apperr.CodeValidation, "unknown edit operation %q", op.Op)
}

func (s *OrderService) variantForItem(ctx context.Context, session *engine.Session, itemID uuid.UUID) (models.Variant, error) {
	order := session.Order()
	idx := order.FindLineItem(itemID)
	if idx < 0 {
		return models.Variant{}, apperr.Newf(apperr.CodeNotFound,
			"line item %s not found on order %s", itemID, order.ID)
	}
	return s.catalog.GetVariant(ctx, order.LineItems[idx].SKU)
}

// GetOrder retrieves an order with its line items.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (models.Order, error) {
	return s.store.GetOrderByID(ctx, orderID)
}

// GetAuditTrail retrieves the ordered audit trail of an order.
func (s *OrderService) GetAuditTrail(ctx context.Context, orderID uuid.UUID) ([]models.AuditEntry, error) {
	return s.store.GetAuditEntries(ctx, orderID)
}

// GetCustomerOrders retrieves the orders of one customer, newest first.
// Line items are not loaded; this backs the dashboard's order list view.
func (s *OrderService) GetCustomerOrders(ctx context.Context, customerID string) ([]models.Order, error) {
	return s.store.GetOrdersByCustomerID(ctx, customerID)
}

// GetRevenueEstimate reads the daily revenue rollup maintained by the
// reporting worker. Display-only: authoritative totals live in the store.
func (s *OrderService) GetRevenueEstimate(ctx context.Context, day time.Time) (decimal.Decimal, error) {
	value, err := s.redis.GetRevenueEstimate(ctx, day)
	if err != nil {
		return decimal.Zero, apperr.Wrap(apperr.CodeInternal, err, "read revenue estimate")
	}
	return decimal.NewFromFloat(value), nil
}
