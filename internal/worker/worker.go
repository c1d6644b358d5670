package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pricing-service/internal/apperr"
	"pricing-service/internal/broker"
	"pricing-service/internal/engine"
	"pricing-service/internal/models"
	"pricing-service/internal/redisclient"
	"pricing-service/internal/service"
	"pricing-service/internal/util"
)

// PaymentWorker consumes payment gateway events and records each payment
// against its order through the mutation engine, so gateway payments get
// the same audit trail and versioning as payments entered by hand.
type PaymentWorker struct {
	consumer *broker.Consumer
	orders   *service.OrderService
	logger   *zap.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewPaymentWorker creates a new payment worker
func NewPaymentWorker(consumer *broker.Consumer, orders *service.OrderService) *PaymentWorker {
	return &PaymentWorker{
		consumer: consumer,
		orders:   orders,
		logger:   util.NamedLogger("payment-worker"),
	}
}

// Start begins consuming payment events in the background
func (w *PaymentWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	handler := broker.NewEventHandler()
	handler.OnPaymentReceived(w.handlePayment)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.StartConsuming(ctx, handler.HandleMessage); err != nil && ctx.Err() == nil {
			w.logger.Error("Payment consumer stopped", zap.Error(err))
		}
	}()
	w.logger.Info("Payment worker started")
}

// Stop cancels consumption and waits for the worker to drain
func (w *PaymentWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	if err := w.consumer.Close(); err != nil {
		w.logger.Error("Failed to close payment consumer", zap.Error(err))
	}
	w.logger.Info("Payment worker stopped")
}

func (w *PaymentWorker) handlePayment(ctx context.Context, event *models.PaymentReceivedEvent) error {
	orderID, err := uuid.Parse(event.OrderID)
	if err != nil {
		w.logger.Error("Payment event carries invalid order id",
			zap.String("order_id", event.OrderID), zap.Error(err))
		return nil
	}

	actor := engine.Actor{Name: event.ReceivedBy, Role: "payment-gateway"}
	if actor.Name == "" {
		actor.Name = "payment-gateway"
	}

	_, err = w.orders.RecordPayment(ctx, actor, orderID, event.Amount, event.AcceptOverpayment)
	if err != nil {
		switch apperr.CodeOf(err) {
		case apperr.CodeConflict, apperr.CodeStaleEdit:
			// retryable: the message stays uncommitted and is redelivered
			return err
		default:
			w.logger.Error("Payment rejected, dropping event",
				zap.String("order_id", event.OrderID),
				zap.String("reference", event.Reference),
				zap.Error(err))
			return nil
		}
	}

	w.logger.Info("Gateway payment recorded",
		zap.String("order_id", event.OrderID),
		zap.String("reference", event.Reference),
		zap.String("amount", event.Amount.String()))
	return nil
}

// ReportingWorker consumes order mutation events and maintains the daily
// revenue estimate rollup in Redis for the dashboard.
type ReportingWorker struct {
	consumer *broker.Consumer
	redis    *redisclient.Client
	logger   *zap.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewReportingWorker creates a new reporting worker
func NewReportingWorker(consumer *broker.Consumer, redis *redisclient.Client) *ReportingWorker {
	return &ReportingWorker{
		consumer: consumer,
		redis:    redis,
		logger:   util.NamedLogger("reporting-worker"),
	}
}

// Start begins consuming order events in the background
func (w *ReportingWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	handler := broker.NewEventHandler()
	handler.OnOrderMutated(w.handleOrderMutated)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.StartConsuming(ctx, handler.HandleMessage); err != nil && ctx.Err() == nil {
			w.logger.Error("Reporting consumer stopped", zap.Error(err))
		}
	}()
	w.logger.Info("Reporting worker started")
}

// Stop cancels consumption and waits for the worker to drain
func (w *ReportingWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	if err := w.consumer.Close(); err != nil {
		w.logger.Error("Failed to close reporting consumer", zap.Error(err))
	}
	w.logger.Info("Reporting worker stopped")
}

func (w *ReportingWorker) handleOrderMutated(ctx context.Context, event *models.OrderMutatedEvent) error {
	if event.Status != string(models.StatusCompleted) {
		return nil
	}
	if !statusChanged(event.Actions) {
		// repeated mutations on a completed order must not double-count
		return nil
	}

	day := event.Timestamp
	if day.IsZero() {
		day = time.Now().UTC()
	}
	if err := w.redis.AddRevenueEstimate(ctx, day, event.TotalAmount); err != nil {
		w.logger.Error("Failed to update revenue estimate",
			zap.String("order_id", event.OrderID), zap.Error(err))
		return err
	}

	w.logger.Debug("Revenue estimate updated",
		zap.String("order_id", event.OrderID),
		zap.String("amount", event.TotalAmount.String()))
	return nil
}

func statusChanged(actions []string) bool {
	for _, action := range actions {
		if action == string(models.AuditActionStatusChanged) {
			return true
		}
	}
	return false
}
