package worker

import (
	"context"

	"go.uber.org/zap"

	"autoparts-service/internal/broker"
	"autoparts-service/internal/models"
	"autoparts-service/internal/util"
)

// DedupStore tracks processed event IDs. The Kafka consumer delivers
// at-least-once, so every notification is guarded by this check.
type DedupStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// NotificationWorker consumes order events and dispatches customer
// notifications. Dispatch is a structured log line here; a mail or
// push provider plugs in behind the same handler.
type NotificationWorker struct {
	consumer *broker.Consumer
	store    DedupStore
	logger   *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, store DedupStore) *NotificationWorker {
	return &NotificationWorker{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}
}

// Start runs the worker until the context is cancelled
func (w *NotificationWorker) Start(ctx context.Context) error {
	handler := broker.NewEventHandler()
	handler.OnOrderCreated(w.handleOrderCreated)
	handler.OnOrderCancelled(w.handleOrderCancelled)
	handler.OnOrderStatusChanged(w.handleOrderStatusChanged)
	handler.OnLowStock(w.handleLowStock)

	return w.consumer.StartConsuming(ctx, handler.HandleMessage)
}

// seen reports whether the event was already handled, marking it
// otherwise. Errors fail open: a broken dedup store must not drop
// notifications, a duplicate send is the lesser harm.
func (w *NotificationWorker) seen(ctx context.Context, eventID, eventType string) bool {
	processed, err := w.store.IsEventProcessed(ctx, eventID)
	if err != nil {
		w.logger.Warn("Dedup check failed", zap.String("event_id", eventID), zap.Error(err))
		return false
	}
	if processed {
		w.logger.Debug("Skipping already-processed event", zap.String("event_id", eventID))
		return true
	}
	if err := w.store.MarkEventProcessed(ctx, eventID, eventType); err != nil {
		w.logger.Warn("Failed to mark event processed", zap.String("event_id", eventID), zap.Error(err))
	}
	return false
}

func (w *NotificationWorker) handleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	if w.seen(ctx, event.EventID, event.EventType) {
		return nil
	}

	w.logger.Info("Sending order confirmation",
		zap.String("order_number", event.OrderNumber),
		zap.String("user_email", event.UserEmail),
		zap.String("total", event.TotalAmount.StringFixed(2)),
		zap.Int("item_count", len(event.Items)))
	util.NotificationsSentTotal.WithLabelValues("order_confirmation").Inc()
	return nil
}

func (w *NotificationWorker) handleOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	if w.seen(ctx, event.EventID, event.EventType) {
		return nil
	}

	w.logger.Info("Sending cancellation notice",
		zap.String("order_number", event.OrderNumber),
		zap.String("user_id", event.UserID),
		zap.String("cancelled_by", event.CancelledBy))
	util.NotificationsSentTotal.WithLabelValues("order_cancelled").Inc()
	return nil
}

func (w *NotificationWorker) handleOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	if w.seen(ctx, event.EventID, event.EventType) {
		return nil
	}

	// Customers only care about shipment and delivery; the rest are
	// internal transitions.
	switch event.ToStatus {
	case models.OrderStatusShipped, models.OrderStatusDelivered:
		w.logger.Info("Sending status update",
			zap.String("order_number", event.OrderNumber),
			zap.String("user_id", event.UserID),
			zap.String("status", event.ToStatus))
		util.NotificationsSentTotal.WithLabelValues("status_update").Inc()
	}
	return nil
}

func (w *NotificationWorker) handleLowStock(ctx context.Context, event *models.LowStockEvent) error {
	if w.seen(ctx, event.EventID, event.EventType) {
		return nil
	}

	w.logger.Warn("Low stock alert",
		zap.String("spare_part_id", event.SparePartID),
		zap.String("part_name", event.PartName),
		zap.String("part_number", event.PartNumber),
		zap.Int("remaining", event.Remaining),
		zap.Int("threshold", event.Threshold))
	util.NotificationsSentTotal.WithLabelValues("low_stock_alert").Inc()
	return nil
}
