package worker

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoparts-service/internal/models"
	"autoparts-service/internal/service/servicetest"
)

func orderCreatedEvent(eventID string) *models.OrderCreatedEvent {
	return &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   eventID,
			EventType: models.EventTypeOrderCreated,
		},
		OrderID:     "order-1",
		OrderNumber: "ORD-2024-001",
		UserID:      "user-1",
		UserEmail:   "user-1@example.com",
		TotalAmount: decimal.RequireFromString("47.79"),
	}
}

func TestHandleOrderCreatedMarksProcessed(t *testing.T) {
	store := servicetest.NewFakeStore()
	w := NewNotificationWorker(nil, store)

	require.NoError(t, w.handleOrderCreated(context.Background(), orderCreatedEvent("evt-1")))

	processed, err := store.IsEventProcessed(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestDuplicateDeliveryIsSkipped(t *testing.T) {
	store := servicetest.NewFakeStore()
	w := NewNotificationWorker(nil, store)

	event := orderCreatedEvent("evt-dup")
	require.NoError(t, w.handleOrderCreated(context.Background(), event))
	require.NoError(t, w.handleOrderCreated(context.Background(), event), "redelivery is not an error")

	assert.True(t, w.seen(context.Background(), "evt-dup", event.EventType))
}

func TestStatusChangeNotifiesOnlyCustomerFacingStates(t *testing.T) {
	store := servicetest.NewFakeStore()
	w := NewNotificationWorker(nil, store)

	internal := &models.OrderStatusChangedEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-2", EventType: models.EventTypeOrderStatusChanged},
		ToStatus:  models.OrderStatusConfirmed,
	}
	require.NoError(t, w.handleOrderStatusChanged(context.Background(), internal))

	shipped := &models.OrderStatusChangedEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-3", EventType: models.EventTypeOrderStatusChanged},
		ToStatus:  models.OrderStatusShipped,
	}
	require.NoError(t, w.handleOrderStatusChanged(context.Background(), shipped))

	// both are marked processed regardless of whether a notice went out
	for _, id := range []string{"evt-2", "evt-3"} {
		processed, err := store.IsEventProcessed(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, processed, id)
	}
}

func TestLowStockAlertHandled(t *testing.T) {
	store := servicetest.NewFakeStore()
	w := NewNotificationWorker(nil, store)

	event := &models.LowStockEvent{
		BaseEvent:   models.BaseEvent{EventID: "evt-4", EventType: models.EventTypeLowStock},
		SparePartID: "part-1",
		PartName:    "Brake Pads",
		Remaining:   3,
		Threshold:   10,
	}
	require.NoError(t, w.handleLowStock(context.Background(), event))

	processed, err := store.IsEventProcessed(context.Background(), "evt-4")
	require.NoError(t, err)
	assert.True(t, processed)
}
