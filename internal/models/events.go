package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeOrderCancelled     = "ORDER_CANCELLED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeLowStock           = "LOW_STOCK"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published after a checkout commits
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      string          `json:"user_id"`
	UserEmail   string          `json:"user_email,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItemData `json:"items"`
}

// OrderCancelledEvent published after stock has been restored
type OrderCancelledEvent struct {
	BaseEvent
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	UserID      string `json:"user_id"`
	CancelledBy string `json:"cancelled_by"`
}

// OrderStatusChangedEvent published on admin status transitions
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	UserID      string `json:"user_id"`
	FromStatus  string `json:"from_status"`
	ToStatus    string `json:"to_status"`
}

// LowStockEvent published when a checkout drives a part below the
// configured threshold
type LowStockEvent struct {
	BaseEvent
	SparePartID string `json:"spare_part_id"`
	PartName    string `json:"part_name"`
	PartNumber  string `json:"part_number"`
	Remaining   int    `json:"remaining"`
	Threshold   int    `json:"threshold"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	SparePartID string          `json:"spare_part_id"`
	PartName    string          `json:"part_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}
