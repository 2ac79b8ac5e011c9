package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"autoparts-service/internal/apperr"
	"autoparts-service/internal/models"
	"autoparts-service/internal/pricing"
	"autoparts-service/internal/util"
)

// OrderStore is the storage contract the order workflow runs against.
// The two Tx methods are the atomic units: checkout commit and
// cancellation each either fully apply or leave no trace.
type OrderStore interface {
	GetCartWithDetails(ctx context.Context, userID string) ([]models.CartLine, error)
	CreateOrderTx(ctx context.Context, order *models.Order, items []models.OrderItem, now time.Time) error
	CancelOrderTx(ctx context.Context, orderID, auditNote string) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderWithItems(ctx context.Context, id string) (*models.Order, []models.OrderItem, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error)
	ListOrders(ctx context.Context, status string, limit, offset int) ([]models.Order, int, error)
	UpdateOrderStatus(ctx context.Context, orderID, status string, trackingNumber, notes *string) (*models.Order, error)
	GetPartByID(ctx context.Context, id string) (*models.SparePart, error)
}

// OrderEventPublisher publishes order lifecycle events after commit.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishLowStock(ctx context.Context, event *models.LowStockEvent) error
}

// CartCountInvalidator drops cached cart counts after checkout clears
// the cart.
type CartCountInvalidator interface {
	InvalidateCartCount(ctx context.Context, userID string) error
}

// OrderService orchestrates the cart-to-order workflow
type OrderService struct {
	store             OrderStore
	settings          *SettingsService
	eventPublisher    OrderEventPublisher
	cartCache         CartCountInvalidator
	lowStockThreshold int
	logger            *zap.Logger
	now               func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(
	store OrderStore,
	settings *SettingsService,
	eventPublisher OrderEventPublisher,
	cartCache CartCountInvalidator,
	lowStockThreshold int,
) *OrderService {
	return &OrderService{
		store:             store,
		settings:          settings,
		eventPublisher:    eventPublisher,
		cartCache:         cartCache,
		lowStockThreshold: lowStockThreshold,
		logger:            util.GetLogger(),
		now:               time.Now,
	}
}

// CreateOrderRequest is the checkout payload
type CreateOrderRequest struct {
	ShippingAddress string `json:"shipping_address" binding:"required"`
	BillingAddress  string `json:"billing_address,omitempty"`
	PaymentMethod   string `json:"payment_method" binding:"required"`
	Notes           string `json:"notes,omitempty"`
	IdempotencyKey  string `json:"idempotency_key,omitempty"`
}

// OrderResponse is an order with its item snapshots attached
type OrderResponse struct {
	Order *models.Order      `json:"order"`
	Items []models.OrderItem `json:"items"`
}

// CreateOrder converts the requester's cart into a persisted order:
// validate stock, price, write order + snapshots, decrement stock and
// clear the cart as one transactional unit, then publish events.
func (s *OrderService) CreateOrder(ctx context.Context, requester Requester, req *CreateOrderRequest) (*OrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}

	existing, err := s.store.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != nil {
		s.logger.Info("Duplicate checkout request replayed",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.String("order_id", existing.ID))
		order, items, err := s.store.GetOrderWithItems(ctx, existing.ID)
		if err != nil {
			return nil, err
		}
		return &OrderResponse{Order: order, Items: items}, nil
	}

	lines, err := s.store.GetCartWithDetails(ctx, requester.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(lines) == 0 {
		util.OrdersFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, apperr.ErrEmptyCart
	}

	// Friendly pre-check against a fresh read. The authoritative check
	// is the guarded decrement inside CreateOrderTx.
	for _, line := range lines {
		if !line.IsActive {
			util.OrdersFailedTotal.WithLabelValues("inactive_part").Inc()
			return nil, &apperr.ValidationError{
				Field:   "cart",
				Message: fmt.Sprintf("%s is no longer available", line.PartName),
			}
		}
		if line.StockQuantity < line.Quantity {
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, &apperr.InsufficientStockError{
				SparePartID: line.SparePartID,
				PartName:    line.PartName,
				Available:   line.StockQuantity,
				Requested:   line.Quantity,
			}
		}
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	// Sale windows are evaluated at this instant, never cached.
	now := s.now()
	priceLines := make([]pricing.Line, 0, len(lines))
	items := make([]models.OrderItem, 0, len(lines))
	for i := range lines {
		line := &lines[i]
		unitPrice := pricing.EffectiveUnitPrice(line.Part(), now).Round(2)
		priceLines = append(priceLines, pricing.Line{UnitPrice: unitPrice, Quantity: line.Quantity})

		partID := line.SparePartID
		items = append(items, models.OrderItem{
			SparePartID: &partID,
			Quantity:    line.Quantity,
			UnitPrice:   unitPrice,
			TotalPrice:  unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2),
			PartName:    line.PartName,
			PartNumber:  line.PartNumber,
		})
	}

	quote := pricing.Compute(priceLines, s.settings.Pricing(settings))

	billingAddress := req.BillingAddress
	if billingAddress == "" {
		billingAddress = req.ShippingAddress
	}

	order := &models.Order{
		UserID:          requester.ID,
		UserEmail:       requester.Email,
		Subtotal:        quote.Subtotal,
		TaxAmount:       quote.TaxAmount,
		ShippingCost:    quote.ShippingCost,
		TotalAmount:     quote.TotalAmount,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  billingAddress,
		IdempotencyKey:  &req.IdempotencyKey,
	}
	if req.Notes != "" {
		order.Notes = &req.Notes
	}

	if err := s.store.CreateOrderTx(ctx, order, items, now); err != nil {
		if apperr.IsBusinessError(err) {
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, err
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to commit checkout: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", requester.ID),
		zap.String("total", order.TotalAmount.StringFixed(2)))

	if s.cartCache != nil {
		if err := s.cartCache.InvalidateCartCount(ctx, requester.ID); err != nil {
			s.logger.Warn("Failed to invalidate cart count cache", zap.Error(err))
		}
	}

	// Response reflects persisted state, not the insert inputs.
	persisted, persistedItems, err := s.store.GetOrderWithItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read order: %w", err)
	}

	s.publishOrderCreated(ctx, persisted, persistedItems)
	s.alertLowStock(ctx, persistedItems)

	return &OrderResponse{Order: persisted, Items: persistedItems}, nil
}

func (s *OrderService) publishOrderCreated(ctx context.Context, order *models.Order, items []models.OrderItem) {
	if s.eventPublisher == nil {
		return
	}

	eventItems := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		partID := ""
		if item.SparePartID != nil {
			partID = *item.SparePartID
		}
		eventItems = append(eventItems, models.OrderItemData{
			SparePartID: partID,
			PartName:    item.PartName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		UserEmail:   order.UserEmail,
		TotalAmount: order.TotalAmount,
		Items:       eventItems,
	}

	if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}

// alertLowStock publishes a LowStock event for every purchased part
// the checkout drove below the threshold. Best effort after commit.
func (s *OrderService) alertLowStock(ctx context.Context, items []models.OrderItem) {
	if s.eventPublisher == nil || s.lowStockThreshold <= 0 {
		return
	}

	for _, item := range items {
		if item.SparePartID == nil {
			continue
		}
		part, err := s.store.GetPartByID(ctx, *item.SparePartID)
		if err != nil {
			s.logger.Warn("Failed to read part for low-stock check",
				zap.String("spare_part_id", *item.SparePartID), zap.Error(err))
			continue
		}
		if part.StockQuantity >= s.lowStockThreshold {
			continue
		}

		util.LowStockAlertsTotal.Inc()
		event := &models.LowStockEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeLowStock,
				Timestamp: time.Now(),
			},
			SparePartID: part.ID,
			PartName:    part.Name,
			PartNumber:  part.PartNumber,
			Remaining:   part.StockQuantity,
			Threshold:   s.lowStockThreshold,
		}
		if err := s.eventPublisher.PublishLowStock(ctx, event); err != nil {
			s.logger.Error("Failed to publish LowStock event", zap.Error(err))
		}
	}
}

// CancelOrder transitions an order to cancelled and restores the stock
// recorded in its item snapshots. Monetary fields are never touched;
// refund accounting is an external concern.
func (s *OrderService) CancelOrder(ctx context.Context, requester Requester, orderID string) (*OrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !requester.CanAccessOrder(order) {
		return nil, &apperr.ForbiddenError{Reason: "not the order owner"}
	}

	if !CancellableStatus(order.Status) {
		return nil, &apperr.InvalidStateTransitionError{From: order.Status, To: models.OrderStatusCancelled}
	}

	actor := "customer"
	if requester.IsAdmin() && order.UserID != requester.ID {
		actor = "admin"
	}
	auditNote := fmt.Sprintf("\nOrder cancelled by %s", actor)

	if err := s.store.CancelOrderTx(ctx, orderID, auditNote); err != nil {
		if apperr.IsBusinessError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}

	util.OrdersCancelledTotal.Inc()
	s.logger.Info("Order cancelled",
		zap.String("order_id", orderID),
		zap.String("cancelled_by", actor))

	if s.eventPublisher != nil {
		event := &models.OrderCancelledEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderCancelled,
				Timestamp: time.Now(),
			},
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			CancelledBy: actor,
		}
		if err := s.eventPublisher.PublishOrderCancelled(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
		}
	}

	cancelled, items, err := s.store.GetOrderWithItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderResponse{Order: cancelled, Items: items}, nil
}

// UpdateStatusRequest is the admin status-change payload
type UpdateStatusRequest struct {
	Status         string `json:"status" binding:"required"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// UpdateStatus applies an admin status transition, validated against
// the order state machine. Cancellation must go through CancelOrder so
// stock is restored; it is rejected here.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, req *UpdateStatusRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	if !ValidStatus(req.Status) {
		return nil, &apperr.ValidationError{Field: "status", Message: "unknown status " + req.Status}
	}
	if req.Status == models.OrderStatusCancelled {
		return nil, &apperr.ValidationError{
			Field:   "status",
			Message: "use the cancel endpoint so stock is restored",
		}
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !ValidTransition(order.Status, req.Status) {
		return nil, &apperr.InvalidStateTransitionError{From: order.Status, To: req.Status}
	}

	var tracking, notes *string
	if req.TrackingNumber != "" {
		tracking = &req.TrackingNumber
	}
	if req.Notes != "" {
		notes = &req.Notes
	}

	updated, err := s.store.UpdateOrderStatus(ctx, orderID, req.Status, tracking, notes)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("from", order.Status),
		zap.String("to", req.Status))

	if s.eventPublisher != nil {
		event := &models.OrderStatusChangedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderStatusChanged,
				Timestamp: time.Now(),
			},
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			FromStatus:  order.Status,
			ToStatus:    req.Status,
		}
		if err := s.eventPublisher.PublishOrderStatusChanged(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
		}
	}

	return updated, nil
}

// GetOrder retrieves an order with items, enforcing ownership
func (s *OrderService) GetOrder(ctx context.Context, requester Requester, orderID string) (*OrderResponse, error) {
	order, items, err := s.store.GetOrderWithItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !requester.CanAccessOrder(order) {
		return nil, &apperr.ForbiddenError{Reason: "not the order owner"}
	}
	return &OrderResponse{Order: order, Items: items}, nil
}

// GetUserOrders retrieves the requester's orders, newest first
func (s *OrderService) GetUserOrders(ctx context.Context, requester Requester) ([]models.Order, error) {
	return s.store.GetOrdersByUserID(ctx, requester.ID)
}

// OrderListing is the admin order list with pagination info
type OrderListing struct {
	Orders []models.Order `json:"orders"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ListOrders retrieves orders for the admin view
func (s *OrderService) ListOrders(ctx context.Context, status string, limit, offset int) (*OrderListing, error) {
	if status != "" && !ValidStatus(status) {
		return nil, &apperr.ValidationError{Field: "status", Message: "unknown status " + status}
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	orders, total, err := s.store.ListOrders(ctx, status, limit, offset)
	if err != nil {
		return nil, err
	}
	return &OrderListing{Orders: orders, Total: total, Limit: limit, Offset: offset}, nil
}
