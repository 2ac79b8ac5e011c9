// Package servicetest provides in-memory fakes of the service storage
// contracts for tests that exercise the workflow without a database.
package servicetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"autoparts-service/internal/apperr"
	"autoparts-service/internal/models"
)

// FakeStore is a mutex-guarded in-memory store. Its CreateOrderTx
// mirrors the real one's guarded-decrement semantics: under the lock
// it either applies every effect of a checkout or none.
type FakeStore struct {
	mu         sync.Mutex
	parts      map[string]*models.SparePart
	cartItems  map[string]*models.CartItem
	orders     map[string]*models.Order
	orderItems map[string][]models.OrderItem
	counters   map[int]int
	processed  map[string]string
	settings   *models.AppSettings
}

// NewFakeStore creates an empty fake store
func NewFakeStore() *FakeStore {
	return &FakeStore{
		parts:      make(map[string]*models.SparePart),
		cartItems:  make(map[string]*models.CartItem),
		orders:     make(map[string]*models.Order),
		orderItems: make(map[string][]models.OrderItem),
		counters:   make(map[int]int),
		processed:  make(map[string]string),
	}
}

// AddPart seeds a catalog part, assigning an ID if absent
func (f *FakeStore) AddPart(part models.SparePart) *models.SparePart {
	f.mu.Lock()
	defer f.mu.Unlock()
	if part.ID == "" {
		part.ID = uuid.New().String()
	}
	f.parts[part.ID] = &part
	return &part
}

// AddCartLine seeds a cart line directly
func (f *FakeStore) AddCartLine(userID, partID string, quantity int) *models.CartItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	item := &models.CartItem{
		ID:          uuid.New().String(),
		UserID:      userID,
		SparePartID: partID,
		Quantity:    quantity,
		AddedAt:     time.Now(),
	}
	f.cartItems[item.ID] = item
	return item
}

// SetSettings seeds the settings row
func (f *FakeStore) SetSettings(settings *models.AppSettings) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = settings
}

// StockOf reads a part's current stock
func (f *FakeStore) StockOf(partID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parts[partID].StockQuantity
}

// SetOrderStatus forces an order's status, bypassing the state machine
func (f *FakeStore) SetOrderStatus(orderID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[orderID].Status = status
}

func (f *FakeStore) GetPartByID(ctx context.Context, id string) (*models.SparePart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	part, ok := f.parts[id]
	if !ok {
		return nil, &apperr.NotFoundError{Entity: "spare part", ID: id}
	}
	copied := *part
	return &copied, nil
}

func (f *FakeStore) GetPartByNumber(ctx context.Context, partNumber string) (*models.SparePart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, part := range f.parts {
		if part.PartNumber == partNumber {
			copied := *part
			return &copied, nil
		}
	}
	return nil, &apperr.NotFoundError{Entity: "spare part", ID: partNumber}
}

func (f *FakeStore) ListActiveParts(ctx context.Context, category, search string) ([]models.SparePart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := []models.SparePart{}
	for _, part := range f.parts {
		if !part.IsActive {
			continue
		}
		if category != "" && part.Category != category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(part.Name), strings.ToLower(search)) {
			continue
		}
		parts = append(parts, *part)
	}
	return parts, nil
}

func (f *FakeStore) GetLowStockParts(ctx context.Context, threshold int) ([]models.SparePart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := []models.SparePart{}
	for _, part := range f.parts {
		if part.IsActive && part.StockQuantity < threshold {
			parts = append(parts, *part)
		}
	}
	return parts, nil
}

func (f *FakeStore) AdjustStock(ctx context.Context, sparePartID string, delta int) (*models.SparePart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	part, ok := f.parts[sparePartID]
	if !ok {
		return nil, &apperr.NotFoundError{Entity: "spare part", ID: sparePartID}
	}
	if part.StockQuantity+delta < 0 {
		return nil, &apperr.InsufficientStockError{
			SparePartID: part.ID,
			PartName:    part.Name,
			Available:   part.StockQuantity,
			Requested:   -delta,
		}
	}
	part.StockQuantity += delta
	copied := *part
	return &copied, nil
}

func (f *FakeStore) GetCartWithDetails(ctx context.Context, userID string) ([]models.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := []models.CartLine{}
	for _, item := range f.cartItems {
		if item.UserID != userID {
			continue
		}
		part, ok := f.parts[item.SparePartID]
		if !ok {
			continue
		}
		lines = append(lines, models.CartLine{
			CartItem:           *item,
			PartName:           part.Name,
			PartNumber:         part.PartNumber,
			Price:              part.Price,
			OriginalPrice:      part.OriginalPrice,
			DiscountPercentage: part.DiscountPercentage,
			IsOnSale:           part.IsOnSale,
			SaleStartDate:      part.SaleStartDate,
			SaleEndDate:        part.SaleEndDate,
			StockQuantity:      part.StockQuantity,
			IsActive:           part.IsActive,
		})
	}
	return lines, nil
}

func (f *FakeStore) GetCartItem(ctx context.Context, id string) (*models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.cartItems[id]
	if !ok {
		return nil, &apperr.NotFoundError{Entity: "cart item", ID: id}
	}
	copied := *item
	return &copied, nil
}

func (f *FakeStore) GetCartItemByPart(ctx context.Context, userID, sparePartID string) (*models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.cartItems {
		if item.UserID == userID && item.SparePartID == sparePartID {
			copied := *item
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *FakeStore) InsertCartItem(ctx context.Context, item *models.CartItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.ID = uuid.New().String()
	item.AddedAt = time.Now()
	copied := *item
	f.cartItems[item.ID] = &copied
	return nil
}

func (f *FakeStore) UpdateCartItemQuantity(ctx context.Context, id string, quantity int) (*models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.cartItems[id]
	if !ok {
		return nil, &apperr.NotFoundError{Entity: "cart item", ID: id}
	}
	item.Quantity = quantity
	copied := *item
	return &copied, nil
}

func (f *FakeStore) DeleteCartItem(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cartItems[id]; !ok {
		return &apperr.NotFoundError{Entity: "cart item", ID: id}
	}
	delete(f.cartItems, id)
	return nil
}

func (f *FakeStore) ClearCart(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCartLocked(userID)
	return nil
}

func (f *FakeStore) clearCartLocked(userID string) {
	for id, item := range f.cartItems {
		if item.UserID == userID {
			delete(f.cartItems, id)
		}
	}
}

func (f *FakeStore) CountCartItems(ctx context.Context, userID string) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines, total := 0, 0
	for _, item := range f.cartItems {
		if item.UserID == userID {
			lines++
			total += item.Quantity
		}
	}
	return lines, total, nil
}

func (f *FakeStore) CreateOrderTx(ctx context.Context, order *models.Order, items []models.OrderItem, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// All-or-nothing: verify every decrement before applying any.
	for i := range items {
		item := &items[i]
		part, ok := f.parts[*item.SparePartID]
		if !ok {
			return &apperr.NotFoundError{Entity: "spare part", ID: *item.SparePartID}
		}
		if part.StockQuantity < item.Quantity {
			return &apperr.InsufficientStockError{
				SparePartID: *item.SparePartID,
				PartName:    item.PartName,
				Available:   part.StockQuantity,
				Requested:   item.Quantity,
			}
		}
	}

	f.counters[now.Year()]++
	order.ID = uuid.New().String()
	order.OrderNumber = fmt.Sprintf("ORD-%d-%03d", now.Year(), f.counters[now.Year()])
	order.CreatedAt = now
	order.UpdatedAt = now

	stored := []models.OrderItem{}
	for i := range items {
		item := items[i]
		item.ID = uuid.New().String()
		item.OrderID = order.ID
		f.parts[*item.SparePartID].StockQuantity -= item.Quantity
		stored = append(stored, item)
	}

	copied := *order
	f.orders[order.ID] = &copied
	f.orderItems[order.ID] = stored
	f.clearCartLocked(order.UserID)
	return nil
}

func (f *FakeStore) CancelOrderTx(ctx context.Context, orderID, auditNote string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[orderID]
	if !ok {
		return &apperr.NotFoundError{Entity: "order", ID: orderID}
	}
	switch order.Status {
	case models.OrderStatusPending, models.OrderStatusConfirmed, models.OrderStatusProcessing:
	default:
		return &apperr.InvalidStateTransitionError{From: order.Status, To: models.OrderStatusCancelled}
	}

	order.Status = models.OrderStatusCancelled
	notes := ""
	if order.Notes != nil {
		notes = *order.Notes
	}
	notes += auditNote
	order.Notes = &notes

	for _, item := range f.orderItems[orderID] {
		if item.SparePartID == nil {
			continue
		}
		if part, ok := f.parts[*item.SparePartID]; ok {
			part.StockQuantity += item.Quantity
		}
	}
	return nil
}

func (f *FakeStore) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return nil, &apperr.NotFoundError{Entity: "order", ID: id}
	}
	copied := *order
	return &copied, nil
}

func (f *FakeStore) GetOrderWithItems(ctx context.Context, id string) (*models.Order, []models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return nil, nil, &apperr.NotFoundError{Entity: "order", ID: id}
	}
	copied := *order
	items := append([]models.OrderItem{}, f.orderItems[id]...)
	return &copied, items, nil
}

func (f *FakeStore) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, order := range f.orders {
		if order.IdempotencyKey != nil && *order.IdempotencyKey == key {
			copied := *order
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *FakeStore) GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	orders := []models.Order{}
	for _, order := range f.orders {
		if order.UserID == userID {
			orders = append(orders, *order)
		}
	}
	return orders, nil
}

func (f *FakeStore) ListOrders(ctx context.Context, status string, limit, offset int) ([]models.Order, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	orders := []models.Order{}
	for _, order := range f.orders {
		if status == "" || order.Status == status {
			orders = append(orders, *order)
		}
	}
	total := len(orders)
	if offset > len(orders) {
		offset = len(orders)
	}
	end := offset + limit
	if end > len(orders) {
		end = len(orders)
	}
	return orders[offset:end], total, nil
}

func (f *FakeStore) UpdateOrderStatus(ctx context.Context, orderID, status string, trackingNumber, notes *string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, &apperr.NotFoundError{Entity: "order", ID: orderID}
	}
	order.Status = status
	if trackingNumber != nil {
		order.TrackingNumber = trackingNumber
	}
	if notes != nil {
		order.Notes = notes
	}
	copied := *order
	return &copied, nil
}

func (f *FakeStore) GetSettings(ctx context.Context) (*models.AppSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settings == nil {
		return nil, nil
	}
	copied := *f.settings
	return &copied, nil
}

func (f *FakeStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.processed[eventID]
	return ok, nil
}

func (f *FakeStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed[eventID] = eventType
	return nil
}

// FakePublisher records published events. Safe for concurrent
// publishes; read the slices only after the work under test finishes.
type FakePublisher struct {
	mu            sync.Mutex
	Created       []*models.OrderCreatedEvent
	Cancelled     []*models.OrderCancelledEvent
	StatusChanged []*models.OrderStatusChangedEvent
	LowStock      []*models.LowStockEvent
}

func (p *FakePublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Created = append(p.Created, event)
	return nil
}

func (p *FakePublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Cancelled = append(p.Cancelled, event)
	return nil
}

func (p *FakePublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StatusChanged = append(p.StatusChanged, event)
	return nil
}

func (p *FakePublisher) PublishLowStock(ctx context.Context, event *models.LowStockEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LowStock = append(p.LowStock, event)
	return nil
}
