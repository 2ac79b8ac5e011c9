package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SparePart represents a catalog item. stock_quantity is the only
// field the checkout and cancellation paths mutate.
type SparePart struct {
	ID                 string           `db:"id" json:"id"`
	Name               string           `db:"name" json:"name"`
	Description        string           `db:"description" json:"description,omitempty"`
	PartNumber         string           `db:"part_number" json:"part_number"`
	Category           string           `db:"category" json:"category"`
	Brand              string           `db:"brand" json:"brand,omitempty"`
	Price              decimal.Decimal  `db:"price" json:"price"`
	OriginalPrice      *decimal.Decimal `db:"original_price" json:"original_price,omitempty"`
	DiscountPercentage *decimal.Decimal `db:"discount_percentage" json:"discount_percentage,omitempty"`
	IsOnSale           bool             `db:"is_on_sale" json:"is_on_sale"`
	SaleStartDate      *time.Time       `db:"sale_start_date" json:"sale_start_date,omitempty"`
	SaleEndDate        *time.Time       `db:"sale_end_date" json:"sale_end_date,omitempty"`
	StockQuantity      int              `db:"stock_quantity" json:"stock_quantity"`
	IsActive           bool             `db:"is_active" json:"is_active"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

// CartItem is one line of a user's in-progress selection.
type CartItem struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	UserEmail   string    `db:"user_email" json:"user_email,omitempty"`
	SparePartID string    `db:"spare_part_id" json:"spare_part_id"`
	Quantity    int       `db:"quantity" json:"quantity"`
	AddedAt     time.Time `db:"added_at" json:"added_at"`
}

// CartLine is a cart item joined with the live catalog record it
// references. Sale evaluation happens on this data at read time.
type CartLine struct {
	CartItem
	PartName           string           `db:"name" json:"name"`
	PartNumber         string           `db:"part_number" json:"part_number"`
	Price              decimal.Decimal  `db:"price" json:"price"`
	OriginalPrice      *decimal.Decimal `db:"original_price" json:"original_price,omitempty"`
	DiscountPercentage *decimal.Decimal `db:"discount_percentage" json:"discount_percentage,omitempty"`
	IsOnSale           bool             `db:"is_on_sale" json:"is_on_sale"`
	SaleStartDate      *time.Time       `db:"sale_start_date" json:"sale_start_date,omitempty"`
	SaleEndDate        *time.Time       `db:"sale_end_date" json:"sale_end_date,omitempty"`
	StockQuantity      int              `db:"stock_quantity" json:"stock_quantity"`
	IsActive           bool             `db:"is_active" json:"is_active"`
}

// Part reconstructs the joined catalog fields as a SparePart so sale
// evaluation can run on cart lines at pricing time.
func (l *CartLine) Part() *SparePart {
	return &SparePart{
		ID:                 l.SparePartID,
		Name:               l.PartName,
		PartNumber:         l.PartNumber,
		Price:              l.Price,
		OriginalPrice:      l.OriginalPrice,
		DiscountPercentage: l.DiscountPercentage,
		IsOnSale:           l.IsOnSale,
		SaleStartDate:      l.SaleStartDate,
		SaleEndDate:        l.SaleEndDate,
		StockQuantity:      l.StockQuantity,
		IsActive:           l.IsActive,
	}
}

// Order is the immutable financial record of a checkout. Only status,
// tracking_number and notes may change after creation.
type Order struct {
	ID              string          `db:"id" json:"id"`
	UserID          string          `db:"user_id" json:"user_id"`
	UserEmail       string          `db:"user_email" json:"user_email,omitempty"`
	OrderNumber     string          `db:"order_number" json:"order_number"`
	Subtotal        decimal.Decimal `db:"subtotal" json:"subtotal"`
	TaxAmount       decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	ShippingCost    decimal.Decimal `db:"shipping_cost" json:"shipping_cost"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status          string          `db:"status" json:"status"`
	PaymentStatus   string          `db:"payment_status" json:"payment_status"`
	PaymentMethod   string          `db:"payment_method" json:"payment_method"`
	ShippingAddress string          `db:"shipping_address" json:"shipping_address"`
	BillingAddress  string          `db:"billing_address" json:"billing_address"`
	TrackingNumber  *string         `db:"tracking_number" json:"tracking_number,omitempty"`
	Notes           *string         `db:"notes" json:"notes,omitempty"`
	IdempotencyKey  *string         `db:"idempotency_key" json:"-"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem is the frozen snapshot of a part at purchase time. It is
// written once and never mutated, so cancellation can restore exactly
// what was decremented even if the catalog record changed since.
type OrderItem struct {
	ID          string          `db:"id" json:"id"`
	OrderID     string          `db:"order_id" json:"order_id"`
	SparePartID *string         `db:"spare_part_id" json:"spare_part_id,omitempty"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalPrice  decimal.Decimal `db:"total_price" json:"total_price"`
	PartName    string          `db:"part_name" json:"part_name"`
	PartNumber  string          `db:"part_number" json:"part_number"`
}

// AppSettings is the singleton record the pricing engine consults.
type AppSettings struct {
	ID                    string          `db:"id" json:"id"`
	AppName               string          `db:"app_name" json:"app_name"`
	Currency              string          `db:"currency" json:"currency"`
	TaxRate               decimal.Decimal `db:"tax_rate" json:"tax_rate"`
	ShippingCost          decimal.Decimal `db:"shipping_cost" json:"shipping_cost"`
	FreeShippingThreshold decimal.Decimal `db:"free_shipping_threshold" json:"free_shipping_threshold"`
	UpdatedAt             time.Time       `db:"updated_at" json:"updated_at"`
}

// Order statuses. Forward-only happy path pending -> confirmed ->
// processing -> shipped -> delivered; cancellation allowed until shipped.
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// Payment statuses
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// Requester roles
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// ProcessedEvent for consumer-side idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
