package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"autoparts-service/internal/apperr"
	"autoparts-service/internal/models"
	"autoparts-service/internal/pricing"
	"autoparts-service/internal/util"
)

// CatalogStore is the storage contract for catalog reads and direct
// stock adjustments.
type CatalogStore interface {
	GetPartByID(ctx context.Context, id string) (*models.SparePart, error)
	GetPartByNumber(ctx context.Context, partNumber string) (*models.SparePart, error)
	ListActiveParts(ctx context.Context, category, search string) ([]models.SparePart, error)
	GetLowStockParts(ctx context.Context, threshold int) ([]models.SparePart, error)
	AdjustStock(ctx context.Context, sparePartID string, delta int) (*models.SparePart, error)
}

// LowStockPublisher publishes low-stock alerts.
type LowStockPublisher interface {
	PublishLowStock(ctx context.Context, event *models.LowStockEvent) error
}

// CatalogService serves catalog reads and admin stock adjustments.
type CatalogService struct {
	store             CatalogStore
	eventPublisher    LowStockPublisher
	lowStockThreshold int
	logger            *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store CatalogStore, eventPublisher LowStockPublisher, lowStockThreshold int) *CatalogService {
	return &CatalogService{
		store:             store,
		eventPublisher:    eventPublisher,
		lowStockThreshold: lowStockThreshold,
		logger:            util.GetLogger(),
	}
}

// PartView is a catalog record with its sale-evaluated price attached
type PartView struct {
	models.SparePart
	EffectivePrice decimal.Decimal `json:"effective_price"`
	OnSaleNow      bool            `json:"on_sale_now"`
}

func partView(part *models.SparePart, now time.Time) PartView {
	return PartView{
		SparePart:      *part,
		EffectivePrice: pricing.EffectiveUnitPrice(part, now).Round(2),
		OnSaleNow:      pricing.SaleActive(part, now),
	}
}

// GetPart retrieves one part with its current effective price
func (s *CatalogService) GetPart(ctx context.Context, id string) (*PartView, error) {
	part, err := s.store.GetPartByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := partView(part, time.Now())
	return &view, nil
}

// ListParts retrieves active parts, optionally filtered by category
// and a name/part-number search term.
func (s *CatalogService) ListParts(ctx context.Context, category, search string) ([]PartView, error) {
	parts, err := s.store.ListActiveParts(ctx, category, search)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	views := make([]PartView, 0, len(parts))
	for i := range parts {
		views = append(views, partView(&parts[i], now))
	}
	return views, nil
}

// LowStock retrieves parts at or below the configured threshold
func (s *CatalogService) LowStock(ctx context.Context) ([]models.SparePart, error) {
	return s.store.GetLowStockParts(ctx, s.lowStockThreshold)
}

// AdjustStock applies a signed stock delta for restocking or manual
// correction. Negative deltas may not take stock below zero.
func (s *CatalogService) AdjustStock(ctx context.Context, sparePartID string, delta int) (*models.SparePart, error) {
	if delta == 0 {
		return nil, &apperr.ValidationError{Field: "delta", Message: "delta must be non-zero"}
	}

	part, err := s.store.AdjustStock(ctx, sparePartID, delta)
	if err != nil {
		return nil, err
	}

	direction := "increase"
	if delta < 0 {
		direction = "decrease"
	}
	util.StockAdjustmentsTotal.WithLabelValues(direction).Inc()

	s.logger.Info("Stock adjusted",
		zap.String("spare_part_id", sparePartID),
		zap.Int("delta", delta),
		zap.Int("stock_quantity", part.StockQuantity))

	if delta < 0 && part.StockQuantity < s.lowStockThreshold && s.eventPublisher != nil {
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

	return part, nil
}
