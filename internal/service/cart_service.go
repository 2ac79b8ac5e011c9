package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"autoparts-service/internal/apperr"
	"autoparts-service/internal/models"
	"autoparts-service/internal/pricing"
	"autoparts-service/internal/util"
)

// CartStore is the storage contract for cart reads and mutations.
type CartStore interface {
	GetCartWithDetails(ctx context.Context, userID string) ([]models.CartLine, error)
	GetCartItem(ctx context.Context, id string) (*models.CartItem, error)
	GetCartItemByPart(ctx context.Context, userID, sparePartID string) (*models.CartItem, error)
	InsertCartItem(ctx context.Context, item *models.CartItem) error
	UpdateCartItemQuantity(ctx context.Context, id string, quantity int) (*models.CartItem, error)
	DeleteCartItem(ctx context.Context, id string) error
	ClearCart(ctx context.Context, userID string) error
	CountCartItems(ctx context.Context, userID string) (lines int, totalQuantity int, err error)
	GetPartByID(ctx context.Context, id string) (*models.SparePart, error)
}

// CartCountCache caches per-user cart quantity totals.
type CartCountCache interface {
	GetCartCount(ctx context.Context, userID string) (count int, found bool, err error)
	SetCartCount(ctx context.Context, userID string, count int, ttl time.Duration) error
	InvalidateCartCount(ctx context.Context, userID string) error
}

const cartCountTTL = 5 * time.Minute

// CartService manages a user's in-progress selection. Cart mutations
// never touch stock; stock is only committed at checkout.
type CartService struct {
	store  CartStore
	cache  CartCountCache
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store CartStore, cache CartCountCache) *CartService {
	return &CartService{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// CartLineView is a cart line priced at read time
type CartLineView struct {
	models.CartLine
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	OnSaleNow bool            `json:"on_sale_now"`
}

// CartView is the priced cart summary
type CartView struct {
	Items      []CartLineView  `json:"items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	ItemCount  int             `json:"item_count"`
	TotalItems int             `json:"total_items"`
}

// GetCart returns the cart priced at this instant. Prices here are a
// preview; the checkout re-prices against the same rules.
func (s *CartService) GetCart(ctx context.Context, requester Requester) (*CartView, error) {
	lines, err := s.store.GetCartWithDetails(ctx, requester.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	view := &CartView{
		Items:    make([]CartLineView, 0, len(lines)),
		Subtotal: decimal.Zero,
	}
	for i := range lines {
		line := lines[i]
		unitPrice := pricing.EffectiveUnitPrice(line.Part(), now).Round(2)
		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
		view.Items = append(view.Items, CartLineView{
			CartLine:  line,
			UnitPrice: unitPrice,
			LineTotal: lineTotal,
			OnSaleNow: pricing.SaleActive(line.Part(), now),
		})
		view.Subtotal = view.Subtotal.Add(lineTotal)
		view.TotalItems += line.Quantity
	}
	view.ItemCount = len(view.Items)
	view.Subtotal = view.Subtotal.Round(2)

	return view, nil
}

// AddItemRequest is the add-to-cart payload
type AddItemRequest struct {
	SparePartID string `json:"spare_part_id" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
}

// AddItem adds a part to the cart, merging with an existing line for
// the same part. The merged quantity must fit current stock.
func (s *CartService) AddItem(ctx context.Context, requester Requester, req *AddItemRequest) (*models.CartItem, error) {
	part, err := s.store.GetPartByID(ctx, req.SparePartID)
	if err != nil {
		return nil, err
	}
	if !part.IsActive {
		return nil, &apperr.ValidationError{Field: "spare_part_id", Message: "part is not available"}
	}

	existing, err := s.store.GetCartItemByPart(ctx, requester.ID, req.SparePartID)
	if err != nil {
		return nil, err
	}

	wanted := req.Quantity
	if existing != nil {
		wanted += existing.Quantity
	}
	if wanted > part.StockQuantity {
		return nil, &apperr.InsufficientStockError{
			SparePartID: part.ID,
			PartName:    part.Name,
			Available:   part.StockQuantity,
			Requested:   wanted,
		}
	}

	var item *models.CartItem
	if existing != nil {
		item, err = s.store.UpdateCartItemQuantity(ctx, existing.ID, wanted)
	} else {
		item = &models.CartItem{
			UserID:      requester.ID,
			UserEmail:   requester.Email,
			SparePartID: req.SparePartID,
			Quantity:    req.Quantity,
		}
		err = s.store.InsertCartItem(ctx, item)
	}
	if err != nil {
		return nil, err
	}

	util.CartOperationsTotal.WithLabelValues("add").Inc()
	s.invalidateCount(ctx, requester.ID)
	return item, nil
}

// UpdateItem sets the quantity of a cart line owned by the requester
func (s *CartService) UpdateItem(ctx context.Context, requester Requester, itemID string, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, &apperr.ValidationError{Field: "quantity", Message: "quantity must be at least 1"}
	}

	item, err := s.store.GetCartItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.UserID != requester.ID {
		return nil, &apperr.ForbiddenError{Reason: "not your cart item"}
	}

	part, err := s.store.GetPartByID(ctx, item.SparePartID)
	if err != nil {
		return nil, err
	}
	if quantity > part.StockQuantity {
		return nil, &apperr.InsufficientStockError{
			SparePartID: part.ID,
			PartName:    part.Name,
			Available:   part.StockQuantity,
			Requested:   quantity,
		}
	}

	updated, err := s.store.UpdateCartItemQuantity(ctx, itemID, quantity)
	if err != nil {
		return nil, err
	}

	util.CartOperationsTotal.WithLabelValues("update").Inc()
	s.invalidateCount(ctx, requester.ID)
	return updated, nil
}

// RemoveItem deletes a cart line owned by the requester
func (s *CartService) RemoveItem(ctx context.Context, requester Requester, itemID string) error {
	item, err := s.store.GetCartItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.UserID != requester.ID {
		return &apperr.ForbiddenError{Reason: "not your cart item"}
	}

	if err := s.store.DeleteCartItem(ctx, itemID); err != nil {
		return err
	}

	util.CartOperationsTotal.WithLabelValues("remove").Inc()
	s.invalidateCount(ctx, requester.ID)
	return nil
}

// Clear empties the requester's cart
func (s *CartService) Clear(ctx context.Context, requester Requester) error {
	if err := s.store.ClearCart(ctx, requester.ID); err != nil {
		return err
	}
	util.CartOperationsTotal.WithLabelValues("clear").Inc()
	s.invalidateCount(ctx, requester.ID)
	return nil
}

// Count returns the summed quantity across the requester's cart,
// served from cache when fresh.
func (s *CartService) Count(ctx context.Context, requester Requester) (int, error) {
	if s.cache != nil {
		count, found, err := s.cache.GetCartCount(ctx, requester.ID)
		if err != nil {
			s.logger.Warn("Cart count cache read failed", zap.Error(err))
		} else if found {
			return count, nil
		}
	}

	_, total, err := s.store.CountCartItems(ctx, requester.ID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.SetCartCount(ctx, requester.ID, total, cartCountTTL); err != nil {
			s.logger.Warn("Cart count cache write failed", zap.Error(err))
		}
	}
	return total, nil
}

// GuestCartLine is one line of a client-held anonymous cart
type GuestCartLine struct {
	SparePartID string `json:"spare_part_id" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
}

// MergeGuestCart folds a client-held guest cart into the requester's
// server cart after sign-in. Quantities for the same part are summed
// and capped at available stock; unknown or inactive parts are
// skipped rather than failing the whole merge.
func (s *CartService) MergeGuestCart(ctx context.Context, requester Requester, guestLines []GuestCartLine) (*CartView, error) {
	for _, guest := range guestLines {
		if guest.Quantity < 1 {
			continue
		}

		part, err := s.store.GetPartByID(ctx, guest.SparePartID)
		if err != nil {
			var nf *apperr.NotFoundError
			if errors.As(err, &nf) {
				s.logger.Debug("Skipping unknown part in guest cart merge",
					zap.String("spare_part_id", guest.SparePartID))
				continue
			}
			return nil, err
		}
		if !part.IsActive || part.StockQuantity == 0 {
			continue
		}

		existing, err := s.store.GetCartItemByPart(ctx, requester.ID, guest.SparePartID)
		if err != nil {
			return nil, err
		}

		wanted := guest.Quantity
		if existing != nil {
			wanted += existing.Quantity
		}
		if wanted > part.StockQuantity {
			wanted = part.StockQuantity
		}

		if existing != nil {
			if _, err := s.store.UpdateCartItemQuantity(ctx, existing.ID, wanted); err != nil {
				return nil, err
			}
		} else {
			item := &models.CartItem{
				UserID:      requester.ID,
				UserEmail:   requester.Email,
				SparePartID: guest.SparePartID,
				Quantity:    wanted,
			}
			if err := s.store.InsertCartItem(ctx, item); err != nil {
				return nil, err
			}
		}
	}

	util.CartOperationsTotal.WithLabelValues("merge").Inc()
	s.invalidateCount(ctx, requester.ID)
	return s.GetCart(ctx, requester)
}

func (s *CartService) invalidateCount(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCartCount(ctx, userID); err != nil {
		s.logger.Warn("Cart count cache invalidation failed", zap.Error(err))
	}
}
