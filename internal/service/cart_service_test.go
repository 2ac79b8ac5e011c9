package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoparts-service/internal/apperr"
	"autoparts-service/internal/models"
	"autoparts-service/internal/service/servicetest"
)

func TestAddItemMergesWithExistingLine(t *testing.T) {
	store := servicetest.NewFakeStore()
	part := store.AddPart(activePart("Brake Pads", "BP-100", "12.50", 10))

	svc := NewCartService(store, nil)
	user := customer("user-1")

	first, err := svc.AddItem(context.Background(), user, &AddItemRequest{SparePartID: part.ID, Quantity: 2})
	require.NoError(t, err)

	second, err := svc.AddItem(context.Background(), user, &AddItemRequest{SparePartID: part.ID, Quantity: 3})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "same part merges into one line")
	assert.Equal(t, 5, second.Quantity)

	_, total, err := store.CountCartItems(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
}

func TestAddItemChecksMergedQuantityAgainstStock(t *testing.T) {
	store := servicetest.NewFakeStore()
	part := store.AddPart(activePart("Brake Pads", "BP-100", "12.50", 5))

	svc := NewCartService(store, nil)
	user := customer("user-1")

	_, err := svc.AddItem(context.Background(), user, &AddItemRequest{SparePartID: part.ID, Quantity: 4})
	require.NoError(t, err)

	// 4 already in cart; 2 more would exceed the 5 in stock
	_, err = svc.AddItem(context.Background(), user, &AddItemRequest{SparePartID: part.ID, Quantity: 2})
	var stockErr *apperr.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 6, stockErr.Requested)
	assert.Equal(t, 5, stockErr.Available)
}

func TestAddItemRejectsInactivePart(t *testing.T) {
	store := servicetest.NewFakeStore()
	part := activePart("Brake Pads", "BP-100", "12.50", 10)
	part.IsActive = false
	added := store.AddPart(part)

	svc := NewCartService(store, nil)
	_, err := svc.AddItem(context.Background(), customer("user-1"), &AddItemRequest{SparePartID: added.ID, Quantity: 1})

	var valErr *apperr.ValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestUpdateItemEnforcesOwnershipAndStock(t *testing.T) {
	store := servicetest.NewFakeStore()
	part := store.AddPart(activePart("Brake Pads", "BP-100", "12.50", 5))
	line := store.AddCartLine("user-1", part.ID, 2)

	svc := NewCartService(store, nil)

	_, err := svc.UpdateItem(context.Background(), customer("user-2"), line.ID, 3)
	var forbidden *apperr.ForbiddenError
	assert.ErrorAs(t, err, &forbidden)

	_, err = svc.UpdateItem(context.Background(), customer("user-1"), line.ID, 6)
	var stockErr *apperr.InsufficientStockError
	assert.ErrorAs(t, err, &stockErr)

	updated, err := svc.UpdateItem(context.Background(), customer("user-1"), line.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Quantity)
}

func TestRemoveItemEnforcesOwnership(t *testing.T) {
	store := servicetest.NewFakeStore()
	part := store.AddPart(activePart("Brake Pads", "BP-100", "12.50", 5))
	line := store.AddCartLine("user-1", part.ID, 2)

	svc := NewCartService(store, nil)

	err := svc.RemoveItem(context.Background(), customer("user-2"), line.ID)
	var forbidden *apperr.ForbiddenError
	assert.ErrorAs(t, err, &forbidden)

	require.NoError(t, svc.RemoveItem(context.Background(), customer("user-1"), line.ID))

	lines, _, err := store.CountCartItems(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, lines)
}

func TestGetCartPricesLinesAtReadTime(t *testing.T) {
	store := servicetest.NewFakeStore()
	original := dec("100.00")
	discount := dec("25")
	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	onSale := store.AddPart(models.SparePart{
		Name:               "Radiator",
		PartNumber:         "RA-300",
		Price:              dec("80.00"),
		OriginalPrice:      &original,
		DiscountPercentage: &discount,
		IsOnSale:           true,
		SaleStartDate:      &start,
		SaleEndDate:        &end,
		StockQuantity:      5,
		IsActive:           true,
	})
	plain := store.AddPart(activePart("Oil Filter", "OF-200", "10.00", 5))

	store.AddCartLine("user-1", onSale.ID, 1)
	store.AddCartLine("user-1", plain.ID, 2)

	svc := NewCartService(store, nil)
	view, err := svc.GetCart(context.Background(), customer("user-1"))
	require.NoError(t, err)

	require.Len(t, view.Items, 2)
	assert.Equal(t, 2, view.ItemCount)
	assert.Equal(t, 3, view.TotalItems)
	assert.True(t, view.Subtotal.Equal(dec("95.00")), "75.00 + 20.00: %s", view.Subtotal)

	for _, item := range view.Items {
		if item.SparePartID == onSale.ID {
			assert.True(t, item.UnitPrice.Equal(dec("75.00")))
			assert.True(t, item.OnSaleNow)
		}
	}
}

func TestMergeGuestCartSumsAndCaps(t *testing.T) {
	store := servicetest.NewFakeStore()
	pads := store.AddPart(activePart("Brake Pads", "BP-100", "12.50", 5))
	filter := store.AddPart(activePart("Oil Filter", "OF-200", "10.00", 10))
	inactive := activePart("Old Part", "OP-999", "1.00", 10)
	inactive.IsActive = false
	gone := store.AddPart(inactive)

	store.AddCartLine("user-1", pads.ID, 3)

	svc := NewCartService(store, nil)
	view, err := svc.MergeGuestCart(context.Background(), customer("user-1"), []GuestCartLine{
		{SparePartID: pads.ID, Quantity: 4},        // 3+4 capped at 5
		{SparePartID: filter.ID, Quantity: 2},      // new line
		{SparePartID: gone.ID, Quantity: 1},        // inactive, skipped
		{SparePartID: "no-such-part", Quantity: 1}, // unknown, skipped
	})
	require.NoError(t, err)

	require.Len(t, view.Items, 2)
	quantities := map[string]int{}
	for _, item := range view.Items {
		quantities[item.SparePartID] = item.Quantity
	}
	assert.Equal(t, 5, quantities[pads.ID], "summed quantity capped at stock")
	assert.Equal(t, 2, quantities[filter.ID])
}

func TestCountFallsBackToStore(t *testing.T) {
	store := servicetest.NewFakeStore()
	part := store.AddPart(activePart("Brake Pads", "BP-100", "12.50", 10))
	store.AddCartLine("user-1", part.ID, 4)

	svc := NewCartService(store, nil)
	count, err := svc.Count(context.Background(), customer("user-1"))
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
