package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoparts-service/internal/apperr"
	"autoparts-service/internal/service/servicetest"
)

func TestAdjustStockDirections(t *testing.T) {
	store := servicetest.NewFakeStore()
	part := store.AddPart(activePart("Brake Pads", "BP-100", "12.50", 20))

	pub := &servicetest.FakePublisher{}
	svc := NewCatalogService(store, pub, 10)

	updated, err := svc.AdjustStock(context.Background(), part.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 25, updated.StockQuantity)

	updated, err = svc.AdjustStock(context.Background(), part.ID, -20)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.StockQuantity)

	require.Len(t, pub.LowStock, 1, "decrease below threshold alerts")
	assert.Equal(t, 5, pub.LowStock[0].Remaining)
}

func TestAdjustStockNeverGoesNegative(t *testing.T) {
	store := servicetest.NewFakeStore()
	part := store.AddPart(activePart("Brake Pads", "BP-100", "12.50", 3))

	svc := NewCatalogService(store, nil, 10)
	_, err := svc.AdjustStock(context.Background(), part.ID, -4)

	var stockErr *apperr.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 3, store.StockOf(part.ID))
}

func TestAdjustStockRejectsZeroDelta(t *testing.T) {
	store := servicetest.NewFakeStore()
	part := store.AddPart(activePart("Brake Pads", "BP-100", "12.50", 3))

	svc := NewCatalogService(store, nil, 10)
	_, err := svc.AdjustStock(context.Background(), part.ID, 0)

	var valErr *apperr.ValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestSettingsFallBackToDefaults(t *testing.T) {
	store := servicetest.NewFakeStore() // no settings row
	svc := NewSettingsService(store, nil, testBusinessConfig())

	settings, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, settings.TaxRate.Equal(dec("0.08")))
	assert.True(t, settings.ShippingCost.Equal(dec("9.99")))
	assert.True(t, settings.FreeShippingThreshold.Equal(dec("100")))
}
