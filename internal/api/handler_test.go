package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoparts-service/config"
	"autoparts-service/internal/models"
	"autoparts-service/internal/service"
	"autoparts-service/internal/service/servicetest"
)

func newTestRouter(t *testing.T, store *servicetest.FakeStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.BusinessConfig{
		DefaultTaxRate:          0.08,
		DefaultShippingCost:     9.99,
		FreeShippingThreshold:   100.00,
		LowStockThreshold:       10,
		SettingsCacheTTLSeconds: 60,
	}

	pub := &servicetest.FakePublisher{}
	settingsService := service.NewSettingsService(store, nil, cfg)
	orderService := service.NewOrderService(store, settingsService, pub, nil, cfg.LowStockThreshold)
	cartService := service.NewCartService(store, nil)
	catalogService := service.NewCatalogService(store, pub, cfg.LowStockThreshold)

	router := gin.New()
	handler := NewHandler(orderService, cartService, catalogService, settingsService)
	handler.SetupRoutes(router)
	return router
}

func seedPart(store *servicetest.FakeStore, name, number, price string, stock int) *models.SparePart {
	return store.AddPart(models.SparePart{
		Name:          name,
		PartNumber:    number,
		Category:      "engine",
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      true,
	})
}

func doJSON(router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func asUser(id string) map[string]string {
	return map[string]string{
		"X-User-Id":    id,
		"X-User-Email": id + "@example.com",
	}
}

func asAdmin() map[string]string {
	return map[string]string{
		"X-User-Id":    "admin-1",
		"X-User-Email": "admin@example.com",
		"X-User-Role":  models.RoleAdmin,
	}
}

func TestCreateOrderEndpoint(t *testing.T) {
	store := servicetest.NewFakeStore()
	part := seedPart(store, "Brake Pads", "BP-100", "12.50", 10)
	store.AddCartLine("user-1", part.ID, 2)

	router := newTestRouter(t, store)
	w := doJSON(router, http.MethodPost, "/api/v1/orders/create", gin.H{
		"shipping_address": "1 Main St",
		"payment_method":   "card",
	}, asUser("user-1"))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Order models.Order       `json:"order"`
		Items []models.OrderItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.OrderStatusPending, resp.Order.Status)
	assert.Len(t, resp.Items, 1)
	assert.Equal(t, 8, store.StockOf(part.ID))
}

func TestCreateOrderEndpointEmptyCart(t *testing.T) {
	store := servicetest.NewFakeStore()
	router := newTestRouter(t, store)

	w := doJSON(router, http.MethodPost, "/api/v1/orders/create", gin.H{
		"shipping_address": "1 Main St",
		"payment_method":   "card",
	}, asUser("user-1"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Cart is empty")
}

func TestCreateOrderEndpointInsufficientStock(t *testing.T) {
	store := servicetest.NewFakeStore()
	part := seedPart(store, "Brake Pads", "BP-100", "12.50", 1)
	store.AddCartLine("user-1", part.ID, 3)

	router := newTestRouter(t, store)
	w := doJSON(router, http.MethodPost, "/api/v1/orders/create", gin.H{
		"shipping_address": "1 Main St",
		"payment_method":   "card",
	}, asUser("user-1"))

	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Insufficient stock", body["error"])
	assert.Equal(t, float64(1), body["available"])
	assert.Equal(t, float64(3), body["requested"])
}

func TestCreateOrderEndpointRequiresAuth(t *testing.T) {
	store := servicetest.NewFakeStore()
	router := newTestRouter(t, store)

	w := doJSON(router, http.MethodPost, "/api/v1/orders/create", gin.H{
		"shipping_address": "1 Main St",
		"payment_method":   "card",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetOrderEndpointOwnership(t *testing.T) {
	store := servicetest.NewFakeStore()
	part := seedPart(store, "Brake Pads", "BP-100", "12.50", 10)
	store.AddCartLine("user-1", part.ID, 1)

	router := newTestRouter(t, store)
	w := doJSON(router, http.MethodPost, "/api/v1/orders/create", gin.H{
		"shipping_address": "1 Main St",
		"payment_method":   "card",
	}, asUser("user-1"))
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Order models.Order `json:"order"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(router, http.MethodGet, "/api/v1/orders/"+created.Order.ID, nil, asUser("user-2"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/orders/"+created.Order.ID, nil, asUser("user-1"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/orders/"+created.Order.ID, nil, asAdmin())
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCancelOrderEndpoint(t *testing.T) {
	store := servicetest.NewFakeStore()
	part := seedPart(store, "Brake Pads", "BP-100", "12.50", 10)
	store.AddCartLine("user-1", part.ID, 4)

	router := newTestRouter(t, store)
	w := doJSON(router, http.MethodPost, "/api/v1/orders/create", gin.H{
		"shipping_address": "1 Main St",
		"payment_method":   "card",
	}, asUser("user-1"))
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Order models.Order `json:"order"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Equal(t, 6, store.StockOf(part.ID))

	w = doJSON(router, http.MethodPut, "/api/v1/orders/"+created.Order.ID+"/cancel", nil, asUser("user-1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 10, store.StockOf(part.ID), "stock restored")

	// cancelling again violates the state machine
	w = doJSON(router, http.MethodPut, "/api/v1/orders/"+created.Order.ID+"/cancel", nil, asUser("user-1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid status transition")
}

func TestUpdateOrderStatusRequiresAdmin(t *testing.T) {
	store := servicetest.NewFakeStore()
	part := seedPart(store, "Brake Pads", "BP-100", "12.50", 10)
	store.AddCartLine("user-1", part.ID, 1)

	router := newTestRouter(t, store)
	w := doJSON(router, http.MethodPost, "/api/v1/orders/create", gin.H{
		"shipping_address": "1 Main St",
		"payment_method":   "card",
	}, asUser("user-1"))
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Order models.Order `json:"order"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	statusBody := gin.H{"status": models.OrderStatusConfirmed}
	w = doJSON(router, http.MethodPut, "/api/v1/orders/"+created.Order.ID+"/status", statusBody, asUser("user-1"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(router, http.MethodPut, "/api/v1/orders/"+created.Order.ID+"/status", statusBody, asAdmin())
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestCartEndpoints(t *testing.T) {
	store := servicetest.NewFakeStore()
	part := seedPart(store, "Brake Pads", "BP-100", "12.50", 10)

	router := newTestRouter(t, store)

	w := doJSON(router, http.MethodPost, "/api/v1/cart/add", gin.H{
		"spare_part_id": part.ID,
		"quantity":      2,
	}, asUser("user-1"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(router, http.MethodGet, "/api/v1/cart", nil, asUser("user-1"))
	require.Equal(t, http.StatusOK, w.Code)

	var view struct {
		TotalItems int `json:"total_items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, 2, view.TotalItems)

	w = doJSON(router, http.MethodGet, "/api/v1/cart/count", nil, asUser("user-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":2`)

	w = doJSON(router, http.MethodDelete, "/api/v1/cart", nil, asUser("user-1"))
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/cart/count", nil, asUser("user-1"))
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestAddCartItemUnknownPart(t *testing.T) {
	store := servicetest.NewFakeStore()
	router := newTestRouter(t, store)

	w := doJSON(router, http.MethodPost, "/api/v1/cart/add", gin.H{
		"spare_part_id": "no-such-part",
		"quantity":      1,
	}, asUser("user-1"))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdjustStockEndpoint(t *testing.T) {
	store := servicetest.NewFakeStore()
	part := seedPart(store, "Brake Pads", "BP-100", "12.50", 10)

	router := newTestRouter(t, store)

	w := doJSON(router, http.MethodPatch, "/api/v1/parts/"+part.ID+"/stock", gin.H{
		"quantity": -3,
	}, asUser("user-1"))
	assert.Equal(t, http.StatusForbidden, w.Code, "customers cannot adjust stock")

	w = doJSON(router, http.MethodPatch, "/api/v1/parts/"+part.ID+"/stock", gin.H{
		"quantity": -3,
	}, asAdmin())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 7, store.StockOf(part.ID))
}

func TestListPartsEndpointIsPublic(t *testing.T) {
	store := servicetest.NewFakeStore()
	seedPart(store, "Brake Pads", "BP-100", "12.50", 10)

	router := newTestRouter(t, store)
	w := doJSON(router, http.MethodGet, "/api/v1/parts", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Brake Pads")
}

func TestGetSettingsEndpoint(t *testing.T) {
	store := servicetest.NewFakeStore()
	router := newTestRouter(t, store)

	w := doJSON(router, http.MethodGet, "/api/v1/settings", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "USD", body["currency"])
}

func TestHealthEndpoints(t *testing.T) {
	store := servicetest.NewFakeStore()
	router := newTestRouter(t, store)

	w := doJSON(router, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
