package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"autoparts-service/internal/apperr"
	"autoparts-service/internal/service"
	"autoparts-service/internal/util"
)

// Handler contains HTTP handlers
type Handler struct {
	orderService    *service.OrderService
	cartService     *service.CartService
	catalogService  *service.CatalogService
	settingsService *service.SettingsService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orderService *service.OrderService,
	cartService *service.CartService,
	catalogService *service.CatalogService,
	settingsService *service.SettingsService,
) *Handler {
	return &Handler{
		orderService:    orderService,
		cartService:     cartService,
		catalogService:  catalogService,
		settingsService: settingsService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/parts", h.listParts)
		v1.GET("/parts/:id", h.getPart)
		v1.GET("/settings", h.getSettings)

		authed := v1.Group("")
		authed.Use(requesterMiddleware())
		{
			authed.POST("/orders/create", h.createOrder)
			authed.GET("/orders", h.listMyOrders)
			authed.GET("/orders/:id", h.getOrder)
			authed.PUT("/orders/:id/cancel", h.cancelOrder)

			authed.POST("/cart/add", h.addCartItem)
			authed.GET("/cart", h.getCart)
			authed.GET("/cart/count", h.getCartCount)
			authed.POST("/cart/merge", h.mergeGuestCart)
			authed.PUT("/cart/:id", h.updateCartItem)
			authed.DELETE("/cart/:id", h.removeCartItem)
			authed.DELETE("/cart", h.clearCart)

			admin := authed.Group("", requireAdmin())
			{
				admin.GET("/orders/admin/all", h.listAllOrders)
				admin.PUT("/orders/:id/status", h.updateOrderStatus)
				admin.PATCH("/parts/:id/stock", h.adjustStock)
				admin.GET("/parts/admin/low-stock", h.listLowStock)
			}
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// respondError maps the error taxonomy to status codes in one place.
// Business errors carry their detail to the client; anything else is a
// server fault logged in full and returned as a generic message.
func respondError(c *gin.Context, err error) {
	var (
		notFound   *apperr.NotFoundError
		stock      *apperr.InsufficientStockError
		forbidden  *apperr.ForbiddenError
		transition *apperr.InvalidStateTransitionError
		validation *apperr.ValidationError
	)

	switch {
	case errors.Is(err, apperr.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})

	case errors.As(err, &stock):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":         "Insufficient stock",
			"spare_part_id": stock.SparePartID,
			"part_name":     stock.PartName,
			"available":     stock.Available,
			"requested":     stock.Requested,
		})

	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Validation failed",
			"field":  validation.Field,
			"detail": validation.Message,
		})

	case errors.As(err, &transition):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid status transition",
			"from":  transition.From,
			"to":    transition.To,
		})

	case errors.As(err, &forbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})

	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "Not found",
			"entity": notFound.Entity,
		})

	default:
		util.GetLogger().Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// createOrder handles checkout
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.orderService.CreateOrder(c.Request.Context(), requesterFrom(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	resp, err := h.orderService.GetOrder(c.Request.Context(), requesterFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// listMyOrders returns the requester's own orders
func (h *Handler) listMyOrders(c *gin.Context) {
	orders, err := h.orderService.GetUserOrders(c.Request.Context(), requesterFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// listAllOrders is the admin view with status filter and pagination
func (h *Handler) listAllOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	listing, err := h.orderService.ListOrders(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// cancelOrder handles order cancellation with stock restore
func (h *Handler) cancelOrder(c *gin.Context) {
	resp, err := h.orderService.CancelOrder(c.Request.Context(), requesterFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// updateOrderStatus handles admin status transitions
func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req service.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// addCartItem handles add-to-cart
func (h *Handler) addCartItem(c *gin.Context) {
	var req service.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	item, err := h.cartService.AddItem(c.Request.Context(), requesterFrom(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": item})
}

// getCart returns the priced cart view
func (h *Handler) getCart(c *gin.Context) {
	view, err := h.cartService.GetCart(c.Request.Context(), requesterFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// getCartCount returns the summed cart quantity for badges
func (h *Handler) getCartCount(c *gin.Context) {
	count, err := h.cartService.Count(c.Request.Context(), requesterFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// updateCartItem sets a cart line's quantity
func (h *Handler) updateCartItem(c *gin.Context) {
	var req struct {
		Quantity int `json:"quantity" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	item, err := h.cartService.UpdateItem(c.Request.Context(), requesterFrom(c), c.Param("id"), req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

// removeCartItem deletes a cart line
func (h *Handler) removeCartItem(c *gin.Context) {
	if err := h.cartService.RemoveItem(c.Request.Context(), requesterFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item removed"})
}

// clearCart empties the cart
func (h *Handler) clearCart(c *gin.Context) {
	if err := h.cartService.Clear(c.Request.Context(), requesterFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}

// mergeGuestCart folds a client-held guest cart into the server cart
func (h *Handler) mergeGuestCart(c *gin.Context) {
	var req struct {
		Items []service.GuestCartLine `json:"items" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	view, err := h.cartService.MergeGuestCart(c.Request.Context(), requesterFrom(c), req.Items)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// listParts returns active catalog parts with effective prices
func (h *Handler) listParts(c *gin.Context) {
	parts, err := h.catalogService.ListParts(c.Request.Context(), c.Query("category"), c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"parts": parts})
}

// getPart returns one part with its effective price
func (h *Handler) getPart(c *gin.Context) {
	part, err := h.catalogService.GetPart(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"part": part})
}

// adjustStock applies a signed delta to a part's stock
func (h *Handler) adjustStock(c *gin.Context) {
	var req struct {
		Quantity int `json:"quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	part, err := h.catalogService.AdjustStock(c.Request.Context(), c.Param("id"), req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"part": part})
}

// listLowStock returns parts at or below the low-stock threshold
func (h *Handler) listLowStock(c *gin.Context) {
	parts, err := h.catalogService.LowStock(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"parts": parts})
}

// getSettings exposes the public display subset of app settings
func (h *Handler) getSettings(c *gin.Context) {
	settings, err := h.settingsService.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"app_name":                settings.AppName,
		"currency":                settings.Currency,
		"tax_rate":                settings.TaxRate,
		"shipping_cost":           settings.ShippingCost,
		"free_shipping_threshold": settings.FreeShippingThreshold,
	})
}
