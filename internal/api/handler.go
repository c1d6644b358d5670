package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"pricing-service/internal/apperr"
	"pricing-service/internal/engine"
	"pricing-service/internal/models"
	"pricing-service/internal/service"
	"pricing-service/internal/util"
)

// Handler contains HTTP handlers
type Handler struct {
	orderService   *service.OrderService
	catalogService *service.CatalogService
}

// NewHandler creates a new HTTP handler
func NewHandler(orderService *service.OrderService, catalogService *service.CatalogService) *Handler {
	return &Handler{
		orderService:   orderService,
		catalogService: catalogService,
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
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.GET("/orders/:id/audit", h.getAuditTrail)
		v1.POST("/orders/:id/edits", h.editOrder)
		v1.POST("/orders/:id/items", h.addItem)
		v1.PATCH("/orders/:id/items/:itemID", h.changeQuantity)
		v1.PUT("/orders/:id/items/:itemID/price", h.overridePrice)
		v1.DELETE("/orders/:id/items/:itemID", h.removeItem)
		v1.PUT("/orders/:id/discount", h.setOrderDiscount)
		v1.POST("/orders/:id/payments", h.recordPayment)
		v1.POST("/orders/:id/status", h.changeStatus)
		v1.POST("/orders/:id/cancel", h.cancelOrder)
		v1.POST("/orders/:id/resubmit", h.resubmitOrder)

		v1.GET("/customers/:customerID/orders", h.getCustomerOrders)
		v1.GET("/reports/revenue", h.getRevenueEstimate)

		v1.GET("/catalog/variants/:sku/quote", h.quoteTier)
		v1.PUT("/catalog/variants/:sku/stock", h.updateStock)
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

// actor extracts the acting user from request headers. Mutations require
// X-Actor; X-Actor-Role is optional.
func actor(c *gin.Context) (engine.Actor, bool) {
	name := c.GetHeader("X-Actor")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "X-Actor header is required",
		})
		return engine.Actor{}, false
	}
	return engine.Actor{Name: name, Role: c.GetHeader("X-Actor-Role")}, true
}

func orderID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return uuid.Nil, false
	}
	return id, true
}

func itemID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps a service error onto an HTTP response, exposing the
// classification code so the dashboard can distinguish a stale edit from a
// validation problem.
func writeError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	body := gin.H{
		"error": err.Error(),
		"code":  string(code),
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		body["error"] = "internal error"
	}
	c.JSON(apperr.HTTPStatus(code), body)
}

// createOrder handles order drafting
func (h *Handler) createOrder(c *gin.Context) {
	act, ok := actor(c)
	if !ok {
		return
	}

	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), act, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// getAuditTrail returns the ordered audit log of an order
func (h *Handler) getAuditTrail(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}

	entries, err := h.orderService.GetAuditTrail(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id": id,
		"entries":  entries,
	})
}

// editOrder applies a batch of edit operations in one session
func (h *Handler) editOrder(c *gin.Context) {
	act, ok := actor(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}

	var req service.EditOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.orderService.EditOrder(c.Request.Context(), act, id, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// addItem appends one priced line to an order
func (h *Handler) addItem(c *gin.Context) {
	act, ok := actor(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}

	var req service.OrderItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.orderService.AddItem(c.Request.Context(), act, id, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type changeQuantityRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// changeQuantity reprices a line at a new quantity
func (h *Handler) changeQuantity(c *gin.Context) {
	act, ok := actor(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	item, ok := itemID(c)
	if !ok {
		return
	}

	var req changeQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.orderService.ChangeQuantity(c.Request.Context(), act, id, item, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type overridePriceRequest struct {
	Price decimal.Decimal `json:"price" binding:"required"`
}

// overridePrice applies a negotiated unit price to a line
func (h *Handler) overridePrice(c *gin.Context) {
	act, ok := actor(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	item, ok := itemID(c)
	if !ok {
		return
	}

	var req overridePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.orderService.OverridePrice(c.Request.Context(), act, id, item, req.Price)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// removeItem deletes a line from an order
func (h *Handler) removeItem(c *gin.Context) {
	act, ok := actor(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	item, ok := itemID(c)
	if !ok {
		return
	}

	order, err := h.orderService.RemoveItem(c.Request.Context(), act, id, item)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type setDiscountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// setOrderDiscount replaces the order-level discount
func (h *Handler) setOrderDiscount(c *gin.Context) {
	act, ok := actor(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}

	var req setDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.orderService.SetOrderDiscount(c.Request.Context(), act, id, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type recordPaymentRequest struct {
	Amount                 decimal.Decimal `json:"amount" binding:"required"`
	AcknowledgeOverpayment bool            `json:"acknowledge_overpayment"`
}

// recordPayment applies a payment against the balance due
func (h *Handler) recordPayment(c *gin.Context) {
	act, ok := actor(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}

	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.orderService.RecordPayment(c.Request.Context(), act, id, req.Amount, req.AcknowledgeOverpayment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type changeStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

// changeStatus advances an order along the lifecycle
func (h *Handler) changeStatus(c *gin.Context) {
	act, ok := actor(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}

	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.orderService.ChangeStatus(c.Request.Context(), act, id, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// cancelOrder cancels an order that has not been delivered
func (h *Handler) cancelOrder(c *gin.Context) {
	act, ok := actor(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}

	var req cancelOrderRequest
	_ = c.ShouldBindJSON(&req)

	order, err := h.orderService.Cancel(c.Request.Context(), act, id, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// resubmitOrder sends a rejected order back for approval
func (h *Handler) resubmitOrder(c *gin.Context) {
	act, ok := actor(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}

	order, err := h.orderService.Resubmit(c.Request.Context(), act, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// getCustomerOrders lists a customer's orders, newest first
func (h *Handler) getCustomerOrders(c *gin.Context) {
	customerID := c.Param("customerID")
	if customerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid customer ID"})
		return
	}

	orders, err := h.orderService.GetCustomerOrders(c.Request.Context(), customerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"customer_id": customerID,
		"orders":      orders,
	})
}

// getRevenueEstimate returns the daily revenue rollup for the dashboard.
// The figure is an estimate maintained by the reporting worker, not an
// authoritative total.
func (h *Handler) getRevenueEstimate(c *gin.Context) {
	day := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	estimate, err := h.orderService.GetRevenueEstimate(c.Request.Context(), day)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"date":     day.Format("2006-01-02"),
		"estimate": estimate,
	})
}

// quoteTier resolves a quantity against a variant's tier table, including
// the upsell hint the dashboard shows next to the quantity field
func (h *Handler) quoteTier(c *gin.Context) {
	sku := c.Param("sku")
	quantity, err := strconv.Atoi(c.DefaultQuery("quantity", "1"))
	if err != nil || quantity < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quantity"})
		return
	}

	quote, variant, err := h.catalogService.QuoteTier(c.Request.Context(), sku, quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sku":        sku,
		"quantity":   quantity,
		"list_price": variant.ListUnitPrice,
		"quote":      quote,
	})
}

type updateStockRequest struct {
	Available *int `json:"available" binding:"required"`
}

// updateStock sets the available stock for a variant
func (h *Handler) updateStock(c *gin.Context) {
	if _, ok := actor(c); !ok {
		return
	}
	sku := c.Param("sku")

	var req updateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.catalogService.UpdateStock(c.Request.Context(), sku, *req.Available); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sku":       sku,
		"available": *req.Available,
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
