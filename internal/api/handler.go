package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"checkout-service/internal/ratelimit"
	"checkout-service/internal/service"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler contains HTTP handlers
type Handler struct {
	checkoutService *service.CheckoutService
	checkoutLimiter *ratelimit.Limiter
	standardLimiter *ratelimit.Limiter
	logger          *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(checkoutService *service.CheckoutService, checkoutLimiter, standardLimiter *ratelimit.Limiter) *Handler {
	return &Handler{
		checkoutService: checkoutService,
		checkoutLimiter: checkoutLimiter,
		standardLimiter: standardLimiter,
		logger:          util.GetLogger(),
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
	v1.Use(userIdentity())
	{
		v1.POST("/checkout/initiate",
			rateLimitMiddleware(h.checkoutLimiter, "checkout_initiate"), h.initiateCheckout)
		v1.POST("/payments/verify",
			rateLimitMiddleware(h.checkoutLimiter, "payments_verify"), h.verifyPayment)
		v1.GET("/orders",
			rateLimitMiddleware(h.standardLimiter, "orders_list"), h.listOrders)
		v1.GET("/orders/:id",
			rateLimitMiddleware(h.standardLimiter, "orders_get"), h.getOrder)
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

// initiateCheckout runs the order-initiation pipeline for one cart.
func (h *Handler) initiateCheckout(c *gin.Context) {
	var req service.InitiateCheckoutRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	userID := c.GetString(userIDKey)
	resp, err := h.checkoutService.InitiateCheckout(c.Request.Context(), userID, c.ClientIP(), &req)
	if err != nil {
		h.respondCheckoutError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// respondCheckoutError maps pipeline errors onto the response taxonomy.
// Validation and input errors become structured 400s; everything else is an
// opaque 500 with the detail kept server-side.
func (h *Handler) respondCheckoutError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "Cart validation failed",
			"details":  validationErr.Errors,
			"warnings": validationErr.Warnings,
		})
		return
	}

	var inputErr *service.ClientInputError
	if errors.As(err, &inputErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": inputErr.Msg,
		})
		return
	}

	h.logger.Error("Checkout initiation failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Failed to initiate checkout",
	})
}

// verifyPayment handles the payment-widget callback.
func (h *Handler) verifyPayment(c *gin.Context) {
	var req service.VerifyPaymentRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.checkoutService.VerifyPayment(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSignature) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Payment verification failed",
			})
			return
		}

		var inputErr *service.ClientInputError
		if errors.As(err, &inputErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": inputErr.Msg,
			})
			return
		}

		h.logger.Error("Payment verification failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to verify payment",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"order":   order,
	})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	idStr := c.Param("id")
	orderID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order ID",
		})
		return
	}

	order, items, err := h.checkoutService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Order not found",
		})
		return
	}

	if order.UserID != c.GetString(userIDKey) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Order not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"items": items,
	})
}

// listOrders returns the caller's orders, newest first.
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.checkoutService.ListOrders(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list orders",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
	})
}
