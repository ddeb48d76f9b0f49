package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"checkout-service/internal/gateway"
	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderStore is the persistence surface the checkout pipeline needs.
type OrderStore interface {
	FindProfile(ctx context.Context, userID string) (*models.Profile, error)
	EnsureProfile(ctx context.Context, userID string) error
	GetAddress(ctx context.Context, userID, addressID string) (*models.Address, error)
	CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error)
	GetOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, gatewayOrderID, paymentStatus string) error
}

// PaymentGateway creates remote payment orders and verifies callbacks.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, userID string) (*gateway.Order, error)
	VerifyPaymentSignature(gatewayOrderID, paymentID, signature string) bool
}

// EventPublisher publishes order lifecycle events.
type EventPublisher interface {
	PublishOrderInitiated(ctx context.Context, event *models.OrderInitiatedEvent) error
	PublishPaymentCaptured(ctx context.Context, event *models.PaymentCapturedEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
}

// CheckoutService runs the order-initiation pipeline: validate prices against
// the catalog, total from server prices, create the gateway order, persist
// the local order. Steps are strictly sequential; each depends on the last.
type CheckoutService struct {
	store     OrderStore
	validator *PriceValidator
	gateway   PaymentGateway
	abuse     *TamperingLogger
	events    EventPublisher
	logger    *zap.Logger
}

// NewCheckoutService creates a checkout service.
func NewCheckoutService(
	store OrderStore,
	validator *PriceValidator,
	gw PaymentGateway,
	abuse *TamperingLogger,
	events EventPublisher,
) *CheckoutService {
	return &CheckoutService{
		store:     store,
		validator: validator,
		gateway:   gw,
		abuse:     abuse,
		events:    events,
		logger:    util.GetLogger(),
	}
}

// InitiateCheckoutRequest is the inbound payload for order initiation.
type InitiateCheckoutRequest struct {
	Items             []models.CartLineRequest `json:"items" binding:"required,min=1,dive"`
	ShippingAddressID string                   `json:"shipping_address_id" binding:"required"`
}

// InitiateCheckoutResponse is returned on a successfully initiated checkout.
// OrderID is the gateway handle the client hands to the payment widget;
// DBOrderID is the local order row.
type InitiateCheckoutResponse struct {
	Success   bool     `json:"success"`
	OrderID   string   `json:"order_id"`
	Amount    int64    `json:"amount"`
	Currency  string   `json:"currency"`
	DBOrderID int64    `json:"db_order_id"`
	Warnings  []string `json:"warnings,omitempty"`
}

// InitiateCheckout executes the full pipeline for one request.
func (s *CheckoutService) InitiateCheckout(ctx context.Context, userID, clientIP string, req *InitiateCheckoutRequest) (*InitiateCheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.InitiateCheckout")
	defer span.End()

	util.CheckoutAttemptsTotal.Inc()

	result, err := s.validator.ValidateCartPrices(ctx, req.Items)
	if err != nil {
		// Catalog unreachable: fail closed, nothing is assumed valid.
		util.CheckoutFailedTotal.WithLabelValues("catalog_unavailable").Inc()
		return nil, fmt.Errorf("price validation unavailable: %w", err)
	}

	if !result.Valid {
		s.recordInvalidLines(userID, clientIP, result)
		util.CheckoutFailedTotal.WithLabelValues("validation").Inc()
		return nil, &ValidationError{Errors: result.Errors, Warnings: result.Warnings}
	}

	totalAmount := CalculateValidatedTotal(result.ValidatedItems)

	// Self-heal the profile row before anything references it. Upstream
	// identity provisioning is eventually consistent; a missing row here is
	// expected, not an error.
	if err := s.store.EnsureProfile(ctx, userID); err != nil {
		util.CheckoutFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to ensure profile: %w", err)
	}

	addr, err := s.store.GetAddress(ctx, userID, req.ShippingAddressID)
	if err != nil {
		util.CheckoutFailedTotal.WithLabelValues("bad_address").Inc()
		return nil, &ClientInputError{Msg: "shipping address not found"}
	}

	addressSnapshot, err := json.Marshal(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot address: %w", err)
	}

	// Gateway first: if the remote order cannot be created there must be no
	// local order row at all.
	gwOrder, err := s.gateway.CreateOrder(ctx, totalAmount, userID)
	if err != nil {
		util.CheckoutFailedTotal.WithLabelValues("gateway_error").Inc()
		return nil, fmt.Errorf("payment gateway unavailable: %w", err)
	}

	order := &models.Order{
		UserID:          userID,
		TotalAmount:     totalAmount,
		Status:          models.OrderStatusPlaced,
		PaymentStatus:   models.PaymentStatusPending,
		GatewayOrderID:  gwOrder.ID,
		ShippingAddress: types.JSONText(addressSnapshot),
	}

	items := make([]models.OrderItem, 0, len(result.ValidatedItems))
	for _, line := range result.ValidatedItems {
		items = append(items, models.OrderItem{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			Price:        *line.DBPrice,
			SelectedSize: line.SelectedSize,
		})
	}

	if err := s.store.CreateOrderWithItems(ctx, order, items); err != nil {
		util.CheckoutFailedTotal.WithLabelValues("db_error").Inc()
		s.logger.Error("Failed to persist order after gateway order creation",
			zap.String("gateway_order_id", gwOrder.ID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}

	util.CheckoutSuccessTotal.Inc()
	s.logger.Info("Checkout initiated",
		zap.Int64("order_id", order.ID),
		zap.String("gateway_order_id", gwOrder.ID),
		zap.String("total", totalAmount.String()))

	event := &models.OrderInitiatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderInitiated,
			Timestamp: time.Now(),
		},
		OrderID:        order.ID,
		UserID:         userID,
		GatewayOrderID: gwOrder.ID,
		TotalAmount:    totalAmount,
	}
	if err := s.events.PublishOrderInitiated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderInitiated event", zap.Error(err))
	}

	return &InitiateCheckoutResponse{
		Success:   true,
		OrderID:   gwOrder.ID,
		Amount:    gwOrder.AmountMinor,
		Currency:  gwOrder.Currency,
		DBOrderID: order.ID,
		Warnings:  result.Warnings,
	}, nil
}

// recordInvalidLines feeds the abuse side-channel. Tampered lines (catalog
// price known, mismatch) are logged as abuse; unresolvable products are only
// counted, since a stale cart is indistinguishable from malice.
func (s *CheckoutService) recordInvalidLines(userID, clientIP string, result *models.ValidationResult) {
	for _, line := range result.ValidatedItems {
		if line.IsValid {
			continue
		}
		if line.DBPrice != nil {
			util.PriceTamperingTotal.Inc()
			s.abuse.LogPriceTampering(userID, line.ProductID, line.CartPrice, *line.DBPrice, clientIP)
		} else {
			util.UnresolvableProductsTotal.Inc()
		}
	}
}

// VerifyPaymentRequest is the checkout-callback payload from the payment
// widget.
type VerifyPaymentRequest struct {
	GatewayOrderID   string `json:"razorpay_order_id" binding:"required"`
	GatewayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature        string `json:"razorpay_signature" binding:"required"`
}

// VerifyPayment checks the callback signature and transitions the order's
// payment status. An invalid signature marks the payment failed and returns
// ErrInvalidSignature.
func (s *CheckoutService) VerifyPayment(ctx context.Context, req *VerifyPaymentRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.VerifyPayment")
	defer span.End()

	order, err := s.store.GetOrderByGatewayOrderID(ctx, req.GatewayOrderID)
	if err != nil {
		return nil, &ClientInputError{Msg: "unknown gateway order"}
	}

	if !s.gateway.VerifyPaymentSignature(req.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
		util.PaymentsVerifiedTotal.WithLabelValues("invalid_signature").Inc()

		if err := s.store.UpdatePaymentStatus(ctx, req.GatewayOrderID, models.PaymentStatusFailed); err != nil {
			s.logger.Error("Failed to mark payment failed", zap.Error(err))
		}

		failed := &models.PaymentFailedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypePaymentFailed,
				Timestamp: time.Now(),
			},
			OrderID:        order.ID,
			GatewayOrderID: req.GatewayOrderID,
			Reason:         "signature_mismatch",
		}
		if err := s.events.PublishPaymentFailed(ctx, failed); err != nil {
			s.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
		}

		return nil, ErrInvalidSignature
	}

	if err := s.store.UpdatePaymentStatus(ctx, req.GatewayOrderID, models.PaymentStatusPaid); err != nil {
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}

	util.PaymentsVerifiedTotal.WithLabelValues("success").Inc()
	s.logger.Info("Payment verified",
		zap.Int64("order_id", order.ID),
		zap.String("gateway_payment_id", req.GatewayPaymentID))

	captured := &models.PaymentCapturedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentCaptured,
			Timestamp: time.Now(),
		},
		OrderID:          order.ID,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
	}
	if err := s.events.PublishPaymentCaptured(ctx, captured); err != nil {
		s.logger.Error("Failed to publish PaymentCaptured event", zap.Error(err))
	}

	return s.store.GetOrderByID(ctx, order.ID)
}

// GetOrder retrieves an order with its items.
func (s *CheckoutService) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderItem, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

// ListOrders retrieves a user's orders, newest first.
func (s *CheckoutService) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	return s.store.GetOrdersByUserID(ctx, userID)
}
