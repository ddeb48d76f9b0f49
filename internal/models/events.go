package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypePriceTampering  = "PRICE_TAMPERING"
	EventTypeOrderInitiated  = "ORDER_INITIATED"
	EventTypePaymentCaptured = "PAYMENT_CAPTURED"
	EventTypePaymentFailed   = "PAYMENT_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceTamperingEvent is emitted on the abuse side-channel when a cart line's
// claimed price disagrees with the catalog price.
type PriceTamperingEvent struct {
	BaseEvent
	UserID       string          `json:"user_id"`
	ProductID    string          `json:"product_id"`
	ClaimedPrice decimal.Decimal `json:"claimed_price"`
	ActualPrice  decimal.Decimal `json:"actual_price"`
	IPAddress    string          `json:"ip_address"`
}

// OrderInitiatedEvent is published after an order and its gateway counterpart
// both exist, before payment capture.
type OrderInitiatedEvent struct {
	BaseEvent
	OrderID        int64           `json:"order_id"`
	UserID         string          `json:"user_id"`
	GatewayOrderID string          `json:"gateway_order_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// PaymentCapturedEvent is published when a gateway payment is verified.
type PaymentCapturedEvent struct {
	BaseEvent
	OrderID          int64  `json:"order_id"`
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
}

// PaymentFailedEvent is published when signature verification rejects a
// payment callback.
type PaymentFailedEvent struct {
	BaseEvent
	OrderID        int64  `json:"order_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Reason         string `json:"reason"`
}
