// Package gateway wraps the Razorpay orders API. Amounts cross this boundary
// in major currency units and leave it in the gateway's integer minor units.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"checkout-service/internal/util"

	"github.com/google/uuid"
	razorpay "github.com/razorpay/razorpay-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Order is the gateway-issued order handle.
type Order struct {
	ID          string `json:"id"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
}

// RazorpayGateway creates remote payment orders.
type RazorpayGateway struct {
	client    *razorpay.Client
	keySecret string
	currency  string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewRazorpayGateway creates a gateway client.
func NewRazorpayGateway(keyID, keySecret, currency string, timeout time.Duration) *RazorpayGateway {
	return &RazorpayGateway{
		client:    razorpay.NewClient(keyID, keySecret),
		keySecret: keySecret,
		currency:  currency,
		timeout:   timeout,
		logger:    util.GetLogger(),
	}
}

// ToMinorUnits converts a major-unit amount to integer minor units (rupees to
// paise), rounding half away from zero. The conversion is deterministic;
// float arithmetic never touches the amount.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// NewReceipt generates a time-based receipt token. Uniqueness is advisory:
// it keeps retried calls from colliding on the gateway side but is not a
// strict idempotency key.
func NewReceipt() string {
	return fmt.Sprintf("rcpt_%d_%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}

// CreateOrder creates a gateway order for the given major-unit amount. The
// SDK call carries no context, so the deadline is enforced here; an expired
// context abandons the in-flight call rather than hanging the pipeline.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount decimal.Decimal, userID string) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		util.GatewayOrderLatency.Observe(time.Since(start).Seconds())
	}()

	receipt := NewReceipt()
	amountMinor := ToMinorUnits(amount)

	data := map[string]interface{}{
		"amount":   amountMinor,
		"currency": g.currency,
		"receipt":  receipt,
		"notes": map[string]interface{}{
			"user_id": userID,
		},
	}

	type createResult struct {
		body map[string]interface{}
		err  error
	}

	ch := make(chan createResult, 1)
	go func() {
		body, err := g.client.Order.Create(data, nil)
		ch <- createResult{body: body, err: err}
	}()

	var body map[string]interface{}
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("gateway order creation timed out: %w", ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("gateway order creation failed: %w", res.err)
		}
		body = res.body
	}

	id, ok := body["id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("gateway response missing order id")
	}

	g.logger.Info("Gateway order created",
		zap.String("gateway_order_id", id),
		zap.Int64("amount_minor", amountMinor),
		zap.String("currency", g.currency))

	return &Order{
		ID:          id,
		AmountMinor: amountMinor,
		Currency:    g.currency,
		Receipt:     receipt,
	}, nil
}

// VerifyPaymentSignature checks the checkout callback signature: an
// HMAC-SHA256 of "<order_id>|<payment_id>" under the key secret, hex encoded.
// The comparison is constant time.
func (g *RazorpayGateway) VerifyPaymentSignature(gatewayOrderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(g.keySecret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
