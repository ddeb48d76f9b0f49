package service

import (
	"context"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AbusePublisher is the side-channel transport for tampering events.
type AbusePublisher interface {
	PublishPriceTampering(ctx context.Context, event *models.PriceTamperingEvent) error
}

// TamperingLogger emits abuse events off the request path. A failed emit is
// logged and dropped; it never blocks or replaces the pipeline's own response.
type TamperingLogger struct {
	publisher AbusePublisher
	logger    *zap.Logger
}

// NewTamperingLogger creates a tampering logger.
func NewTamperingLogger(publisher AbusePublisher) *TamperingLogger {
	return &TamperingLogger{
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// LogPriceTampering records one tampered cart line, fire-and-forget.
func (l *TamperingLogger) LogPriceTampering(userID, productID string, claimed, actual decimal.Decimal, ipAddress string) {
	event := &models.PriceTamperingEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePriceTampering,
			Timestamp: time.Now(),
		},
		UserID:       userID,
		ProductID:    productID,
		ClaimedPrice: claimed,
		ActualPrice:  actual,
		IPAddress:    ipAddress,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := l.publisher.PublishPriceTampering(ctx, event); err != nil {
			l.logger.Error("Failed to publish tampering event",
				zap.String("user_id", userID),
				zap.String("product_id", productID),
				zap.Error(err))
		}
	}()
}
