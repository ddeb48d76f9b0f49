package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	abuseProducer *Producer
	orderProducer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(abuseProducer, orderProducer *Producer) *EventPublisher {
	return &EventPublisher{
		abuseProducer: abuseProducer,
		orderProducer: orderProducer,
	}
}

// PublishPriceTampering publishes a tampering event on the abuse topic.
func (ep *EventPublisher) PublishPriceTampering(ctx context.Context, event *models.PriceTamperingEvent) error {
	key := fmt.Sprintf("abuse-%s", event.UserID)
	return ep.abuseProducer.PublishEvent(ctx, key, event)
}

// PublishOrderInitiated publishes an OrderInitiated event.
func (ep *EventPublisher) PublishOrderInitiated(ctx context.Context, event *models.OrderInitiatedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.orderProducer.PublishEvent(ctx, key, event)
}

// PublishPaymentCaptured publishes a PaymentCaptured event.
func (ep *EventPublisher) PublishPaymentCaptured(ctx context.Context, event *models.PaymentCapturedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.orderProducer.PublishEvent(ctx, key, event)
}

// PublishPaymentFailed publishes a PaymentFailed event.
func (ep *EventPublisher) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.orderProducer.PublishEvent(ctx, key, event)
}

// EventHandler routes consumed messages by event type.
type EventHandler struct {
	onPriceTampering func(context.Context, *models.PriceTamperingEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnPriceTampering registers a handler for PriceTampering events
func (eh *EventHandler) OnPriceTampering(handler func(context.Context, *models.PriceTamperingEvent) error) {
	eh.onPriceTampering = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypePriceTampering:
		if eh.onPriceTampering != nil {
			var event models.PriceTamperingEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PriceTampering event: %w", err)
			}
			return eh.onPriceTampering(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
