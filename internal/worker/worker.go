package worker

import (
	"context"

	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// TamperingStore persists abuse-log rows.
type TamperingStore interface {
	InsertTamperingEntry(ctx context.Context, entry *models.TamperingLogEntry) error
}

// AbuseLogWorker drains the abuse topic into the durable tampering log. The
// log is append-only; the worker never updates or deletes rows.
type AbuseLogWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        TamperingStore
	logger       *zap.Logger
}

// NewAbuseLogWorker creates an abuse-log worker.
func NewAbuseLogWorker(consumer *broker.Consumer, store TamperingStore) *AbuseLogWorker {
	w := &AbuseLogWorker{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnPriceTampering(w.handlePriceTampering)
	w.eventHandler = eventHandler

	return w
}

func (w *AbuseLogWorker) handlePriceTampering(ctx context.Context, event *models.PriceTamperingEvent) error {
	entry := &models.TamperingLogEntry{
		UserID:       event.UserID,
		ProductID:    event.ProductID,
		ClaimedPrice: event.ClaimedPrice,
		ActualPrice:  event.ActualPrice,
		IPAddress:    event.IPAddress,
	}

	if err := w.store.InsertTamperingEntry(ctx, entry); err != nil {
		return err
	}

	w.logger.Info("Tampering attempt recorded",
		zap.String("user_id", event.UserID),
		zap.String("product_id", event.ProductID),
		zap.String("claimed", event.ClaimedPrice.String()),
		zap.String("actual", event.ActualPrice.String()))
	return nil
}

// Start starts the worker
func (w *AbuseLogWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting abuse log worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AbuseLogWorker) Stop() error {
	w.logger.Info("Stopping abuse log worker")
	return w.consumer.Close()
}
