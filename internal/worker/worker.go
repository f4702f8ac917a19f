package worker

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"storefront/internal/apperr"
	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/util"
)

// IdentityApplier applies identity-provider account events
type IdentityApplier interface {
	HandleEvent(ctx context.Context, event *models.IdentityEvent) error
}

type messageConsumer interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// IdentityWorker feeds identity events from Kafka into the local user records
type IdentityWorker struct {
	consumer     messageConsumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewIdentityWorker creates a new identity worker
func NewIdentityWorker(consumer messageConsumer, identity IdentityApplier) *IdentityWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnIdentityEvent(func(ctx context.Context, event *models.IdentityEvent) error {
		return classify(identity.HandleEvent(ctx, event))
	})

	return &IdentityWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// classify marks failures that redelivery can not fix so the consumer
// commits past them. Only Conflict and Unavailable are worth another try.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if !apperr.Retryable(err) {
		return backoff.Permanent(err)
	}
	return err
}

// Start blocks consuming until ctx is cancelled
func (w *IdentityWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting identity worker")
	err := w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop stops the worker
func (w *IdentityWorker) Stop() error {
	w.logger.Info("Stopping identity worker")
	return w.consumer.Close()
}
