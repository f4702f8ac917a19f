package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"storefront/internal/models"
	"storefront/internal/util"
)

// Publisher writes keyed events to a topic
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer Publisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer Publisher) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// PublishOrderPlaced publishes OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, order *models.Order) error {
	items := make([]models.OrderItemData, len(order.Items))
	for i, it := range order.Items {
		items[i] = models.OrderItemData{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price}
	}

	event := &models.OrderPlacedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeOrderPlaced),
		OrderID:    order.ID,
		UserID:     order.UserID,
		TotalPrice: order.TotalPrice,
		Items:      items,
	}
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("order-%d", order.ID), event)
}

// PublishOrderStatusChanged publishes OrderStatusChanged event
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order) error {
	event := &models.OrderStatusChangedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:   order.ID,
		UserID:    order.UserID,
		Status:    order.Status,
	}
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("order-%d", order.ID), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onIdentityEvent func(context.Context, *models.IdentityEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnIdentityEvent registers a handler for user.created, user.updated and user.deleted
func (eh *EventHandler) OnIdentityEvent(handler func(context.Context, *models.IdentityEvent) error) {
	eh.onIdentityEvent = handler
}

// HandleMessage routes messages to appropriate handlers. Undecodable
// payloads are reported as permanent so the consumer skips them.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to unmarshal base event: %w", err))
	}

	log := util.LoggerFromContext(ctx)
	log.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeUserCreated, models.EventTypeUserUpdated, models.EventTypeUserDeleted:
		if eh.onIdentityEvent != nil {
			var event models.IdentityEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to unmarshal identity event: %w", err))
			}
			return eh.onIdentityEvent(ctx, &event)
		}

	default:
		log.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
