package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"storefront/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing session events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishSessionEvent publishes one session event keyed by owner id.
func (ep *EventPublisher) PublishSessionEvent(ctx context.Context, ownerID string, event interface{}) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("owner-%s", ownerID), event)
}

// EventEnvelope carries the fields common to every session event plus the
// optional ones the activity log records. Unknown fields are ignored.
type EventEnvelope struct {
	models.BaseEvent
	OwnerID   string `json:"owner_id"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	ItemID    string `json:"item_id"`
}

// EventHandler routes consumed session events
type EventHandler struct {
	onEvent func(ctx context.Context, env *EventEnvelope, raw []byte) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnSessionEvent registers the handler invoked for every decoded event.
func (eh *EventHandler) OnSessionEvent(handler func(ctx context.Context, env *EventEnvelope, raw []byte) error) {
	eh.onEvent = handler
}

// HandleMessage decodes a message and dispatches it. Messages with an
// unknown event type are logged and committed; replaying them would not
// help.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var env EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}

	switch env.EventType {
	case models.EventTypeCartItemUpserted,
		models.EventTypeCartItemRemoved,
		models.EventTypeCartRolledBack,
		models.EventTypeWishlistToggled,
		models.EventTypeSessionLogin,
		models.EventTypeSessionLogout:
		if eh.onEvent != nil {
			return eh.onEvent(ctx, &env, msg.Value)
		}
	default:
		log.Printf("Unhandled event type: %s", env.EventType)
	}

	return nil
}
