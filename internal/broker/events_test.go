package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMessageDispatchesKnownEvents(t *testing.T) {
	event := models.CartItemUpsertedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: models.EventTypeCartItemUpserted,
			Timestamp: time.Now(),
		},
		OwnerID:   "alice",
		SessionID: "s1",
		ItemID:    "A1",
		Quantity:  2,
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	handler := NewEventHandler()
	var got *EventEnvelope
	handler.OnSessionEvent(func(_ context.Context, env *EventEnvelope, raw []byte) error {
		got = env
		assert.Equal(t, payload, raw)
		return nil
	})

	err = handler.HandleMessage(context.Background(), kafka.Message{Value: payload})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "evt-1", got.EventID)
	assert.Equal(t, "alice", got.OwnerID)
	assert.Equal(t, "A1", got.ItemID)
}

func TestHandleMessageSkipsUnknownEventType(t *testing.T) {
	handler := NewEventHandler()
	called := false
	handler.OnSessionEvent(func(context.Context, *EventEnvelope, []byte) error {
		called = true
		return nil
	})

	payload := []byte(`{"event_id":"evt-2","event_type":"SOMETHING_ELSE"}`)
	err := handler.HandleMessage(context.Background(), kafka.Message{Value: payload})
	assert.NoError(t, err)
	assert.False(t, called)
}

func TestHandleMessageRejectsMalformedPayload(t *testing.T) {
	handler := NewEventHandler()
	err := handler.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")})
	assert.Error(t, err)
}
