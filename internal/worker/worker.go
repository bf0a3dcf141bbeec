package worker

import (
	"context"
	"log"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/store"
)

// ActivityWorker consumes session events from Kafka and appends them to the
// store backend's activity log.
type ActivityWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
}

// NewActivityWorker creates a new activity worker
func NewActivityWorker(consumer *broker.Consumer, st *store.Store) *ActivityWorker {
	eventHandler := broker.NewEventHandler()

	w := &ActivityWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		store:        st,
	}

	eventHandler.OnSessionEvent(w.recordActivity)
	return w
}

// Start starts the worker
func (w *ActivityWorker) Start(ctx context.Context) error {
	log.Println("Starting activity worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ActivityWorker) Stop() error {
	log.Println("Stopping activity worker...")
	return w.consumer.Close()
}

func (w *ActivityWorker) recordActivity(ctx context.Context, env *broker.EventEnvelope, raw []byte) error {
	ownerID := env.OwnerID
	if ownerID == "" {
		// Login and logout events carry the user id instead.
		ownerID = env.UserID
	}

	rec := &models.ActivityRecord{
		EventID:   env.EventID,
		EventType: env.EventType,
		OwnerID:   ownerID,
		SessionID: env.SessionID,
		ItemID:    env.ItemID,
		Payload:   string(raw),
	}

	return w.store.InsertActivity(ctx, rec)
}
