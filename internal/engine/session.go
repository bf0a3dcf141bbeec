package engine

import (
	"context"
	"errors"
	"time"

	"storefront/internal/broker"
	"storefront/internal/hub"
	"storefront/internal/identity"
	"storefront/internal/models"
	"storefront/internal/remote"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session binds one client's identity resolver, cart engine, wishlist
// engine, and broadcast hub. UI surfaces hold no state of their own; they
// read snapshots and subscribe to the hub.
type Session struct {
	ID       string
	Resolver *identity.Resolver
	Cart     *CartEngine
	Wishlist *WishlistEngine
	Hub      *hub.Hub

	events *broker.EventPublisher
	logger *zap.Logger
}

// SessionSnapshot is the combined read model served to UI surfaces.
type SessionSnapshot struct {
	SessionID string           `json:"session_id"`
	OwnerID   string           `json:"owner_id"`
	Guest     bool             `json:"guest"`
	Cart      CartSnapshot     `json:"cart"`
	Wishlist  WishlistSnapshot `json:"wishlist"`
}

// NewSession restores identity state for the session id and wires a fresh
// engine pair around it. Cart and wishlist state is not restored locally;
// it is always re-derived from the backend by Start.
func NewSession(ctx context.Context, id string, client remote.StoreClient, creds identity.CredentialStore, secret []byte, events *broker.EventPublisher) *Session {
	resolver := identity.NewResolver(ctx, id, creds, secret)
	h := hub.New()

	return &Session{
		ID:       id,
		Resolver: resolver,
		Cart:     NewCartEngine(resolver, client, h),
		Wishlist: NewWishlistEngine(resolver, client, h),
		Hub:      h,
		events:   events,
		logger:   util.GetLogger(),
	}
}

// Start performs the initial refresh for the active identity. Refresh
// failures leave the engines empty; the backend state is unknown, and the
// next successful refresh converges.
func (s *Session) Start(ctx context.Context) {
	if err := s.Cart.Refresh(ctx); err != nil {
		s.logger.Warn("Initial cart refresh failed",
			zap.String("session_id", s.ID),
			zap.Error(err))
	}
	if err := s.Wishlist.Refresh(ctx); err != nil {
		s.logger.Warn("Initial wishlist refresh failed",
			zap.String("session_id", s.ID),
			zap.Error(err))
	}
}

// Snapshot returns the combined session state without blocking.
func (s *Session) Snapshot() SessionSnapshot {
	ident := s.Resolver.Current()
	return SessionSnapshot{
		SessionID: s.ID,
		OwnerID:   ident.OwnerID(),
		Guest:     ident.Guest,
		Cart:      s.Cart.GetSnapshot(),
		Wishlist:  s.Wishlist.GetSnapshot(),
	}
}

// Login switches the session to the authenticated identity and refreshes
// both engines against the user's buckets. The guest bucket is left
// untouched; its items are not merged.
func (s *Session) Login(ctx context.Context, userID, token string) error {
	if err := s.Resolver.Login(ctx, userID, token); err != nil {
		return err
	}

	util.SessionLoginsTotal.Inc()
	s.Start(ctx)

	s.publishEvent(func(base models.BaseEvent) (string, interface{}) {
		base.EventType = models.EventTypeSessionLogin
		return userID, &models.SessionLoginEvent{BaseEvent: base, SessionID: s.ID, UserID: userID}
	})
	return nil
}

// Logout reverts to guest, zeroes the in-memory state before any backend
// round-trip completes, and then re-derives the guest buckets. Results of
// mutations still in flight under the old identity are discarded by the
// epoch guard.
func (s *Session) Logout(ctx context.Context) {
	prev := s.Resolver.Current()
	s.Resolver.Logout(ctx)

	s.Cart.Reset()
	s.Wishlist.Reset()

	util.SessionLogoutsTotal.Inc()
	s.Start(ctx)

	s.publishEvent(func(base models.BaseEvent) (string, interface{}) {
		base.EventType = models.EventTypeSessionLogout
		return prev.UserID, &models.SessionLogoutEvent{BaseEvent: base, SessionID: s.ID, UserID: prev.UserID}
	})
}

// AddToCart runs the cart engine's add protocol and emits an activity event
// once the mutation is confirmed.
func (s *Session) AddToCart(ctx context.Context, itemID string, price float64, qty int, color, storage string) *Mutation {
	m := s.Cart.AddItem(ctx, itemID, price, qty, color, storage)
	s.emitCartOutcome(ctx, m, itemID, color, storage)
	return m
}

// UpdateCartQuantity runs the cart engine's absolute-quantity protocol and
// emits an activity event once confirmed.
func (s *Session) UpdateCartQuantity(ctx context.Context, itemID, color, storage string, qty int) *Mutation {
	m := s.Cart.UpdateQuantity(ctx, itemID, color, storage, qty)
	s.emitCartOutcome(ctx, m, itemID, color, storage)
	return m
}

// RemoveFromCart removes the slot and emits an activity event once
// confirmed.
func (s *Session) RemoveFromCart(ctx context.Context, itemID, color, storage string) *Mutation {
	return s.UpdateCartQuantity(ctx, itemID, color, storage, 0)
}

// ToggleWishlist adds or removes a wishlist item and emits an activity
// event once confirmed.
func (s *Session) ToggleWishlist(ctx context.Context, itemID string, add bool) *Mutation {
	var m *Mutation
	if add {
		m = s.Wishlist.AddItem(ctx, itemID)
	} else {
		m = s.Wishlist.RemoveItem(ctx, itemID)
	}

	go func() {
		<-m.Done()
		if m.Err() != nil {
			return
		}
		snap := s.Wishlist.GetSnapshot()
		s.publishEvent(func(base models.BaseEvent) (string, interface{}) {
			base.EventType = models.EventTypeWishlistToggled
			return snap.OwnerID, &models.WishlistToggledEvent{
				BaseEvent: base,
				OwnerID:   snap.OwnerID,
				SessionID: s.ID,
				ItemID:    itemID,
				Added:     add,
				Count:     snap.Count,
			}
		})
	}()
	return m
}

func (s *Session) emitCartOutcome(ctx context.Context, m *Mutation, itemID, color, storage string) {
	go func() {
		<-m.Done()
		err := m.Err()
		if errors.Is(err, remote.ErrIdentityStale) {
			return
		}

		if err != nil {
			s.publishEvent(func(base models.BaseEvent) (string, interface{}) {
				base.EventType = models.EventTypeCartRolledBack
				ownerID := s.Resolver.Current().OwnerID()
				return ownerID, &models.CartRolledBackEvent{
					BaseEvent: base,
					OwnerID:   ownerID,
					SessionID: s.ID,
					ItemID:    itemID,
					Reason:    rollbackReason(err),
				}
			})
			return
		}

		snap := s.Cart.GetSnapshot()
		key := models.SlotKey(itemID, color, storage)
		for _, item := range snap.Items {
			if item.SlotKey() == key {
				s.publishEvent(func(base models.BaseEvent) (string, interface{}) {
					base.EventType = models.EventTypeCartItemUpserted
					return snap.OwnerID, &models.CartItemUpsertedEvent{
						BaseEvent: base,
						OwnerID:   snap.OwnerID,
						SessionID: s.ID,
						ItemID:    item.ItemID,
						Color:     item.Color,
						Storage:   item.Storage,
						Quantity:  item.Quantity,
						UnitPrice: item.UnitPrice,
						CartCount: snap.Count,
						CartTotal: snap.Total,
					}
				})
				return
			}
		}

		s.publishEvent(func(base models.BaseEvent) (string, interface{}) {
			base.EventType = models.EventTypeCartItemRemoved
			return snap.OwnerID, &models.CartItemRemovedEvent{
				BaseEvent: base,
				OwnerID:   snap.OwnerID,
				SessionID: s.ID,
				ItemID:    itemID,
				Color:     color,
				Storage:   storage,
			}
		})
	}()
}

// publishEvent builds and publishes one session event. Publishing is best
// effort; failures are logged and never affect engine state.
func (s *Session) publishEvent(build func(models.BaseEvent) (string, interface{})) {
	if s.events == nil {
		return
	}

	base := models.BaseEvent{
		EventID:   uuid.New().String(),
		Timestamp: time.Now(),
	}
	key, event := build(base)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.events.PublishSessionEvent(ctx, key, event); err != nil {
		s.logger.Error("Failed to publish session event",
			zap.String("session_id", s.ID),
			zap.Error(err))
	}
}
