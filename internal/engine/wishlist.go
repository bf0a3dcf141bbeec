package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"storefront/internal/hub"
	"storefront/internal/identity"
	"storefront/internal/models"
	"storefront/internal/remote"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// WishlistSnapshot is a consistent read of the in-memory wishlist.
type WishlistSnapshot struct {
	OwnerID string   `json:"owner_id"`
	ItemIDs []string `json:"item_ids"`
	Count   int      `json:"count"`
}

// WishlistEngine mirrors the cart engine's optimistic protocol with set
// semantics instead of quantity arithmetic. Adding a present id or removing
// an absent one is a local no-op, but the backend call is still issued so
// server-side dedup stays the final authority.
type WishlistEngine struct {
	resolver *identity.Resolver
	client   remote.StoreClient
	hub      *hub.Hub
	logger   *zap.Logger

	mu    sync.Mutex
	list  *models.Wishlist
	slots map[string]*slotTurn
}

// NewWishlistEngine creates a wishlist engine bound to the session's
// resolver and broadcast hub.
func NewWishlistEngine(resolver *identity.Resolver, client remote.StoreClient, h *hub.Hub) *WishlistEngine {
	return &WishlistEngine{
		resolver: resolver,
		client:   client,
		hub:      h,
		logger:   util.GetLogger(),
		list:     models.NewWishlist(resolver.Current().OwnerID()),
		slots:    make(map[string]*slotTurn),
	}
}

// GetSnapshot returns the current in-memory state without blocking.
func (e *WishlistEngine) GetSnapshot() WishlistSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return WishlistSnapshot{
		OwnerID: e.list.OwnerID,
		ItemIDs: e.list.SortedIDs(),
		Count:   e.list.Count(),
	}
}

// Refresh fetches the authoritative wishlist for the current identity and
// replaces the in-memory set wholesale.
func (e *WishlistEngine) Refresh(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "WishlistEngine.Refresh")
	defer span.End()

	ident, epoch := e.resolver.Snapshot()

	ids, err := e.client.FetchWishlist(ctx, ident.OwnerID())
	if err != nil {
		util.RefreshFailuresTotal.WithLabelValues("wishlist").Inc()
		return fmt.Errorf("wishlist refresh failed: %w", err)
	}

	e.mu.Lock()
	if e.resolver.Epoch() != epoch {
		e.mu.Unlock()
		util.StaleResultsDiscarded.Inc()
		return remote.ErrIdentityStale
	}
	list := models.NewWishlist(ident.OwnerID())
	for _, id := range ids {
		list.Items[id] = struct{}{}
	}
	e.list = list
	count := list.Count()
	e.mu.Unlock()

	e.hub.PublishWishlist(count, nil)
	return nil
}

// Reset drops the in-memory wishlist and publishes a zero count.
func (e *WishlistEngine) Reset() {
	e.mu.Lock()
	e.list = models.NewWishlist(e.resolver.Current().OwnerID())
	e.mu.Unlock()

	e.hub.PublishWishlist(0, nil)
}

// AddItem inserts itemID into the wishlist.
func (e *WishlistEngine) AddItem(ctx context.Context, itemID string) *Mutation {
	return e.toggle(ctx, itemID, true)
}

// RemoveItem deletes itemID from the wishlist.
func (e *WishlistEngine) RemoveItem(ctx context.Context, itemID string) *Mutation {
	return e.toggle(ctx, itemID, false)
}

// toggle applies the membership change and claims the item's turn before
// returning, so snapshots reflect the optimistic state immediately and
// backend calls for the same item go out in call order.
func (e *WishlistEngine) toggle(ctx context.Context, itemID string, add bool) *Mutation {
	if itemID == "" {
		return completedMutation(fmt.Errorf("item id is required"))
	}

	op := "remove"
	if add {
		op = "add"
	}
	util.WishlistMutationsTotal.WithLabelValues(op).Inc()

	m := newMutation()
	ident, epoch := e.resolver.Snapshot()

	e.mu.Lock()
	var changed bool
	if add {
		changed = e.list.Add(itemID)
	} else {
		changed = e.list.Remove(itemID)
	}
	count := e.list.Count()
	turn := e.claimTurnLocked(itemID)
	e.mu.Unlock()

	if changed {
		e.hub.PublishWishlist(count, nil)
	}

	go e.runToggle(ctx, m, turn, itemID, add, changed, ident, epoch)
	return m
}

func (e *WishlistEngine) runToggle(ctx context.Context, m *Mutation, turn *slotTurn, itemID string, add, changed bool, ident identity.Identity, epoch uint64) {
	defer e.releaseTurn(itemID, turn)

	ctx, span := util.StartSpan(ctx, "WishlistEngine.Toggle")
	defer span.End()

	if turn.wait != nil {
		<-turn.wait
	}

	err := e.client.ToggleWishlistItem(ctx, ident.OwnerID(), itemID, add)

	if e.resolver.Epoch() != epoch {
		util.StaleResultsDiscarded.Inc()
		m.complete(remote.ErrIdentityStale)
		return
	}

	if err != nil {
		var count int
		e.mu.Lock()
		// Roll back only while this toggle's direction still owns the
		// membership; a later toggle settles in its own turn.
		if changed && e.list.Contains(itemID) == add {
			if add {
				e.list.Remove(itemID)
			} else {
				e.list.Add(itemID)
			}
		}
		count = e.list.Count()
		e.mu.Unlock()

		util.WishlistRollbacksTotal.WithLabelValues(rollbackReason(err)).Inc()
		e.logger.Warn("Wishlist mutation rolled back",
			zap.String("item_id", itemID),
			zap.Bool("add", add),
			zap.Error(err))

		e.hub.PublishWishlist(count, err)
		m.complete(err)
		return
	}

	if rerr := e.Refresh(ctx); rerr != nil && !errors.Is(rerr, remote.ErrIdentityStale) {
		e.logger.Warn("Post-mutation wishlist refresh failed", zap.Error(rerr))

		e.mu.Lock()
		count := e.list.Count()
		e.mu.Unlock()
		e.hub.PublishWishlist(count, nil)
	}

	m.complete(nil)
}

func (e *WishlistEngine) claimTurnLocked(itemID string) *slotTurn {
	turn := &slotTurn{done: make(chan struct{})}
	if tail, ok := e.slots[itemID]; ok {
		turn.wait = tail.done
	}
	e.slots[itemID] = turn
	return turn
}

func (e *WishlistEngine) releaseTurn(itemID string, turn *slotTurn) {
	e.mu.Lock()
	if e.slots[itemID] == turn {
		delete(e.slots, itemID)
	}
	e.mu.Unlock()
	close(turn.done)
}
