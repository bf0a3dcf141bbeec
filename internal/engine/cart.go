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

// CartSnapshot is a consistent read of the in-memory cart. Count and total
// are recomputed from the item set on every snapshot.
type CartSnapshot struct {
	OwnerID string            `json:"owner_id"`
	Items   []models.LineItem `json:"items"`
	Count   int               `json:"count"`
	Total   float64           `json:"total"`
}

// slotTurn is one mutation's position in a slot's FIFO. The backend call
// waits for the previous turn's done channel, so calls on the same slot go
// out in the order the mutations were applied.
type slotTurn struct {
	wait <-chan struct{}
	done chan struct{}
}

// CartEngine owns the authoritative in-memory cart for the session's active
// identity. Every mutation follows the same protocol: apply optimistically
// and claim a slot turn before returning, publish, call the store backend
// once, then refresh on success or roll the slot back on failure. Mutations
// on the same slot settle in call order; across slots no ordering is
// promised.
type CartEngine struct {
	resolver *identity.Resolver
	client   remote.StoreClient
	hub      *hub.Hub
	logger   *zap.Logger

	mu    sync.Mutex
	cart  *models.Cart
	slots map[string]*slotTurn
}

// NewCartEngine creates a cart engine bound to the session's resolver and
// broadcast hub. The cart starts empty; callers refresh on session start.
func NewCartEngine(resolver *identity.Resolver, client remote.StoreClient, h *hub.Hub) *CartEngine {
	return &CartEngine{
		resolver: resolver,
		client:   client,
		hub:      h,
		logger:   util.GetLogger(),
		cart:     models.NewCart(resolver.Current().OwnerID()),
		slots:    make(map[string]*slotTurn),
	}
}

// GetSnapshot returns the current in-memory state. It never blocks on the
// network.
func (e *CartEngine) GetSnapshot() CartSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return CartSnapshot{
		OwnerID: e.cart.OwnerID,
		Items:   e.cart.SortedItems(),
		Count:   e.cart.Count(),
		Total:   e.cart.Total(),
	}
}

// Refresh fetches the authoritative cart for the current identity and
// replaces the in-memory state wholesale. If the identity changed while the
// fetch was in flight the result is discarded.
func (e *CartEngine) Refresh(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "CartEngine.Refresh")
	defer span.End()

	ident, epoch := e.resolver.Snapshot()

	state, err := e.client.FetchCart(ctx, ident.OwnerID())
	if err != nil {
		// Unknown, not empty: the in-memory snapshot stands.
		util.RefreshFailuresTotal.WithLabelValues("cart").Inc()
		return fmt.Errorf("cart refresh failed: %w", err)
	}

	e.mu.Lock()
	if e.resolver.Epoch() != epoch {
		e.mu.Unlock()
		util.StaleResultsDiscarded.Inc()
		return remote.ErrIdentityStale
	}
	cart := models.NewCart(ident.OwnerID())
	for _, item := range state.Items {
		if item.Quantity <= 0 {
			continue
		}
		cart.Items[item.SlotKey()] = item
	}
	e.cart = cart
	count, total := cart.Count(), cart.Total()
	e.mu.Unlock()

	e.hub.PublishCart(count, total, nil)
	return nil
}

// Reset drops the in-memory cart and publishes zero counters immediately.
// Used on logout so the UI empties before any backend call completes.
func (e *CartEngine) Reset() {
	e.mu.Lock()
	e.cart = models.NewCart(e.resolver.Current().OwnerID())
	e.mu.Unlock()

	e.hub.PublishCart(0, 0, nil)
}

// AddItem merges qty units into the slot for (itemID, color, storage),
// keeping the stored unit price if the slot already exists. The optimistic
// state is visible through GetSnapshot before AddItem returns.
func (e *CartEngine) AddItem(ctx context.Context, itemID string, price float64, qty int, color, storage string) *Mutation {
	if itemID == "" {
		return completedMutation(fmt.Errorf("item id is required"))
	}
	if qty <= 0 {
		return completedMutation(fmt.Errorf("quantity must be positive, got %d", qty))
	}
	if price < 0 {
		return completedMutation(fmt.Errorf("unit price must be non-negative, got %v", price))
	}

	util.CartMutationsTotal.WithLabelValues("add").Inc()

	m := newMutation()
	key := models.SlotKey(itemID, color, storage)
	ident, epoch := e.resolver.Snapshot()

	e.mu.Lock()
	prev, existed := e.cart.Items[key]
	applied := e.cart.AddQuantity(itemID, price, qty, color, storage)
	count, total := e.cart.Count(), e.cart.Total()
	turn := e.claimTurnLocked(key)
	e.mu.Unlock()

	e.hub.PublishCart(count, total, nil)

	go e.runUpsert(ctx, m, "CartEngine.AddItem", turn, key, ident, epoch, prev, existed, applied, true)
	return m
}

// UpdateQuantity sets an existing slot to an absolute quantity; qty <= 0
// removes the slot. Used by the cart page stepper, which is absolute, not
// additive. A positive quantity on an absent slot is rejected: items enter
// the cart only through AddItem, which captures the unit price.
func (e *CartEngine) UpdateQuantity(ctx context.Context, itemID, color, storage string, qty int) *Mutation {
	if itemID == "" {
		return completedMutation(fmt.Errorf("item id is required"))
	}

	util.CartMutationsTotal.WithLabelValues("update").Inc()

	m := newMutation()
	key := models.SlotKey(itemID, color, storage)
	ident, epoch := e.resolver.Snapshot()

	e.mu.Lock()
	prev, existed := e.cart.Items[key]
	if !existed && qty > 0 {
		e.mu.Unlock()
		m.complete(fmt.Errorf("no cart slot for item %s", itemID))
		return m
	}
	applied, kept := e.cart.SetQuantity(itemID, qty, color, storage)
	count, total := e.cart.Count(), e.cart.Total()
	turn := e.claimTurnLocked(key)
	e.mu.Unlock()

	e.hub.PublishCart(count, total, nil)

	wire := applied
	if !kept {
		wire = models.LineItem{ItemID: itemID, Color: color, Storage: storage}
	}

	go e.runUpsert(ctx, m, "CartEngine.UpdateQuantity", turn, key, ident, epoch, prev, existed, wire, kept)
	return m
}

// RemoveItem removes the slot for (itemID, color, storage).
func (e *CartEngine) RemoveItem(ctx context.Context, itemID, color, storage string) *Mutation {
	return e.UpdateQuantity(ctx, itemID, color, storage, 0)
}

// runUpsert waits for the slot's previous turn, issues the single backend
// call, and settles. The turn is released only after settling so rollbacks
// and refreshes happen in slot order too.
func (e *CartEngine) runUpsert(ctx context.Context, m *Mutation, spanName string, turn *slotTurn, key string, ident identity.Identity, epoch uint64, prev models.LineItem, existed bool, wire models.LineItem, kept bool) {
	defer e.releaseTurn(key, turn)

	ctx, span := util.StartSpan(ctx, spanName)
	defer span.End()

	if turn.wait != nil {
		<-turn.wait
	}

	err := e.client.UpsertCartItem(ctx, ident.OwnerID(), wire)
	e.settle(ctx, m, key, prev, existed, wire, kept, epoch, err)
}

// settle resolves a mutation after its backend call: discard if the
// identity changed in flight, roll the slot back on failure, or converge
// with server truth on success.
func (e *CartEngine) settle(ctx context.Context, m *Mutation, key string, prev models.LineItem, existed bool, applied models.LineItem, kept bool, epoch uint64, err error) {
	if e.resolver.Epoch() != epoch {
		util.StaleResultsDiscarded.Inc()
		m.complete(remote.ErrIdentityStale)
		return
	}

	if err != nil {
		e.mu.Lock()
		cur, ok := e.cart.Items[key]
		// Roll back only while this mutation's value still owns the slot;
		// a later optimistic write settles in its own turn.
		if (kept && ok && cur == applied) || (!kept && !ok) {
			if existed {
				e.cart.Items[key] = prev
			} else {
				delete(e.cart.Items, key)
			}
		}
		count, total := e.cart.Count(), e.cart.Total()
		e.mu.Unlock()

		util.CartRollbacksTotal.WithLabelValues(rollbackReason(err)).Inc()
		e.logger.Warn("Cart mutation rolled back",
			zap.String("slot", key),
			zap.Error(err))

		e.hub.PublishCart(count, total, err)
		m.complete(err)
		return
	}

	if rerr := e.Refresh(ctx); rerr != nil && !errors.Is(rerr, remote.ErrIdentityStale) {
		// The optimistic state stands until the next successful refresh.
		e.logger.Warn("Post-mutation cart refresh failed", zap.Error(rerr))

		e.mu.Lock()
		count, total := e.cart.Count(), e.cart.Total()
		e.mu.Unlock()
		e.hub.PublishCart(count, total, nil)
	}

	m.complete(nil)
}

// claimTurnLocked appends a turn to the slot's FIFO. Caller holds e.mu.
func (e *CartEngine) claimTurnLocked(key string) *slotTurn {
	turn := &slotTurn{done: make(chan struct{})}
	if tail, ok := e.slots[key]; ok {
		turn.wait = tail.done
	}
	e.slots[key] = turn
	return turn
}

func (e *CartEngine) releaseTurn(key string, turn *slotTurn) {
	e.mu.Lock()
	if e.slots[key] == turn {
		delete(e.slots, key)
	}
	e.mu.Unlock()
	close(turn.done)
}

func rollbackReason(err error) string {
	switch {
	case errors.Is(err, remote.ErrRejected):
		return "rejected"
	case errors.Is(err, remote.ErrRemoteUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}
