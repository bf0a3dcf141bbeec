package hub

import "sync"

// State carries the derived counters every UI surface renders. The hub only
// ever publishes internally-consistent values, never a partially-applied
// snapshot.
type State struct {
	CartCount     int     `json:"cart_count"`
	CartTotal     float64 `json:"cart_total"`
	WishlistCount int     `json:"wishlist_count"`
}

// Update is delivered to subscribers on every change. Err is non-nil only
// when a mutation was rolled back; the counters always reflect the last
// valid state.
type Update struct {
	State
	Err error `json:"-"`
}

// Listener receives updates. Listeners are invoked synchronously in publish
// order and must not block or call back into the hub.
type Listener func(Update)

// Hub fans counter changes out to every subscribed UI surface so that
// independently-mounted components render the same numbers.
type Hub struct {
	mu     sync.Mutex
	state  State
	nextID int
	subs   map[int]Listener
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{subs: make(map[int]Listener)}
}

// Subscribe registers a listener and returns its unsubscribe handle. The
// current state is delivered immediately so a freshly-mounted surface does
// not render stale zeros.
func (h *Hub) Subscribe(fn Listener) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	current := Update{State: h.state}
	h.mu.Unlock()

	fn(current)

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Current returns the last published state.
func (h *Hub) Current() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// PublishCart merges new cart counters into the state and notifies all
// subscribers.
func (h *Hub) PublishCart(count int, total float64, err error) {
	h.mu.Lock()
	h.state.CartCount = count
	h.state.CartTotal = total
	h.dispatchLocked(err)
	h.mu.Unlock()
}

// PublishWishlist merges a new wishlist count into the state and notifies
// all subscribers.
func (h *Hub) PublishWishlist(count int, err error) {
	h.mu.Lock()
	h.state.WishlistCount = count
	h.dispatchLocked(err)
	h.mu.Unlock()
}

func (h *Hub) dispatchLocked(err error) {
	update := Update{State: h.state, Err: err}
	for _, fn := range h.subs {
		fn(update)
	}
}
