package models

import "time"

// Event types
const (
	EventTypeCartItemUpserted = "CART_ITEM_UPSERTED"
	EventTypeCartItemRemoved  = "CART_ITEM_REMOVED"
	EventTypeCartRolledBack   = "CART_ROLLED_BACK"
	EventTypeWishlistToggled  = "WISHLIST_TOGGLED"
	EventTypeSessionLogin     = "SESSION_LOGIN"
	EventTypeSessionLogout    = "SESSION_LOGOUT"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CartItemUpsertedEvent published when a cart mutation is confirmed by the
// store backend.
type CartItemUpsertedEvent struct {
	BaseEvent
	OwnerID   string  `json:"owner_id"`
	SessionID string  `json:"session_id"`
	ItemID    string  `json:"item_id"`
	Color     string  `json:"color"`
	Storage   string  `json:"storage"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	CartCount int     `json:"cart_count"`
	CartTotal float64 `json:"cart_total"`
}

// CartItemRemovedEvent published when a slot is removed from the cart.
type CartItemRemovedEvent struct {
	BaseEvent
	OwnerID   string `json:"owner_id"`
	SessionID string `json:"session_id"`
	ItemID    string `json:"item_id"`
	Color     string `json:"color"`
	Storage   string `json:"storage"`
}

// CartRolledBackEvent published when an optimistic mutation is reverted.
type CartRolledBackEvent struct {
	BaseEvent
	OwnerID   string `json:"owner_id"`
	SessionID string `json:"session_id"`
	ItemID    string `json:"item_id"`
	Reason    string `json:"reason"`
}

// WishlistToggledEvent published when a wishlist toggle is confirmed.
type WishlistToggledEvent struct {
	BaseEvent
	OwnerID   string `json:"owner_id"`
	SessionID string `json:"session_id"`
	ItemID    string `json:"item_id"`
	Added     bool   `json:"added"`
	Count     int    `json:"count"`
}

// SessionLoginEvent published when a guest session authenticates.
type SessionLoginEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// SessionLogoutEvent published when a session reverts to guest.
type SessionLogoutEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// ActivityRecord is the persisted form of a session event, written by the
// store backend's activity worker.
type ActivityRecord struct {
	ID        int64     `db:"id"`
	EventID   string    `db:"event_id"`
	EventType string    `db:"event_type"`
	OwnerID   string    `db:"owner_id"`
	SessionID string    `db:"session_id"`
	ItemID    string    `db:"item_id"`
	Payload   string    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}
