package models

import (
	"fmt"
	"sort"
	"time"
)

// GuestOwnerID is the shared bucket for all non-authenticated visitors.
const GuestOwnerID = "anonymous"

// LineItem represents one cart entry. Two line items occupy the same slot
// iff their ItemID and variant key are equal.
type LineItem struct {
	ItemID      string  `json:"item_id" db:"item_id"`
	Color       string  `json:"color" db:"color"`
	Storage     string  `json:"storage" db:"storage"`
	UnitPrice   float64 `json:"price" db:"price"`
	Quantity    int     `json:"quantity" db:"quantity"`
	DisplayName string  `json:"name,omitempty" db:"name"`
	ImageRef    string  `json:"image,omitempty" db:"image"`
}

// SlotKey returns the identity of the cart slot this item occupies.
func (li LineItem) SlotKey() string {
	return SlotKey(li.ItemID, li.Color, li.Storage)
}

// SlotKey builds a slot key from an item id and its variant dimensions.
// Color and storage default to empty strings for products without variants.
func SlotKey(itemID, color, storage string) string {
	return fmt.Sprintf("%s|%s|%s", itemID, color, storage)
}

// Subtotal returns price times quantity for this line item.
func (li LineItem) Subtotal() float64 {
	return li.UnitPrice * float64(li.Quantity)
}

// Cart holds the line items of one owner, keyed by slot.
type Cart struct {
	OwnerID string              `json:"owner_id"`
	Items   map[string]LineItem `json:"items"`
}

// NewCart returns an empty cart for the given owner.
func NewCart(ownerID string) *Cart {
	return &Cart{
		OwnerID: ownerID,
		Items:   make(map[string]LineItem),
	}
}

// AddQuantity merges qty into the slot for (itemID, color, storage). An
// existing slot keeps its stored unit price so units already in the cart do
// not silently change price; a new slot is inserted at the given price.
func (c *Cart) AddQuantity(itemID string, price float64, qty int, color, storage string) LineItem {
	key := SlotKey(itemID, color, storage)
	if existing, ok := c.Items[key]; ok {
		existing.Quantity += qty
		c.Items[key] = existing
		return existing
	}
	item := LineItem{
		ItemID:    itemID,
		Color:     color,
		Storage:   storage,
		UnitPrice: price,
		Quantity:  qty,
	}
	c.Items[key] = item
	return item
}

// SetQuantity sets an existing slot's quantity to an absolute value. A
// quantity of zero or less removes the slot; a stored quantity is never
// zero. An absent slot is left untouched: items enter the cart only through
// AddQuantity, which captures the unit price.
func (c *Cart) SetQuantity(itemID string, qty int, color, storage string) (LineItem, bool) {
	key := SlotKey(itemID, color, storage)
	existing, ok := c.Items[key]
	if qty <= 0 {
		delete(c.Items, key)
		return existing, ok
	}
	if !ok {
		return LineItem{}, false
	}
	existing.Quantity = qty
	c.Items[key] = existing
	return existing, true
}

// Count returns the sum of quantities over all slots. Recomputed on every
// call, never cached.
func (c *Cart) Count() int {
	var n int
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Total returns the sum of price times quantity over all slots.
func (c *Cart) Total() float64 {
	var total float64
	for _, item := range c.Items {
		total += item.Subtotal()
	}
	return total
}

// Clone returns a deep copy of the cart.
func (c *Cart) Clone() *Cart {
	out := NewCart(c.OwnerID)
	for key, item := range c.Items {
		out.Items[key] = item
	}
	return out
}

// SortedItems returns the line items ordered by slot key for stable display.
func (c *Cart) SortedItems() []LineItem {
	keys := make([]string, 0, len(c.Items))
	for key := range c.Items {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	items := make([]LineItem, 0, len(keys))
	for _, key := range keys {
		items = append(items, c.Items[key])
	}
	return items
}

// Wishlist holds the saved item ids of one owner. There is no variant or
// quantity dimension; membership is the only state.
type Wishlist struct {
	OwnerID string              `json:"owner_id"`
	Items   map[string]struct{} `json:"-"`
}

// NewWishlist returns an empty wishlist for the given owner.
func NewWishlist(ownerID string) *Wishlist {
	return &Wishlist{
		OwnerID: ownerID,
		Items:   make(map[string]struct{}),
	}
}

// Add inserts itemID into the set. Returns false if it was already present.
func (w *Wishlist) Add(itemID string) bool {
	if _, ok := w.Items[itemID]; ok {
		return false
	}
	w.Items[itemID] = struct{}{}
	return true
}

// Remove deletes itemID from the set. Returns false if it was absent.
func (w *Wishlist) Remove(itemID string) bool {
	if _, ok := w.Items[itemID]; !ok {
		return false
	}
	delete(w.Items, itemID)
	return true
}

// Contains reports whether itemID is in the set.
func (w *Wishlist) Contains(itemID string) bool {
	_, ok := w.Items[itemID]
	return ok
}

// Count returns the cardinality of the set.
func (w *Wishlist) Count() int {
	return len(w.Items)
}

// Clone returns a deep copy of the wishlist.
func (w *Wishlist) Clone() *Wishlist {
	out := NewWishlist(w.OwnerID)
	for id := range w.Items {
		out.Items[id] = struct{}{}
	}
	return out
}

// SortedIDs returns the item ids in lexical order for stable display.
func (w *Wishlist) SortedIDs() []string {
	ids := make([]string, 0, len(w.Items))
	for id := range w.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CartState is the wire shape of an owner's cart as returned by the store
// backend.
type CartState struct {
	Items []LineItem `json:"items"`
	Total float64    `json:"total"`
}

// User represents a registered storefront account.
type User struct {
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Product represents a catalog product in the store backend.
type Product struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Price     float64   `db:"price" json:"price"`
	Image     string    `db:"image" json:"image,omitempty"`
	Category  string    `db:"category" json:"category,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
