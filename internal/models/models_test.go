package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddQuantityMergesSameSlot(t *testing.T) {
	cart := NewCart(GuestOwnerID)

	cart.AddQuantity("A1", 1000, 1, "black", "256GB")
	cart.AddQuantity("A1", 1000, 2, "black", "256GB")

	assert.Len(t, cart.Items, 1)
	item := cart.Items[SlotKey("A1", "black", "256GB")]
	assert.Equal(t, 3, item.Quantity)
}

func TestAddQuantityKeepsStoredPrice(t *testing.T) {
	cart := NewCart(GuestOwnerID)

	cart.AddQuantity("A1", 1000, 1, "", "")
	cart.AddQuantity("A1", 1200, 1, "", "")

	item := cart.Items[SlotKey("A1", "", "")]
	assert.Equal(t, 1000.0, item.UnitPrice)
	assert.Equal(t, 2, item.Quantity)
}

func TestVariantsOccupyDistinctSlots(t *testing.T) {
	cart := NewCart(GuestOwnerID)

	cart.AddQuantity("A1", 1000, 1, "black", "")
	cart.AddQuantity("A1", 1000, 1, "white", "")
	cart.AddQuantity("A1", 1000, 1, "black", "512GB")

	assert.Len(t, cart.Items, 3)
	assert.Equal(t, 3, cart.Count())
}

func TestSetQuantityIsAbsolute(t *testing.T) {
	cart := NewCart(GuestOwnerID)

	cart.AddQuantity("A1", 1000, 5, "", "")
	cart.SetQuantity("A1", 2, "", "")

	item := cart.Items[SlotKey("A1", "", "")]
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, 1000.0, item.UnitPrice)
}

func TestSetQuantityZeroRemovesSlot(t *testing.T) {
	cart := NewCart(GuestOwnerID)

	cart.AddQuantity("A1", 1000, 1, "", "")
	_, existed := cart.SetQuantity("A1", 0, "", "")

	assert.True(t, existed)
	assert.Empty(t, cart.Items)
	assert.Equal(t, 0, cart.Count())
	assert.Equal(t, 0.0, cart.Total())
}

func TestSetQuantityAbsentSlotIsNoOp(t *testing.T) {
	cart := NewCart(GuestOwnerID)

	// Items enter only through AddQuantity, which records the unit price;
	// setting a quantity on an unknown slot must not invent a free item.
	_, existed := cart.SetQuantity("A1", 3, "", "")

	assert.False(t, existed)
	assert.Empty(t, cart.Items)
}

func TestCountAndTotalDeriveFromItems(t *testing.T) {
	cart := NewCart(GuestOwnerID)

	cart.AddQuantity("A1", 1000, 2, "", "")
	cart.AddQuantity("B2", 500, 3, "", "")

	assert.Equal(t, 5, cart.Count())
	assert.Equal(t, 2*1000.0+3*500.0, cart.Total())

	cart.SetQuantity("B2", 1, "", "")
	assert.Equal(t, 3, cart.Count())
	assert.Equal(t, 2*1000.0+500.0, cart.Total())
}

func TestCartCloneIsIndependent(t *testing.T) {
	cart := NewCart(GuestOwnerID)
	cart.AddQuantity("A1", 1000, 1, "", "")

	clone := cart.Clone()
	clone.AddQuantity("A1", 1000, 1, "", "")

	assert.Equal(t, 1, cart.Count())
	assert.Equal(t, 2, clone.Count())
}

func TestWishlistAddIsIdempotent(t *testing.T) {
	list := NewWishlist(GuestOwnerID)

	assert.True(t, list.Add("A1"))
	assert.False(t, list.Add("A1"))
	assert.Equal(t, 1, list.Count())
}

func TestWishlistRemoveAbsentIsNoOp(t *testing.T) {
	list := NewWishlist(GuestOwnerID)

	assert.False(t, list.Remove("A1"))
	assert.Equal(t, 0, list.Count())

	list.Add("A1")
	assert.True(t, list.Remove("A1"))
	assert.Equal(t, 0, list.Count())
}

func TestSortedItemsStableOrder(t *testing.T) {
	cart := NewCart(GuestOwnerID)
	cart.AddQuantity("B2", 500, 1, "", "")
	cart.AddQuantity("A1", 1000, 1, "", "")

	items := cart.SortedItems()
	assert.Equal(t, "A1", items[0].ItemID)
	assert.Equal(t, "B2", items[1].ItemID)
}
