package engine

import (
	"context"
	"fmt"
	"testing"

	"storefront/internal/hub"
	"storefront/internal/models"
	"storefront/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWishlistEngine(t *testing.T, store *fakeStore) *WishlistEngine {
	t.Helper()
	return NewWishlistEngine(newTestResolver(t), store, hub.New())
}

func TestWishlistAddConfirms(t *testing.T) {
	store := newFakeStore()
	e := newTestWishlistEngine(t, store)

	m := e.AddItem(context.Background(), "B2")
	require.NoError(t, m.Wait(context.Background()))

	snap := e.GetSnapshot()
	assert.Equal(t, []string{"B2"}, snap.ItemIDs)
	assert.Equal(t, 1, snap.Count)
}

func TestWishlistDuplicateAddStillHitsBackend(t *testing.T) {
	store := newFakeStore()
	store.seedWishlist(models.GuestOwnerID, "B2")

	e := newTestWishlistEngine(t, store)
	require.NoError(t, e.Refresh(context.Background()))

	m := e.AddItem(context.Background(), "B2")
	require.NoError(t, m.Wait(context.Background()))

	// Local no-op, but the server remains the final authority.
	assert.Equal(t, []string{"B2"}, store.toggles)
	assert.Equal(t, 1, e.GetSnapshot().Count)
}

func TestWishlistRemoveAbsentIsNoOp(t *testing.T) {
	store := newFakeStore()
	e := newTestWishlistEngine(t, store)

	m := e.RemoveItem(context.Background(), "NOPE")
	require.NoError(t, m.Wait(context.Background()))

	assert.Equal(t, 0, e.GetSnapshot().Count)
	assert.Equal(t, []string{"NOPE"}, store.toggles)
}

func TestWishlistRollsBackOnFailure(t *testing.T) {
	store := newFakeStore()
	store.seedWishlist(models.GuestOwnerID, "B2")

	e := newTestWishlistEngine(t, store)
	require.NoError(t, e.Refresh(context.Background()))

	store.toggleErr = fmt.Errorf("%w: connection refused", remote.ErrRemoteUnavailable)

	m := e.RemoveItem(context.Background(), "B2")
	require.ErrorIs(t, m.Wait(context.Background()), remote.ErrRemoteUnavailable)

	snap := e.GetSnapshot()
	assert.Equal(t, []string{"B2"}, snap.ItemIDs)
}

func TestWishlistOptimisticStateVisibleBeforeConfirm(t *testing.T) {
	store := newFakeStore()
	e := newTestWishlistEngine(t, store)
	store.gate = make(chan struct{})

	m := e.AddItem(context.Background(), "C3")

	// Gated toggle; the membership change is visible before AddItem
	// returned.
	assert.Equal(t, 1, e.GetSnapshot().Count)

	store.gate <- struct{}{}
	require.NoError(t, m.Wait(context.Background()))
	assert.Equal(t, []string{"C3"}, e.GetSnapshot().ItemIDs)
}

func TestBackToBackTogglesSettleInCallOrder(t *testing.T) {
	store := newFakeStore()
	e := newTestWishlistEngine(t, store)
	store.gate = make(chan struct{}, 2)

	m1 := e.AddItem(context.Background(), "B2")
	m2 := e.RemoveItem(context.Background(), "B2")
	assert.Equal(t, 0, e.GetSnapshot().Count)

	store.gate <- struct{}{}
	store.gate <- struct{}{}

	require.NoError(t, m1.Wait(context.Background()))
	require.NoError(t, m2.Wait(context.Background()))

	// The remove was requested last, so the server ends without the item.
	ids, err := store.FetchWishlist(context.Background(), models.GuestOwnerID)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, 0, e.GetSnapshot().Count)
}

func TestWishlistRefreshReplacesStateWholesale(t *testing.T) {
	store := newFakeStore()
	store.seedWishlist(models.GuestOwnerID, "A1", "B2")

	e := newTestWishlistEngine(t, store)
	require.NoError(t, e.Refresh(context.Background()))
	require.Equal(t, 2, e.GetSnapshot().Count)

	store.seedWishlist(models.GuestOwnerID, "C3")
	require.NoError(t, e.Refresh(context.Background()))

	assert.Equal(t, []string{"C3"}, e.GetSnapshot().ItemIDs)
}

func TestWishlistEmptyItemIDRejected(t *testing.T) {
	e := newTestWishlistEngine(t, newFakeStore())
	assert.Error(t, e.AddItem(context.Background(), "").Wait(context.Background()))
}
