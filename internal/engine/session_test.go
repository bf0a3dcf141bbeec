package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"storefront/internal/hub"
	"storefront/internal/identity"
	"storefront/internal/models"
	"storefront/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, store *fakeStore, creds identity.CredentialStore) *Session {
	t.Helper()
	s := NewSession(context.Background(), "test-session", store, creds, testSecret, nil)
	s.Start(context.Background())
	return s
}

func TestSessionStartsAsGuest(t *testing.T) {
	store := newFakeStore()
	store.seedCart(models.GuestOwnerID,
		models.LineItem{ItemID: "A1", UnitPrice: 1000, Quantity: 1})

	s := newTestSession(t, store, identity.NewMemoryCredentialStore())

	snap := s.Snapshot()
	assert.True(t, snap.Guest)
	assert.Equal(t, models.GuestOwnerID, snap.OwnerID)
	assert.Equal(t, 1, snap.Cart.Count)
}

func TestLoginSwitchesBucketsWithoutMerging(t *testing.T) {
	store := newFakeStore()
	store.seedCart(models.GuestOwnerID,
		models.LineItem{ItemID: "A1", UnitPrice: 1000, Quantity: 1})
	store.seedCart("alice",
		models.LineItem{ItemID: "B2", UnitPrice: 500, Quantity: 1},
		models.LineItem{ItemID: "B3", UnitPrice: 700, Quantity: 2})
	store.seedWishlist("alice", "C3")

	s := newTestSession(t, store, identity.NewMemoryCredentialStore())
	require.NoError(t, s.Login(context.Background(), "alice", makeToken(t, "alice", time.Hour)))

	snap := s.Snapshot()
	assert.False(t, snap.Guest)
	assert.Equal(t, "alice", snap.OwnerID)
	assert.Equal(t, 3, snap.Cart.Count)
	assert.Equal(t, []string{"C3"}, snap.Wishlist.ItemIDs)

	// The guest bucket survives untouched on the backend.
	assert.Equal(t, 1, store.cartQuantity(models.GuestOwnerID, "A1", "", ""))
}

func TestLoginRejectsMismatchedToken(t *testing.T) {
	s := newTestSession(t, newFakeStore(), identity.NewMemoryCredentialStore())

	err := s.Login(context.Background(), "alice", makeToken(t, "bob", time.Hour))
	require.Error(t, err)
	assert.True(t, s.Snapshot().Guest)
}

func TestLogoutRevertsToGuestBucket(t *testing.T) {
	store := newFakeStore()
	store.seedCart(models.GuestOwnerID,
		models.LineItem{ItemID: "A1", UnitPrice: 1000, Quantity: 1})
	store.seedCart("alice",
		models.LineItem{ItemID: "B2", UnitPrice: 500, Quantity: 1})

	s := newTestSession(t, store, identity.NewMemoryCredentialStore())
	require.NoError(t, s.Login(context.Background(), "alice", makeToken(t, "alice", time.Hour)))

	s.Logout(context.Background())

	snap := s.Snapshot()
	assert.True(t, snap.Guest)
	assert.Equal(t, models.GuestOwnerID, snap.OwnerID)
	require.Len(t, snap.Cart.Items, 1)
	assert.Equal(t, "A1", snap.Cart.Items[0].ItemID)
}

func TestLogoutDiscardsInFlightMutation(t *testing.T) {
	store := newFakeStore()
	creds := identity.NewMemoryCredentialStore()

	s := newTestSession(t, store, creds)
	require.NoError(t, s.Login(context.Background(), "alice", makeToken(t, "alice", time.Hour)))

	store.gate = make(chan struct{})
	m := s.AddToCart(context.Background(), "B2", 500, 1, "", "")

	// Identity changes while the upsert is parked on the gate.
	s.Logout(context.Background())
	store.gate <- struct{}{}

	require.ErrorIs(t, m.Wait(context.Background()), remote.ErrIdentityStale)

	snap := s.Snapshot()
	assert.True(t, snap.Guest)
	assert.Empty(t, snap.Cart.Items)
}

func TestHubCountersTrackSessionState(t *testing.T) {
	store := newFakeStore()
	s := newTestSession(t, store, identity.NewMemoryCredentialStore())

	var mu sync.Mutex
	var last hub.State
	unsubscribe := s.Hub.Subscribe(func(u hub.Update) {
		mu.Lock()
		last = u.State
		mu.Unlock()
	})
	defer unsubscribe()

	require.NoError(t, s.AddToCart(context.Background(), "A1", 1000, 2, "", "").Wait(context.Background()))
	require.NoError(t, s.ToggleWishlist(context.Background(), "B2", true).Wait(context.Background()))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last.CartCount == 2 && last.CartTotal == 2000 && last.WishlistCount == 1
	}, waitFor, tick)
}

func TestManagerCreateAndGet(t *testing.T) {
	sm := NewSessionManager(newFakeStore(), identity.NewMemoryCredentialStore(), testSecret, nil, time.Hour)

	s := sm.Create(context.Background())
	require.NotEmpty(t, s.ID)
	assert.Equal(t, 1, sm.Len())

	got, ok := sm.Get(context.Background(), s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = sm.Get(context.Background(), "no-such-session")
	assert.False(t, ok)
}

func TestManagerRestoresSessionFromCredentials(t *testing.T) {
	store := newFakeStore()
	store.seedCart("alice",
		models.LineItem{ItemID: "B2", UnitPrice: 500, Quantity: 1})
	creds := identity.NewMemoryCredentialStore()

	sm := NewSessionManager(store, creds, testSecret, nil, time.Hour)

	s := sm.Create(context.Background())
	require.NoError(t, s.Login(context.Background(), "alice", makeToken(t, "alice", time.Hour)))

	// Simulate the session aging out of memory while credentials persist.
	sm.Remove(s.ID)
	require.Equal(t, 0, sm.Len())

	restored, ok := sm.Get(context.Background(), s.ID)
	require.True(t, ok)
	snap := restored.Snapshot()
	assert.Equal(t, "alice", snap.OwnerID)
	assert.Equal(t, 1, snap.Cart.Count)
}

func TestManagerExpiresIdleSessions(t *testing.T) {
	sm := NewSessionManager(newFakeStore(), identity.NewMemoryCredentialStore(), testSecret, nil, time.Minute)

	sm.Create(context.Background())
	kept := sm.Create(context.Background())

	sm.mu.Lock()
	for id, ms := range sm.sessions {
		if id != kept.ID {
			ms.lastSeen = ms.lastSeen.Add(-2 * time.Minute)
		}
	}
	sm.mu.Unlock()

	sm.expireIdle(time.Now())

	assert.Equal(t, 1, sm.Len())
	_, ok := sm.Get(context.Background(), kept.ID)
	assert.True(t, ok)
}
