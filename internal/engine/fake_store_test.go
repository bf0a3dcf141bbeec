package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"storefront/internal/identity"
	"storefront/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// fakeStore is an in-memory stand-in for the store backend. Error fields
// inject failures; the gate channel, when set, blocks mutations so tests
// can observe optimistic state and interleave concurrent calls.
type fakeStore struct {
	mu        sync.Mutex
	carts     map[string]map[string]models.LineItem
	wishlists map[string]map[string]struct{}

	fetchErr  error
	upsertErr error
	toggleErr error

	gate chan struct{}

	upserts []models.LineItem
	toggles []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		carts:     make(map[string]map[string]models.LineItem),
		wishlists: make(map[string]map[string]struct{}),
	}
}

func (f *fakeStore) seedCart(ownerID string, items ...models.LineItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bucket := make(map[string]models.LineItem)
	for _, item := range items {
		bucket[item.SlotKey()] = item
	}
	f.carts[ownerID] = bucket
}

func (f *fakeStore) seedWishlist(ownerID string, ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bucket := make(map[string]struct{})
	for _, id := range ids {
		bucket[id] = struct{}{}
	}
	f.wishlists[ownerID] = bucket
}

func (f *fakeStore) cartQuantity(ownerID, itemID, color, storage string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.carts[ownerID][models.SlotKey(itemID, color, storage)].Quantity
}

func (f *fakeStore) FetchCart(_ context.Context, ownerID string) (*models.CartState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}

	state := &models.CartState{Items: []models.LineItem{}}
	for _, item := range f.carts[ownerID] {
		state.Items = append(state.Items, item)
		state.Total += item.Subtotal()
	}
	return state, nil
}

func (f *fakeStore) FetchWishlist(_ context.Context, ownerID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}

	ids := make([]string, 0, len(f.wishlists[ownerID]))
	for id := range f.wishlists[ownerID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) UpsertCartItem(_ context.Context, ownerID string, item models.LineItem) error {
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, item)

	if f.upsertErr != nil {
		return f.upsertErr
	}

	bucket := f.carts[ownerID]
	if bucket == nil {
		bucket = make(map[string]models.LineItem)
		f.carts[ownerID] = bucket
	}

	key := item.SlotKey()
	if item.Quantity <= 0 {
		delete(bucket, key)
		return nil
	}
	if existing, ok := bucket[key]; ok {
		existing.Quantity = item.Quantity
		bucket[key] = existing
	} else {
		bucket[key] = item
	}
	return nil
}

func (f *fakeStore) ToggleWishlistItem(_ context.Context, ownerID, itemID string, add bool) error {
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles = append(f.toggles, itemID)

	if f.toggleErr != nil {
		return f.toggleErr
	}

	bucket := f.wishlists[ownerID]
	if bucket == nil {
		bucket = make(map[string]struct{})
		f.wishlists[ownerID] = bucket
	}
	if add {
		bucket[itemID] = struct{}{}
	} else {
		delete(bucket, itemID)
	}
	return nil
}

func newTestResolver(t *testing.T) *identity.Resolver {
	t.Helper()
	return identity.NewResolver(context.Background(), "test-session",
		identity.NewMemoryCredentialStore(), testSecret)
}

func makeToken(t *testing.T, userID string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}
