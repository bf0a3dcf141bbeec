package remote

import (
	"context"
	"errors"

	"storefront/internal/models"
)

// Failure taxonomy surfaced to the engines. The engines match with
// errors.Is and never retry on their own.
var (
	// ErrRemoteUnavailable signals a transport failure or timeout. The
	// backend state is unknown, not empty; callers roll back optimistic
	// state and surface "try again".
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrRejected signals that the backend explicitly declined the
	// request, e.g. an unknown item. Rollback, no retry.
	ErrRejected = errors.New("remote store rejected request")

	// ErrIdentityStale signals that a mutation's result arrived after the
	// session identity changed. The result is discarded silently.
	ErrIdentityStale = errors.New("session identity changed")
)

// StoreClient is the engines' only dependency on the store backend. Each
// call is a single request/response pair keyed by owner; no ordering is
// guaranteed between concurrent calls.
type StoreClient interface {
	// FetchCart returns the authoritative cart for the owner.
	FetchCart(ctx context.Context, ownerID string) (*models.CartState, error)

	// FetchWishlist returns the authoritative wishlist item ids.
	FetchWishlist(ctx context.Context, ownerID string) ([]string, error)

	// UpsertCartItem sets a slot to an absolute quantity. Quantity zero
	// deletes the slot. The server is the arithmetic authority.
	UpsertCartItem(ctx context.Context, ownerID string, item models.LineItem) error

	// ToggleWishlistItem adds or removes an item id from the wishlist.
	ToggleWishlistItem(ctx context.Context, ownerID, itemID string, add bool) error
}
