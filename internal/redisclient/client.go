package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/identity"
	"storefront/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/cart_upsert.lua
var cartUpsertScript string

type Client struct {
	rdb          *redis.Client
	upsertScript *redis.Script
}

// NewClient creates a new Redis client with the cart upsert script loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:          rdb,
		upsertScript: redis.NewScript(cartUpsertScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func cartKey(ownerID string) string {
	return fmt.Sprintf("cart:%s", ownerID)
}

func wishlistKey(ownerID string) string {
	return fmt.Sprintf("wishlist:%s", ownerID)
}

func credentialKey(sessionID string) string {
	return fmt.Sprintf("session:%s:credential", sessionID)
}

// GetCart returns every line item stored in the owner's cart bucket.
func (c *Client) GetCart(ctx context.Context, ownerID string) ([]models.LineItem, error) {
	fields, err := c.rdb.HGetAll(ctx, cartKey(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cart bucket: %w", err)
	}

	items := make([]models.LineItem, 0, len(fields))
	for field, raw := range fields {
		var item models.LineItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, fmt.Errorf("corrupt cart slot %s: %w", field, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// UpsertCartItem atomically sets one slot to an absolute quantity using the
// embedded Lua script. Quantity zero deletes the slot; an existing slot
// keeps its stored unit price.
func (c *Client) UpsertCartItem(ctx context.Context, ownerID string, item models.LineItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal line item: %w", err)
	}

	_, err = c.upsertScript.Run(ctx, c.rdb,
		[]string{cartKey(ownerID)},
		item.SlotKey(), item.Quantity, string(payload)).Result()
	if err != nil {
		return fmt.Errorf("cart upsert script failed: %w", err)
	}
	return nil
}

// GetWishlist returns the owner's saved item ids.
func (c *Client) GetWishlist(ctx context.Context, ownerID string) ([]string, error) {
	ids, err := c.rdb.SMembers(ctx, wishlistKey(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read wishlist bucket: %w", err)
	}
	return ids, nil
}

// ToggleWishlistItem adds or removes an item id. Set semantics make both
// directions idempotent.
func (c *Client) ToggleWishlistItem(ctx context.Context, ownerID, itemID string, add bool) error {
	var err error
	if add {
		err = c.rdb.SAdd(ctx, wishlistKey(ownerID), itemID).Err()
	} else {
		err = c.rdb.SRem(ctx, wishlistKey(ownerID), itemID).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to toggle wishlist item: %w", err)
	}
	return nil
}

// Load returns the persisted credential for the session, or (nil, nil) when
// none is stored. Implements identity.CredentialStore.
func (c *Client) Load(ctx context.Context, sessionID string) (*identity.Credential, error) {
	raw, err := c.rdb.Get(ctx, credentialKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	var cred identity.Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return nil, fmt.Errorf("corrupt credential for session %s: %w", sessionID, err)
	}
	return &cred, nil
}

// Save persists the credential for the session until explicit logout.
func (c *Client) Save(ctx context.Context, sessionID string, cred identity.Credential) error {
	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}
	return c.rdb.Set(ctx, credentialKey(sessionID), payload, 0).Err()
}

// Delete removes the persisted credential for the session.
func (c *Client) Delete(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, credentialKey(sessionID)).Err()
}
