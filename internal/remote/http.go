package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// HTTPClient talks to the store backend's REST API. Transport failures and
// 5xx responses map to ErrRemoteUnavailable, 4xx responses to ErrRejected.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewHTTPClient creates a store client against baseURL. The transport's own
// failure signal is the only deadline; no extra timeout is imposed here.
func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPClient{
		baseURL: baseURL,
		http:    httpClient,
		logger:  util.GetLogger(),
	}
}

// FetchCart retrieves the authoritative cart for the owner.
func (c *HTTPClient) FetchCart(ctx context.Context, ownerID string) (*models.CartState, error) {
	ctx, span := util.StartSpan(ctx, "StoreClient.FetchCart")
	defer span.End()

	start := time.Now()
	defer func() {
		util.RemoteRequestLatency.WithLabelValues("fetch_cart").Observe(time.Since(start).Seconds())
	}()

	var state models.CartState
	if err := c.doJSON(ctx, http.MethodGet, c.cartURL(ownerID), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// FetchWishlist retrieves the authoritative wishlist for the owner.
func (c *HTTPClient) FetchWishlist(ctx context.Context, ownerID string) ([]string, error) {
	ctx, span := util.StartSpan(ctx, "StoreClient.FetchWishlist")
	defer span.End()

	start := time.Now()
	defer func() {
		util.RemoteRequestLatency.WithLabelValues("fetch_wishlist").Observe(time.Since(start).Seconds())
	}()

	var resp struct {
		ItemIDs []string `json:"item_ids"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.wishlistURL(ownerID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.ItemIDs, nil
}

// UpsertCartItem sets a slot to an absolute quantity; zero deletes it.
func (c *HTTPClient) UpsertCartItem(ctx context.Context, ownerID string, item models.LineItem) error {
	ctx, span := util.StartSpan(ctx, "StoreClient.UpsertCartItem")
	defer span.End()

	start := time.Now()
	defer func() {
		util.RemoteRequestLatency.WithLabelValues("upsert_cart_item").Observe(time.Since(start).Seconds())
	}()

	return c.doJSON(ctx, http.MethodPut, c.cartURL(ownerID)+"/items", item, nil)
}

// ToggleWishlistItem adds or removes an item id from the wishlist.
func (c *HTTPClient) ToggleWishlistItem(ctx context.Context, ownerID, itemID string, add bool) error {
	ctx, span := util.StartSpan(ctx, "StoreClient.ToggleWishlistItem")
	defer span.End()

	start := time.Now()
	defer func() {
		util.RemoteRequestLatency.WithLabelValues("toggle_wishlist_item").Observe(time.Since(start).Seconds())
	}()

	body := struct {
		ItemID string `json:"item_id"`
		Add    bool   `json:"add"`
	}{ItemID: itemID, Add: add}

	return c.doJSON(ctx, http.MethodPost, c.wishlistURL(ownerID)+"/items", body, nil)
}

func (c *HTTPClient) cartURL(ownerID string) string {
	return fmt.Sprintf("%s/api/cart/%s", c.baseURL, url.PathEscape(ownerID))
}

func (c *HTTPClient) wishlistURL(ownerID string) string {
	return fmt.Sprintf("%s/api/wishlist/%s", c.baseURL, url.PathEscape(ownerID))
}

// doJSON issues one request and decodes the response into out when non-nil.
func (c *HTTPClient) doJSON(ctx context.Context, method, rawURL string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Store backend unreachable",
			zap.String("method", method),
			zap.String("url", rawURL),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrRemoteUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, bytes.TrimSpace(detail))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", ErrRemoteUnavailable, err)
	}
	return nil
}
