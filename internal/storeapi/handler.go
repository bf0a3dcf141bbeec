package storeapi

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler serves the store backend REST API: the four operations the
// session engine depends on, plus catalog and auth.
type Handler struct {
	store    *store.Store
	redis    *redisclient.Client
	secret   []byte
	tokenTTL time.Duration
	logger   *zap.Logger
}

// NewHandler creates a new store backend handler
func NewHandler(st *store.Store, redis *redisclient.Client, secret []byte, tokenTTL time.Duration) *Handler {
	return &Handler{
		store:    st,
		redis:    redis,
		secret:   secret,
		tokenTTL: tokenTTL,
		logger:   util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/products", h.listProducts)
		api.GET("/products/:id", h.getProduct)
		api.GET("/categories", h.listCategories)
		api.GET("/search", h.searchProducts)

		api.GET("/cart/:owner", h.getCart)
		api.PUT("/cart/:owner/items", h.upsertCartItem)

		api.GET("/wishlist/:owner", h.getWishlist)
		api.POST("/wishlist/:owner/items", h.toggleWishlistItem)

		api.POST("/auth/register", h.register)
		api.POST("/auth/login", h.login)
		api.POST("/auth/guest", h.guestToken)
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// listProducts returns the catalog, optionally filtered by category
func (h *Handler) listProducts(c *gin.Context) {
	var (
		products []models.Product
		err      error
	)
	if category := c.Query("category"); category != "" {
		products, err = h.store.GetProductsByCategory(c.Request.Context(), category)
	} else {
		products, err = h.store.GetProducts(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.store.GetProductByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrProductNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "Product not found"})
		return
	}

	c.JSON(http.StatusOK, product)
}

// listCategories returns the distinct categories present in the catalog
func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.store.GetCategories(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load categories"})
		return
	}
	if categories == nil {
		categories = []string{}
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// searchProducts matches the query as a case-insensitive substring of the
// product name or category.
func (h *Handler) searchProducts(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}

	products, err := h.store.SearchProducts(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
		return
	}
	if products == nil {
		products = []models.Product{}
	}

	c.JSON(http.StatusOK, gin.H{"products": products, "query": query})
}

// getCart returns the owner's bucket with display fields re-derived from
// the catalog and the total computed server-side.
func (h *Handler) getCart(c *gin.Context) {
	ownerID := c.Param("owner")

	items, err := h.redis.GetCart(c.Request.Context(), ownerID)
	if err != nil {
		h.logger.Error("Failed to read cart bucket",
			zap.String("owner_id", ownerID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cart"})
		return
	}

	var total float64
	for i := range items {
		if items[i].DisplayName == "" {
			if product, perr := h.store.GetProductByID(c.Request.Context(), items[i].ItemID); perr == nil {
				items[i].DisplayName = product.Name
				items[i].ImageRef = product.Image
			}
		}
		total += items[i].Subtotal()
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].SlotKey() < items[j].SlotKey()
	})

	c.JSON(http.StatusOK, models.CartState{Items: items, Total: total})
}

// upsertCartItem sets one slot to an absolute quantity; zero deletes it.
// Unknown products are rejected so a stale product page cannot park dead
// items in the bucket.
func (h *Handler) upsertCartItem(c *gin.Context) {
	ownerID := c.Param("owner")

	var item models.LineItem
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if item.ItemID == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "item_id is required"})
		return
	}
	if item.Quantity < 0 {
		item.Quantity = 0
	}
	if item.UnitPrice < 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "price must be non-negative"})
		return
	}

	if item.Quantity > 0 {
		product, err := h.store.GetProductByID(c.Request.Context(), item.ItemID)
		if err != nil {
			if errors.Is(err, store.ErrProductNotFound) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Unknown product: " + item.ItemID})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate product"})
			return
		}
		item.DisplayName = product.Name
		item.ImageRef = product.Image
	}

	if err := h.redis.UpsertCartItem(c.Request.Context(), ownerID, item); err != nil {
		h.logger.Error("Cart upsert failed",
			zap.String("owner_id", ownerID),
			zap.String("item_id", item.ItemID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) getWishlist(c *gin.Context) {
	ownerID := c.Param("owner")

	ids, err := h.redis.GetWishlist(c.Request.Context(), ownerID)
	if err != nil {
		h.logger.Error("Failed to read wishlist bucket",
			zap.String("owner_id", ownerID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load wishlist"})
		return
	}

	sort.Strings(ids)
	c.JSON(http.StatusOK, gin.H{"item_ids": ids})
}

func (h *Handler) toggleWishlistItem(c *gin.Context) {
	ownerID := c.Param("owner")

	var req struct {
		ItemID string `json:"item_id" binding:"required"`
		Add    bool   `json:"add"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if req.Add {
		if _, err := h.store.GetProductByID(c.Request.Context(), req.ItemID); err != nil {
			if errors.Is(err, store.ErrProductNotFound) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Unknown product: " + req.ItemID})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate product"})
			return
		}
	}

	if err := h.redis.ToggleWishlistItem(c.Request.Context(), ownerID, req.ItemID, req.Add); err != nil {
		h.logger.Error("Wishlist toggle failed",
			zap.String("owner_id", ownerID),
			zap.String("item_id", req.ItemID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update wishlist"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
