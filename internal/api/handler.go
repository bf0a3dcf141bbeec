package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/engine"
	"storefront/internal/remote"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler exposes the session engines over HTTP. Every UI surface goes
// through these routes; none of them hold state of their own.
type Handler struct {
	sessions *engine.SessionManager
	logger   *zap.Logger
}

// NewHandler creates a new gateway handler
func NewHandler(sessions *engine.SessionManager) *Handler {
	return &Handler{
		sessions: sessions,
		logger:   util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/session", h.createSession)
		api.GET("/session/:sid", h.getSnapshot)
		api.GET("/session/:sid/ws", h.streamCounters)

		api.POST("/session/:sid/login", h.login)
		api.POST("/session/:sid/logout", h.logout)

		api.POST("/session/:sid/cart/items", h.addCartItem)
		api.PUT("/session/:sid/cart/items", h.updateCartItem)
		api.DELETE("/session/:sid/cart/items/:item_id", h.removeCartItem)

		api.POST("/session/:sid/wishlist/items", h.addWishlistItem)
		api.DELETE("/session/:sid/wishlist/items/:item_id", h.removeWishlistItem)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createSession creates a fresh guest session
func (h *Handler) createSession(c *gin.Context) {
	session := h.sessions.Create(c.Request.Context())
	c.JSON(http.StatusCreated, session.Snapshot())
}

// getSnapshot returns the combined cart and wishlist snapshot
func (h *Handler) getSnapshot(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

// login authenticates the session against a token issued by the store
// backend, then serves the refreshed state of the user's buckets.
func (h *Handler) login(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		UserID string `json:"user_id" binding:"required"`
		Token  string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := session.Login(c.Request.Context(), req.UserID, req.Token); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Login failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, session.Snapshot())
}

// logout reverts the session to guest; the zeroed snapshot is served
// without waiting for the guest bucket refresh.
func (h *Handler) logout(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	session.Logout(c.Request.Context())
	c.JSON(http.StatusOK, session.Snapshot())
}

// addCartItem merges quantity into a slot (additive)
func (h *Handler) addCartItem(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		ItemID   string  `json:"item_id" binding:"required"`
		Price    float64 `json:"price"`
		Quantity int     `json:"quantity"`
		Color    string  `json:"color"`
		Storage  string  `json:"storage"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	m := session.AddToCart(c.Request.Context(), req.ItemID, req.Price, req.Quantity, req.Color, req.Storage)
	h.resolveMutation(c, session, m)
}

// updateCartItem sets a slot to an absolute quantity (the cart page
// stepper); zero removes it
func (h *Handler) updateCartItem(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		ItemID   string `json:"item_id" binding:"required"`
		Quantity int    `json:"quantity"`
		Color    string `json:"color"`
		Storage  string `json:"storage"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	m := session.UpdateCartQuantity(c.Request.Context(), req.ItemID, req.Color, req.Storage, req.Quantity)
	h.resolveMutation(c, session, m)
}

// removeCartItem removes one slot
func (h *Handler) removeCartItem(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	m := session.RemoveFromCart(c.Request.Context(),
		c.Param("item_id"), c.Query("color"), c.Query("storage"))
	h.resolveMutation(c, session, m)
}

// addWishlistItem inserts an item id into the wishlist
func (h *Handler) addWishlistItem(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		ItemID string `json:"item_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	m := session.ToggleWishlist(c.Request.Context(), req.ItemID, true)
	h.resolveMutation(c, session, m)
}

// removeWishlistItem deletes an item id from the wishlist
func (h *Handler) removeWishlistItem(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	m := session.ToggleWishlist(c.Request.Context(), c.Param("item_id"), false)
	h.resolveMutation(c, session, m)
}

func (h *Handler) session(c *gin.Context) (*engine.Session, bool) {
	session, ok := h.sessions.Get(c.Request.Context(), c.Param("sid"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown session"})
		return nil, false
	}
	return session, true
}

// resolveMutation waits for the optimistic protocol to settle and maps the
// outcome onto HTTP: rolled-back mutations keep their taxonomy, discarded
// ones report the identity conflict.
func (h *Handler) resolveMutation(c *gin.Context, session *engine.Session, m *engine.Mutation) {
	if err := m.Wait(c.Request.Context()); err != nil {
		switch {
		case errors.Is(err, remote.ErrIdentityStale):
			c.JSON(http.StatusConflict, gin.H{"error": "Session identity changed"})
		case errors.Is(err, remote.ErrRemoteUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store backend unavailable, try again"})
		case errors.Is(err, remote.ErrRejected):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Request rejected", "details": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, session.Snapshot())
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
