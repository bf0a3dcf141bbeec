package api

import (
	"net/http"
	"time"

	"storefront/internal/hub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// offerLatest enqueues u without blocking. On a full buffer it evicts the
// oldest entry, so the last value sent is always the newest one published.
func offerLatest(ch chan hub.Update, u hub.Update) {
	for {
		select {
		case ch <- u:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// streamCounters pushes every hub update to the connected UI surface. The
// header badge and the cart page subscribe here and always render the same
// numbers.
func (h *Handler) streamCounters(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Coalescing buffer: a slow reader drops intermediate states, never
	// the latest one.
	updates := make(chan hub.Update, 16)
	unsubscribe := session.Hub.Subscribe(func(u hub.Update) {
		offerLatest(updates, u)
	})
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case u := <-updates:
			payload := gin.H{
				"cart_count":     u.CartCount,
				"cart_total":     u.CartTotal,
				"wishlist_count": u.WishlistCount,
			}
			if u.Err != nil {
				payload["error"] = u.Err.Error()
			}

			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(payload); err != nil {
				h.logger.Debug("Counter stream closed",
					zap.String("session_id", session.ID),
					zap.Error(err))
				return
			}
		}
	}
}
