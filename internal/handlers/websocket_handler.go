package handlers

import (
	"log"
	"net/http"

	"aimint-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is enforced by the CORS layer in front.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHandler upgrades subscribers for request status pushes.
type WebSocketHandler struct {
	push *services.PushService
}

// NewWebSocketHandler creates the handler.
func NewWebSocketHandler(push *services.PushService) *WebSocketHandler {
	return &WebSocketHandler{push: push}
}

// SubscribeHandler GET /api/v1/ws?token=<jwt>
// Browsers cannot set Authorization headers on websocket upgrades, so the
// JWT arrives as a query parameter.
func (h *WebSocketHandler) SubscribeHandler(c *gin.Context) {
	claims, err := ValidateJWTToken(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid token"})
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ [WS] Upgrade failed for %s: %v", claims.Address, err)
		return
	}

	sub := h.push.Subscribe(claims.Address, conn)

	// Reader loop only to detect close; all traffic is server -> client.
	go func() {
		defer h.push.Unsubscribe(sub)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
