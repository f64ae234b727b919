package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/hypercore-one/bridge-monitor/internal/services"
)

// WebSocketHandler upgrades connections onto the status hub.
type WebSocketHandler struct {
	hub      *services.StatusHub
	auth     *services.AuthService
	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

// NewWebSocketHandler creates the handler. Origin checking is left to
// the CORS layer; the credential arrives as a query parameter because
// browser WebSocket clients cannot set an Authorization header.
func NewWebSocketHandler(hub *services.StatusHub, auth *services.AuthService, logger *logrus.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Stream subscribes the client to fleet summaries.
// GET /ws/status?token=<api token or session JWT>
func (h *WebSocketHandler) Stream(c *gin.Context) {
	credential := c.Query("token")
	if credential == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "unauthorized",
			"message": "Missing token query parameter",
			"code":    "MISSING_TOKEN",
		})
		return
	}
	user, err := h.auth.ResolveCredential(c.Request.Context(), credential)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "unauthorized",
			"message": "Invalid or expired token",
			"code":    "INVALID_TOKEN",
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	client := h.hub.Serve(conn)
	h.logger.WithFields(logrus.Fields{
		"client_id": client.ID,
		"user_id":   user.ID,
	}).Debug("websocket stream opened")
}
