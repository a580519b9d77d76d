package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/kiko9987/itglobal/internal/publisher"
)

// WebSocketHandler upgrades dashboard clients to the push channel.
type WebSocketHandler struct {
	hub *publisher.Hub
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(hub *publisher.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// Connect upgrades the request to a websocket
// @Summary     Subscribe to dashboard updates
// @Description Websocket stream of snapshot_updated and data_updated events
// @Tags        dashboard
// @Success     101 "Switching protocols"
// @Failure     403 "Origin not allowed"
// @Router      /ws [get]
func (h *WebSocketHandler) Connect(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request)
}
