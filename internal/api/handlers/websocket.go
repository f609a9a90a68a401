package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/arena2api/arena2api/internal/profile"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ExtensionWS serves GET /v1/extension/ws: a persistent push channel. Every
// text message is one push payload, acked with the same body as the HTTP
// push endpoint; a malformed message is acked with an error and the
// connection stays up.
func (h *Handler) ExtensionWS(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("extension websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	for {
		_, msg, readErr := conn.ReadMessage()
		if readErr != nil {
			if websocket.IsUnexpectedCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(readErr).Debug("extension websocket closed")
			}
			return
		}
		var data profile.PushData
		if err = json.Unmarshal(msg, &data); err != nil {
			if err = conn.WriteJSON(gin.H{"status": "error", "message": "Invalid JSON"}); err != nil {
				return
			}
			continue
		}
		if err = conn.WriteJSON(h.applyPush(data)); err != nil {
			return
		}
	}
}
