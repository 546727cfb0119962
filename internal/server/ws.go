package server

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// HandleWebSocket upgrades an HTTP request to a WebSocket connection and
// registers the resulting client with the hub. The connection starts
// unauthenticated; it binds to a username via an in-band auth frame.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.origins.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(conn, h, r.RemoteAddr)

	// The hub launches the pump goroutines on registration.
	h.register <- client
}
