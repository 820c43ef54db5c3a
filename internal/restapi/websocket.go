package restapi

import (
	"net/http"

	"github.com/gorilla/websocket"

	"etfservice/internal/fanout"
)

// HandleWebSocket upgrades the connection and registers a new fanout subscriber.
func (h *Handlers) HandleWebSocket(hub *fanout.Hub) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(req *http.Request) bool {
			return isOriginAllowed(req.Header.Get("Origin"), h.cfg, req.Host)
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Error("websocket upgrade failed", "error", err)
			return
		}
		fanout.NewClient(hub, conn)
	}
}
