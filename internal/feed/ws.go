package feed

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hikmah-systems/isnad/internal/ratelimit"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWebSocket returns an HTTP handler that upgrades connections to
// WebSocket and streams trust events to the client. Client-to-server
// messages are only read to detect disconnects and are rate limited.
func HandleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		sub := hub.Subscribe()
		defer sub.Close()

		// Reader: drain client messages so pings and close frames are
		// processed; disconnect chatty clients.
		done := make(chan struct{})
		go func() {
			defer close(done)
			limiter := ratelimit.New(60, time.Minute)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
						log.Printf("websocket read error: %v", err)
					}
					return
				}
				if !limiter.Allow() {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			case e := <-sub.C:
				if err := conn.WriteJSON(e); err != nil {
					log.Printf("websocket write error: %v", err)
					return
				}
			}
		}
	}
}
