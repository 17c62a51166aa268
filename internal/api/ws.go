package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// eventsHandler upgrades to a websocket and streams project changes until
// the client goes away.
func eventsHandler(cfg ServerConfig) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || isAllowedOrigin(origin) {
				return true
			}
			for _, o := range cfg.AllowedOrigins {
				if o == origin {
					return true
				}
			}
			return false
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Changes == nil {
			WriteError(w, http.StatusServiceUnavailable, "change feed not configured", "UNAVAILABLE")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			cfg.Logger.Debug("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		sub := cfg.Changes.Subscribe()
		defer sub.Close()

		// The read loop only handles control frames and notices disconnects.
		done := make(chan struct{})
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()

		for {
			select {
			case <-done:
				return
			case <-r.Context().Done():
				return
			case change, ok := <-sub.C:
				if !ok {
					conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
					conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
					return
				}
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(change); err != nil {
					return
				}
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
