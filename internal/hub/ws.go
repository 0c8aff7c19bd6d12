package hub

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Frame is what clients send over the websocket to manage subscriptions.
type Frame struct {
	Action  string `json:"action"`
	OrderID string `json:"order_id"`
}

// Handler upgrades HTTP requests to websocket hub sessions. The hub holds no
// cross-connection memory: after a reconnect the client re-subscribes to
// every order it cares about.
func Handler(h *Hub) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error().Err(err).Msg("websocket upgrade failed")
			return
		}

		conn := h.NewConn()
		log.Debug().Str("conn_id", conn.ID()).Msg("hub connection opened")

		go writePump(ws, conn)
		readPump(ws, h, conn)
	}
}

func readPump(ws *websocket.Conn, h *Hub, conn *Conn) {
	defer func() {
		conn.Close()
		ws.Close()
		log.Debug().Str("conn_id", conn.ID()).Msg("hub connection closed")
	}()

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f Frame
		if err := ws.ReadJSON(&f); err != nil {
			return
		}
		if f.OrderID == "" {
			continue
		}

		switch f.Action {
		case "subscribe":
			h.Subscribe(conn, f.OrderID)
		case "unsubscribe":
			h.Unsubscribe(conn.Subscription(f.OrderID))
		}
	}
}

func writePump(ws *websocket.Conn, conn *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case ev, ok := <-conn.Events():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
