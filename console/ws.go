package console

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/a2alab/agentbridge/logging"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// WatchHandler upgrades HTTP requests to WebSocket watch sessions.
type WatchHandler struct {
	hub      *Hub
	log      logging.Logger
	upgrader websocket.Upgrader
}

// NewWatchHandler creates a handler publishing from the given hub.
func NewWatchHandler(hub *Hub, log logging.Logger) *WatchHandler {
	if log == nil {
		log = logging.NoOp{}
	}
	return &WatchHandler{
		hub: hub,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handle serves GET /watch?conversation_id=<id>. The socket is write-only
// from the watcher's point of view; anything the client sends is discarded.
func (w *WatchHandler) Handle(c echo.Context) error {
	conversationID := c.QueryParam("conversation_id")
	if conversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation_id is required")
	}

	ws, err := w.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		w.log.Warn("websocket upgrade failed", "error", err)
		return err
	}

	sub := w.hub.Subscribe(conversationID)

	go w.writePump(ws, sub)
	go w.readPump(ws, sub)

	return nil
}

// readPump drains the socket so close frames and pongs are processed; watch
// sessions carry no client commands.
func (w *WatchHandler) readPump(ws *websocket.Conn, sub *Subscriber) {
	defer func() {
		w.hub.Unsubscribe(sub)
		ws.Close()
	}()

	ws.SetReadLimit(512)
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.log.Debug("watch socket closed", "subscriber", sub.ID, "error", err)
			}
			return
		}
	}
}

func (w *WatchHandler) writePump(ws *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case data, ok := <-sub.C:
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
