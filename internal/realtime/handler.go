package realtime

import (
	"context"
	"log"
	"net/http"

	"prompt-mastare/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		if config.AppConfig.Environment == "development" {
			return true
		}
		return r.Header.Get("Origin") == config.AppConfig.FrontendAddress
	},
}

type Handler struct {
	dispatcher *Dispatcher
}

func NewHandler(dispatcher *Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

// Serve upgrades the request and runs the read pump. Identity comes from the
// auth middleware which validated the JWT before the upgrade.
func (h *Handler) Serve(c *gin.Context) {
	ident := Identity{
		UserID:   c.GetUint64("user_id"),
		UserName: c.GetString("user_name"),
		TeamID:   c.GetUint64("team_id"),
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	conn := NewWSConn(ws)
	go h.readPump(conn, ws, ident)
}

// readPump delivers frames to the dispatcher in receipt order. The transport
// reporting closure or error is what reaps the connection.
func (h *Handler) readPump(conn *WSConn, ws *websocket.Conn, ident Identity) {
	defer func() {
		h.dispatcher.HandleClose(context.Background(), conn)
		conn.Close()
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("connection %s closed unexpectedly: %v", conn.ID(), err)
			}
			return
		}
		h.dispatcher.HandleMessage(context.Background(), conn, ident, raw)
	}
}
