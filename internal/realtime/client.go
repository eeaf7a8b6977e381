// AngelaMos | 2026
// client.go

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	// userID is guarded by hub.mu.
	userID string
}

func newClient(h *Hub, conn *websocket.Conn, buffer int) *client {
	if buffer <= 0 {
		buffer = 16
	}
	return &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// enqueue drops the frame when the client is not keeping up. Frames only
// say that something changed, so a later one supersedes a dropped one.
func (c *client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
	})
}

func (c *client) readPump(ctx context.Context) {
	cfg := c.hub.cfg

	if cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(cfg.MaxMessageSize)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived,
			) && !errors.Is(err, websocket.ErrCloseSent) {
				slog.DebugContext(ctx, "websocket read failed", "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		if msg.Event == eventUserConnect && msg.Token != "" {
			if userID := c.hub.verify(ctx, msg.Token); userID != "" {
				c.hub.identify(ctx, c, userID)
			}
		}
	}
}

func (c *client) writePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(cfg.PongWait * 9 / 10)

	defer func() {
		ticker.Stop()
		_ = c.conn.Close() //nolint:errcheck
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.WriteControl( //nolint:errcheck
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(cfg.WriteWait),
			)
			return
		}
	}
}
