package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 4096
)

var (
	errClientClosed = errors.New("connection closed")
	errQueueFull    = errors.New("send queue full")
)

// Frame is the wire envelope for every pushed event.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// client is a gorilla websocket connection with its own send queue.
// The read side only services control frames; the write pump owns all
// writes to the socket.
type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	log    *zap.Logger
}

func newClient(userID string, conn *websocket.Conn, queue int, log *zap.Logger) *client {
	return &client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, queue),
		done:   make(chan struct{}),
		log:    log,
	}
}

// Send enqueues a frame. A full queue means the peer is not keeping up;
// the connection is closed rather than blocking the caller.
func (c *client) Send(event string, payload any) error {
	b, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return errClientClosed
	default:
	}
	select {
	case c.send <- b:
		return nil
	default:
		c.log.Warn("ws: send queue full, closing", zap.String("user_id", c.userID))
		c.close()
		return errQueueFull
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *client) readPump() {
	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("ws: read error", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
		// Clients publish nothing over the socket; domain actions go
		// through the HTTP API.
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
