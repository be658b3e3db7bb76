package room

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 256
)

// connection wraps one client's WebSocket in a read/write pump pair: a
// buffered send channel decouples the broadcaster from a slow client,
// and the channel overflowing (rather than blocking the room lock)
// closes the socket.
type connection struct {
	conn   *websocket.Conn
	send   chan []byte
	userID string
	logger zerolog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

func newConnection(conn *websocket.Conn, userID string, logger zerolog.Logger) *connection {
	return &connection{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		userID: userID,
		logger: logger.With().Str("userId", userID).Logger(),
		closed: make(chan struct{}),
	}
}

// enqueue attempts a non-blocking send; a full buffer means the client is
// too slow to keep up and the connection is closed rather than stalling
// the room's broadcast loop. The send channel itself is never closed —
// closed signals teardown instead — so a broadcaster racing close can
// never panic on a send.
func (c *connection) enqueue(payload []byte) {
	select {
	case <-c.closed:
		return
	default:
	}
	select {
	case c.send <- payload:
	case <-c.closed:
	default:
		c.logger.Warn().Msg("send buffer full, closing connection")
		c.close()
	}
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// closeWithCode sends a close control frame with the given code/reason
// before tearing the connection down (1000 normal, 1008 missing params,
// 1011 superseded/internal).
func (c *connection) closeWithCode(code int, reason string) {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	c.close()
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Error().Err(err).Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

// readPump delivers decoded frames to handle until the connection closes
// or a read error/unexpected close occurs. It owns connection teardown.
func (c *connection) readPump(handle func(raw []byte)) {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error().Err(err).Msg("websocket read error")
			}
			return
		}
		handle(raw)
	}
}
