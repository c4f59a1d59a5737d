package notifications

import (
	"context"
	"sync"
	"time"

	"lobby/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Deadline for flushing one outbound event frame.
	writeWait = 10 * time.Second

	// A connection that sends no pong within this window is treated as gone,
	// and the coordinator disconnects its session.
	pongWait = 60 * time.Second

	// Keepalive ping interval; must stay below pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Largest inbound event frame. Attachments travel as descriptors, so
	// chat frames stay small.
	maxMessageSize = 65536

	// Outbound events queued per connection before TrySend starts dropping.
	sendBufferSize = 256
)

var dropNotice = []byte(`{"type":"messages_dropped","payload":{"reason":"buffer_full"}}`)

// WSHub owns clients and is told when one goes away.
type WSHub interface {
	UnregisterClient(c *Client)
	Name() string
}

// Client is one coordinator connection and its queue of encoded events.
type Client struct {
	Hub WSHub

	// ID is the connection id the coordinator knows this client by.
	ID string

	// The websocket connection. Nil in tests.
	Conn *websocket.Conn

	// Encoded events waiting for WritePump.
	Send chan []byte

	// IncomingHandler decodes and dispatches each inbound event frame.
	IncomingHandler func(*Client, []byte)

	closeOnce sync.Once
}

// NewClient wraps conn under the coordinator connection id.
func NewClient(hub WSHub, conn *websocket.Conn, id string) *Client {
	return &Client{
		Hub:  hub,
		ID:   id,
		Conn: conn,
		Send: make(chan []byte, sendBufferSize),
	}
}

// Close ends the connection after WritePump flushes what is already queued,
// which is how a ban kick lands after its notice. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// ReadPump feeds inbound event frames to IncomingHandler until the socket
// fails or closes, then unregisters the client so the session is torn down.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { _ = c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	logger := observability.NewWSLogger(c.Hub.Name())
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.LogError(context.Background(), c.ID, err, "read")
			}
			break
		}

		if c.IncomingHandler != nil {
			c.IncomingHandler(c, message)
		}
	}
}

// WritePump writes queued events and keepalive pings until Close.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Closed by Close or a kick.
				_ = c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues an encoded event without blocking. The coordinator calls it
// while holding its lock. A full queue drops the event and tries to queue a
// messages_dropped notice instead.
func (c *Client) TrySend(message []byte) {
	defer func() {
		if r := recover(); r != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "closed").Inc()
		}
	}()

	select {
	case c.Send <- message:
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "full").Inc()
		observability.GlobalLogger.Warn("client buffer full, dropped message",
			"conn_id", c.ID,
			"hub", c.Hub.Name(),
		)

		select {
		case c.Send <- dropNotice:
		default:
			// The notice did not fit either.
		}
	}
}
