// Package notifications delivers coordinator events to websocket clients.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"lobby/internal/models"
	"lobby/internal/observability"

	"github.com/gofiber/websocket/v2"
)

// DefaultMaxConns caps concurrent connections when the hub is built with a
// zero limit.
const DefaultMaxConns = 10000

// ErrConnectionLimit is returned by Register when the hub is full.
var ErrConnectionLimit = errors.New("server connection limit reached")

// Hub maps connection ids to clients. It never calls back into the
// coordinator while holding its own lock.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	maxConns int
	closed   bool

	onDisconnect func(connID string)
	logger       *observability.WSLogger
}

// NewHub creates a hub that accepts up to maxConns connections.
func NewHub(maxConns int) *Hub {
	if maxConns <= 0 {
		maxConns = DefaultMaxConns
	}
	h := &Hub{
		clients:  make(map[string]*Client),
		maxConns: maxConns,
	}
	h.logger = observability.NewWSLogger(h.Name())
	return h
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "chat hub" }

// OnDisconnect sets the callback run once for every unregistered client.
func (h *Hub) OnDisconnect(fn func(connID string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDisconnect = fn
}

// Register adds a client for connID. conn may be nil in tests.
func (h *Hub) Register(connID string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errors.New("hub is shut down")
	}
	if len(h.clients) >= h.maxConns {
		return nil, ErrConnectionLimit
	}
	if _, exists := h.clients[connID]; exists {
		return nil, errors.New("connection id already registered")
	}

	client := NewClient(h, conn, connID)
	h.clients[connID] = client
	observability.WebSocketConnectionsTotal.Inc()
	h.logger.LogConnect(context.Background(), connID)
	return client, nil
}

// UnregisterClient removes client and fires the disconnect callback once.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.ID]
	removed := ok && current == client
	if removed {
		delete(h.clients, client.ID)
	}
	onDisconnect := h.onDisconnect
	h.mu.Unlock()

	if !removed {
		return
	}
	client.Close()
	observability.WebSocketConnectionsTotal.Dec()
	h.logger.LogDisconnect(context.Background(), client.ID, "unregistered")
	if onDisconnect != nil {
		onDisconnect(client.ID)
	}
}

// Client returns the client registered under connID.
func (h *Hub) Client(connID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	return c, ok
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Deliver encodes event once and queues it for every listed connection.
// Unknown ids are skipped.
func (h *Hub) Deliver(event models.Event, connIDs ...string) {
	if len(connIDs) == 0 {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.LogError(context.Background(), "", err, event.Type)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range connIDs {
		if c, ok := h.clients[id]; ok {
			c.TrySend(data)
		}
	}
}

// Kick closes connID after delay so queued events still reach the peer.
func (h *Hub) Kick(connID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		c, ok := h.Client(connID)
		if !ok {
			return
		}
		h.logger.LogLifecycle(context.Background(), "kick", map[string]interface{}{"conn_id": connID})
		if c.Conn == nil {
			h.UnregisterClient(c)
			return
		}
		c.Close()
	})
}

// Shutdown closes every client. The write pumps send close frames and the
// read pumps unregister their clients.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
	h.logger.LogLifecycle(ctx, "shutdown", map[string]interface{}{"clients": len(clients)})
	return nil
}
