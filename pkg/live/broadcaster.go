// Package live pushes layout change notifications to connected editor
// clients over WebSocket.
package live

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Event is one notification frame sent to clients.
type Event struct {
	Type      string         `json:"type"`
	Project   string         `json:"project"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp int64          `json:"timestamp"`
	Seq       int64          `json:"seq"`
}

type client struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Broadcaster fans events out to every connected client. Clients are
// write-only from the server's point of view; inbound frames are drained
// and dropped.
type Broadcaster struct {
	upgrader websocket.Upgrader
	logger   zerolog.Logger
	seq      atomic.Int64

	mu      sync.RWMutex
	clients map[string]*client
}

// NewBroadcaster creates a broadcaster with no connected clients.
func NewBroadcaster(logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // editor runs on a different origin in development
			},
		},
		logger:  logger.With().Str("component", "live_broadcaster").Logger(),
		clients: map[string]*client{},
	}
}

// HandleWS upgrades an HTTP request and keeps the connection registered
// until the peer goes away.
func (b *Broadcaster) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	id, _ := gonanoid.New()
	c := &client{id: id, conn: conn}

	b.mu.Lock()
	b.clients[id] = c
	b.mu.Unlock()
	b.logger.Debug().Str("client", id).Msg("Client connected")

	go b.drain(c)
}

// drain reads and discards inbound frames until the connection dies, then
// unregisters the client.
func (b *Broadcaster) drain(c *client) {
	defer func() {
		b.mu.Lock()
		delete(b.clients, c.id)
		b.mu.Unlock()
		c.conn.Close()
		b.logger.Debug().Str("client", c.id).Msg("Client disconnected")
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast sends an event to every connected client. A client that fails
// to accept the write is dropped.
func (b *Broadcaster) Broadcast(eventType, project string, payload map[string]any) {
	event := Event{
		Type:      eventType,
		Project:   project,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
		Seq:       b.seq.Add(1),
	}
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error().Err(err).Str("event", eventType).Msg("Failed to marshal event")
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	failed := 0
	for _, c := range clients {
		if err := c.send(data); err != nil {
			failed++
			b.mu.Lock()
			delete(b.clients, c.id)
			b.mu.Unlock()
			c.conn.Close()
		}
	}
	if failed > 0 {
		b.logger.Warn().Int("failed", failed).Str("event", eventType).Msg("Dropped unresponsive clients")
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, c := range b.clients {
		c.conn.Close()
		delete(b.clients, id)
	}
}
