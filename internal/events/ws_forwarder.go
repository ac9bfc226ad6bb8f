package events

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketForwarder fans events out to connected websocket clients,
// one goroutine-safe writer per connection. It implements Forwarder so
// a future transport layer (out of scope here) can register it with a
// Bus without the bus knowing anything about HTTP.
type WebSocketForwarder struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	log   *slog.Logger
}

// NewWebSocketForwarder creates an empty forwarder ready to accept
// connections via Add.
func NewWebSocketForwarder(logger *slog.Logger) *WebSocketForwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketForwarder{conns: make(map[*websocket.Conn]struct{}), log: logger}
}

// Add registers a client connection to receive forwarded events.
func (w *WebSocketForwarder) Add(c *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conns[c] = struct{}{}
}

// Remove unregisters a client connection, e.g. on disconnect.
func (w *WebSocketForwarder) Remove(c *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.conns, c)
}

// Forward writes the event as JSON to every connected client. A write
// failure removes that connection rather than blocking other clients
// or the publisher.
func (w *WebSocketForwarder) Forward(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		w.log.Error("marshal event for forwarding", "error", err)
		return
	}

	w.mu.Lock()
	targets := make([]*websocket.Conn, 0, len(w.conns))
	for c := range w.conns {
		targets = append(targets, c)
	}
	w.mu.Unlock()

	for _, c := range targets {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			w.log.Warn("drop websocket subscriber", "error", err)
			w.Remove(c)
		}
	}
}
