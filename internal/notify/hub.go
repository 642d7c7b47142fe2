package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go-carlost-detector/internal/logger"

	"github.com/gorilla/websocket"
)

// Hub broadcasts messages to websocket subscribers
type Hub struct {
	upgrader     websocket.Upgrader
	writeTimeout time.Duration

	mu      sync.Mutex
	clients map[*websocket.Conn]*sync.Mutex
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		writeTimeout: 5 * time.Second,
		clients:      make(map[*websocket.Conn]*sync.Mutex),
	}
}

// ServeHTTP upgrades the request and registers the subscriber until it
// disconnects
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	count := len(h.clients)
	h.mu.Unlock()
	logger.WithField("subscribers", count).Info("Websocket subscriber connected")

	go h.readLoop(conn)
}

// readLoop discards inbound messages and unregisters the connection once the
// peer goes away
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.remove(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()
	if ok {
		conn.Close()
		logger.Debug("Websocket subscriber disconnected")
	}
}

// Subscribers returns the number of connected subscribers
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish sends msg to every subscriber. Subscribers that cannot be written
// to are dropped.
func (h *Hub) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.Lock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for c, l := range h.clients {
		conns[c] = l
	}
	h.mu.Unlock()

	deadline := time.Now().Add(h.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for conn, writeMu := range conns {
		writeMu.Lock()
		if err := conn.SetWriteDeadline(deadline); err != nil {
			logger.WithError(err).Debug("Failed to set websocket write deadline")
		}
		err := conn.WriteMessage(websocket.TextMessage, payload)
		writeMu.Unlock()
		if err != nil {
			logger.WithError(err).Warn("Dropping websocket subscriber")
			h.remove(conn)
		}
	}
	return nil
}

// Name returns the notifier name
func (h *Hub) Name() string {
	return "websocket"
}

// Close disconnects every subscriber
func (h *Hub) Close() error {
	h.mu.Lock()
	conns := h.clients
	h.clients = make(map[*websocket.Conn]*sync.Mutex)
	h.mu.Unlock()

	for conn := range conns {
		err := conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		if err != nil {
			logger.WithError(err).Debug("Failed to send websocket close frame")
		}
		conn.Close()
	}
	return nil
}
