package websocket

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ghalamif/SafeDetector/internal/domain"
	"github.com/ghalamif/SafeDetector/internal/ports"
)

const writeTimeout = time.Second

// Hub broadcasts status batches, as JSON arrays, to every connected client.
// Clients that fail a write are dropped.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	closed  bool
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket_upgrade_failed", slog.Any("error", err))
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[conn] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("websocket_client_connected", slog.String("remote", conn.RemoteAddr().String()), slog.Int("clients", count))
	go h.readLoop(conn)
}

// readLoop discards client frames and unregisters the client once it goes away.
func (h *Hub) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.NextReader(); err != nil {
			h.remove(conn)
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		_ = conn.Close()
		h.logger.Info("websocket_client_disconnected", slog.Int("clients", count))
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Name() string { return "websocket" }

func (h *Hub) WriteBatch(statuses []domain.SafetyStatus) error {
	if len(statuses) == 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(statuses); err != nil {
			h.logger.Warn("websocket_write_failed", slog.String("remote", conn.RemoteAddr().String()), slog.Any("error", err))
			_ = conn.Close()
			delete(h.clients, conn)
		}
	}
	return nil
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for conn := range h.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeTimeout))
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(h.clients, conn)
	}
	h.closed = true
	return errors.Join(errs...)
}

var _ ports.Sink = (*Hub)(nil)
