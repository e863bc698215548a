package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/supply-sim/internal/engine"
)

const (
	wsPushInterval = time.Second
	wsWriteWait    = 5 * time.Second
	maxWSClients   = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browser origin is already vetted by the CORS layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsHub pushes a full simulation snapshot to every connected client once
// per push interval.
type wsHub struct {
	mgr *engine.Manager

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newWSHub(mgr *engine.Manager) *wsHub {
	return &wsHub{
		mgr:     mgr,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// run broadcasts snapshots forever. Dead connections are dropped on write
// failure.
func (h *wsHub) run() {
	ticker := time.NewTicker(wsPushInterval)
	defer ticker.Stop()

	for range ticker.C {
		h.mu.Lock()
		if len(h.clients) == 0 {
			h.mu.Unlock()
			continue
		}
		snap := h.mgr.Snapshot()
		for conn := range h.clients {
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(snap); err != nil {
				slog.Debug("ws client dropped", "remote", conn.RemoteAddr(), "err", err)
				conn.Close()
				delete(h.clients, conn)
			}
		}
		h.mu.Unlock()
	}
}

// handleWS upgrades the connection and registers the client.
func (h *wsHub) handleWS(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	full := len(h.clients) >= maxWSClients
	h.mu.Unlock()
	if full {
		http.Error(w, "too many observers", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	slog.Info("ws observer connected", "remote", conn.RemoteAddr())

	// Push the current state immediately so the client does not wait a
	// full interval for its first frame.
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(h.mgr.Snapshot()); err != nil {
		h.drop(conn)
		return
	}

	// Reader loop exists only to notice the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

func (h *wsHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
		slog.Info("ws observer disconnected", "remote", conn.RemoteAddr())
	}
	h.mu.Unlock()
}
