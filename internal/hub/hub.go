// Package hub is the command boundary between websocket clients and the
// session managers. Each client issues JSON commands (create_pty, write_pty,
// watch_directory, ...) and receives the event streams of the sessions it
// created, tagged with scope and session ID. A client's sessions are torn
// down when it disconnects.
package hub

import (
	"log/slog"
	"net/http"
	"sync"

	"nhooyr.io/websocket"

	"github.com/user/termpad/internal/db"
	"github.com/user/termpad/internal/profile"
	"github.com/user/termpad/internal/pty"
	"github.com/user/termpad/internal/watch"
)

type Hub struct {
	ptys     *pty.Manager
	watches  *watch.Manager
	history  *db.SessionLogRepo // optional
	profiles *profile.Store     // optional
	token    string

	mu      sync.RWMutex
	clients map[string]*Client
}

// New creates a Hub. history and profiles may be nil; the corresponding
// commands then degrade (no bookkeeping, watch_profile fails).
func New(token string, ptys *pty.Manager, watches *watch.Manager, history *db.SessionLogRepo, profiles *profile.Store) *Hub {
	return &Hub{
		ptys:     ptys,
		watches:  watches,
		history:  history,
		profiles: profiles,
		token:    token,
		clients:  make(map[string]*Client),
	}
}

// HandleWebSocket upgrades the connection and runs the client's read and
// write pumps until it disconnects or ctx is canceled.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" || token != h.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("websocket accept error", "error", err)
		return
	}

	client := newClient(conn, h)

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()
	slog.Info("client connected", "client", client.id, "total", h.ClientCount())

	ctx := r.Context()
	go client.writePump(ctx)
	client.readPump(ctx)
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	slog.Info("client disconnected", "client", c.id, "total", h.ClientCount())
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
