package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/user/termpad/internal/db"
	"github.com/user/termpad/internal/stream"
)

const (
	defaultRows = 24
	defaultCols = 80
)

// Client is one websocket connection. It owns the sessions it created:
// their events are forwarded to this connection only, and they are torn down
// when the connection goes away.
type Client struct {
	id        string
	conn      *websocket.Conn
	hub       *Hub
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// session ID -> history row, per manager
	mu      sync.Mutex
	ptys    map[uint32]int64
	watches map[uint32]int64
}

func newClient(conn *websocket.Conn, h *Hub) *Client {
	return &Client{
		id:      uuid.NewString(),
		conn:    conn,
		hub:     h,
		send:    make(chan []byte, 1024),
		done:    make(chan struct{}),
		ptys:    make(map[uint32]int64),
		watches: make(map[uint32]int64),
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer c.close()

	c.conn.SetReadLimit(1 << 20)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				slog.Debug("client read error", "client", c.id, "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("client invalid message", "client", c.id, "error", err)
			c.sendError("invalid message format")
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case msg := <-c.send:
			if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}

// close tears down everything this client owns. Killing a PTY makes its read
// loop emit a final Exit, but done is already closed by then so forward
// drops it instead of blocking.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.hub.removeClient(c)
		close(c.done)
		c.conn.Close(websocket.StatusNormalClosure, "")

		c.mu.Lock()
		ptys, watches := c.ptys, c.watches
		c.ptys = make(map[uint32]int64)
		c.watches = make(map[uint32]int64)
		c.mu.Unlock()

		for id, row := range ptys {
			_ = c.hub.ptys.Kill(id)
			c.endHistory(row)
		}
		for id, row := range watches {
			_ = c.hub.watches.Unwatch(id)
			c.endHistory(row)
		}
	})
}

func (c *Client) handle(ctx context.Context, msg ClientMessage) {
	switch msg.Type {
	case "create_pty":
		rows, cols := msg.Rows, msg.Cols
		if rows == 0 {
			rows = defaultRows
		}
		if cols == 0 {
			cols = defaultCols
		}
		em := stream.EmitterFunc(func(ev stream.Event) {
			if ev.Type == stream.Exit {
				c.sessionEnded(scopePTY, ev.Session)
			}
			c.forward(scopePTY, ev)
		})
		id, err := c.hub.ptys.Create(rows, cols, msg.Cwd, em)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		c.track(ctx, scopePTY, id, msg.Cwd)
		c.reply(SessionMessage{Type: "created_pty", ID: id})

	case "write_pty":
		if err := c.hub.ptys.Write(msg.ID, msg.Data); err != nil {
			c.sendError(err.Error())
		}

	case "resize_pty":
		if err := c.hub.ptys.Resize(msg.ID, msg.Rows, msg.Cols); err != nil {
			c.sendError(err.Error())
		}

	case "kill_pty":
		if err := c.hub.ptys.Kill(msg.ID); err != nil {
			c.sendError(err.Error())
			return
		}
		c.sessionEnded(scopePTY, msg.ID)

	case "get_pty_cwd":
		path, err := c.hub.ptys.Cwd(msg.ID)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		c.reply(CwdMessage{Type: "cwd", ID: msg.ID, Path: path})

	case "watch_directory":
		id, err := c.hub.watches.Watch(msg.Dir, msg.Extensions, c.watchEmitter())
		if err != nil {
			c.sendError(err.Error())
			return
		}
		c.track(ctx, scopeWatch, id, msg.Dir)
		c.reply(SessionMessage{Type: "watching", ID: id})

	case "watch_profile":
		if c.hub.profiles == nil {
			c.sendError("watch profiles are not configured")
			return
		}
		p := c.hub.profiles.Get(msg.Profile)
		if p == nil {
			c.sendError("unknown watch profile: " + msg.Profile)
			return
		}
		dir := p.ResolveDir()
		id, err := c.hub.watches.Watch(dir, p.Extensions, c.watchEmitter())
		if err != nil {
			c.sendError(err.Error())
			return
		}
		c.track(ctx, scopeWatch, id, dir)
		c.reply(SessionMessage{Type: "watching", ID: id})

	case "unwatch_directory":
		if err := c.hub.watches.Unwatch(msg.ID); err != nil {
			c.sendError(err.Error())
			return
		}
		c.sessionEnded(scopeWatch, msg.ID)

	case "list_profiles":
		if c.hub.profiles == nil {
			c.sendError("watch profiles are not configured")
			return
		}
		c.reply(ProfilesMessage{Type: "profiles", List: c.hub.profiles.List()})

	default:
		c.sendError("unknown command type: " + msg.Type)
	}
}

func (c *Client) watchEmitter() stream.Emitter {
	return stream.EmitterFunc(func(ev stream.Event) {
		c.forward(scopeWatch, ev)
	})
}

// forward pushes a session event to the connection, giving up once the
// client is gone so a producing read loop never blocks on a dead peer.
func (c *Client) forward(scope string, ev stream.Event) {
	data, err := json.Marshal(eventMessage(scope, ev))
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	}
}

func (c *Client) reply(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	}
}

func (c *Client) sendError(message string) {
	c.reply(ErrorMessage{Type: "error", Message: message})
}

// track records a started session in the client's ownership map and, when
// history is configured, in the session log.
func (c *Client) track(ctx context.Context, scope string, id uint32, target string) {
	var row int64
	if c.hub.history != nil {
		kind := db.KindPTY
		if scope == scopeWatch {
			kind = db.KindWatch
		}
		r, err := c.hub.history.Start(ctx, kind, id, target)
		if err != nil {
			slog.Warn("failed to record session start", "scope", scope, "session", id, "error", err)
		} else {
			row = r
		}
	}

	c.mu.Lock()
	if scope == scopeWatch {
		c.watches[id] = row
	} else {
		c.ptys[id] = row
	}
	c.mu.Unlock()
}

// sessionEnded drops the ownership entry and stamps the history row. Called
// for explicit kill/unwatch commands and for PTY self-termination (Exit).
func (c *Client) sessionEnded(scope string, id uint32) {
	c.mu.Lock()
	var row int64
	var ok bool
	if scope == scopeWatch {
		row, ok = c.watches[id]
		delete(c.watches, id)
	} else {
		row, ok = c.ptys[id]
		delete(c.ptys, id)
	}
	c.mu.Unlock()

	if ok {
		c.endHistory(row)
	}
}

func (c *Client) endHistory(row int64) {
	if c.hub.history == nil || row == 0 {
		return
	}
	if err := c.hub.history.End(context.Background(), row); err != nil {
		slog.Warn("failed to record session end", "row", row, "error", err)
	}
}
