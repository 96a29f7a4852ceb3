package hub

import (
	"github.com/user/termpad/internal/profile"
	"github.com/user/termpad/internal/stream"
)

// ClientMessage is a command from the websocket client. Type selects the
// operation; the other fields are read as that operation needs them. Data is
// base64 on the wire (encoding/json's []byte representation).
type ClientMessage struct {
	Type       string   `json:"type"`
	ID         uint32   `json:"id,omitempty"`
	Rows       uint16   `json:"rows,omitempty"`
	Cols       uint16   `json:"cols,omitempty"`
	Cwd        string   `json:"cwd,omitempty"`
	Data       []byte   `json:"data,omitempty"`
	Dir        string   `json:"dir,omitempty"`
	Extensions []string `json:"extensions,omitempty"`
	Profile    string   `json:"profile,omitempty"`
}

// SessionMessage acknowledges create_pty / watch_directory with the new ID.
type SessionMessage struct {
	Type string `json:"type"`
	ID   uint32 `json:"id"`
}

// CwdMessage answers get_pty_cwd.
type CwdMessage struct {
	Type string `json:"type"`
	ID   uint32 `json:"id"`
	Path string `json:"path"`
}

// ErrorMessage reports a failed command.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ProfilesMessage answers list_profiles.
type ProfilesMessage struct {
	Type string             `json:"type"`
	List []*profile.Profile `json:"list"`
}

// EventMessage wraps a stream event for the wire. Scope names the producing
// manager ("pty" or "watch") since their session ID spaces are independent.
type EventMessage struct {
	Type    stream.Type `json:"type"`
	Scope   string      `json:"scope"`
	Session uint32      `json:"session"`
	Data    []byte      `json:"data,omitempty"`
	Path    string      `json:"path,omitempty"`
	Content string      `json:"content,omitempty"`
	Message string      `json:"message,omitempty"`
}

const (
	scopePTY   = "pty"
	scopeWatch = "watch"
)

func eventMessage(scope string, ev stream.Event) EventMessage {
	return EventMessage{
		Type:    ev.Type,
		Scope:   scope,
		Session: ev.Session,
		Data:    ev.Data,
		Path:    ev.Path,
		Content: ev.Content,
		Message: ev.Message,
	}
}
