// Package stream defines the typed events produced by background sessions
// (PTY read loops, filesystem watch callbacks) and the Emitter sink they are
// pushed through. The package is deliberately transport-agnostic: the hub
// wraps events in wire messages, tests consume them from channels.
package stream

// Type distinguishes the kind of event carried by an Event.
type Type string

const (
	// Output carries raw bytes read from a PTY.
	Output Type = "output"
	// Exit is the terminal event of a PTY session. It is emitted exactly
	// once, after the session has been removed from its registry.
	Exit Type = "exit"
	// Error reports an irrecoverable read failure (PTY) or a watch backend
	// error (watches survive it).
	Error Type = "error"
	// Created reports a new file appearing under a watched directory.
	Created Type = "created"
	// Changed reports a modified file together with its full contents.
	Changed Type = "changed"
	// Removed reports a file disappearing from a watched directory.
	Removed Type = "removed"
)

// Event is a single notification from a session's background context.
// Session is the numeric ID the producing manager registered the session
// under; PTY and watch managers allocate from independent ID spaces, so an
// Event is only meaningful together with the manager it came from.
type Event struct {
	Session uint32 `json:"session"`
	Type    Type   `json:"type"`
	Data    []byte `json:"data,omitempty"`
	Path    string `json:"path,omitempty"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
}

// Emitter is the sink a background context pushes events through. Emit may
// block (backpressure), so it must never be called while a registry lock is
// held.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(ev Event) { f(ev) }

// ChannelEmitter is a buffered channel-backed Emitter used by tests and by
// consumers that want to drain events from their own goroutine.
type ChannelEmitter struct {
	ch chan Event
}

// NewChannelEmitter returns a ChannelEmitter with the given buffer capacity.
func NewChannelEmitter(capacity int) *ChannelEmitter {
	return &ChannelEmitter{ch: make(chan Event, capacity)}
}

func (e *ChannelEmitter) Emit(ev Event) { e.ch <- ev }

// Events returns the receive side of the emitter.
func (e *ChannelEmitter) Events() <-chan Event { return e.ch }
