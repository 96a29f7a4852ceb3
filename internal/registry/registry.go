// Package registry provides the synchronized session table shared by the PTY
// and watch managers. Each manager owns its own Registry, so the two ID
// spaces are independent. The registry is the single synchronization point
// for session lifecycle: lookups and removals are short critical sections
// over the map, and no I/O or event emission happens under the lock.
package registry

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Registry maps numeric session IDs to live session resources. IDs are
// allocated from a separate monotonic counter starting at 1 and are never
// reused, even after removal.
type Registry[S any] struct {
	nextID atomic.Uint32

	mu       sync.Mutex
	sessions map[uint32]S
}

// New returns an empty registry.
func New[S any]() *Registry[S] {
	return &Registry[S]{sessions: make(map[uint32]S)}
}

// NextID returns the next unused session ID. Safe under concurrent callers;
// results are strictly increasing.
func (r *Registry[S]) NextID() uint32 {
	return r.nextID.Add(1)
}

// Insert stores a session under id. It fails only if the id is already
// present, which cannot happen for IDs obtained from NextID.
func (r *Registry[S]) Insert(id uint32, sess S) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		return fmt.Errorf("registry: session %d already present", id)
	}
	r.sessions[id] = sess
	return nil
}

// Get returns the session registered under id. A missing id is not an
// error: callers treat "no such session" as a benign no-op.
func (r *Registry[S]) Get(id uint32) (S, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	return sess, ok
}

// Remove atomically takes the session out of the map, transferring ownership
// of its resources to the caller. A second removal of the same id misses,
// so racing teardown paths (kill vs. read-loop self-termination) are safe.
func (r *Registry[S]) Remove(id uint32) (S, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	return sess, ok
}

// Drain removes and returns every registered session. Used at shutdown.
func (r *Registry[S]) Drain() []S {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]S, 0, len(r.sessions))
	for id, sess := range r.sessions {
		all = append(all, sess)
		delete(r.sessions, id)
	}
	return all
}

// Len reports the number of registered sessions.
func (r *Registry[S]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
