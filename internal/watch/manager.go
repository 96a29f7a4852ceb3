// Package watch manages recursive filesystem watch sessions. A Manager
// installs an fsnotify watch over a directory tree, filters raw events by
// file extension, and streams typed change events through a stream.Emitter
// from the watcher's own notification goroutine. Watch IDs come from the
// manager's private registry and are independent of PTY session IDs.
package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/user/termpad/internal/registry"
	"github.com/user/termpad/internal/stream"
)

// Manager tracks all live watch sessions.
type Manager struct {
	watches *registry.Registry[*session]
}

// session owns one fsnotify watcher. The watcher delivers events for
// exactly as long as the session stays registered: Unwatch closes it, which
// ends the event loop.
type session struct {
	id      uint32
	watcher *fsnotify.Watcher
	exts    map[string]struct{} // lower-cased, empty = match all
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{watches: registry.New[*session]()}
}

// Watch installs a recursive watch over dir and returns its ID. extensions
// are matched case-insensitively against file suffixes (with or without a
// leading dot); an empty list matches everything. Fails without registering
// anything if dir is not an existing directory or the watch cannot be
// installed.
func (m *Manager) Watch(dir string, extensions []string, em stream.Emitter) (uint32, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return 0, fmt.Errorf("watch: not a directory: %s", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return 0, fmt.Errorf("watch: create watcher: %w", err)
	}
	if err := addRecursive(watcher, dir); err != nil {
		_ = watcher.Close()
		return 0, fmt.Errorf("watch: %s: %w", dir, err)
	}

	exts := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		exts[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}

	sess := &session{watcher: watcher, exts: exts}
	id := m.watches.NextID()
	sess.id = id
	if err := m.watches.Insert(id, sess); err != nil {
		_ = watcher.Close()
		return 0, err
	}

	go sess.run(em)

	return id, nil
}

// Unwatch removes and drops the watch. Closing the watcher ends its event
// loop, so no events are emitted for the ID afterwards. An unknown ID is a
// successful no-op.
func (m *Manager) Unwatch(id uint32) error {
	sess, ok := m.watches.Remove(id)
	if !ok {
		return nil
	}
	return sess.watcher.Close()
}

// Len reports the number of live watches.
func (m *Manager) Len() int { return m.watches.Len() }

// Close drops every remaining watch. Used at daemon shutdown.
func (m *Manager) Close() {
	for _, sess := range m.watches.Drain() {
		_ = sess.watcher.Close()
	}
}

// run consumes the watcher's event and error channels until both close.
// Backend errors are surfaced on the stream without tearing the watch down.
func (s *session) run(em stream.Emitter) {
	events, errs := s.watcher.Events, s.watcher.Errors
	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.handle(ev, em)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			em.Emit(stream.Event{Session: s.id, Type: stream.Error, Message: err.Error()})
		}
	}
}

// handle maps one raw fsnotify event to at most one typed event. New
// directories are added to the watcher to keep recursion live; paths failing
// the extension filter are dropped; chmod and other kinds are ignored.
func (s *session) handle(ev fsnotify.Event, em stream.Emitter) {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = s.watcher.Add(ev.Name)
			return
		}
	}

	if !s.matches(ev.Name) {
		return
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		em.Emit(stream.Event{Session: s.id, Type: stream.Created, Path: ev.Name})

	case ev.Op&fsnotify.Write != 0:
		// Best-effort: a read race (file gone again, partial write) yields
		// empty content, never an error on the stream.
		content, err := os.ReadFile(ev.Name)
		if err != nil {
			content = nil
		}
		em.Emit(stream.Event{Session: s.id, Type: stream.Changed, Path: ev.Name, Content: string(content)})

	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		em.Emit(stream.Event{Session: s.id, Type: stream.Removed, Path: ev.Name})
	}
}

// matches applies the case-insensitive extension filter. With a non-empty
// filter, a path without an extension never matches.
func (s *session) matches(path string) bool {
	if len(s.exts) == 0 {
		return true
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return false
	}
	_, ok := s.exts[strings.ToLower(ext)]
	return ok
}

// addRecursive registers dir and every subdirectory with the watcher;
// fsnotify itself only watches single directories.
func addRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return watcher.Add(path)
	})
}
