package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/termpad/internal/stream"
)

// waitForEvent drains the emitter until an event of the wanted type arrives
// for the wanted path, failing the test on timeout. Unrelated events (e.g.
// the Write that accompanies a Create on some platforms) are skipped.
func waitForEvent(t *testing.T, em *stream.ChannelEmitter, typ stream.Type, path string) stream.Event {
	t.Helper()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-em.Events():
			if ev.Type == typ && ev.Path == path {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event on %s", typ, path)
		}
	}
}

func TestWatchRejectsNonDirectory(t *testing.T) {
	m := NewManager()
	defer m.Close()

	em := stream.NewChannelEmitter(16)
	if _, err := m.Watch(filepath.Join(t.TempDir(), "missing"), nil, em); err == nil {
		t.Fatal("expected error for missing directory, got nil")
	}

	file := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := m.Watch(file, nil, em); err == nil {
		t.Fatal("expected error for non-directory path, got nil")
	}
	if m.Len() != 0 {
		t.Fatalf("expected no registered watches after failures, got %d", m.Len())
	}
}

// TestExtensionFilter watches with {"md"}, creates a .txt and then a .md
// file, and verifies only the .md file produces events.
func TestExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	m := NewManager()
	defer m.Close()

	em := stream.NewChannelEmitter(64)
	id, err := m.Watch(dir, []string{"MD"}, em)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected first watch ID 1, got %d", id)
	}

	ignored := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(ignored, []byte("ignored"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	wanted := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(wanted, []byte("# hi"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// The first created event must be for the .md file: the .txt one was
	// written earlier, so if it produced an event it would arrive first.
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-em.Events():
			if ev.Type != stream.Created {
				continue
			}
			if ev.Path != wanted {
				t.Fatalf("expected created event for %s, got %s", wanted, ev.Path)
			}
			return
		case <-timeout:
			t.Fatal("timed out waiting for created event")
		}
	}
}

// TestChangedCarriesContent modifies a watched file and verifies the changed
// event carries the file's full contents.
func TestChangedCarriesContent(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "doc.md")
	if err := os.WriteFile(file, []byte("before"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m := NewManager()
	defer m.Close()

	em := stream.NewChannelEmitter(64)
	if _, err := m.Watch(dir, []string{"md"}, em); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(file, []byte("after"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ev := waitForEvent(t, em, stream.Changed, file)
	if ev.Content != "after" {
		t.Errorf("expected content %q, got %q", "after", ev.Content)
	}
}

// TestRemovedEvent deletes a watched file and expects a removed event.
func TestRemovedEvent(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "gone.md")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m := NewManager()
	defer m.Close()

	em := stream.NewChannelEmitter(64)
	if _, err := m.Watch(dir, nil, em); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.Remove(file); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	waitForEvent(t, em, stream.Removed, file)
}

// TestRecursiveIntoNewDirectory creates a fresh subdirectory after the watch
// is installed and verifies files created inside it are still seen.
func TestRecursiveIntoNewDirectory(t *testing.T) {
	dir := t.TempDir()
	m := NewManager()
	defer m.Close()

	em := stream.NewChannelEmitter(64)
	if _, err := m.Watch(dir, []string{"md"}, em); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	// Give the event loop a moment to add the new directory to the watcher.
	time.Sleep(200 * time.Millisecond)

	nested := filepath.Join(sub, "deep.md")
	if err := os.WriteFile(nested, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	waitForEvent(t, em, stream.Created, nested)
}

// TestUnwatchStopsEvents verifies no events arrive after Unwatch even while
// the directory keeps changing, and that unwatching unknown IDs is a no-op.
func TestUnwatchStopsEvents(t *testing.T) {
	dir := t.TempDir()
	m := NewManager()
	defer m.Close()

	em := stream.NewChannelEmitter(64)
	id, err := m.Watch(dir, nil, em)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := m.Unwatch(id); err != nil {
		t.Fatalf("Unwatch: %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("expected 0 watches after unwatch, got %d", m.Len())
	}

	if err := os.WriteFile(filepath.Join(dir, "late.md"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case ev := <-em.Events():
		t.Fatalf("unexpected event after unwatch: %+v", ev)
	case <-time.After(500 * time.Millisecond):
	}

	if err := m.Unwatch(9999); err != nil {
		t.Errorf("Unwatch of unknown ID: %v", err)
	}
	if err := m.Unwatch(id); err != nil {
		t.Errorf("second Unwatch: %v", err)
	}
}

// TestIndependentIDSpaces verifies watch IDs restart at 1 per manager.
func TestIndependentIDSpaces(t *testing.T) {
	em := stream.NewChannelEmitter(16)

	a := NewManager()
	defer a.Close()
	b := NewManager()
	defer b.Close()

	idA, err := a.Watch(t.TempDir(), nil, em)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	idB, err := b.Watch(t.TempDir(), nil, em)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if idA != 1 || idB != 1 {
		t.Fatalf("expected both managers to start at ID 1, got %d and %d", idA, idB)
	}
}
