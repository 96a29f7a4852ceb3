package registry

import (
	"sort"
	"sync"
	"testing"
)

// TestInsertGetRemove stores a value, reads it back, removes it, and verifies
// the second removal misses.
func TestInsertGetRemove(t *testing.T) {
	r := New[string]()

	id := r.NextID()
	if id != 1 {
		t.Fatalf("expected first ID to be 1, got %d", id)
	}

	if err := r.Insert(id, "session"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, ok := r.Get(id)
	if !ok || got != "session" {
		t.Fatalf("Get(%d) = %q, %v; want \"session\", true", id, got, ok)
	}

	removed, ok := r.Remove(id)
	if !ok || removed != "session" {
		t.Fatalf("Remove(%d) = %q, %v; want \"session\", true", id, removed, ok)
	}

	if _, ok := r.Get(id); ok {
		t.Fatal("Get after Remove should miss")
	}
	if _, ok := r.Remove(id); ok {
		t.Fatal("second Remove should miss")
	}
}

// TestInsertDuplicate verifies that re-inserting an occupied ID fails.
func TestInsertDuplicate(t *testing.T) {
	r := New[int]()

	id := r.NextID()
	if err := r.Insert(id, 1); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := r.Insert(id, 2); err == nil {
		t.Fatal("expected error inserting duplicate ID, got nil")
	}
}

// TestNextIDConcurrent allocates IDs from many goroutines and verifies they
// are all distinct and form the range 1..N.
func TestNextIDConcurrent(t *testing.T) {
	const n = 200

	r := New[struct{}]()
	ids := make(chan uint32, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- r.NextID()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make([]int, 0, n)
	for id := range ids {
		seen = append(seen, int(id))
	}
	sort.Ints(seen)
	for i, id := range seen {
		if id != i+1 {
			t.Fatalf("expected ID %d at position %d, got %d", i+1, i, id)
		}
	}
}

// TestIDsNeverReused removes a session and verifies the next allocation does
// not hand the freed ID back out.
func TestIDsNeverReused(t *testing.T) {
	r := New[string]()

	first := r.NextID()
	if err := r.Insert(first, "a"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	r.Remove(first)

	second := r.NextID()
	if second <= first {
		t.Fatalf("expected ID > %d after removal, got %d", first, second)
	}
}

// TestDrain registers three sessions and verifies Drain empties the registry
// and returns all of them.
func TestDrain(t *testing.T) {
	r := New[int]()
	for i := 0; i < 3; i++ {
		id := r.NextID()
		if err := r.Insert(id, i); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	all := r.Drain()
	if len(all) != 3 {
		t.Fatalf("expected 3 drained sessions, got %d", len(all))
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry after Drain, got %d", r.Len())
	}
}
