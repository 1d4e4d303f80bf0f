// Package keylock provides a table of mutexes addressed by key. Holders of
// different keys never contend; entries are dropped once nobody holds or
// waits for them.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Table is a keyed lock table. The zero value is ready to use.
type Table[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry
}

// Lock blocks until the lock for key is held and returns its release func.
// The release func must be called exactly once.
func (t *Table[K]) Lock(key K) (unlock func()) {
	t.mu.Lock()
	if t.entries == nil {
		t.entries = make(map[K]*entry)
	}
	e, ok := t.entries[key]
	if !ok {
		e = &entry{}
		t.entries[key] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		t.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(t.entries, key)
		}
		t.mu.Unlock()
	}
}

// Len returns the number of keys currently held or waited on.
func (t *Table[K]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
