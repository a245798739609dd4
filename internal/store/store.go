// Package store keeps live sessions in memory. Sessions are volatile: they
// exist from creation until the expiry sweep deletes them, and never touch
// disk. Every mutation of a session's state, the sweeper's delete included,
// goes through that entry's single-writer lock, so two mutations of the same
// room never interleave.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is anything the store can expire.
type Session interface {
	Expiry() time.Time
}

// Store is an in-memory registry from session ID to mutable session state.
// One instance holds estimation sessions, another retrospectives.
type Store[S Session] struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry[S]
}

type entry[S Session] struct {
	mu    sync.Mutex // single writer per session
	state S
}

// New creates an empty store.
func New[S Session]() *Store[S] {
	return &Store[S]{entries: make(map[uuid.UUID]*entry[S])}
}

// Put registers a new session under id.
func (st *Store[S]) Put(id uuid.UUID, s S) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.entries[id] = &entry[S]{state: s}
}

// Exists reports whether a session with this ID is live.
func (st *Store[S]) Exists(id uuid.UUID) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, ok := st.entries[id]
	return ok
}

// Mutate runs fn against the session's state under its single-writer lock.
// Anything fn needs to publish (a marshalled snapshot, extracted mentions)
// must be captured inside fn; the state must not escape it. Returns false
// when the session does not exist, which callers treat as expired.
func (st *Store[S]) Mutate(id uuid.UUID, fn func(s S) error) (bool, error) {
	st.mu.RLock()
	e, ok := st.entries[id]
	st.mu.RUnlock()
	if !ok {
		return false, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return true, fn(e.state)
}

// View is Mutate for read-only callers; it shares the same lock so readers
// never observe a half-applied mutation.
func (st *Store[S]) View(id uuid.UUID, fn func(s S)) bool {
	ok, _ := st.Mutate(id, func(s S) error {
		fn(s)
		return nil
	})
	return ok
}

// Delete removes the session, waiting out any in-flight mutation on it.
func (st *Store[S]) Delete(id uuid.UUID) {
	st.mu.Lock()
	e, ok := st.entries[id]
	delete(st.entries, id)
	st.mu.Unlock()
	if ok {
		// Ensure no handler is still inside the entry before it goes away.
		e.mu.Lock()
		e.mu.Unlock()
	}
}

// Sweep deletes every session past its expiry and returns their IDs so the
// caller can drop identities and close connections.
func (st *Store[S]) Sweep(now time.Time) []uuid.UUID {
	st.mu.RLock()
	candidates := make([]uuid.UUID, 0)
	for id, e := range st.entries {
		if now.After(e.state.Expiry()) {
			candidates = append(candidates, id)
		}
	}
	st.mu.RUnlock()

	for _, id := range candidates {
		st.Delete(id)
	}
	return candidates
}

// Len returns the number of live sessions.
func (st *Store[S]) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.entries)
}
