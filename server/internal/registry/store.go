// Package registry is the process-wide source of truth for download
// task lifecycle.
package registry

import (
	"errors"
	"sync"
)

var ErrNotFound = errors.New("no task found for the given key")

// ExpiryPolicy decides whether a terminal record may be evicted.
// The default keeps everything: records accumulate for the process
// lifetime, which matches the short-lived-process assumption this
// service runs under. Install a real policy before pointing
// long-running deployments at it.
type ExpiryPolicy func(TaskSnapshot) bool

// KeepAll never evicts.
func KeepAll(TaskSnapshot) bool { return false }

// In-memory thread-safe task storage
type Store struct {
	table  map[string]*Task
	expiry ExpiryPolicy
	mu     sync.RWMutex
}

func NewStore() *Store {
	return &Store{
		table:  make(map[string]*Task),
		expiry: KeepAll,
	}
}

// Create registers a fresh record in the downloading state. Ids are
// generated from uuids upstream so a collision is a programming
// error, reported rather than overwritten.
func (m *Store) Create(id string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.table[id]; ok {
		return nil, errors.New("task id already registered")
	}

	t := newTask(id)
	m.table[id] = t
	return t, nil
}

// Get a task pointer given its id
func (m *Store) Get(id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.table[id]
	if !ok {
		return nil, ErrNotFound
	}

	return entry, nil
}

// Removes a task record, given its id
func (m *Store) Delete(id string) {
	m.mu.Lock()
	delete(m.table, id)
	m.mu.Unlock()
}

func (m *Store) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.table))
	for id := range m.table {
		keys = append(keys, id)
	}

	return keys
}

// Returns a snapshot of every stored record
func (m *Store) All() []TaskSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]TaskSnapshot, 0, len(m.table))
	for _, t := range m.table {
		all = append(all, t.Snapshot())
	}

	return all
}

func (m *Store) SetExpiryPolicy(p ExpiryPolicy) {
	if p == nil {
		p = KeepAll
	}

	m.mu.Lock()
	m.expiry = p
	m.mu.Unlock()
}

// Prune applies the expiry policy to terminal records and reports
// how many were evicted.
func (m *Store) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, t := range m.table {
		snap := t.Snapshot()
		if snap.Status.Terminal() && m.expiry(snap) {
			delete(m.table, id)
			evicted++
		}
	}

	return evicted
}
