// Package keylock provides named mutual exclusion: one mutex per key,
// created on first use. Locks are never discarded; the map is bounded
// by the number of distinct fingerprints seen, which mirrors the cache
// tables themselves.
package keylock

import "sync"

type Map struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New() *Map {
	return &Map{locks: make(map[string]*sync.Mutex)}
}

func (m *Map) get(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// Lock blocks until the key's mutex is held.
func (m *Map) Lock(key string) {
	m.get(key).Lock()
}

// TryLock acquires the key's mutex only if it is currently free.
func (m *Map) TryLock(key string) bool {
	return m.get(key).TryLock()
}

// Unlock releases the key's mutex. The caller must hold it.
func (m *Map) Unlock(key string) {
	m.get(key).Unlock()
}
