// Package tombstone records paths deleted from the read-only backing of an overlay.
//
// A tombstoned path is one whose backing version must not be served again: either it
// was deleted, or it was relocated into the overlay. Entries are never removed.
package tombstone

import (
	"sort"
	"sync"

	"github.com/absfs/proxyfs/store"
)

// Set is a collection of tombstoned paths. Paths are normalised with store.Clean.
type Set interface {
	// Add tombstones name. Adding twice is a no-op.
	Add(name string) error
	// Has reports whether name is tombstoned.
	Has(name string) (bool, error)
	// Range calls fn on every tombstoned path in sorted order until fn returns false.
	Range(fn func(name string) bool) error
	// Len returns the number of tombstoned paths.
	Len() int
	// Close releases the set.
	Close() error
}

// Memory is a Set held in memory.
type Memory struct {
	mu    sync.RWMutex
	paths map[string]struct{}
}

var _ Set = (*Memory)(nil)

// NewMemory returns an empty in-memory set.
func NewMemory() *Memory {
	return &Memory{paths: make(map[string]struct{})}
}

func (m *Memory) Add(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths[store.Clean(name)] = struct{}{}
	return nil
}

func (m *Memory) Has(name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.paths[store.Clean(name)]
	return ok, nil
}

func (m *Memory) Range(fn func(name string) bool) error {
	m.mu.RLock()
	names := make([]string, 0, len(m.paths))
	for name := range m.paths {
		names = append(names, name)
	}
	m.mu.RUnlock()

	sort.Strings(names)
	for _, name := range names {
		if !fn(name) {
			break
		}
	}
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.paths)
}

func (m *Memory) Close() error {
	return nil
}
