package tracking

import (
	"sort"
	"sync"
)

// Store is a named collection of cells sharing one clock.
type Store struct {
	clock *Clock
	mu    sync.RWMutex
	cells map[string]*Cell
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		clock: NewClock(),
		cells: make(map[string]*Cell),
	}
}

// Cell returns the cell with the given name, creating it with a nil value
// if it does not exist yet.
func (s *Store) Cell(name string) *Cell {
	// Check first (read lock)
	s.mu.RLock()
	if c, ok := s.cells[name]; ok {
		s.mu.RUnlock()
		return c
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.cells[name]; ok {
		return c
	}

	c := &Cell{name: name, clock: s.clock}
	c.rev = s.clock.Next()
	s.cells[name] = c
	return c
}

// Lookup returns the named cell if it exists.
func (s *Store) Lookup(name string) (*Cell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cells[name]
	return c, ok
}

// Apply writes a batch of values, creating cells as needed.
func (s *Store) Apply(writes map[string]any) {
	names := make([]string, 0, len(writes))
	for name := range writes {
		names = append(names, name)
	}
	// Deterministic revision order
	sort.Strings(names)
	for _, name := range names {
		s.Cell(name).Set(writes[name])
	}
}

// Snapshot returns the values of all written cells without tracking.
// Cells that were only created by a reader are left out.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.cells))
	for name, c := range s.cells {
		if !c.set {
			continue
		}
		out[name] = c.value
	}
	return out
}

// Revision returns the latest revision handed out by the store's clock.
func (s *Store) Revision() uint64 {
	return s.clock.Current()
}
