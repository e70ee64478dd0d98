// Package feed accumulates Home Assistant device_tracker state into a
// grid.Feed and pushes every change to the grid engine.
//
// Two sources write into a Store: the Home Assistant WebSocket client
// (package hass) and Statestream, which folds mqtt_statestream messages.
package feed

import (
	"maps"
	"strings"
	"sync"

	"github.com/nerrad567/tracker-grid/internal/grid"
)

// Sink receives a fresh copy of the feed after every change.
type Sink func(grid.Feed)

// Store is a concurrency-safe feed accumulator.
//
// Only device_tracker entities are kept; other entity ids are ignored. Every
// accepted change calls the sink with a copy of the whole feed. Changes are
// delivered to the sink in the order they were applied.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - The sink is never called concurrently with itself.
type Store struct {
	pushMu sync.Mutex // held across a change and its sink call

	mu     sync.RWMutex
	states grid.Feed
	sink   Sink
}

// NewStore creates an empty store. sink may be nil and set later.
func NewStore(sink Sink) *Store {
	return &Store{
		states: make(grid.Feed),
		sink:   sink,
	}
}

// SetSink replaces the sink.
func (s *Store) SetSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// Replace swaps the whole feed, as after a fresh get_states.
func (s *Store) Replace(feed grid.Feed) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	next := make(grid.Feed, len(feed))
	for id, rec := range feed {
		if tracked(id) {
			next[id] = cloneRecord(rec)
		}
	}

	s.mu.Lock()
	s.states = next
	s.mu.Unlock()

	s.push()
}

// Apply inserts or updates one entity. It reports whether the entity was kept.
func (s *Store) Apply(entityID string, rec grid.StateRecord) bool {
	if !tracked(entityID) {
		return false
	}

	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	s.mu.Lock()
	s.states[entityID] = cloneRecord(rec)
	s.mu.Unlock()

	s.push()
	return true
}

// Remove deletes one entity. Unknown ids are a no-op and do not notify.
func (s *Store) Remove(entityID string) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	s.mu.Lock()
	_, ok := s.states[entityID]
	delete(s.states, entityID)
	s.mu.Unlock()

	if ok {
		s.push()
	}
}

// Snapshot returns a copy of the current feed.
func (s *Store) Snapshot() grid.Feed {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.states)
}

// Len returns the number of entities held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// push hands a copy of the feed to the sink. Caller holds pushMu.
func (s *Store) push() {
	s.mu.RLock()
	sink := s.sink
	snap := maps.Clone(s.states)
	s.mu.RUnlock()

	if sink != nil {
		sink(snap)
	}
}

func tracked(entityID string) bool {
	return strings.HasPrefix(entityID, grid.EntityPrefix)
}

// cloneRecord copies the attribute map so later writes by the source do not
// leak into feeds already handed out.
func cloneRecord(rec grid.StateRecord) grid.StateRecord {
	rec.Attributes = maps.Clone(rec.Attributes)
	return rec
}
