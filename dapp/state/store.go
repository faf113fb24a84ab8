package state

import "sync"

// Store serializes dispatches to Reduce. Readers get deep copies.
type Store struct {
	mu    sync.Mutex
	state State
}

// NewStore creates a Store holding initial.
func NewStore(initial State) *Store {
	return &Store{state: initial.Clone()}
}

// Dispatch applies the events in order and returns the resulting state.
func (s *Store) Dispatch(events ...Event) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range events {
		s.state = Reduce(s.state, ev)
	}

	return s.state.Clone()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.Clone()
}

// Update applies the events returned by fn, computed from the current state, as one step.
// No other dispatch interleaves.
func (s *Store) Update(fn func(State) []Event) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range fn(s.state.Clone()) {
		s.state = Reduce(s.state, ev)
	}

	return s.state.Clone()
}
