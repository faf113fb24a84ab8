package datastore

import (
	"fmt"
	"sync"
)

var _ MutableAddressRefStore = (*MemoryAddressRefStore)(nil)

// MemoryAddressRefStore keeps address refs in memory. It is safe for concurrent use.
type MemoryAddressRefStore struct {
	mu      sync.RWMutex
	Records []AddressRef `json:"records"`
}

// NewMemoryAddressRefStore returns an empty store.
func NewMemoryAddressRefStore() *MemoryAddressRefStore {
	return &MemoryAddressRefStore{Records: []AddressRef{}}
}

// indexOf returns the index of the record with the given key or -1. Callers hold the lock.
func (s *MemoryAddressRefStore) indexOf(key AddressRefKey) int {
	for i, record := range s.Records {
		if record.Key().Equals(key) {
			return i
		}
	}

	return -1
}

// Get returns a copy of the record with the given key.
func (s *MemoryAddressRefStore) Get(key AddressRefKey) (AddressRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(key)
	if idx == -1 {
		return AddressRef{}, fmt.Errorf("%w: %s", ErrAddressRefNotFound, key)
	}

	return s.Records[idx].Clone(), nil
}

// Fetch returns a copy of every record.
func (s *MemoryAddressRefStore) Fetch() ([]AddressRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot(), nil
}

// Filter applies filters in order to a copy of the records.
func (s *MemoryAddressRefStore) Filter(filters ...FilterFunc) []AddressRef {
	s.mu.RLock()
	records := s.snapshot()
	s.mu.RUnlock()

	for _, filter := range filters {
		records = filter(records)
	}

	return records
}

func (s *MemoryAddressRefStore) snapshot() []AddressRef {
	records := make([]AddressRef, 0, len(s.Records))
	for _, record := range s.Records {
		records = append(records, record.Clone())
	}

	return records
}

// Add inserts a new record after validating it.
func (s *MemoryAddressRefStore) Add(record AddressRef) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid address ref: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(record.Key()) != -1 {
		return fmt.Errorf("%w: %s", ErrAddressRefExists, record.Key())
	}
	s.Records = append(s.Records, record.Clone())

	return nil
}

// Upsert inserts the record or replaces the one with the same key.
func (s *MemoryAddressRefStore) Upsert(record AddressRef) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid address ref: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.indexOf(record.Key()); idx != -1 {
		s.Records[idx] = record.Clone()

		return nil
	}
	s.Records = append(s.Records, record.Clone())

	return nil
}

// Delete removes the record with the given key.
func (s *MemoryAddressRefStore) Delete(key AddressRefKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(key)
	if idx == -1 {
		return fmt.Errorf("%w: %s", ErrAddressRefNotFound, key)
	}
	s.Records = append(s.Records[:idx], s.Records[idx+1:]...)

	return nil
}
