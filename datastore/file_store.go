package datastore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var _ MutableAddressRefStore = (*FileAddressRefStore)(nil)

// FileAddressRefStore is a MemoryAddressRefStore persisted as a JSON document. Every successful
// write is flushed to disk.
type FileAddressRefStore struct {
	*MemoryAddressRefStore

	path string
}

type addressRefsFile struct {
	AddressRefs []AddressRef `json:"addressRefs"`
}

// OpenFileAddressRefStore loads the store at path. A missing file yields an empty store that is
// created on the first write.
func OpenFileAddressRefStore(path string) (*FileAddressRefStore, error) {
	store := &FileAddressRefStore{MemoryAddressRefStore: NewMemoryAddressRefStore(), path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read address refs from %s: %w", path, err)
	}

	var file addressRefsFile
	if err = json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode address refs from %s: %w", path, err)
	}
	for _, ref := range file.AddressRefs {
		if err = store.MemoryAddressRefStore.Add(ref); err != nil {
			return nil, fmt.Errorf("invalid address ref in %s: %w", path, err)
		}
	}

	return store, nil
}

// Path returns the file backing the store.
func (s *FileAddressRefStore) Path() string { return s.path }

// Add inserts a new record and saves the file.
func (s *FileAddressRefStore) Add(record AddressRef) error {
	if err := s.MemoryAddressRefStore.Add(record); err != nil {
		return err
	}

	return s.save()
}

// Upsert inserts or replaces a record and saves the file.
func (s *FileAddressRefStore) Upsert(record AddressRef) error {
	if err := s.MemoryAddressRefStore.Upsert(record); err != nil {
		return err
	}

	return s.save()
}

// Delete removes a record and saves the file.
func (s *FileAddressRefStore) Delete(key AddressRefKey) error {
	if err := s.MemoryAddressRefStore.Delete(key); err != nil {
		return err
	}

	return s.save()
}

// save writes the records to a temporary file and renames it over the store file.
func (s *FileAddressRefStore) save() error {
	records, err := s.Fetch()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(addressRefsFile{AddressRefs: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode address refs: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".addresses-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err = tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()

		return fmt.Errorf("failed to write address refs: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to write address refs: %w", err)
	}

	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to save address refs to %s: %w", s.path, err)
	}

	return nil
}
