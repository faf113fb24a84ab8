// Package datastore records where lottery contracts are deployed, keyed by chain, contract type,
// version and qualifier, so deployments can skip contracts that already exist.
package datastore

import (
	"errors"
)

var (
	ErrAddressRefNotFound = errors.New("no such address ref can be found for the provided key")
	ErrAddressRefExists   = errors.New("an address ref with the supplied key already exists")
)

// ContractType identifies the kind of a deployed contract, e.g. "ERC7984USDT" or "TokenLottery".
type ContractType string

// String returns the contract type as a string.
func (ct ContractType) String() string { return string(ct) }

// FilterFunc narrows a slice of address refs.
type FilterFunc func([]AddressRef) []AddressRef

// AddressRefStore is a read only view over address refs.
type AddressRefStore interface {
	// Fetch returns a copy of every record.
	Fetch() ([]AddressRef, error)
	// Get returns the record with the given key or ErrAddressRefNotFound.
	Get(key AddressRefKey) (AddressRef, error)
	// Filter returns the records kept by every filter.
	Filter(filters ...FilterFunc) []AddressRef
}

// MutableAddressRefStore is an AddressRefStore that can be written to.
type MutableAddressRefStore interface {
	AddressRefStore

	// Add inserts a new record. It fails with ErrAddressRefExists when the key is taken.
	Add(record AddressRef) error
	// Upsert inserts the record or replaces the record with the same key.
	Upsert(record AddressRef) error
	// Delete removes the record with the given key or fails with ErrAddressRefNotFound.
	Delete(key AddressRefKey) error
}
