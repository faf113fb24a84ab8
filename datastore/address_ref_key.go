package datastore

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// AddressRefKey uniquely identifies an AddressRef.
type AddressRefKey interface {
	// ChainSelector returns the selector of the chain the contract is deployed on.
	ChainSelector() uint64
	// Type returns the contract type.
	Type() ContractType
	// Version returns the semantic version of the contract.
	Version() *semver.Version
	// Qualifier distinguishes several deployments of the same type and version.
	Qualifier() string
	// Equals reports whether both keys identify the same record.
	Equals(other AddressRefKey) bool
	// String returns a human readable form of the key, used in errors and logs.
	String() string
}

var _ AddressRefKey = addressRefKey{}

type addressRefKey struct {
	chainSelector uint64
	contractType  ContractType
	version       *semver.Version
	qualifier     string
}

func (a addressRefKey) ChainSelector() uint64 { return a.chainSelector }

func (a addressRefKey) Type() ContractType { return a.contractType }

func (a addressRefKey) Version() *semver.Version { return a.version }

func (a addressRefKey) Qualifier() string { return a.qualifier }

func (a addressRefKey) Equals(other AddressRefKey) bool {
	if other == nil {
		return false
	}

	return a.chainSelector == other.ChainSelector() &&
		a.contractType == other.Type() &&
		versionsEqual(a.version, other.Version()) &&
		a.qualifier == other.Qualifier()
}

func (a addressRefKey) String() string {
	version := "<nil>"
	if a.version != nil {
		version = a.version.String()
	}
	if a.qualifier == "" {
		return fmt.Sprintf("%d/%s@%s", a.chainSelector, a.contractType, version)
	}

	return fmt.Sprintf("%d/%s@%s#%s", a.chainSelector, a.contractType, version, a.qualifier)
}

// NewAddressRefKey creates a new AddressRefKey.
func NewAddressRefKey(chainSelector uint64, contractType ContractType, version *semver.Version, qualifier string) AddressRefKey {
	return addressRefKey{
		chainSelector: chainSelector,
		contractType:  contractType,
		version:       version,
		qualifier:     qualifier,
	}
}

func versionsEqual(a, b *semver.Version) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return a.Equal(b)
}
