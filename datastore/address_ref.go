package datastore

import (
	"errors"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/common"
)

// AddressRef records the address of one deployed contract.
type AddressRef struct {
	Address       string          `json:"address"`
	ChainSelector uint64          `json:"chainSelector"`
	Type          ContractType    `json:"type"`
	Version       *semver.Version `json:"version"`
	Qualifier     string          `json:"qualifier,omitempty"`
	Labels        LabelSet        `json:"labels"`
}

// Key returns the key identifying the record.
func (r AddressRef) Key() AddressRefKey {
	return NewAddressRefKey(r.ChainSelector, r.Type, r.Version, r.Qualifier)
}

// Clone returns a copy of the record that shares no mutable state with it.
func (r AddressRef) Clone() AddressRef {
	out := r
	if r.Version != nil {
		v := *r.Version
		out.Version = &v
	}
	out.Labels = r.Labels.Clone()

	return out
}

// EVMAddress returns the recorded address as an EVM address.
func (r AddressRef) EVMAddress() common.Address {
	return common.HexToAddress(r.Address)
}

// Validate checks that every key field and the address are set.
func (r AddressRef) Validate() error {
	var errs []error
	if r.ChainSelector == 0 {
		errs = append(errs, errors.New("chain selector is required"))
	}
	if r.Type == "" {
		errs = append(errs, errors.New("contract type is required"))
	}
	if r.Version == nil {
		errs = append(errs, errors.New("version is required"))
	}
	if !common.IsHexAddress(r.Address) || common.HexToAddress(r.Address) == (common.Address{}) {
		errs = append(errs, errors.New("address must be a non-zero hex address"))
	}

	return errors.Join(errs...)
}
