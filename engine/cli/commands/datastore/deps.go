package datastore

import (
	fdatastore "github.com/encrypted-lottery/lottery-deployments/datastore"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/config"
)

// ConfigLoaderFunc loads the CLI config at path.
type ConfigLoaderFunc func(path string) (*config.Config, error)

// StoreLoaderFunc opens the address datastore at path.
type StoreLoaderFunc func(path string) (fdatastore.AddressRefStore, error)

// Deps holds the injectable dependencies for datastore commands.
// All fields are optional; nil values will use production defaults.
type Deps struct {
	ConfigLoader ConfigLoaderFunc
	StoreLoader  StoreLoaderFunc
}

// applyDefaults fills in nil dependencies with production implementations.
func (d *Deps) applyDefaults() {
	if d.ConfigLoader == nil {
		d.ConfigLoader = config.Load
	}
	if d.StoreLoader == nil {
		d.StoreLoader = func(path string) (fdatastore.AddressRefStore, error) {
			return fdatastore.OpenFileAddressRefStore(path)
		}
	}
}
