package lottery

import (
	"context"

	"github.com/encrypted-lottery/lottery-deployments/engine/cli/config"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/environment"
	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

// ConfigLoaderFunc loads the CLI configuration from a file path.
type ConfigLoaderFunc func(path string) (*config.Config, error)

// EnvironmentLoaderFunc connects the environment described by a configuration.
type EnvironmentLoaderFunc func(
	ctx context.Context, cfg *config.Config, lggr logger.Logger, opts ...environment.LoadOption,
) (*environment.Environment, error)

// Deps holds the injectable dependencies for lottery commands.
// All fields are optional; nil values will use production defaults.
type Deps struct {
	// ConfigLoader loads the configuration.
	// Default: config.Load
	ConfigLoader ConfigLoaderFunc

	// EnvironmentLoader connects the chain, the wallet and the stores.
	// Default: environment.Load
	EnvironmentLoader EnvironmentLoaderFunc
}

// applyDefaults fills in nil dependencies with production defaults.
func (d *Deps) applyDefaults() {
	if d.ConfigLoader == nil {
		d.ConfigLoader = config.Load
	}
	if d.EnvironmentLoader == nil {
		d.EnvironmentLoader = environment.Load
	}
}
