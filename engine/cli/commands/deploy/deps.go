package deploy

import (
	"context"

	"github.com/encrypted-lottery/lottery-deployments/engine/cli/config"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/environment"
	"github.com/encrypted-lottery/lottery-deployments/operations"
	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

// ConfigLoaderFunc loads the CLI config at path.
type ConfigLoaderFunc func(path string) (*config.Config, error)

// EnvironmentLoaderFunc connects the environment described by a config.
type EnvironmentLoaderFunc func(
	ctx context.Context, cfg *config.Config, lggr logger.Logger, opts ...environment.LoadOption,
) (*environment.Environment, error)

// ReporterLoaderFunc opens the reporter that deployment reports are persisted to.
type ReporterLoaderFunc func(path string) (operations.Reporter, error)

// Deps holds the injectable dependencies for deploy commands.
// All fields are optional; nil values will use production defaults.
type Deps struct {
	ConfigLoader      ConfigLoaderFunc
	EnvironmentLoader EnvironmentLoaderFunc
	ReporterLoader    ReporterLoaderFunc
}

// applyDefaults fills in nil dependencies with production implementations.
func (d *Deps) applyDefaults() {
	if d.ConfigLoader == nil {
		d.ConfigLoader = config.Load
	}
	if d.EnvironmentLoader == nil {
		d.EnvironmentLoader = environment.Load
	}
	if d.ReporterLoader == nil {
		d.ReporterLoader = func(path string) (operations.Reporter, error) {
			return operations.NewFileReporter(path)
		}
	}
}
