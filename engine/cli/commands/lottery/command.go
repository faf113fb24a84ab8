// Package lottery provides the CLI commands that inspect and play the deployed TokenLottery.
package lottery

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/flags"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/text"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/environment"
	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

var (
	lotteryShort = "TokenLottery operations"

	lotteryLong = text.LongDesc(`
		Commands for inspecting and playing the deployed TokenLottery.

		The lottery address comes from --address when the command accepts it, then from the
		config file, then from the datastore. On the simulated network the tokens and the lottery
		are deployed to an in-process chain when the command starts.
	`)
)

// Config holds the configuration for lottery commands.
type Config struct {
	// Logger is the logger to use for command output. Required.
	Logger logger.Logger

	// Deps holds optional dependencies that can be overridden.
	// If fields are nil, production defaults are used.
	Deps Deps
}

// Validate checks that all required configuration fields are set.
func (c Config) Validate() error {
	var missing []string

	if c.Logger == nil {
		missing = append(missing, "Logger")
	}

	if len(missing) > 0 {
		return errors.New("lottery.Config: missing required fields: " + strings.Join(missing, ", "))
	}

	return nil
}

// deps returns the Deps with defaults applied.
func (c *Config) deps() *Deps {
	c.Deps.applyDefaults()

	return &c.Deps
}

// NewCommand creates a new lottery command with all subcommands.
func NewCommand(cfg Config) (*cobra.Command, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.deps()

	cmd := &cobra.Command{
		Use:   "lottery",
		Short: lotteryShort,
		Long:  lotteryLong,
	}

	cmd.AddCommand(newAddressCmd(cfg))
	cmd.AddCommand(newTokensCmd(cfg))
	cmd.AddCommand(newDrawCmd(cfg))
	cmd.AddCommand(newHistoryCmd(cfg))
	cmd.AddCommand(newBalancesCmd(cfg))
	cmd.AddCommand(newPlayCmd(cfg))

	return cmd, nil
}

// loadEnvironment loads the config named by --config and connects its environment. The caller
// closes the environment.
func loadEnvironment(cmd *cobra.Command, cfg Config, opts ...environment.LoadOption) (*environment.Environment, error) {
	deps := cfg.deps()

	path := flags.MustString(cmd.Flags().GetString("config"))
	envCfg, err := deps.ConfigLoader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	env, err := deps.EnvironmentLoader(cmd.Context(), envCfg, cfg.Logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	return env, nil
}

// closeEnvironment closes env, logging a failure instead of masking the command result.
func closeEnvironment(cfg Config, env *environment.Environment) {
	if err := env.Close(); err != nil {
		cfg.Logger.Warnw("Failed to close environment", "error", err)
	}
}
