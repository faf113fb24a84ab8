// Package deploy provides the CLI command that deploys the confidential tokens and the
// TokenLottery.
package deploy

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/encrypted-lottery/lottery-deployments/contracts"
	"github.com/encrypted-lottery/lottery-deployments/deployment"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/flags"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/text"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/environment"
	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

var (
	deployShort = "Deploys the confidential tokens and the TokenLottery"

	deployLong = text.LongDesc(`
		Deploys each confidential token, then the TokenLottery constructed with the token
		addresses in the same order.

		Contracts recorded in the datastore with code on chain are reused instead of deployed
		again. With --reports the operation reports are persisted, so a deployment interrupted
		halfway resumes from the last successful step.
	`)

	deployExample = text.Examples(`
		# Deploy everything to the configured network
		deploy --config lottery.yml

		# Deploy two tokens only, under a qualifier, keeping reports
		deploy --tokens ERC7984USDT,ERC7984DAI --qualifier staging --reports reports.json
	`)
)

// Config holds the configuration for the deploy command.
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
		return errors.New("deploy.Config: missing required fields: " + strings.Join(missing, ", "))
	}

	return nil
}

// deps returns the Deps with defaults applied.
func (c *Config) deps() *Deps {
	c.Deps.applyDefaults()

	return &c.Deps
}

type deployFlags struct {
	configPath string
	reports    string
	qualifier  string
	tokens     []string
}

// NewCommand creates the deploy command.
func NewCommand(cfg Config) (*cobra.Command, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.deps()

	cmd := &cobra.Command{
		Use:     "deploy",
		Short:   deployShort,
		Long:    deployLong,
		Example: deployExample,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tokens, err := cmd.Flags().GetStringSlice("tokens")
			if err != nil {
				return err
			}
			f := deployFlags{
				configPath: flags.MustString(cmd.Flags().GetString("config")),
				reports:    flags.MustString(cmd.Flags().GetString("reports")),
				qualifier:  flags.MustString(cmd.Flags().GetString("qualifier")),
				tokens:     tokens,
			}

			return runDeploy(cmd, cfg, f)
		},
	}

	flags.Config(cmd)
	cmd.Flags().StringP("reports", "r", "", "Path of the JSON file operation reports are persisted to")
	cmd.Flags().StringP("qualifier", "q", "", "Qualifier the deployed addresses are recorded under")
	cmd.Flags().StringSliceP("tokens", "t", slices.Clone(contracts.TokenNames), "Token contracts to deploy, in order")

	return cmd, nil
}

func runDeploy(cmd *cobra.Command, cfg Config, f deployFlags) error {
	deps := cfg.deps()

	for _, name := range f.tokens {
		if !slices.Contains(contracts.TokenNames, name) {
			return fmt.Errorf("unknown token contract %q, expected one of %s", name, strings.Join(contracts.TokenNames, ", "))
		}
	}
	in := deployment.DeployTokensAndLotteryInput{Tokens: f.tokens, Qualifier: f.qualifier}

	var opts []environment.LoadOption
	if f.reports != "" {
		reporter, err := deps.ReporterLoader(f.reports)
		if err != nil {
			return fmt.Errorf("failed to open reports: %w", err)
		}
		opts = append(opts, environment.WithReporter(reporter))
	}

	envCfg, err := deps.ConfigLoader(f.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", f.configPath, err)
	}

	env, err := deps.EnvironmentLoader(cmd.Context(), envCfg, cfg.Logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to load environment: %w", err)
	}
	defer func() {
		if cerr := env.Close(); cerr != nil {
			cfg.Logger.Warnw("Failed to close environment", "error", cerr)
		}
	}()

	// --- Deploy

	var out deployment.DeployTokensAndLotteryOutput
	if env.Deployment != nil && isDefaultInput(in) {
		// Simulated networks are deployed while loading.
		out = *env.Deployment
	} else {
		out, err = deployment.Deploy(env.DeploymentEnvironment(cmd.Context), in)
		if err != nil {
			return err
		}
	}

	// --- Report

	for _, d := range append(slices.Clone(out.Tokens), out.Lottery) {
		cmd.Printf("%s contract (%s): %s\n", d.ContractName, d.Status, d.Address.Hex())
	}

	return nil
}

func isDefaultInput(in deployment.DeployTokensAndLotteryInput) bool {
	def := deployment.DefaultDeployInput()

	return in.Qualifier == def.Qualifier && slices.Equal(in.Tokens, def.Tokens)
}
