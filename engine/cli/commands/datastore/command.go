// Package datastore provides the CLI commands that inspect the recorded contract addresses.
package datastore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	fdatastore "github.com/encrypted-lottery/lottery-deployments/datastore"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/flags"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/text"
	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

var (
	datastoreShort = "Address datastore operations"

	datastoreLong = text.LongDesc(`
		Commands for inspecting the contract addresses recorded by deployments.
	`)

	listShort = "Lists the recorded contract addresses"

	listLong = text.LongDesc(`
		Lists the address refs of the datastore file named by datastore.path in the config,
		optionally narrowed by contract type, qualifier and label.
	`)

	listExample = text.Examples(`
		# Every recorded contract
		datastore list

		# Only the tokens deployed under the staging qualifier
		datastore list --label token --qualifier staging
	`)
)

// Config holds the configuration for datastore commands.
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
		return errors.New("datastore.Config: missing required fields: " + strings.Join(missing, ", "))
	}

	return nil
}

// deps returns the Deps with defaults applied.
func (c *Config) deps() *Deps {
	c.Deps.applyDefaults()

	return &c.Deps
}

// NewCommand creates a new datastore command with all subcommands.
func NewCommand(cfg Config) (*cobra.Command, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.deps()

	cmd := &cobra.Command{
		Use:   "datastore",
		Short: datastoreShort,
		Long:  datastoreLong,
	}

	cmd.AddCommand(newListCmd(cfg))

	return cmd, nil
}

type listFlags struct {
	configPath    string
	contractType  string
	qualifier     string
	label         string
	chainSelector uint64
}

func newListCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Short:   listShort,
		Long:    listLong,
		Example: listExample,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := listFlags{
				configPath:    flags.MustString(cmd.Flags().GetString("config")),
				contractType:  flags.MustString(cmd.Flags().GetString("type")),
				qualifier:     flags.MustString(cmd.Flags().GetString("qualifier")),
				label:         flags.MustString(cmd.Flags().GetString("label")),
				chainSelector: flags.MustUint64(cmd.Flags().GetUint64("chain-selector")),
			}

			return runList(cmd, cfg, f)
		},
	}

	flags.Config(cmd)
	cmd.Flags().StringP("type", "t", "", "Only list contracts of this type, e.g. TokenLottery")
	cmd.Flags().StringP("qualifier", "q", "", "Only list contracts recorded under this qualifier")
	cmd.Flags().StringP("label", "l", "", "Only list contracts carrying this label")
	cmd.Flags().Uint64("chain-selector", 0, "Only list contracts of this chain")

	return cmd
}

func runList(cmd *cobra.Command, cfg Config, f listFlags) error {
	deps := cfg.deps()

	envCfg, err := deps.ConfigLoader(f.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", f.configPath, err)
	}
	if envCfg.Datastore.Path == "" {
		return errors.New("datastore.path is not configured")
	}

	store, err := deps.StoreLoader(envCfg.Datastore.Path)
	if err != nil {
		return err
	}

	var filters []fdatastore.FilterFunc
	if f.chainSelector != 0 {
		filters = append(filters, fdatastore.AddressRefByChainSelector(f.chainSelector))
	}
	if f.contractType != "" {
		filters = append(filters, fdatastore.AddressRefByType(fdatastore.ContractType(f.contractType)))
	}
	if f.qualifier != "" {
		filters = append(filters, fdatastore.AddressRefByQualifier(f.qualifier))
	}
	if f.label != "" {
		filters = append(filters, fdatastore.AddressRefByLabel(f.label))
	}

	refs := store.Filter(filters...)
	cfg.Logger.Debugw("Listing address refs", "path", envCfg.Datastore.Path, "count", len(refs))
	if len(refs) == 0 {
		cmd.Println("No address refs found")

		return nil
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Type", "Version", "Qualifier", "Chain", "Address", "Labels"})
	for _, r := range refs {
		table.Append([]string{
			r.Type.String(),
			r.Version.String(),
			r.Qualifier,
			fmt.Sprint(r.ChainSelector),
			r.Address,
			strings.Join(r.Labels.List(), ","),
		})
	}
	table.Render()

	return nil
}
