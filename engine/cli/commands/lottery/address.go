package lottery

import (
	"github.com/spf13/cobra"

	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/flags"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/text"
)

var (
	addressShort = "Prints the TokenLottery address"

	addressLong = text.LongDesc(`
		Prints the address of the TokenLottery contract, as configured or recorded in the
		datastore by the deployment.
	`)

	addressExample = text.Examples(`
		# Print the address recorded for the configured network
		lottery address --config lottery.yml
	`)
)

func newAddressCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "address",
		Short:   addressShort,
		Long:    addressLong,
		Example: addressExample,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAddress(cmd, cfg)
		},
	}

	flags.Config(cmd)

	return cmd
}

func runAddress(cmd *cobra.Command, cfg Config) error {
	env, err := loadEnvironment(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeEnvironment(cfg, env)

	addr, err := env.RequireLottery()
	if err != nil {
		return err
	}

	cmd.Printf("TokenLottery address is %s\n", addr.Hex())

	return nil
}
