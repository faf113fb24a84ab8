package lottery

import (
	"github.com/spf13/cobra"

	"github.com/encrypted-lottery/lottery-deployments/dapp/render"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/flags"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/text"
)

var (
	balancesShort = "Prints the wallet's encrypted token balances"

	balancesLong = text.LongDesc(`
		Reads the encrypted balance handle of the configured wallet for every supported token.

		With --decrypt each non-zero balance is revealed through a user decryption signed by the
		wallet. Decryption failures are reported per token and do not fail the command.
	`)

	balancesExample = text.Examples(`
		# Encrypted balance handles
		lottery balances

		# Clear balances
		lottery balances --decrypt
	`)
)

func newBalancesCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "balances",
		Short:   balancesShort,
		Long:    balancesLong,
		Example: balancesExample,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBalances(cmd, cfg, flags.MustBool(cmd.Flags().GetBool("decrypt")))
		},
	}

	flags.Config(cmd)
	cmd.Flags().BoolP("decrypt", "d", false, "Decrypt every non-zero balance")

	return cmd
}

func runBalances(cmd *cobra.Command, cfg Config, decrypt bool) error {
	ctx := cmd.Context()

	env, err := loadEnvironment(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeEnvironment(cfg, env)

	o, err := openSession(cmd, env, false, true)
	if err != nil {
		return err
	}
	defer o.Close()

	if err = o.RefreshBalances(ctx); err != nil {
		return err
	}

	if decrypt {
		decryptAll(cmd, o)
	}

	render.Tokens(cmd.OutOrStdout(), o.State(), o.Connected())

	return nil
}
