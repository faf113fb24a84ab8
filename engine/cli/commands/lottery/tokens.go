package lottery

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/encrypted-lottery/lottery-deployments/dapp"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/flags"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/text"
)

var (
	tokensShort = "Lists all supported token addresses"

	tokensLong = text.LongDesc(`
		Lists the token addresses the TokenLottery was constructed with, in the order the
		contract returns them.
	`)

	tokensExample = text.Examples(`
		# List the tokens of the configured lottery
		lottery tokens

		# List the tokens of another lottery
		lottery tokens --address 0x5FbDB2315678afecb367f032d93F642f64180aa3
	`)
)

func newTokensCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tokens",
		Short:   tokensShort,
		Long:    tokensLong,
		Example: tokensExample,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTokens(cmd, cfg)
		},
	}

	flags.Config(cmd)
	flags.Address(cmd)

	return cmd
}

func runTokens(cmd *cobra.Command, cfg Config) error {
	override, hasOverride, err := flags.LotteryAddress(cmd)
	if err != nil {
		return err
	}

	env, err := loadEnvironment(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeEnvironment(cfg, env)

	lottery := override
	if !hasOverride {
		if lottery, err = env.RequireLottery(); err != nil {
			return err
		}
	}

	tokens, err := dapp.NewReader(env.Chain.Client).ListSupportedTokens(cmd.Context(), lottery)
	if err != nil {
		return fmt.Errorf("failed to list supported tokens: %w", err)
	}

	cmd.Printf("TokenLottery: %s\n", lottery.Hex())
	for i, token := range tokens {
		cmd.Printf("  Token[%d]: %s\n", i, token.Hex())
	}

	return nil
}
