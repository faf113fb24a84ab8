package lottery

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/encrypted-lottery/lottery-deployments/dapp"
	"github.com/encrypted-lottery/lottery-deployments/dapp/render"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/flags"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/text"
)

const defaultDraws = 3

var (
	playShort = "Plays a session of lottery draws"

	playLong = text.LongDesc(`
		Connects the configured wallet, draws the given number of times and then decrypts the
		balances won. Balances are refetched after every draw.

		Prints the token balances followed by the draw history.
	`)

	playExample = text.Examples(`
		# Three draws on the simulated network
		lottery play

		# Five draws
		lottery play --draws 5
	`)
)

func newPlayCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "play",
		Short:   playShort,
		Long:    playLong,
		Example: playExample,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlay(cmd, cfg, flags.MustInt(cmd.Flags().GetInt("draws")))
		},
	}

	flags.Config(cmd)
	cmd.Flags().IntP("draws", "n", defaultDraws, "Number of draws")

	return cmd
}

func runPlay(cmd *cobra.Command, cfg Config, draws int) error {
	if draws < 1 {
		return fmt.Errorf("--draws must be at least 1, got %d", draws)
	}

	env, err := loadEnvironment(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeEnvironment(cfg, env)

	o, err := openSession(cmd, env, true, true)
	if err != nil {
		return err
	}
	defer o.Close()

	for i := range draws {
		if _, err = o.Draw(cmd.Context()); err != nil {
			return fmt.Errorf("draw %d of %d failed: %w", i+1, draws, err)
		}
	}

	decryptAll(cmd, o)

	out := cmd.OutOrStdout()
	render.Tokens(out, o.State(), o.Connected())
	render.History(out, o.State())

	return nil
}

// decryptAll decrypts every token holding a non-zero balance. Failures are already reported as
// notices and the token keeps its failure state.
func decryptAll(cmd *cobra.Command, o *dapp.Orchestrator) {
	for _, tok := range o.State().Tokens {
		if tok.Handle == nil || tok.Handle.IsZero() {
			continue
		}
		_, _ = o.Decrypt(cmd.Context(), tok.Address)
	}
}
