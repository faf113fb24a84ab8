package lottery

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/encrypted-lottery/lottery-deployments/dapp"
	"github.com/encrypted-lottery/lottery-deployments/dapp/render"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/environment"
)

// openSession creates an orchestrator over env with its token list loaded and, when connect is
// set, the environment wallet connected. Notices are printed to the command's error stream.
// A failed token load is not fatal: the session continues on the fallback list.
func openSession(cmd *cobra.Command, env *environment.Environment, autoRefresh, connect bool) (*dapp.Orchestrator, error) {
	o, err := dapp.New(env.DappConfig(render.NewNotices(cmd.ErrOrStderr()), autoRefresh))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	_ = o.LoadTokens(cmd.Context())

	if connect {
		if err = o.ConnectWallet(cmd.Context(), env.Wallet); err != nil {
			o.Close()

			return nil, err
		}
	}

	return o, nil
}
