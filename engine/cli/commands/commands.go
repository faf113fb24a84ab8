// Package commands provides the lottery CLI command groups.
//
// Use the Commands factory to build them with a shared logger:
//
//	cmds := commands.New(lggr)
//	lotteryCmd, err := cmds.Lottery()
//	if err != nil {
//	    return err
//	}
//	root.AddCommand(lotteryCmd)
//
// The command packages can also be imported directly to inject dependencies in tests.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/datastore"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/deploy"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/lottery"
	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

// Commands provides a factory for creating CLI commands with shared configuration.
type Commands struct {
	lggr logger.Logger
}

// New creates a new Commands factory with the given logger.
func New(lggr logger.Logger) *Commands {
	return &Commands{lggr: lggr}
}

// Lottery creates the lottery command group.
func (c *Commands) Lottery() (*cobra.Command, error) {
	return lottery.NewCommand(lottery.Config{Logger: c.lggr})
}

// Deploy creates the deploy command.
func (c *Commands) Deploy() (*cobra.Command, error) {
	return deploy.NewCommand(deploy.Config{Logger: c.lggr})
}

// Datastore creates the datastore command group.
func (c *Commands) Datastore() (*cobra.Command, error) {
	return datastore.NewCommand(datastore.Config{Logger: c.lggr})
}

// All creates every command, in the order they are listed in help.
func (c *Commands) All() ([]*cobra.Command, error) {
	var cmds []*cobra.Command
	for _, newCmd := range []func() (*cobra.Command, error){c.Deploy, c.Lottery, c.Datastore} {
		cmd, err := newCmd()
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}

	return cmds, nil
}
