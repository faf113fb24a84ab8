// Command lottery deploys and plays the confidential token lottery.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/flags"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/config"
	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	lggr, err := newLogger(args)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return err
	}
	defer func() { _ = lggr.Sync() }()

	root := &cobra.Command{
		Use:          "lottery",
		Short:        "Deploys and plays the confidential token lottery",
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	cmds, err := commands.New(lggr).All()
	if err != nil {
		return err
	}
	root.AddCommand(cmds...)

	return root.ExecuteContext(ctx)
}

// newLogger builds the logger from the log section of the config named by --config, before the
// commands are parsed.
func newLogger(args []string) (logger.Logger, error) {
	fs := pflag.NewFlagSet("bootstrap", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	path := fs.StringP("config", "c", flags.DefaultConfigPath, "")
	_ = fs.Parse(args)

	cfg, err := config.Load(*path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", *path, err)
	}
	lvl, err := cfg.Log.ZapLevel()
	if err != nil {
		return nil, err
	}
	lcfg := logger.Config{Level: lvl, Console: cfg.Log.Console}

	return lcfg.New()
}
