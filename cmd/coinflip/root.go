package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mutaician/p2p-coin-flip/internal/config"
	"github.com/mutaician/p2p-coin-flip/internal/server"
	"github.com/mutaician/p2p-coin-flip/internal/telemetry"
)

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "coinflip",
		Short:         "Peer-to-peer coin flip wagers over a shared Redis space",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("CONFIG_PATH"), "config file (defaults to $CONFIG_PATH)")

	cmd.AddCommand(
		newServeCommand(opts),
		newSessionsCommand(opts),
		newWinnersCommand(opts),
		newSweepCommand(opts),
		newHistoryCommand(opts),
	)

	return cmd
}

// load reads the config and installs the configured logger as the default.
func (o *rootOptions) load() (server.Config, error) {
	c := server.DefaultConfig()

	if err := config.Load(o.configPath, &c); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	l, err := telemetry.NewLogger(os.Stderr, c.Log.Level, c.Log.Format)
	if err != nil {
		return c, err
	}
	slog.SetDefault(l)

	return c, nil
}

// connect builds the node without serving it, for one-shot commands.
func (o *rootOptions) connect() (*server.Server, error) {
	c, err := o.load()
	if err != nil {
		return nil, err
	}

	s, err := server.Init(c)
	if err != nil {
		return nil, fmt.Errorf("init server: %w", err)
	}

	return s, nil
}
