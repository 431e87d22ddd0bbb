package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mutaician/p2p-coin-flip/internal/server"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run a participant node with its HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.load()
			if err != nil {
				return err
			}

			s, err := server.Init(c)
			if err != nil {
				return fmt.Errorf("init server: %w", err)
			}

			ctx := cmd.Context()
			errc := make(chan error, 1)
			go func() { errc <- s.Start(ctx) }()

			select {
			case <-ctx.Done():
				slog.InfoContext(context.WithoutCancel(ctx), "server: shutting down")
			case err = <-errc:
			}

			s.Shutdown()
			return err
		},
	}
}
