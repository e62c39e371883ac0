package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wudi/scanpdf/store"
	"github.com/wudi/scanpdf/sweeper"
)

func workerCmd(g *globalFlags) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the retention sweeper that expires old conversions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(g, os.Stderr)
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirs(); err != nil {
				return err
			}
			st, err := store.Open(cfg.DatabasePath())
			if err != nil {
				return err
			}
			defer st.Close()

			sw := sweeper.New(st, cfg.Retention, cfg.SweepInterval, sweeper.WithLogger(logger))
			if once {
				n, err := sw.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d conversions\n", n)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return sw.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "sweep a single time and exit")
	return cmd
}
