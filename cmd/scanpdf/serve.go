package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wudi/scanpdf/convert"
	"github.com/wudi/scanpdf/observability"
	"github.com/wudi/scanpdf/server"
	"github.com/wudi/scanpdf/store"
)

func serveCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
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

			opts, err := converterOptions(cfg, logger)
			if err != nil {
				return err
			}
			opts = append(opts, convert.WithRecorder(st), convert.WithOutputDir(cfg.OutputDir()))
			conv := convert.New(newEngine(cfg), opts...)

			srv, err := server.New(server.Config{
				StaticDir:      cfg.StaticDir,
				TemplatesDir:   cfg.TemplatesDir,
				MaxUploadBytes: cfg.MaxUploadBytes,
				Languages:      cfg.Languages(),
			}, conv, st, logger)
			if err != nil {
				return fmt.Errorf("init server: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger.Info("starting",
				observability.String("version", version),
				observability.String("addr", cfg.Addr()),
				observability.Int("workers", cfg.Workers),
				observability.String("languages", cfg.OCRLanguages),
			)
			return srv.Serve(ctx, cfg.Addr())
		},
	}
}
