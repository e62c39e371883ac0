package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wudi/scanpdf/builder"
	"github.com/wudi/scanpdf/config"
	"github.com/wudi/scanpdf/convert"
	"github.com/wudi/scanpdf/fonts"
	"github.com/wudi/scanpdf/layout"
	"github.com/wudi/scanpdf/observability"
	"github.com/wudi/scanpdf/ocr/tesseract"
)

var version = "dev"

type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:          "scanpdf",
		Short:        "Turn scanned images and text into PDF documents",
		Version:      version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", envOr("SCANPDF_CONFIG", "scanpdf.yaml"), "YAML config file (optional)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override LOG_LEVEL")

	cmd.AddCommand(
		serveCmd(g),
		workerCmd(g),
		imageCmd(g),
		textCmd(g),
		doctorCmd(g),
	)
	return cmd
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// setup loads the configuration and installs the process logger.
func setup(g *globalFlags, logOut io.Writer) (config.Config, observability.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	sl, err := observability.NewSlog(observability.LogConfig{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: logOut})
	if err != nil {
		return config.Config{}, nil, err
	}
	slog.SetDefault(sl)
	return cfg, observability.NewSlogLogger(sl), nil
}

// converterOptions wires the OCR languages, paper size, body font and logging.
func converterOptions(cfg config.Config, logger observability.Logger) ([]convert.Option, error) {
	opts := []convert.Option{
		convert.WithLanguages(cfg.Languages()...),
		convert.WithWorkers(cfg.Workers),
		convert.WithLogger(logger),
		convert.WithTracer(observability.NewLogTracer(logger)),
	}
	if size, ok := builder.PaperSizeByName(cfg.PaperSize); ok {
		opts = append(opts, convert.WithLayoutOptions(layout.WithPaperSize(size)))
	}
	path := config.ResolveFont(cfg)
	if path == "" {
		logger.Warn("no TrueType font found, falling back to Helvetica; non-Latin text will be dropped")
		return opts, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	if _, err := fonts.LoadTrueType("Body", data); err != nil {
		return nil, fmt.Errorf("font %s: %w", path, err)
	}
	logger.Debug("body font", observability.String("path", path))
	return append(opts, convert.WithFont(data)), nil
}

func newEngine(cfg config.Config) *tesseract.Engine {
	return tesseract.New(tesseract.WithDefaultLanguages(cfg.Languages()...))
}
