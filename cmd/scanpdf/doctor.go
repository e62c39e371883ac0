package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wudi/scanpdf/config"
	"github.com/wudi/scanpdf/fonts"
	"github.com/wudi/scanpdf/ocr/tesseract"
)

var errChecksFailed = errors.New("doctor: some checks failed")

type check struct {
	name string
	run  func() (string, error)
}

func doctorCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Verify the OCR engine, language packs, font and data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := setup(g, io.Discard)
			if err != nil {
				return err
			}
			return runChecks(cmd.OutOrStdout(), doctorChecks(cfg))
		},
	}
}

func doctorChecks(cfg config.Config) []check {
	return []check{
		{name: "tesseract binary", run: func() (string, error) {
			return tesseract.BinaryPath()
		}},
		{name: "tesseract library", run: func() (string, error) {
			return tesseract.Version(), nil
		}},
		{name: "language packs", run: func() (string, error) {
			if err := tesseract.Check(cfg.Languages()); err != nil {
				return "", err
			}
			return cfg.OCRLanguages, nil
		}},
		{name: "font", run: func() (string, error) {
			return checkFont(config.ResolveFont(cfg))
		}},
		{name: "data directory", run: func() (string, error) {
			if err := cfg.EnsureDirs(); err != nil {
				return "", err
			}
			return cfg.DataDir, nil
		}},
	}
}

func checkFont(path string) (string, error) {
	if path == "" {
		return "", errors.New("no TrueType font found; set FONT_PATH")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if _, err := fonts.LoadTrueType("Body", data); err != nil {
		return "", err
	}
	return path, nil
}

// runChecks prints one line per check and fails if any check failed.
func runChecks(w io.Writer, checks []check) error {
	failed := 0
	for _, c := range checks {
		detail, err := c.run()
		if err != nil {
			failed++
			fmt.Fprintf(w, "FAIL  %-18s %v\n", c.name, err)
			continue
		}
		fmt.Fprintf(w, "ok    %-18s %s\n", c.name, detail)
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errChecksFailed, failed, len(checks))
	}
	return nil
}
