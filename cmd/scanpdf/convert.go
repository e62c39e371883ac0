package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wudi/scanpdf/convert"
)

func imageCmd(g *globalFlags) *cobra.Command {
	var (
		out          string
		langs        string
		includeImage bool
		psm          int
	)
	cmd := &cobra.Command{
		Use:   "image <file>",
		Short: "Recognize the text of an image and write it as a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			opts, err := converterOptions(cfg, logger)
			if err != nil {
				return err
			}
			conv := convert.New(newEngine(cfg), opts...)

			req := convert.ImageRequest{Data: data, Filename: args[0], IncludeImage: includeImage, PageSegMode: psm}
			if langs != "" {
				req.Languages = strings.FieldsFunc(langs, func(r rune) bool { return r == '+' || r == ',' })
			}
			res, err := conv.FromImage(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeResult(cmd, out, res)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "ocr_result.pdf", "output file, - for stdout")
	cmd.Flags().StringVar(&langs, "lang", "", "OCR languages, e.g. ukr+eng (default from config)")
	cmd.Flags().BoolVar(&includeImage, "include-image", false, "put the source image on the first page")
	cmd.Flags().IntVar(&psm, "psm", 0, "Tesseract page segmentation mode 1-13 (default: engine choice)")
	return cmd
}

func textCmd(g *globalFlags) *cobra.Command {
	var (
		out    string
		format string
	)
	cmd := &cobra.Command{
		Use:   "text [file|-]",
		Short: "Lay out plain text, Markdown or HTML as a PDF",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			src, err := readSource(cmd, args)
			if err != nil {
				return err
			}
			opts, err := converterOptions(cfg, logger)
			if err != nil {
				return err
			}
			conv := convert.New(nil, opts...)

			var res convert.Result
			switch format {
			case "text":
				res, err = conv.FromText(cmd.Context(), src)
			case "markdown", "md":
				res, err = conv.FromMarkdown(cmd.Context(), src)
			case "html":
				res, err = conv.FromHTML(cmd.Context(), src)
			default:
				return fmt.Errorf("unknown format %q (want text, markdown or html)", format)
			}
			if err != nil {
				return err
			}
			return writeResult(cmd, out, res)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file, - for stdout (default by format)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "input format: text, markdown or html")
	return cmd
}

func readSource(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func writeResult(cmd *cobra.Command, out string, res convert.Result) error {
	if out == "" {
		out = res.Filename
	}
	if out == "-" {
		_, err := cmd.OutOrStdout().Write(res.PDF)
		return err
	}
	if err := os.WriteFile(out, res.PDF, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d pages, %d bytes)\n", out, res.Pages, len(res.PDF))
	return nil
}
