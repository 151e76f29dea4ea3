package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"elnreport/internal/logging"
	"elnreport/internal/render"
	"elnreport/internal/schema"
	"elnreport/internal/service"
)

func convertCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "convert <export.xml>",
		Short: "Convert one ELN XML export to PDF without starting the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			data, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			if out == "" {
				out = strings.TrimSuffix(in, filepath.Ext(in)) + ".pdf"
			}

			registry := schema.NewRegistry(schema.DefaultFiles(cfg.Report.SchemaDir), logging.Component(logger, "schema"))
			_ = registry.CheckDir(cfg.Report.SchemaDir)
			renderer := render.New(cfg.Report.LogoPath, logging.Component(logger, "render"),
				render.WithUnicodeFont(cfg.Report.FontPath))
			svc := service.NewConversionService(registry, renderer, service.WithLogger(logger))

			res, err := svc.Convert(cmd.Context(), filepath.Base(in), data)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, res.PDF, 0o644); err != nil {
				return err
			}
			if res.ParseError != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s is not well formed; the PDF describes the error\n", in)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(res.PDF))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output PDF path (default: input name with .pdf)")
	return cmd
}
