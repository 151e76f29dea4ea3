package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"elnreport/internal/config"
	"elnreport/internal/logging"
)

var (
	cfg      *config.AppConfig
	logger   zerolog.Logger
	logLevel string
)

// Execute runs the root command. Errors have already been logged or
// printed when it returns.
func Execute() error {
	root := &cobra.Command{
		Use:           "elnreport",
		Short:         "Convert ELN XML exports into PDF reports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			logger = logging.Stdout(cfg.LogLevel, cfg.Location())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(serveCmd(), convertCmd(), lintDockerfileCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}
