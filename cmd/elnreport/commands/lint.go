package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"elnreport/internal/deploy"
)

func lintDockerfileCmd() *cobra.Command {
	var (
		asJSON     bool
		contextDir string
	)
	cmd := &cobra.Command{
		Use:   "lint-dockerfile <Dockerfile>",
		Short: "Check a Dockerfile against the container start contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if contextDir == "" {
				contextDir = filepath.Dir(args[0])
			}

			res := deploy.CheckDockerfile(string(b))
			res.Findings = append(res.Findings, deploy.CheckContext(os.DirFS(contextDir), string(b)).Findings...)

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else {
				for _, f := range res.Findings {
					fmt.Fprintf(w, "%s:%s\n", args[0], f)
				}
				if len(res.Findings) == 0 {
					fmt.Fprintf(w, "%s: ok\n", args[0])
				}
			}
			if res.HasErrors() {
				return fmt.Errorf("%s has errors", args[0])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print findings as JSON")
	cmd.Flags().StringVar(&contextDir, "context", "", "build context directory (default: the Dockerfile's directory)")
	return cmd
}
