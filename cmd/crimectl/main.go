// Command crimectl runs the incident pipeline's domain operations offline:
// normalizing an export, rendering the dashboard views, and working the
// indicator exercises without a running service.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/crime-incident-etl/internal/config"
	"github.com/couchcryptid/crime-incident-etl/internal/domain"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "crimectl",
		Short:         "Normalize incident exports and compute dashboard views offline",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return config.LoadDotEnv()
		},
	}
	root.AddCommand(newNormalizeCmd(), newViewsCmd(), newQuizCmd())
	return root
}

// loadDataset normalizes the export at path. "-" reads standard input.
func loadDataset(cmd *cobra.Command, path string) (domain.Dataset, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return domain.Dataset{}, err
		}
		defer f.Close()
		r = f
	}

	ds, err := domain.Normalize(r)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("normalize %s: %w", path, err)
	}
	return ds, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
