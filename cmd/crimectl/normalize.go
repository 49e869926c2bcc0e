package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/crime-incident-etl/internal/domain"
)

func newNormalizeCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "normalize <export.csv|->",
		Short: "Filter an export to violent incidents and re-encode it",
		Long: `Reads a semicolon-delimited export, keeps rows with an allow-listed
category, parseable coordinates and a DD/MM/YYYY date, and writes the result
as CSV (re-normalizable) or as the JSON events the pipeline publishes.
Drop counts are reported on stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := loadDataset(cmd, args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			if err := writeDataset(w, ds, format); err != nil {
				return err
			}
			printStats(cmd.ErrOrStderr(), ds.Stats)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format: csv or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func writeDataset(w io.Writer, ds domain.Dataset, format string) error {
	switch format {
	case "csv":
		return domain.EncodeCSV(w, ds.Records)
	case "json":
		events, err := domain.SerializeDataset(ds)
		if err != nil {
			return err
		}
		for _, ev := range events {
			if _, err := fmt.Fprintf(w, "%s\n", ev.Value); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q (want csv or json)", format)
	}
}

func printStats(w io.Writer, s domain.NormalizeStats) {
	fmt.Fprintf(w, "rows=%d retained=%d dropped_category=%d dropped_coordinates=%d dropped_date=%d\n",
		s.RowsRead, s.Retained, s.DroppedCategory, s.DroppedCoordinates, s.DroppedDate)
}
