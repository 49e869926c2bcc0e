package main

import (
	"github.com/spf13/cobra"

	"github.com/couchcryptid/crime-incident-etl/internal/domain"
)

func newViewsCmd() *cobra.Command {
	var filter domain.Filter

	cmd := &cobra.Command{
		Use:   "views",
		Short: "Render dashboard views of an export as JSON",
	}
	cmd.PersistentFlags().StringArrayVar(&filter.Sectors, "sector", nil, "restrict to sector (repeatable)")
	cmd.PersistentFlags().StringArrayVar(&filter.RegistryUnits, "unit", nil, "restrict to registry unit (repeatable)")

	var by string
	histogram := &cobra.Command{
		Use:   "histogram <export.csv|->",
		Short: "Count incidents per sector, category or month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dim, err := domain.ParseDimension(by)
			if err != nil {
				return err
			}
			records, err := selectRecords(cmd, args[0], filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), domain.Histogram(records, dim))
		},
	}
	histogram.Flags().StringVar(&by, "by", string(domain.DimensionSector), "dimension: sector, category or month")

	timeseries := &cobra.Command{
		Use:   "timeseries <export.csv|->",
		Short: "Count incidents per calendar date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := selectRecords(cmd, args[0], filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), domain.TimeSeries(records))
		},
	}

	centroid := &cobra.Command{
		Use:   "centroid <export.csv|->",
		Short: "Mean coordinate of the selected incidents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := selectRecords(cmd, args[0], filter)
			if err != nil {
				return err
			}
			c, err := domain.ComputeCentroid(records)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), c)
		},
	}

	points := &cobra.Command{
		Use:   "points <export.csv|->",
		Short: "One map marker per selected incident",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := selectRecords(cmd, args[0], filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), domain.Points(records))
		},
	}

	options := &cobra.Command{
		Use:   "options <export.csv|->",
		Short: "List the sectors and registry units a filter can select",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := loadDataset(cmd, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), domain.Options(ds.Records))
		},
	}

	cmd.AddCommand(histogram, timeseries, centroid, points, options)
	return cmd
}

func selectRecords(cmd *cobra.Command, path string, filter domain.Filter) ([]domain.IncidentRecord, error) {
	ds, err := loadDataset(cmd, path)
	if err != nil {
		return nil, err
	}
	return filter.Apply(ds.Records), nil
}
