package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/crime-incident-etl/internal/config"
	"github.com/couchcryptid/crime-incident-etl/internal/domain"
)

var errAnswersMismatch = errors.New("one or more answers do not match")

func newQuizCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Generate and check indicator exercises (IMV, IMT, ICCP)",
	}
	cmd.AddCommand(newQuizGenerateCmd(), newQuizCheckCmd())
	return cmd
}

func newQuizGenerateCmd() *cobra.Command {
	var (
		kind       string
		seed       uint64
		population int64
		solve      bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print a random indicator table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := domain.ParseIndicatorKind(kind)
			if err != nil {
				return err
			}

			var src domain.IntSource
			if seed != 0 {
				src = rand.New(rand.NewPCG(seed, seed))
			}
			table, err := domain.GenerateTable(k, src)
			if err != nil {
				return err
			}
			if !solve {
				return printJSON(cmd.OutOrStdout(), table)
			}

			sol, err := domain.Solve(table, population)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), struct {
				Table    domain.Table    `json:"table"`
				Solution domain.Solution `json:"solution"`
			}{table, sol})
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", string(domain.IndicatorIMV), "indicator: IMV, IMT or ICCP")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 draws from the global generator)")
	cmd.Flags().Int64VarP(&population, "population", "p", 100000, "population used with --solve")
	cmd.Flags().BoolVar(&solve, "solve", false, "also print the expected rates and variations")
	return cmd
}

func newQuizCheckCmd() *cobra.Command {
	var (
		kind       string
		values     string
		population int64
		tolerance  float64
		rates      map[string]string
		variations map[string]string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Grade answers against a table",
		Example: `  crimectl quiz check -k IMV --values "60;75" -p 1000000 \
    --rate 2022=6 --rate 2023=7.5 --variation 2022-2023=25`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := domain.ParseIndicatorKind(kind)
			if err != nil {
				return err
			}
			grid, err := parseTableValues(values)
			if err != nil {
				return err
			}
			table, err := domain.NewManualTable(k, grid)
			if err != nil {
				return err
			}
			state, _, err := domain.NewQuizState(table, population)
			if err != nil {
				return err
			}

			answers := domain.Answers{}
			if answers.Rates, err = parseAnswers(rates); err != nil {
				return fmt.Errorf("--rate: %w", err)
			}
			if answers.Variations, err = parseAnswers(variations); err != nil {
				return fmt.Errorf("--variation: %w", err)
			}

			if !cmd.Flags().Changed("tolerance") {
				if tolerance, err = config.IndicatorTolerance(); err != nil {
					return err
				}
			}
			grade, err := state.Check(answers, tolerance)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), grade); err != nil {
				return err
			}
			if !grade.AllMatch() {
				return errAnswersMismatch
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", string(domain.IndicatorIMV), "indicator: IMV, IMT or ICCP")
	cmd.Flags().StringVar(&values, "values", "", `table rows separated by ";", cells by ","`)
	cmd.Flags().Int64VarP(&population, "population", "p", 100000, "population the rates are computed against")
	cmd.Flags().Float64Var(&tolerance, "tolerance", 0, "absolute tolerance for a match (default INDICATOR_TOLERANCE or 0.01)")
	cmd.Flags().StringToStringVar(&rates, "rate", nil, "rate answer as YEAR=VALUE (repeatable)")
	cmd.Flags().StringToStringVar(&variations, "variation", nil, "variation answer as FROM-TO=VALUE (repeatable)")
	_ = cmd.MarkFlagRequired("values")
	return cmd
}

// parseTableValues reads "r0c0,r0c1;r1c0,r1c1" into a grid.
func parseTableValues(s string) ([][]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: no values", domain.ErrTableShape)
	}

	rows := strings.Split(s, ";")
	grid := make([][]int, len(rows))
	for i, row := range rows {
		cells := strings.Split(row, ",")
		grid[i] = make([]int, len(cells))
		for j, cell := range cells {
			v, err := strconv.Atoi(strings.TrimSpace(cell))
			if err != nil {
				return nil, fmt.Errorf("row %d cell %d: %q is not an integer", i+1, j+1, cell)
			}
			grid[i][j] = v
		}
	}
	return grid, nil
}

// parseAnswers accepts decimal point or decimal comma values.
func parseAnswers(in map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(in))
	for k, raw := range in {
		v, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(raw), ",", ".", 1), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a number", k, raw)
		}
		out[k] = v
	}
	return out, nil
}
