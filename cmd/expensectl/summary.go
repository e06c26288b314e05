package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"expenselog/internal/core"
	"expenselog/internal/log"
	"expenselog/internal/rollup"
	"expenselog/internal/services"
)

func newSummaryCmd(e *env) *cobra.Command {
	var (
		period string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print category, month and current-month totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := services.ParsePeriod(period)
			sum, err := e.svc.Summary(cmd.Context(), e.today(), p)
			if err != nil {
				return fmt.Errorf("load summary: %w", err)
			}
			e.logger.Debug("Summary computed",
				log.FieldOperation, log.OpSummary,
				log.FieldPeriod, string(p),
				log.FieldRecords, sum.Records,
				log.FieldSkipped, sum.Skipped)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summaryOutput{
					Today:        sum.Today.String(),
					Period:       string(p),
					CurrentTotal: core.FormatAmount(sum.CurrentTotal),
					Categories:   categoryLines(sum.Categories),
					Months:       monthLines(sum.Months),
					Records:      sum.Records,
					Skipped:      sum.Skipped,
				})
			}

			fmt.Fprintf(out, "Records of %s: %s\n", sum.Today.MonthKey(), core.FormatAmount(sum.CurrentTotal))
			if sum.Skipped > 0 {
				fmt.Fprintf(out, "Skipped %d malformed row(s)\n", sum.Skipped)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintf(tw, "\nCATEGORY\tAMOUNT\t\n")
			for _, c := range sum.Categories {
				fmt.Fprintf(tw, "%s\t%s\t\n", c.Category, core.FormatAmount(c.Amount))
			}
			fmt.Fprintf(tw, "\nMONTH\tAMOUNT\t\n")
			for _, k := range sum.Months.Keys() {
				fmt.Fprintf(tw, "%s\t%s\t\n", k, core.FormatAmount(sum.Months[k]))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&period, "period", string(services.PeriodMonth), "Category rollup range: month or all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return needsBackend(cmd)
}

type summaryOutput struct {
	Today        string         `json:"today"`
	Period       string         `json:"period"`
	CurrentTotal string         `json:"current_total"`
	Categories   []amountOutput `json:"categories"`
	Months       []amountOutput `json:"months"`
	Records      int            `json:"records"`
	Skipped      int            `json:"skipped"`
}

type amountOutput struct {
	Key    string `json:"key"`
	Amount string `json:"amount"`
}

func categoryLines(cats rollup.Categories) []amountOutput {
	out := make([]amountOutput, 0, len(cats))
	for _, c := range cats {
		out = append(out, amountOutput{Key: c.Category, Amount: core.FormatAmount(c.Amount)})
	}
	return out
}

func monthLines(months rollup.Months) []amountOutput {
	out := make([]amountOutput, 0, len(months))
	for _, k := range months.Keys() {
		out = append(out, amountOutput{Key: k, Amount: core.FormatAmount(months[k])})
	}
	return out
}
