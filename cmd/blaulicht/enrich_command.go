package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"blaulicht/internal/workflow"
)

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	var (
		years   []int
		fields  []string
		persist string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Fill unset fields of the selected partitions",
		Long: `Compute every selected field that is still unset in the selected
partitions. Values already present are never recomputed, so an interrupted
or quota-limited run can be repeated until nothing is pending.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				rep, runErr := s.manager.RunEnrichment(cmd.Context(), workflow.EnrichRequest{
					Years:   years,
					Fields:  fields,
					Persist: persist,
				})
				if rep.RunID == "" {
					return runErr
				}
				if asJSON {
					if err := writeJSON(cmd, rep); err != nil {
						return err
					}
					return runErr
				}
				if err := printEnrichReport(cmd, rep); err != nil {
					return err
				}
				return runErr
			})
		},
	}

	cmd.Flags().IntSliceVarP(&years, "year", "y", nil, "Partition year (repeatable, default: configured range)")
	cmd.Flags().StringSliceVarP(&fields, "field", "f", nil, "Field to enrich (repeatable, default: enrich.fields)")
	cmd.Flags().StringVar(&persist, "persist", "", "Persistence policy: pass or row")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run report as JSON")
	return cmd
}

func printEnrichReport(cmd *cobra.Command, rep workflow.EnrichReport) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: partitions %s, fields %s\n", rep.RunID, formatInts(rep.Years), formatFields(rep.Fields))
	if err := writeTable(out, totalsHeaders, totalsRows(rep.Totals), totalsAligns); err != nil {
		return err
	}
	if len(rep.Exhausted) > 0 {
		fmt.Fprintf(out, "Quota exhausted for %s; run again later to resume\n", formatFields(rep.Exhausted))
	}
	return nil
}
