package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"blaulicht/internal/workflow"
)

func newUpdateCommand(ctx *commandContext) *cobra.Command {
	var (
		years      []int
		withEnrich bool
		fields     []string
		persist    string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Prepend newly published reports to the selected partitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				rep, runErr := s.manager.RunUpdate(cmd.Context(), workflow.UpdateRequest{
					Years:   years,
					Enrich:  withEnrich,
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
				if err := printUpdateReport(cmd, rep); err != nil {
					return err
				}
				return runErr
			})
		},
	}

	cmd.Flags().IntSliceVarP(&years, "year", "y", nil, "Partition year (repeatable, default: configured range)")
	cmd.Flags().BoolVar(&withEnrich, "enrich", false, "Enrich the updated partitions afterwards")
	cmd.Flags().StringSliceVarP(&fields, "field", "f", nil, "Field to enrich with --enrich (repeatable)")
	cmd.Flags().StringVar(&persist, "persist", "", "Persistence policy for --enrich: pass or row")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run report as JSON")
	return cmd
}

func printUpdateReport(cmd *cobra.Command, rep workflow.UpdateReport) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s\n", rep.RunID)
	rows := make([][]string, 0, len(rep.Partitions))
	for _, p := range rep.Partitions {
		newest := "-"
		if p.Newest != nil {
			newest = formatTime(*p.Newest)
		}
		truncated := ""
		if p.Truncated {
			truncated = "yes"
		}
		rows = append(rows, []string{
			strconv.Itoa(p.Partition),
			newest,
			strconv.Itoa(p.Pages),
			strconv.Itoa(p.Added),
			strconv.Itoa(p.Reposts),
			truncated,
		})
	}
	err := writeTable(out,
		[]string{"Partition", "Newest stored", "Pages", "Added", "Reposts", "Truncated"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
	if err != nil {
		return err
	}
	if rep.Enrichment != nil && rep.Enrichment.RunID != "" {
		fmt.Fprintln(out)
		return printEnrichReport(cmd, *rep.Enrichment)
	}
	return nil
}
