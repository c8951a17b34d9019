package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				runs, err := s.ledger.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, runs)
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					finished := "-"
					if run.FinishedAt != nil {
						finished = formatTime(*run.FinishedAt)
					}
					rows = append(rows, []string{
						run.ID,
						run.Command,
						string(run.Status),
						formatInts(run.Partitions),
						orDash(strings.Join(run.Fields, ",")),
						formatTime(run.StartedAt),
						finished,
						strconv.Itoa(run.Computed),
						strconv.Itoa(run.Fallback),
						strconv.Itoa(run.Pending),
					})
				}
				return writeTable(cmd.OutOrStdout(),
					[]string{"ID", "Command", "Status", "Partitions", "Fields", "Started", "Finished", "Computed", "Fallback", "Pending"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
				)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")
	return cmd
}
