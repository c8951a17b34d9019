package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"blaulicht/internal/ledger"
	"blaulicht/internal/textutil"
)

func newFailuresCommand(ctx *commandContext) *cobra.Command {
	var (
		filter ledger.FailureFilter
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List rows that received a fallback value",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				failures, err := s.ledger.Failures(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, failures)
				}
				rows := make([][]string, 0, len(failures))
				for _, f := range failures {
					replayed := ""
					if f.ReplayedAt != nil {
						replayed = formatTime(*f.ReplayedAt)
					}
					rows = append(rows, []string{
						strconv.FormatInt(f.ID, 10),
						f.RunID,
						strconv.Itoa(f.Partition),
						f.Field,
						f.Link,
						orDash(f.Fallback),
						textutil.Truncate(f.Error, 80),
						replayed,
					})
				}
				return writeTable(cmd.OutOrStdout(),
					[]string{"ID", "Run", "Partition", "Field", "Link", "Fallback", "Error", "Replayed"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
			})
		},
	}

	cmd.Flags().StringVar(&filter.RunID, "run", "", "Only failures of this run")
	cmd.Flags().IntVarP(&filter.Partition, "year", "y", 0, "Only failures of this partition")
	cmd.Flags().StringVarP(&filter.Field, "field", "f", "", "Only failures of this field")
	cmd.Flags().BoolVar(&filter.IncludeReplayed, "all", false, "Include failures that were already replayed")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 0, "Maximum number of failures to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print failures as JSON")
	return cmd
}
