package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"blaulicht/internal/report"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var (
		years  []int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show row counts and pending fields per partition",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				statuses, err := s.manager.Status(cmd.Context(), years)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, statuses)
				}

				headers := []string{"Partition", "Rows", "Newest"}
				aligns := []columnAlignment{alignLeft, alignRight, alignLeft}
				for _, field := range report.Fields {
					headers = append(headers, string(field)+" pending")
					aligns = append(aligns, alignRight)
				}
				rows := make([][]string, 0, len(statuses))
				for _, st := range statuses {
					if !st.Exists {
						row := []string{strconv.Itoa(st.Partition), "missing", "-"}
						for range report.Fields {
							row = append(row, "-")
						}
						rows = append(rows, row)
						continue
					}
					row := []string{strconv.Itoa(st.Partition), strconv.Itoa(st.Rows), orDash(st.Newest)}
					pending := make(map[string]int, len(st.Fields))
					for _, fs := range st.Fields {
						pending[string(fs.Field)] = fs.Pending
					}
					for _, field := range report.Fields {
						row = append(row, strconv.Itoa(pending[string(field)]))
					}
					rows = append(rows, row)
				}
				return writeTable(cmd.OutOrStdout(), headers, rows, aligns)
			})
		},
	}

	cmd.Flags().IntSliceVarP(&years, "year", "y", nil, "Partition year (repeatable, default: configured range)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")
	return cmd
}
