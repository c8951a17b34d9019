package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"blaulicht/internal/workflow"
)

func newReplayCommand(ctx *commandContext) *cobra.Command {
	var req workflow.ReplayRequest

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Reset fallback values so the next enrich run recomputes them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				rep, err := s.manager.Replay(cmd.Context(), req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"Partition %d field %s: %d failures, %d rows reset, %d rows changed since and left alone\n",
					rep.Partition, rep.Field, rep.Failures, rep.Reset, rep.Skipped)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&req.Year, "year", "y", 0, "Partition year")
	cmd.Flags().StringVarP(&req.Field, "field", "f", "", "Field to reset")
	cmd.Flags().StringVar(&req.RunID, "run", "", "Only failures recorded by this run")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("field")
	return cmd
}
