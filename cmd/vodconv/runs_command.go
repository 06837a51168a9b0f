package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent conversion runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					fmt.Sprintf("%s to %s", run.FromFormat, run.ToFormat),
					run.State,
					strconv.Itoa(run.ImagesIngested),
					strconv.Itoa(run.ImagesEgested),
					strconv.Itoa(len(run.Warnings)),
				})
			}
			renderTable(cmd.OutOrStdout(),
				[]string{"Run", "Started", "Conversion", "State", "In", "Out", "Warnings"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight})
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	cmd.AddCommand(newRunsShowCommand(ctx))
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one conversion run with its full warning log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "run %s\n", run.ID)
			fmt.Fprintf(w, "  from:     %s (%s)\n", run.FromPath, run.FromFormat)
			fmt.Fprintf(w, "  to:       %s (%s)\n", run.ToPath, run.ToFormat)
			fmt.Fprintf(w, "  state:    %s\n", run.State)
			fmt.Fprintf(w, "  started:  %s\n", run.StartedAt.Local().Format(time.RFC3339))
			fmt.Fprintf(w, "  duration: %s\n", run.Duration().Round(time.Millisecond))
			fmt.Fprintf(w, "  images:   %d in, %d out\n", run.ImagesIngested, run.ImagesEgested)
			fmt.Fprintf(w, "  dropped:  %d detections\n", run.DetectionsDropped)
			if run.Error != "" {
				fmt.Fprintf(w, "  error:    %s\n", run.Error)
			}
			if len(run.Warnings) > 0 {
				fmt.Fprintf(w, "warnings (%d):\n", len(run.Warnings))
				for _, warn := range run.Warnings {
					fmt.Fprintf(w, "  %s\n", warn)
				}
			}
			return nil
		},
	}
}
