package main

import (
	"github.com/spf13/cobra"

	"github.com/SAlberte/multi-annotator/vodconvert"
)

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the supported dataset formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows := make([][]string, 0, 8)
			for _, info := range vodconvert.NewRegistry().Formats() {
				rows = append(rows, []string{
					info.Name,
					yesNo(info.CanIngest),
					yesNo(info.CanEgest),
				})
			}
			renderTable(cmd.OutOrStdout(),
				[]string{"Format", "Read", "Write"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft})
			return nil
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
