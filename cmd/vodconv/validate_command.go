package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SAlberte/multi-annotator/vodconvert"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var folders []string

	cmd := &cobra.Command{
		Use:   "validate FORMAT PATH",
		Short: "Check that a dataset has the structure a format requires",
		Long: "Validate checks the directory substructure the given format expects\n" +
			"without reading annotation contents or writing anything.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, dataset := args[0], args[1]

			ingestor, err := vodconvert.NewRegistry().Ingestor(format)
			if err != nil {
				return err
			}
			path, err := ctx.resolveDataset(dataset, true)
			if err != nil {
				return err
			}
			folderNames, err := parseKeyValues(folders)
			if err != nil {
				return fmt.Errorf("--folder: %w", err)
			}

			if ok, reason := ingestor.Validate(path, folderNames); !ok {
				return &vodconvert.ValidationError{Path: path, Reason: reason}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is a valid %s dataset\n", path, format)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&folders, "folder", nil,
		"Override a format folder or file name, key=value (repeatable)")
	return cmd
}
