package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SAlberte/multi-annotator/config"
	"github.com/SAlberte/multi-annotator/vodconvert"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialise the configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newConfigInitCommand(), newConfigShowCommand(ctx))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		path      string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented sample configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := strings.TrimSpace(path)
			var err error
			if target == "" {
				if target, err = config.DefaultConfigPath(); err != nil {
					return err
				}
			} else if target, err = config.ExpandPath(target); err != nil {
				return err
			}

			if _, err := os.Stat(target); err == nil && !overwrite {
				return fmt.Errorf("config file %s already exists (use --overwrite to replace it)", target)
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote sample config to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "",
		"Where to write the file (default ~/.config/vodconv/config.toml)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration and where it came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if ctx.configExists {
				fmt.Fprintf(w, "config file: %s\n", ctx.configPath)
			} else {
				fmt.Fprintf(w, "config file: %s (not present, using defaults)\n", ctx.configPath)
			}

			policy := cfg.Convert.OnUnmappedLabel
			if policy == "" {
				policy = "(unset, every run must pass --on-unmapped)"
			}
			fmt.Fprintf(w, "  paths.dataset_dir:         %s\n", cfg.Paths.DatasetDir)
			fmt.Fprintf(w, "  paths.store_path:          %s\n", cfg.Paths.StorePath)
			fmt.Fprintf(w, "  convert.on_unmapped_label: %s\n", policy)
			fmt.Fprintf(w, "  convert.thumbnails:        %t\n", cfg.Convert.Thumbnails)
			fmt.Fprintf(w, "  convert.aliases:           %d configured, %d built-in\n",
				len(cfg.Convert.Aliases), len(vodconvert.DefaultAliases()))
			fmt.Fprintf(w, "  logging.level:             %s\n", cfg.Logging.Level)
			fmt.Fprintf(w, "  logging.format:            %s\n", cfg.Logging.Format)
			return nil
		},
	}
}
