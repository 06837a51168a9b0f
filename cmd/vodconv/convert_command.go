package main

import (
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SAlberte/multi-annotator/store"
	"github.com/SAlberte/multi-annotator/vodconvert"
	"github.com/SAlberte/multi-annotator/worker"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var (
		fromFormat string
		toFormat   string
		onUnmapped string
		thumbnails bool
		noHistory  bool
		folders    []string
		aliases    []string
	)

	cmd := &cobra.Command{
		Use:   "convert --from FORMAT --to FORMAT SOURCE TARGET",
		Short: "Convert a dataset from one format to another",
		Long: "Convert reads the dataset at SOURCE in the --from format and writes it\n" +
			"to TARGET in the --to format. Bare dataset names resolve against the\n" +
			"configured dataset directory. Per-image problems become warnings, not\n" +
			"errors; the summary always shows what was dropped.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			fromPath, err := ctx.resolveDataset(args[0], true)
			if err != nil {
				return err
			}
			toPath, err := ctx.resolveDataset(args[1], false)
			if err != nil {
				return err
			}

			policy := strings.TrimSpace(onUnmapped)
			if policy == "" {
				policy = cfg.Convert.OnUnmappedLabel
			}
			if policy == "" {
				return fmt.Errorf("--on-unmapped is required (drop or keep); " +
					"set convert.on_unmapped_label in the config to default it")
			}

			folderNames, err := parseKeyValues(folders)
			if err != nil {
				return fmt.Errorf("--folder: %w", err)
			}
			aliasTable := cfg.MergedAliases()
			extraAliases, err := parseKeyValues(aliases)
			if err != nil {
				return fmt.Errorf("--alias: %w", err)
			}
			for k, v := range extraAliases {
				aliasTable[k] = v
			}

			genThumbnails := cfg.Convert.Thumbnails
			if cmd.Flags().Changed("thumbnails") {
				genThumbnails = thumbnails
			}

			var st *store.Store
			if !noHistory {
				if st, err = ctx.openStore(); err != nil {
					logger.Warn("run history disabled", "error", err)
					st = nil
				} else {
					defer st.Close()
				}
			}

			runner := worker.New(vodconvert.NewConverter(logger), st, logger)

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			outcome, runErr := runner.Run(signalCtx, vodconvert.Request{
				FromPath:        fromPath,
				FromFormat:      fromFormat,
				ToPath:          toPath,
				ToFormat:        toFormat,
				Folders:         folderNames,
				OnUnmappedLabel: vodconvert.UnmappedLabelPolicy(policy),
				Aliases:         aliasTable,
				Thumbnails:      genThumbnails,
			})
			printRunSummary(cmd.OutOrStdout(), outcome)
			return runErr
		},
	}

	cmd.Flags().StringVar(&fromFormat, "from", "", "Source format id (see 'vodconv formats')")
	cmd.Flags().StringVar(&toFormat, "to", "", "Target format id")
	cmd.Flags().StringVar(&onUnmapped, "on-unmapped", "",
		"What to do with labels the target format does not know: drop or keep")
	cmd.Flags().BoolVar(&thumbnails, "thumbnails", false,
		"Generate a _thumbnail directory next to the egested images")
	cmd.Flags().BoolVar(&noHistory, "no-history", false,
		"Do not record this run in the history database")
	cmd.Flags().StringArrayVar(&folders, "folder", nil,
		"Override a format folder or file name, key=value (repeatable)")
	cmd.Flags().StringArrayVar(&aliases, "alias", nil,
		"Extra label alias, old=new (repeatable)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

// maxWarningsShown caps the warning echo in the summary; the full log is in
// the run history.
const maxWarningsShown = 20

func printRunSummary(w io.Writer, outcome worker.RunOutcome) {
	res := outcome.Result
	fmt.Fprintf(w, "run %s: %s in %s\n",
		outcome.RunID, res.State, outcome.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  images ingested:    %d\n", res.ImagesIngested)
	fmt.Fprintf(w, "  images egested:     %d\n", res.ImagesEgested)
	fmt.Fprintf(w, "  detections dropped: %d\n", res.DetectionsDropped)
	fmt.Fprintf(w, "  warnings:           %d\n", len(res.Warnings))

	for i, warn := range res.Warnings {
		if i == maxWarningsShown {
			fmt.Fprintf(w, "  ... and %d more (vodconv runs show %s)\n",
				len(res.Warnings)-maxWarningsShown, outcome.RunID)
			break
		}
		fmt.Fprintf(w, "  %s\n", warn.String())
	}
}

func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", p)
		}
		m[k] = v
	}
	return m, nil
}
