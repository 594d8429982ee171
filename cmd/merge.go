package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/activity-merge/internal/pipeline"
)

type mergeOptions struct {
	dryRun     bool
	report     string
	duplicates string
}

var mergeOpts mergeOptions

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge the source feed into the canonical store",
	Long: "Runs one merge: parse the source feed, normalize and classify each record, " +
		"back up the canonical store and append the new records.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMerge(cmd, mergeOpts)
	},
}

func init() {
	mergeCmd.Flags().BoolVar(&mergeOpts.dryRun, "dry-run", false, "classify and report without writing the backup or the store")
	mergeCmd.Flags().StringVar(&mergeOpts.report, "report", "", "write the run summary to this file (.json, .yaml or .yml)")
	mergeCmd.Flags().StringVar(&mergeOpts.duplicates, "duplicates", "", "write the duplicates and what they matched to this CSV file")
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, opts mergeOptions) error {
	ctx := cmd.Context()

	if err := cfg.Validate("merge"); err != nil {
		return err
	}

	coordOpts := []pipeline.Option{pipeline.WithDryRun(opts.dryRun)}

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			// The ledger is optional; a broken one never blocks a merge.
			zap.L().Warn("merge: ledger unavailable, continuing without it", zap.Error(err))
		} else {
			coordOpts = append(coordOpts, pipeline.WithRecorder(st))
		}
	}

	summary, err := pipeline.NewCoordinator(cfg, coordOpts...).Run(ctx)
	if err != nil {
		return err
	}

	pipeline.PrintSummary(cmd.OutOrStdout(), summary, cfg.Merge.SampleNew, cfg.Merge.SampleDuplicates)

	if opts.report != "" {
		if err := pipeline.WriteReport(opts.report, summary); err != nil {
			return eris.Wrap(err, "merge: write report")
		}
		zap.L().Info("merge: wrote report", zap.String("path", opts.report))
	}
	if opts.duplicates != "" {
		if err := pipeline.WriteDuplicatesCSV(opts.duplicates, summary.DuplicateList); err != nil {
			return eris.Wrap(err, "merge: write duplicates")
		}
		zap.L().Info("merge: wrote duplicates", zap.String("path", opts.duplicates), zap.Int("count", len(summary.DuplicateList)))
	}
	return nil
}
