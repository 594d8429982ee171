package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/activity-merge/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "activity-merge",
	Short: "Merge new activity feeds into the canonical activity store",
	Long: "Parses the source activity feed (pipe-delimited or free text), normalizes each record, " +
		"drops titles already in the canonical store and appends the rest after writing a timestamped backup.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	Args: cobra.NoArgs,
	// With no subcommand the tool runs one merge with the configured paths.
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMerge(cmd, mergeOptions{})
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
