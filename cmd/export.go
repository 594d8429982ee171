package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/activity-merge/internal/feed"
	"github.com/sells-group/activity-merge/internal/fetcher"
)

var (
	exportOut   string
	exportSheet string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the canonical store as an XLSX workbook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("export"); err != nil {
			return err
		}
		return exportStore(cfg.Paths.Canonical, exportOut, exportSheet)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "activities.xlsx", "output workbook path")
	exportCmd.Flags().StringVar(&exportSheet, "sheet", "Activities", "worksheet name")
	rootCmd.AddCommand(exportCmd)
}

func exportStore(canonicalPath, out, sheet string) error {
	f, err := os.Open(canonicalPath)
	if err != nil {
		return eris.Wrapf(err, "export: open canonical store %s", canonicalPath)
	}
	defer f.Close() //nolint:errcheck

	tbl, err := fetcher.ReadTable(f, fetcher.TableOptions{Delimiter: feed.Delimiter})
	if err != nil {
		return eris.Wrapf(err, "export: parse canonical store %s", canonicalPath)
	}

	if err := fetcher.WriteXLSX(out, sheet, tbl.Header, tbl.Rows); err != nil {
		return eris.Wrap(err, "export")
	}

	zap.L().Info("export: wrote workbook",
		zap.String("canonical", canonicalPath),
		zap.String("out", out),
		zap.Int("rows", len(tbl.Rows)),
	)
	return nil
}
