package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/activity-merge/internal/config"
	"github.com/sells-group/activity-merge/internal/store"
)

const (
	testCanonical = "id|title|description\nac000001_artwalk|Art Walk|guided walk\n"
	testSource    = "title|description\nArt Walk|desc A\nJazz Night|desc B\n"
)

// useTestConfig points the global config at a fresh workspace holding the
// given feed and store and restores the previous config afterwards.
func useTestConfig(t *testing.T, source, canonical string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	c := &config.Config{}
	c.Paths.Source = filepath.Join(dir, "activities.txt")
	c.Paths.Canonical = filepath.Join(dir, "activities.csv")
	c.Source.Encoding = "utf-8"
	c.Dedup.Threshold = 0.8
	c.Normalize = config.NormalizeConfig{
		IDPrefix:      "ac",
		City:          "toronto",
		CategoryID:    "cat_general",
		LocationID:    "loc_unknown",
		PriceID:       "price_unknown",
		ScheduleID:    "sched_unknown",
		Tags:          []string{"general"},
		Website:       "N/A",
		Untitled:      "Untitled",
		NoDescription: "No description available",
	}
	c.Merge.SampleNew = 5
	c.Merge.SampleDuplicates = 3
	c.Log = config.LogConfig{Level: "info", Format: "console"}

	require.NoError(t, os.WriteFile(c.Paths.Source, []byte(source), 0o644))
	require.NoError(t, os.WriteFile(c.Paths.Canonical, []byte(canonical), 0o644))

	old := cfg
	cfg = c
	t.Cleanup(func() { cfg = old })
	return c
}

func testCommand(out *bytes.Buffer) *cobra.Command {
	c := &cobra.Command{}
	c.SetContext(context.Background())
	c.SetOut(out)
	c.SetErr(out)
	return c
}

func TestRunMerge(t *testing.T) {
	c := useTestConfig(t, testSource, testCanonical)
	dir := filepath.Dir(c.Paths.Canonical)
	opts := mergeOptions{
		report:     filepath.Join(dir, "report.yaml"),
		duplicates: filepath.Join(dir, "dups.csv"),
	}

	var out bytes.Buffer
	require.NoError(t, runMerge(testCommand(&out), opts))

	assert.Contains(t, out.String(), "New entries (showing 1 of 1):")
	assert.Contains(t, out.String(), "  - Jazz Night")
	assert.Contains(t, out.String(), "merged total 2")

	data, err := os.ReadFile(c.Paths.Canonical)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "id|title|description|"))
	assert.Contains(t, string(data), "Jazz Night")

	report, err := os.ReadFile(opts.report)
	require.NoError(t, err)
	assert.Contains(t, string(report), "new_entries: 1")

	dups, err := os.ReadFile(opts.duplicates)
	require.NoError(t, err)
	assert.Contains(t, string(dups), "Art Walk,Art Walk,canonical,exact,1")
}

func TestRunMerge_DryRun(t *testing.T) {
	c := useTestConfig(t, testSource, testCanonical)

	var out bytes.Buffer
	require.NoError(t, runMerge(testCommand(&out), mergeOptions{dryRun: true}))
	assert.Contains(t, out.String(), "Dry run: no files were written.")

	data, err := os.ReadFile(c.Paths.Canonical)
	require.NoError(t, err)
	assert.Equal(t, testCanonical, string(data))
}

func TestRunMerge_MissingSource(t *testing.T) {
	c := useTestConfig(t, testSource, testCanonical)
	require.NoError(t, os.Remove(c.Paths.Source))

	var out bytes.Buffer
	err := runMerge(testCommand(&out), mergeOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compare and merge files")
	assert.Empty(t, out.String())
}

func TestRunMerge_InvalidConfig(t *testing.T) {
	c := useTestConfig(t, testSource, testCanonical)
	c.Dedup.Threshold = 1.5

	var out bytes.Buffer
	err := runMerge(testCommand(&out), mergeOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dedup.threshold")
}

func TestRunMerge_RecordsLedger(t *testing.T) {
	c := useTestConfig(t, testSource, testCanonical)
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "ledger.db")

	var out bytes.Buffer
	require.NoError(t, runMerge(testCommand(&out), mergeOptions{}))

	ctx := context.Background()
	st, err := openLedger(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.NewEntries)
	assert.Equal(t, 1, stats.Duplicates)

	// runs list and runs show read the same ledger.
	var list bytes.Buffer
	listCmd := testCommand(&list)
	listCmd.Flags().AddFlagSet(runsListCmd.Flags())
	require.NoError(t, runsListCmd.RunE(listCmd, nil))
	assert.Contains(t, list.String(), "complete")
	assert.Contains(t, list.String(), "activities.txt")

	runs, err := st.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)

	var show bytes.Buffer
	require.NoError(t, runsShowCmd.RunE(testCommand(&show), []string{runs[0].ID}))
	var shown map[string]any
	require.NoError(t, json.Unmarshal(show.Bytes(), &shown))
	assert.Equal(t, runs[0].ID, shown["id"])
	assert.Equal(t, "complete", shown["status"])

	var statsOut bytes.Buffer
	require.NoError(t, runsStatsCmd.RunE(testCommand(&statsOut), nil))
	assert.Contains(t, statsOut.String(), "Total runs:")
	assert.Contains(t, statsOut.String(), "Records added:")
}

func TestOpenLedger_RequiresDriver(t *testing.T) {
	useTestConfig(t, testSource, testCanonical)

	_, err := openLedger(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver is required")
}

func TestInitStore_Disabled(t *testing.T) {
	useTestConfig(t, testSource, testCanonical)

	st, err := initStore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestInitStore_UnknownDriver(t *testing.T) {
	c := useTestConfig(t, testSource, testCanonical)
	c.Store.Driver = "mysql"

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestExportStore(t *testing.T) {
	c := useTestConfig(t, testSource, testCanonical)
	out := filepath.Join(t.TempDir(), "activities.xlsx")

	require.NoError(t, exportStore(c.Paths.Canonical, out, "Activities"))

	f, err := xlsx.OpenFile(out)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	assert.Equal(t, "Activities", sheet.Name)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "title", sheet.Rows[0].Cells[1].String())
	assert.Equal(t, "Art Walk", sheet.Rows[1].Cells[1].String())
}

func TestExportStore_MissingStore(t *testing.T) {
	err := exportStore(filepath.Join(t.TempDir(), "missing.csv"), filepath.Join(t.TempDir(), "x.xlsx"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export: open canonical store")
}

func TestRootCommand_DefaultRunsMerge(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.MkdirAll(filepath.Join("src", "new_data"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join("public", "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("src", "new_data", "activities.txt"), []byte(testSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join("public", "data", "activities.csv"), []byte(testCanonical), 0o644))

	oldCfg := cfg
	defer func() { cfg = oldCfg }()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	}()

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "1 new, 1 duplicates, merged total 2")

	backups, err := filepath.Glob(filepath.Join(dir, "public", "data", "activities.csv.backup.*"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}
