package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/activity-merge/internal/config"
	"github.com/sells-group/activity-merge/internal/model"
)

// fixedNow is 2023-11-14T22:15:23.456Z.
var fixedNow = time.UnixMilli(1700000123456).UTC()

func fixedClock() time.Time { return fixedNow }

func testNormalizeConfig() config.NormalizeConfig {
	return config.NormalizeConfig{
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
}

// testEnv writes the source feed and canonical store into a temp dir and
// returns a config pointing at them.
func testEnv(t *testing.T, source, canonical string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{}
	cfg.Paths.Source = filepath.Join(dir, "src", "new_data", "activities.txt")
	cfg.Paths.Canonical = filepath.Join(dir, "public", "data", "activities.csv")
	cfg.Source.Encoding = "utf-8"
	cfg.Dedup.Threshold = 0.8
	cfg.Normalize = testNormalizeConfig()
	cfg.Merge.SampleNew = 5
	cfg.Merge.SampleDuplicates = 3

	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Paths.Source), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Paths.Canonical), 0o755))
	require.NoError(t, os.WriteFile(cfg.Paths.Source, []byte(source), 0o644))
	require.NoError(t, os.WriteFile(cfg.Paths.Canonical, []byte(canonical), 0o644))
	return cfg
}

// backups lists backup files next to the canonical store.
func backups(t *testing.T, canonicalPath string) []string {
	t.Helper()
	matches, err := filepath.Glob(canonicalPath + ".backup.*")
	require.NoError(t, err)
	return matches
}

func raw(pairs ...string) model.Raw {
	var f model.Fields
	for i := 0; i+1 < len(pairs); i += 2 {
		f.Set(pairs[i], pairs[i+1])
	}
	return model.Raw{Fields: f}
}

func candidate(title string) model.Candidate {
	var f model.Fields
	f.Set(model.FieldID, "id_"+title)
	f.Set(model.FieldTitle, title)
	return model.Candidate{Fields: f}
}

func canonical(title string) model.Canonical {
	var f model.Fields
	f.Set(model.FieldTitle, title)
	return model.Canonical{Fields: f}
}

type fakeRecorder struct {
	started   int
	completed map[string]*model.MergeResult
	backups   map[string]string
	failed    map[string]string
	startErr  error
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		completed: make(map[string]*model.MergeResult),
		backups:   make(map[string]string),
		failed:    make(map[string]string),
	}
}

func (f *fakeRecorder) StartRun(_ context.Context, src, canon string, dryRun bool) (*model.MergeRun, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started++
	return &model.MergeRun{ID: "run-1", SourcePath: src, CanonicalPath: canon, DryRun: dryRun, Status: model.RunStatusRunning}, nil
}

func (f *fakeRecorder) CompleteRun(_ context.Context, id, backupPath string, result *model.MergeResult) error {
	f.completed[id] = result
	f.backups[id] = backupPath
	return nil
}

func (f *fakeRecorder) FailRun(_ context.Context, id, msg string) error {
	f.failed[id] = msg
	return nil
}
