// Package store persists the merge run ledger.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/activity-merge/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Since  time.Time       `json:"since,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// RunStats aggregates the ledger by run status.
type RunStats struct {
	Total      int                     `json:"total"`
	ByStatus   map[model.RunStatus]int `json:"by_status"`
	NewEntries int                     `json:"new_entries"`
	Duplicates int                     `json:"duplicates"`
}

// Store defines the persistence interface for the merge run ledger.
type Store interface {
	// Runs
	StartRun(ctx context.Context, sourcePath, canonicalPath string, dryRun bool) (*model.MergeRun, error)
	CompleteRun(ctx context.Context, runID, backupPath string, result *model.MergeResult) error
	FailRun(ctx context.Context, runID, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.MergeRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.MergeRun, error)
	Stats(ctx context.Context) (*RunStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func newRunStats() *RunStats {
	return &RunStats{ByStatus: make(map[model.RunStatus]int)}
}

// addResult folds one completed run's stored result into the totals.
func (st *RunStats) addResult(resultJSON []byte) error {
	var r model.MergeResult
	if err := json.Unmarshal(resultJSON, &r); err != nil {
		return eris.Wrap(err, "unmarshal result")
	}
	st.NewEntries += r.NewEntries
	st.Duplicates += r.Duplicates
	return nil
}
