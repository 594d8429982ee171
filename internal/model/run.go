package model

import "time"

// RunStatus represents the state of a merge run in the ledger.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// MergeRun is one ledger entry describing a merge invocation.
type MergeRun struct {
	ID            string       `json:"id"`
	SourcePath    string       `json:"source_path"`
	CanonicalPath string       `json:"canonical_path"`
	Status        RunStatus    `json:"status"`
	DryRun        bool         `json:"dry_run"`
	BackupPath    string       `json:"backup_path,omitempty"`
	Result        *MergeResult `json:"result,omitempty"`
	Error         string       `json:"error,omitempty"`
	StartedAt     time.Time    `json:"started_at"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
}

// MergeResult holds the counts recorded for a completed run.
type MergeResult struct {
	SourceRecords   int    `json:"source_records" yaml:"source_records"`
	ExistingRecords int    `json:"existing_records" yaml:"existing_records"`
	NewEntries      int    `json:"new_entries" yaml:"new_entries"`
	Duplicates      int    `json:"duplicates" yaml:"duplicates"`
	MergedTotal     int    `json:"merged_total" yaml:"merged_total"`
	Summary         string `json:"summary" yaml:"summary"`
}

// Duration returns how long the run took, or zero if it has not finished.
func (r MergeRun) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
