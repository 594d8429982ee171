// Package pipeline normalizes source feed records, classifies them against the
// canonical store and merges the new ones in.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/activity-merge/internal/config"
	"github.com/sells-group/activity-merge/internal/feed"
	"github.com/sells-group/activity-merge/internal/fetcher"
	"github.com/sells-group/activity-merge/internal/model"
)

// RunRecorder records merge runs in the ledger.
type RunRecorder interface {
	StartRun(ctx context.Context, sourcePath, canonicalPath string, dryRun bool) (*model.MergeRun, error)
	CompleteRun(ctx context.Context, runID, backupPath string, result *model.MergeResult) error
	FailRun(ctx context.Context, runID, errMsg string) error
}

// Coordinator runs one merge of the source feed into the canonical store.
type Coordinator struct {
	cfg      *config.Config
	recorder RunRecorder
	now      func() time.Time
	dryRun   bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRecorder records each run in the ledger.
func WithRecorder(r RunRecorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithClock replaces time.Now for ids, timestamps and backup names.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithDryRun computes the merge without writing the backup or the store.
func WithDryRun(dryRun bool) Option {
	return func(c *Coordinator) { c.dryRun = dryRun }
}

// NewCoordinator creates a Coordinator for the configured paths.
func NewCoordinator(cfg *config.Config, opts ...Option) *Coordinator {
	c := &Coordinator{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run parses, normalizes, classifies and merges. Any failure aborts the run
// before the canonical store is touched, except a failure of the final write,
// which leaves the backup in place.
func (c *Coordinator) Run(ctx context.Context) (*Summary, error) {
	log := zap.L().With(
		zap.String("source", c.cfg.Paths.Source),
		zap.String("canonical", c.cfg.Paths.Canonical),
		zap.Bool("dry_run", c.dryRun),
	)
	log.Info("pipeline: starting merge")

	var runID string
	if c.recorder != nil {
		run, err := c.recorder.StartRun(ctx, c.cfg.Paths.Source, c.cfg.Paths.Canonical, c.dryRun)
		if err != nil {
			log.Warn("pipeline: failed to record run start", zap.Error(err))
		} else {
			runID = run.ID
		}
	}

	summary, err := c.merge(ctx, log)
	if err != nil {
		err = eris.Wrap(err, "failed to compare and merge files")
		if runID != "" {
			if failErr := c.recorder.FailRun(ctx, runID, err.Error()); failErr != nil {
				log.Warn("pipeline: failed to record run failure", zap.Error(failErr))
			}
		}
		return nil, err
	}

	summary.RunID = runID
	if runID != "" {
		if doneErr := c.recorder.CompleteRun(ctx, runID, summary.BackupPath, summary.Result()); doneErr != nil {
			log.Warn("pipeline: failed to record run result", zap.Error(doneErr))
		}
	}

	log.Info("pipeline: merge complete",
		zap.Int("source_records", summary.SourceRecords),
		zap.Int("new", summary.NewEntries),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("merged_total", summary.MergedTotal),
		zap.Bool("written", summary.Written),
	)
	return summary, nil
}

func (c *Coordinator) merge(ctx context.Context, log *zap.Logger) (*Summary, error) {
	sourcePath, canonicalPath := c.cfg.Paths.Source, c.cfg.Paths.Canonical

	if _, err := requireFile(sourcePath, "source file"); err != nil {
		return nil, err
	}
	canonInfo, err := requireFile(canonicalPath, "canonical store")
	if err != nil {
		return nil, err
	}

	// Source feed.
	rawSource, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, eris.Wrapf(err, "read source file %s", sourcePath)
	}
	text, err := fetcher.DecodeText(rawSource, c.cfg.Source.Encoding)
	if err != nil {
		return nil, eris.Wrapf(err, "decode source file %s", sourcePath)
	}
	format := feed.Detect(text)
	raws := feed.Parse(text)
	log.Info("pipeline: parsed source feed", zap.String("format", string(format)), zap.Int("records", len(raws)))

	normalizer := NewNormalizer(c.cfg.Normalize, c.now)
	candidates, rejected := FilterCandidates(normalizer.NormalizeAll(raws))
	if rejected > 0 {
		log.Debug("pipeline: dropped blank or header candidates", zap.Int("rejected", rejected))
	}

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "merge cancelled")
	}

	// Canonical store.
	rawCanonical, err := os.ReadFile(canonicalPath)
	if err != nil {
		return nil, eris.Wrapf(err, "read canonical store %s", canonicalPath)
	}
	// Canonical rows are opaque: cells are kept byte for byte.
	tbl := fetcher.ParseTable(fetcher.Lines(string(rawCanonical)), fetcher.TableOptions{Delimiter: feed.Delimiter})
	existing := make([]model.Canonical, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		existing = append(existing, model.Canonical{Fields: model.FieldsFrom(tbl.Header, row)})
	}

	dedup := Deduplicator{Threshold: c.cfg.Dedup.Threshold, WithinBatch: c.cfg.Dedup.WithinBatch}
	cls := dedup.Classify(candidates, existing)

	summary := &Summary{
		SourceFormat:    format,
		SourceRecords:   len(raws),
		Rejected:        rejected,
		ExistingRecords: len(existing),
		NewEntries:      len(cls.New),
		Duplicates:      len(cls.Duplicates),
		MergedTotal:     len(existing) + len(cls.New),
		DryRun:          c.dryRun,
		NewTitles:       make([]string, 0, len(cls.New)),
		DuplicateTitles: make([]string, 0, len(cls.Duplicates)),
		DuplicateList:   cls.Duplicates,
	}
	for _, cand := range cls.New {
		summary.NewTitles = append(summary.NewTitles, cand.Title())
	}
	for _, d := range cls.Duplicates {
		summary.DuplicateTitles = append(summary.DuplicateTitles, d.Candidate.Title())
	}
	summary.Text = summary.String()

	if len(cls.New) == 0 || c.dryRun {
		return summary, nil
	}

	header, rows := MergeRows(tbl.Header, existing, cls.New)
	var buf bytes.Buffer
	if err := fetcher.WriteTable(&buf, feed.Delimiter, header, rows); err != nil {
		return nil, eris.Wrap(err, "serialize merged store")
	}

	backupPath := BackupPath(canonicalPath, c.now())
	if err := writeBackup(backupPath, rawCanonical, canonInfo.Mode().Perm()); err != nil {
		return nil, err
	}
	log.Info("pipeline: wrote backup", zap.String("backup", backupPath))
	summary.BackupPath = backupPath

	if err := writeFileAtomic(canonicalPath, buf.Bytes(), canonInfo.Mode().Perm()); err != nil {
		return nil, err
	}
	summary.Written = true
	return summary, nil
}

// MergeRows returns the merged table: existing records first in their
// original order, then the new candidates. The header is the existing header
// followed by any candidate keys it lacks, in first-seen order.
func MergeRows(header []string, existing []model.Canonical, added []model.Candidate) ([]string, [][]string) {
	merged := make([]string, 0, len(header)+len(model.CandidateFieldOrder))
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		if !seen[h] {
			seen[h] = true
			merged = append(merged, h)
		}
	}
	for _, c := range added {
		for _, k := range c.Keys() {
			if !seen[k] {
				seen[k] = true
				merged = append(merged, k)
			}
		}
	}

	rows := make([][]string, 0, len(existing)+len(added))
	for _, e := range existing {
		rows = append(rows, e.Row(merged))
	}
	for _, c := range added {
		rows = append(rows, c.Row(merged))
	}
	return merged, rows
}

func requireFile(path, what string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, eris.Errorf("%s not found: %s", what, path)
		}
		return nil, eris.Wrapf(err, "stat %s %s", what, path)
	}
	if info.IsDir() {
		return nil, eris.Errorf("%s is a directory: %s", what, path)
	}
	return info, nil
}
