package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/activity-merge/internal/feed"
	"github.com/sells-group/activity-merge/internal/model"
)

// Summary reports the outcome of a merge run.
type Summary struct {
	RunID           string      `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	SourceFormat    feed.Format `json:"source_format" yaml:"source_format"`
	SourceRecords   int         `json:"source_records" yaml:"source_records"`
	Rejected        int         `json:"rejected" yaml:"rejected"`
	ExistingRecords int         `json:"existing_records" yaml:"existing_records"`
	NewEntries      int         `json:"new_entries" yaml:"new_entries"`
	Duplicates      int         `json:"duplicates" yaml:"duplicates"`
	MergedTotal     int         `json:"merged_total" yaml:"merged_total"`
	BackupPath      string      `json:"backup_path,omitempty" yaml:"backup_path,omitempty"`
	DryRun          bool        `json:"dry_run" yaml:"dry_run"`
	Written         bool        `json:"written" yaml:"written"`
	NewTitles       []string    `json:"new_titles" yaml:"new_titles"`
	DuplicateTitles []string    `json:"duplicate_titles" yaml:"duplicate_titles"`
	Text            string      `json:"summary" yaml:"summary"`

	DuplicateList []Duplicate `json:"-" yaml:"-"`
}

// String returns the one-line summary.
func (s *Summary) String() string {
	return fmt.Sprintf("Parsed %d source records against %d existing: %d new, %d duplicates, merged total %d",
		s.SourceRecords, s.ExistingRecords, s.NewEntries, s.Duplicates, s.MergedTotal)
}

// Result converts the summary to its ledger form.
func (s *Summary) Result() *model.MergeResult {
	return &model.MergeResult{
		SourceRecords:   s.SourceRecords,
		ExistingRecords: s.ExistingRecords,
		NewEntries:      s.NewEntries,
		Duplicates:      s.Duplicates,
		MergedTotal:     s.MergedTotal,
		Summary:         s.String(),
	}
}

// PrintSummary writes the human-readable report: counts plus up to sampleNew
// new titles and sampleDup duplicate titles.
func PrintSummary(out io.Writer, s *Summary, sampleNew, sampleDup int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Source records parsed:\t%v\n", s.SourceRecords)
	if s.Rejected > 0 {
		_, _ = fmt.Fprintf(w, "Rejected (blank or header):\t%v\n", s.Rejected)
	}
	_, _ = fmt.Fprintf(w, "Existing records:\t%v\n", s.ExistingRecords)
	_, _ = fmt.Fprintf(w, "New entries:\t%v\n", s.NewEntries)
	_, _ = fmt.Fprintf(w, "Duplicates:\t%v\n", s.Duplicates)
	_, _ = fmt.Fprintf(w, "Merged total:\t%v\n", s.MergedTotal)
	if s.BackupPath != "" {
		_, _ = fmt.Fprintf(w, "Backup:\t%v\n", s.BackupPath)
	}
	_ = w.Flush()

	printSample(out, "New entries", s.NewTitles, sampleNew)
	printSample(out, "Duplicates", s.DuplicateTitles, sampleDup)

	switch {
	case s.DryRun:
		_, _ = fmt.Fprintln(out, "Dry run: no files were written.")
	case !s.Written:
		_, _ = fmt.Fprintln(out, "No new entries: canonical store left unchanged.")
	}
	_, _ = fmt.Fprintln(out, s.Text)
}

func printSample(out io.Writer, label string, titles []string, limit int) {
	if len(titles) == 0 || limit <= 0 {
		return
	}
	n := min(limit, len(titles))
	_, _ = fmt.Fprintf(out, "%s (showing %d of %d):\n", label, n, len(titles))
	for _, t := range titles[:n] {
		_, _ = fmt.Fprintf(out, "  - %s\n", t)
	}
}

// WriteReport writes the summary to path as YAML for .yaml/.yml files and as
// indented JSON otherwise.
func WriteReport(path string, s *Summary) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(s)
	default:
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return eris.Wrap(err, "report: marshal summary")
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "report: write %s", path)
}

// duplicateRow is one line of the duplicates review file.
type duplicateRow struct {
	ID           string  `csv:"id"`
	Title        string  `csv:"title"`
	MatchedTitle string  `csv:"matched_title"`
	Source       string  `csv:"matched_in"`
	Kind         string  `csv:"match"`
	Score        float64 `csv:"score"`
}

// WriteDuplicatesCSV writes one row per duplicate with what it matched.
func WriteDuplicatesCSV(path string, dups []Duplicate) error {
	rows := make([]duplicateRow, 0, len(dups))
	for _, d := range dups {
		rows = append(rows, duplicateRow{
			ID:           d.Candidate.ID(),
			Title:        d.Candidate.Title(),
			MatchedTitle: d.MatchedTitle,
			Source:       string(d.Source),
			Kind:         string(d.Kind),
			Score:        d.Score,
		})
	}

	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "report: marshal duplicates")
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "report: write %s", path)
}
