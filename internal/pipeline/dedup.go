package pipeline

import (
	"strings"

	"github.com/sells-group/activity-merge/internal/model"
	"github.com/sells-group/activity-merge/pkg/similarity"
)

// HeaderToken is the title value of a header row that slipped into the data.
const HeaderToken = "title"

// MatchKind tells which rule flagged a duplicate.
type MatchKind string

const (
	MatchExact MatchKind = "exact"
	MatchFuzzy MatchKind = "fuzzy"
)

// MatchSource tells what a duplicate was matched against.
type MatchSource string

const (
	SourceCanonical MatchSource = "canonical"
	SourceBatch     MatchSource = "batch"
)

// Duplicate is a candidate together with the first record it matched.
type Duplicate struct {
	Candidate    model.Candidate
	MatchedTitle string
	MatchedIndex int
	Source       MatchSource
	Kind         MatchKind
	Score        float64
}

// Classification splits candidates into new and duplicate, each keeping the
// input order.
type Classification struct {
	New        []model.Candidate
	Duplicates []Duplicate
}

// Deduplicator flags candidates whose title matches an existing record
// exactly or with a similarity score above Threshold.
type Deduplicator struct {
	Threshold   float64
	WithinBatch bool
}

type target struct {
	title string
	key   string
}

// Classify checks each candidate against targets in order and stops at the
// first match. With WithinBatch set, candidates are also checked against the
// candidates already accepted as new.
func (d Deduplicator) Classify(candidates []model.Candidate, existing []model.Canonical) Classification {
	targets := make([]target, len(existing))
	for i, c := range existing {
		targets[i] = target{title: c.Title(), key: similarity.Key(c.Title())}
	}

	var out Classification
	var accepted []target
	for _, c := range candidates {
		key := similarity.Key(c.Title())

		if dup, ok := d.firstMatch(key, targets); ok {
			dup.Candidate = c
			dup.Source = SourceCanonical
			out.Duplicates = append(out.Duplicates, dup)
			continue
		}
		if d.WithinBatch {
			if dup, ok := d.firstMatch(key, accepted); ok {
				dup.Candidate = c
				dup.Source = SourceBatch
				out.Duplicates = append(out.Duplicates, dup)
				continue
			}
		}

		out.New = append(out.New, c)
		accepted = append(accepted, target{title: c.Title(), key: key})
	}
	return out
}

func (d Deduplicator) firstMatch(key string, targets []target) (Duplicate, bool) {
	if key == "" {
		return Duplicate{}, false
	}
	for i, t := range targets {
		if key == t.key {
			return Duplicate{MatchedTitle: t.title, MatchedIndex: i, Kind: MatchExact, Score: 1}, true
		}
		if score := similarity.Score(key, t.key); score > d.Threshold {
			return Duplicate{MatchedTitle: t.title, MatchedIndex: i, Kind: MatchFuzzy, Score: score}, true
		}
	}
	return Duplicate{}, false
}

// FilterCandidates drops candidates with a blank title or a title equal to
// the header token. It returns the kept candidates and the number dropped.
func FilterCandidates(candidates []model.Candidate) ([]model.Candidate, int) {
	kept := make([]model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		title := c.Title()
		if strings.TrimSpace(title) == "" || title == HeaderToken {
			continue
		}
		kept = append(kept, c)
	}
	return kept, len(candidates) - len(kept)
}
