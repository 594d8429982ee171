// Package similarity scores how alike two titles are using length-normalized
// Levenshtein distance.
package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"
)

// Distance returns the Levenshtein distance between a and b with unit cost for
// insertion, deletion and substitution. Strings are compared rune by rune.
func Distance(a, b string) int {
	return levenshtein.Distance(a, b, nil)
}

// Score returns 1 - Distance(a, b) / len(longer), in the range [0, 1].
// Two empty strings score 1.
func Score(a, b string) float64 {
	longer := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longer {
		longer = n
	}
	if longer == 0 {
		return 1
	}
	return float64(longer-Distance(a, b)) / float64(longer)
}

// Key returns the comparison form of a title: trimmed and lower-cased.
func Key(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Match reports how a candidate title relates to a target title.
type Match struct {
	Exact bool
	Score float64
}

// Compare scores two titles after trimming and lower-casing. Exact is set
// only when both keys are non-empty and equal.
func Compare(a, b string) Match {
	ka, kb := Key(a), Key(b)
	if ka != "" && ka == kb {
		return Match{Exact: true, Score: 1}
	}
	return Match{Score: Score(ka, kb)}
}
