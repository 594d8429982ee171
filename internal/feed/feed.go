// Package feed detects the shape of a source feed and splits it into loosely
// typed records.
package feed

import (
	"strings"

	"github.com/sells-group/activity-merge/internal/fetcher"
	"github.com/sells-group/activity-merge/internal/model"
)

// Delimiter separates fields in tabular feeds and in the canonical store.
const Delimiter = '|'

// Format identifies how a feed is parsed.
type Format string

const (
	FormatEmpty   Format = "empty"
	FormatTabular Format = "tabular"
	FormatText    Format = "text"
)

// Detect inspects the first non-blank line: if it contains the delimiter the
// feed is tabular, otherwise it is free text.
func Detect(content string) Format {
	lines := nonBlankLines(content)
	if len(lines) == 0 {
		return FormatEmpty
	}
	if strings.ContainsRune(lines[0], Delimiter) {
		return FormatTabular
	}
	return FormatText
}

// Parse splits content into records. It never fails: malformed lines are
// dropped or degrade into partial records.
func Parse(content string) []model.Raw {
	switch Detect(content) {
	case FormatTabular:
		return parseTabular(content)
	case FormatText:
		return parseText(nonBlankLines(content))
	default:
		return nil
	}
}

// parseTabular reads a header row followed by data rows from the non-blank
// lines of content. Header text is kept as given.
func parseTabular(content string) []model.Raw {
	tbl := fetcher.ParseTable(nonBlankLines(content), fetcher.TableOptions{
		Delimiter: Delimiter,
		TrimSpace: true,
	})

	out := make([]model.Raw, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		out = append(out, model.Raw{Fields: model.FieldsFrom(tbl.Header, row)})
	}
	return out
}

// nonBlankLines returns the trimmed, non-empty lines of content.
func nonBlankLines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			out = append(out, l)
		}
	}
	return out
}
