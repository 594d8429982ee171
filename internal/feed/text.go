package feed

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sells-group/activity-merge/internal/model"
)

// blockState is how far a text block has filled its title and description.
type blockState int

const (
	stateEmpty blockState = iota
	stateHasTitle
	stateHasTitleAndDescription
)

func (s blockState) String() string {
	switch s {
	case stateHasTitle:
		return "has_title"
	case stateHasTitleAndDescription:
		return "has_title_and_description"
	default:
		return "empty"
	}
}

func stateOf(f model.Fields) blockState {
	if !f.Has(model.FieldTitle) {
		return stateEmpty
	}
	if !f.Has(model.FieldDescription) {
		return stateHasTitle
	}
	return stateHasTitleAndDescription
}

// plainTarget is the field a standalone line fills in each state. A state
// with no entry drops the line.
var plainTarget = map[blockState]string{
	stateEmpty:    model.FieldTitle,
	stateHasTitle: model.FieldDescription,
}

type lineKind int

const (
	linePlain lineKind = iota
	lineKeyValue
	lineDashed
)

var keyValueRe = regexp.MustCompile(`^([^:]+):(.*)$`)

const dashSep = " - "

// classify splits a trimmed line into its kind and the key/value pair it
// carries. Dashed lines return the title and description.
func classify(line string) (lineKind, string, string) {
	if m := keyValueRe.FindStringSubmatch(line); m != nil {
		return lineKeyValue, strings.ToLower(strings.TrimSpace(m[1])), strings.TrimSpace(m[2])
	}
	if idx := strings.Index(line, dashSep); idx >= 0 {
		return lineDashed, strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+len(dashSep):])
	}
	return linePlain, "", line
}

// apply folds one line into the in-progress record.
func apply(f *model.Fields, line string) {
	kind, key, value := classify(line)
	switch kind {
	case lineKeyValue:
		f.Set(key, value)
	case lineDashed:
		// Overwrites title/description set by earlier lines of the same block.
		f.Set(model.FieldTitle, key)
		f.Set(model.FieldDescription, value)
	default:
		if target, ok := plainTarget[stateOf(*f)]; ok {
			f.Set(target, value)
		}
	}
}

// recordComplete reports whether the block ends before next: at end of input,
// before a line starting with an upper-case letter, or before a line holding a
// colon.
func recordComplete(next string, hasNext bool) bool {
	if !hasNext {
		return true
	}
	r, _ := utf8.DecodeRuneInString(next)
	return unicode.IsUpper(r) || strings.Contains(next, ":")
}

// parseText runs the block state machine over trimmed non-blank lines.
func parseText(lines []string) []model.Raw {
	var out []model.Raw
	var cur model.Fields

	for i, line := range lines {
		apply(&cur, line)

		next, hasNext := "", i+1 < len(lines)
		if hasNext {
			next = lines[i+1]
		}
		if !recordComplete(next, hasNext) {
			continue
		}
		if cur.Len() > 0 {
			out = append(out, model.Raw{Fields: cur.Clone()})
		}
		cur = model.Fields{}
	}
	return out
}
