package model

import "strings"

// Canonical field names of an activity record.
const (
	FieldID          = "id"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldCategoryID  = "categoryId"
	FieldLocationID  = "locationId"
	FieldPriceID     = "priceId"
	FieldScheduleID  = "scheduleId"
	FieldTags        = "tags"
	FieldWebsite     = "website"
	FieldLastUpdated = "lastUpdated"
	FieldCity        = "city"
)

// CandidateFieldOrder is the column order of a candidate built from scratch.
var CandidateFieldOrder = []string{
	FieldID,
	FieldTitle,
	FieldDescription,
	FieldCategoryID,
	FieldLocationID,
	FieldPriceID,
	FieldScheduleID,
	FieldTags,
	FieldWebsite,
	FieldLastUpdated,
	FieldCity,
}

// Raw is one loosely typed record detected in a source feed. Keys vary with
// the input: text blocks produce lower-cased keys, tabular feeds keep the
// header text as given.
type Raw struct {
	Fields
}

// Candidate is a normalized activity derived from the source feed that has
// not been merged yet. It always carries a non-empty id and title.
type Candidate struct {
	Fields
}

// ID returns the record id.
func (c Candidate) ID() string { return c.Value(FieldID) }

// Title returns the record title.
func (c Candidate) Title() string { return c.Value(FieldTitle) }

// Description returns the record description.
func (c Candidate) Description() string { return c.Value(FieldDescription) }

// Tags splits the comma-delimited tags field.
func (c Candidate) Tags() []string { return SplitTags(c.Value(FieldTags)) }

// Canonical is a row of the persisted canonical store. It is never
// re-normalized, only scanned and carried through a merge.
type Canonical struct {
	Fields
}

// Title returns the record title.
func (c Canonical) Title() string { return c.Value(FieldTitle) }

// SplitTags splits a comma-delimited list, trimming entries and dropping empty ones.
func SplitTags(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
