package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/activity-merge/internal/config"
	"github.com/sells-group/activity-merge/internal/model"
)

// TimestampLayout is the ISO-8601 form used for lastUpdated.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

const (
	richFieldThreshold = 5
	slugLength         = 10
	timeSuffixDigits   = 6
)

// Alternate source keys, in priority order, for fields built from scratch.
var (
	titleKeys       = []string{model.FieldTitle, "name", "activity", "event"}
	descriptionKeys = []string{model.FieldDescription, "desc", "details", "summary"}
	websiteKeys     = []string{model.FieldWebsite, "url", "link"}
)

// IDGenerator issues record ids of the form <prefix><6 time digits>_<slug>.
// Ids issued or reserved by the same generator never repeat; a collision gets
// a _2, _3, ... suffix.
type IDGenerator struct {
	prefix string
	now    func() time.Time
	issued map[string]bool
}

// NewIDGenerator creates a generator. A nil clock uses time.Now.
func NewIDGenerator(prefix string, now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{prefix: prefix, now: now, issued: make(map[string]bool)}
}

// Next returns a fresh id for a record with the given title.
func (g *IDGenerator) Next(title string) string {
	ms := strconv.FormatInt(g.now().UnixMilli(), 10)
	if len(ms) > timeSuffixDigits {
		ms = ms[len(ms)-timeSuffixDigits:]
	}

	base := g.prefix + ms + "_" + Slug(title)
	id := base
	for n := 2; g.issued[id]; n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	g.issued[id] = true
	return id
}

// Reserve marks an id that arrived with its record as taken.
func (g *IDGenerator) Reserve(id string) {
	g.issued[id] = true
}

// Slug lower-cases s, keeps only ASCII letters and digits and truncates the
// result to ten characters.
func Slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == slugLength {
				break
			}
		}
	}
	return b.String()
}

// Normalizer converts raw feed records into candidates.
type Normalizer struct {
	cfg config.NormalizeConfig
	ids *IDGenerator
	now func() time.Time
}

// NewNormalizer creates a Normalizer. A nil clock uses time.Now.
func NewNormalizer(cfg config.NormalizeConfig, now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{cfg: cfg, ids: NewIDGenerator(cfg.IDPrefix, now), now: now}
}

// IsRich reports whether a raw record is already normalized: it has a
// non-empty title and description and more than five fields.
func IsRich(r model.Raw) bool {
	return r.Value(model.FieldTitle) != "" &&
		r.Value(model.FieldDescription) != "" &&
		r.Len() > richFieldThreshold
}

// Normalize converts one raw record. Rich records pass through with only id
// and lastUpdated filled in; all others are rebuilt with defaults.
func (n *Normalizer) Normalize(r model.Raw) model.Candidate {
	if IsRich(r) {
		return n.passThrough(r)
	}
	return n.build(r)
}

// NormalizeAll converts records in order.
func (n *Normalizer) NormalizeAll(raws []model.Raw) []model.Candidate {
	out := make([]model.Candidate, 0, len(raws))
	for _, r := range raws {
		out = append(out, n.Normalize(r))
	}
	return out
}

func (n *Normalizer) passThrough(r model.Raw) model.Candidate {
	f := r.Clone()
	if id := f.Value(model.FieldID); id != "" {
		n.ids.Reserve(id)
	} else {
		f.Set(model.FieldID, n.ids.Next(idTitle(r)))
	}
	if f.Value(model.FieldLastUpdated) == "" {
		f.Set(model.FieldLastUpdated, n.timestamp())
	}
	return model.Candidate{Fields: f}
}

func (n *Normalizer) build(r model.Raw) model.Candidate {
	var f model.Fields

	id := lookup(r, model.FieldID)
	if id != "" {
		n.ids.Reserve(id)
	} else {
		id = n.ids.Next(idTitle(r))
	}

	tags := model.SplitTags(lookup(r, model.FieldTags))
	if len(tags) == 0 {
		tags = n.cfg.Tags
	}

	f.Set(model.FieldID, id)
	f.Set(model.FieldTitle, firstOr(r, titleKeys, n.cfg.Untitled))
	f.Set(model.FieldDescription, firstOr(r, descriptionKeys, n.cfg.NoDescription))
	f.Set(model.FieldCategoryID, firstOr(r, []string{model.FieldCategoryID}, n.cfg.CategoryID))
	f.Set(model.FieldLocationID, firstOr(r, []string{model.FieldLocationID}, n.cfg.LocationID))
	f.Set(model.FieldPriceID, firstOr(r, []string{model.FieldPriceID}, n.cfg.PriceID))
	f.Set(model.FieldScheduleID, firstOr(r, []string{model.FieldScheduleID}, n.cfg.ScheduleID))
	f.Set(model.FieldTags, strings.Join(tags, ","))
	f.Set(model.FieldWebsite, firstOr(r, websiteKeys, n.cfg.Website))
	f.Set(model.FieldLastUpdated, firstOr(r, []string{model.FieldLastUpdated}, n.timestamp()))
	f.Set(model.FieldCity, n.cfg.City)

	return model.Candidate{Fields: f}
}

func (n *Normalizer) timestamp() string {
	return n.now().UTC().Format(TimestampLayout)
}

// idTitle picks the text the id slug is derived from.
func idTitle(r model.Raw) string {
	if t := lookup(r, model.FieldTitle); t != "" {
		return t
	}
	if name := lookup(r, "name"); name != "" {
		return name
	}
	return "unknown"
}

func lookup(r model.Raw, key string) string {
	v, _ := r.Lookup(key)
	return strings.TrimSpace(v)
}

func firstOr(r model.Raw, keys []string, fallback string) string {
	for _, k := range keys {
		if v := lookup(r, k); v != "" {
			return v
		}
	}
	return fallback
}
