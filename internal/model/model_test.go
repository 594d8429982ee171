package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFields_KeepsInsertionOrder(t *testing.T) {
	var f Fields
	f.Set("title", "Zoo")
	f.Set("city", "toronto")
	f.Set("title", "Aquarium")

	assert.Equal(t, []string{"title", "city"}, f.Keys())
	assert.Equal(t, "Aquarium", f.Value("title"))
	assert.Equal(t, 2, f.Len())
}

func TestFieldsFrom(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		row    []string
		want   []string
	}{
		{"exact", []string{"a", "b"}, []string{"1", "2"}, []string{"1", "2"}},
		{"short row", []string{"a", "b", "c"}, []string{"1"}, []string{"1", "", ""}},
		{"surplus cells dropped", []string{"a"}, []string{"1", "2", "3"}, []string{"1"}},
		{"empty header", nil, []string{"1"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := FieldsFrom(tt.header, tt.row)
			assert.Equal(t, tt.want, f.Row(tt.header))
			assert.Equal(t, len(tt.header), f.Len())
		})
	}
}

func TestFields_Lookup(t *testing.T) {
	f := FieldsFrom([]string{"Title", "desc"}, []string{"Zoo", "animals"})

	v, ok := f.Lookup("Title")
	require.True(t, ok)
	assert.Equal(t, "Zoo", v)

	v, ok = f.Lookup("title")
	require.True(t, ok)
	assert.Equal(t, "Zoo", v)

	_, ok = f.Get("title")
	assert.False(t, ok, "Get is exact")

	_, ok = f.Lookup("website")
	assert.False(t, ok)
	assert.True(t, f.Has("desc"))
	assert.False(t, f.Has("Desc"))
}

func TestFields_RowFillsMissing(t *testing.T) {
	var f Fields
	f.Set("id", "x1")
	assert.Equal(t, []string{"", "x1", ""}, f.Row([]string{"title", "id", "city"}))
}

func TestFields_CloneIsIndependent(t *testing.T) {
	var f Fields
	f.Set("title", "Zoo")

	c := f.Clone()
	c.Set("title", "Aquarium")
	c.Set("city", "toronto")

	assert.Equal(t, "Zoo", f.Value("title"))
	assert.Equal(t, 1, f.Len())
	assert.Equal(t, []string{"title", "city"}, c.Keys())
}

func TestFields_KeysReturnsCopy(t *testing.T) {
	var f Fields
	f.Set("title", "Zoo")
	keys := f.Keys()
	keys[0] = "mutated"
	assert.Equal(t, []string{"title"}, f.Keys())
}

func TestZeroFields(t *testing.T) {
	var f Fields
	assert.Equal(t, 0, f.Len())
	assert.Empty(t, f.Value("title"))
	assert.False(t, f.Has("title"))
	assert.Empty(t, f.Keys())
}

func TestCandidateAccessors(t *testing.T) {
	var f Fields
	f.Set(FieldID, "ac123456_zoo")
	f.Set(FieldTitle, "Zoo")
	f.Set(FieldDescription, "animals")
	f.Set(FieldTags, "family, outdoor,,")
	c := Candidate{Fields: f}

	assert.Equal(t, "ac123456_zoo", c.ID())
	assert.Equal(t, "Zoo", c.Title())
	assert.Equal(t, "animals", c.Description())
	assert.Equal(t, []string{"family", "outdoor"}, c.Tags())
	assert.Equal(t, "Zoo", Canonical{Fields: f}.Title())
}

func TestSplitTags(t *testing.T) {
	assert.Nil(t, SplitTags(""))
	assert.Nil(t, SplitTags(" , "))
	assert.Equal(t, []string{"general"}, SplitTags("general"))
	assert.Equal(t, []string{"a", "b"}, SplitTags(" a ,b "))
}

func TestMergeRun_Duration(t *testing.T) {
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	r := MergeRun{StartedAt: start}
	assert.Zero(t, r.Duration())

	done := start.Add(2 * time.Second)
	r.CompletedAt = &done
	assert.Equal(t, 2*time.Second, r.Duration())
}
