package fetcher

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTable_PipeDelimited(t *testing.T) {
	input := "title|description\nArt Walk|desc A\nJazz Night|desc B\n"
	tbl, err := ReadTable(strings.NewReader(input), TableOptions{Delimiter: '|'})
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "description"}, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"Art Walk", "desc A"}, tbl.Rows[0])
	assert.Equal(t, []string{"Jazz Night", "desc B"}, tbl.Rows[1])
}

func TestReadTable_Empty(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader(""), TableOptions{})
	require.NoError(t, err)
	assert.Nil(t, tbl.Header)
	assert.Empty(t, tbl.Rows)
}

func TestReadTable_SkipsBlankLinesAndAllowsRaggedRows(t *testing.T) {
	input := "a|b|c\n\n1|2\n   \n\t\n4|5|6|7\r\n"
	tbl, err := ReadTable(strings.NewReader(input), TableOptions{})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"1", "2"}, tbl.Rows[0])
	assert.Equal(t, []string{"4", "5", "6", "7"}, tbl.Rows[1])
}

func TestReadTable_TrimSpace(t *testing.T) {
	input := " title | description \n  Wine Tasting |  local wines \n"

	tbl, err := ReadTable(strings.NewReader(input), TableOptions{TrimSpace: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "description"}, tbl.Header)
	assert.Equal(t, []string{"Wine Tasting", "local wines"}, tbl.Rows[0])

	raw, err := ReadTable(strings.NewReader(input), TableOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"  Wine Tasting ", "  local wines "}, raw.Rows[0])
}

func TestReadTable_QuotesAreData(t *testing.T) {
	input := "id|title|description\n" +
		"a1|\"Best\" Jazz Brunch|live trio\n" +
		"a2|Art Walk|the \"best\" walk\n" +
		"a3|Harbour Cruise|\"\n"
	tbl, err := ReadTable(strings.NewReader(input), TableOptions{})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, []string{"a1", "\"Best\" Jazz Brunch", "live trio"}, tbl.Rows[0])
	assert.Equal(t, []string{"a2", "Art Walk", "the \"best\" walk"}, tbl.Rows[1])
	assert.Equal(t, []string{"a3", "Harbour Cruise", "\""}, tbl.Rows[2])
}

func TestTable_RoundTrip(t *testing.T) {
	input := "id|title|description\n" +
		"a1|\"Best\" Jazz Brunch|live trio\n" +
		"a2| Art Walk |the \"best\" walk\n" +
		"a3||\n"
	tbl, err := ReadTable(strings.NewReader(input), TableOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, '|', tbl.Header, tbl.Rows))
	assert.Equal(t, input, buf.String())
}

func TestWriteTable_ReplacesDelimiterAndNewlines(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTable(&buf, '|', []string{"title", "tags"}, [][]string{
		{"Art Walk", "art,outdoor"},
		{"Pipe | Show", "music\nlive"},
	})
	require.NoError(t, err)
	assert.Equal(t, "title|tags\nArt Walk|art,outdoor\nPipe   Show|music live\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteTable_WriteError(t *testing.T) {
	err := WriteTable(failingWriter{}, '|', []string{"title"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table: write")
}

func TestLines(t *testing.T) {
	assert.Equal(t, []string{"a", "  b", "c "}, Lines("a\r\n\n  b\n \t \nc \n"))
	assert.Nil(t, Lines(""))
}
