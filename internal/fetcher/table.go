// Package fetcher reads and writes the local files the merge pipeline works
// on: delimited tables, text feeds in legacy charsets, and XLSX exports.
package fetcher

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// TableOptions configures the delimited-table parser.
type TableOptions struct {
	Delimiter rune // default '|'
	TrimSpace bool
}

// Table is a parsed delimited file: the first row as header, the rest as rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable reads a delimited table whose first non-blank line is the header.
// Fields are split on the delimiter with no quoting rules, so a cell holds
// exactly the bytes between two delimiters. Rows may have a different number
// of fields than the header. An input with no records yields an empty Table.
func ReadTable(r io.Reader, opts TableOptions) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "table: read")
	}
	return ParseTable(Lines(string(data)), opts), nil
}

// Lines splits content into lines without their line terminators and drops
// lines that are empty or whitespace only.
func Lines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// ParseTable splits already separated non-blank lines into a Table.
func ParseTable(lines []string, opts TableOptions) *Table {
	sep := delimiter(opts.Delimiter)

	t := &Table{}
	for i, line := range lines {
		record := strings.Split(line, sep)
		if opts.TrimSpace {
			for j, field := range record {
				record[j] = strings.TrimSpace(field)
			}
		}

		if i == 0 {
			t.Header = record
			continue
		}
		t.Rows = append(t.Rows, record)
	}
	return t
}

// WriteTable writes header followed by rows, one line each, joined with the
// delimiter. Delimiters and line breaks inside a value become spaces since the
// format has no escaping.
func WriteTable(w io.Writer, delim rune, header []string, rows [][]string) error {
	sep := delimiter(delim)
	clean := strings.NewReplacer(sep, " ", "\r\n", " ", "\n", " ", "\r", " ")

	var b strings.Builder
	writeLine := func(values []string) {
		for i, v := range values {
			if i > 0 {
				b.WriteString(sep)
			}
			b.WriteString(clean.Replace(v))
		}
		b.WriteByte('\n')
	}

	writeLine(header)
	for _, row := range rows {
		writeLine(row)
	}

	_, err := io.WriteString(w, b.String())
	return eris.Wrap(err, "table: write")
}

func delimiter(r rune) string {
	if r == 0 {
		return "|"
	}
	return string(r)
}
