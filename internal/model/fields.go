// Package model defines the record shapes that flow through the merge pipeline
// and the merge-run ledger types.
package model

import "strings"

// Fields is an ordered set of string fields. Keys keep the order in which they
// were first set; setting an existing key replaces its value in place.
type Fields struct {
	keys []string
	vals map[string]string
}

// FieldsFrom builds Fields from a header and a row. Missing trailing values are
// stored as empty strings and surplus values are ignored.
func FieldsFrom(header, row []string) Fields {
	var f Fields
	for i, key := range header {
		v := ""
		if i < len(row) {
			v = row[i]
		}
		f.Set(key, v)
	}
	return f
}

// Set stores value under key.
func (f *Fields) Set(key, value string) {
	if f.vals == nil {
		f.vals = make(map[string]string)
	}
	if _, ok := f.vals[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.vals[key] = value
}

// Get returns the value stored under the exact key.
func (f Fields) Get(key string) (string, bool) {
	v, ok := f.vals[key]
	return v, ok
}

// Value returns the value under key, or "" when absent.
func (f Fields) Value(key string) string {
	return f.vals[key]
}

// Lookup returns the value for key, falling back to a case-insensitive match.
func (f Fields) Lookup(key string) (string, bool) {
	if v, ok := f.vals[key]; ok {
		return v, true
	}
	for _, k := range f.keys {
		if strings.EqualFold(k, key) {
			return f.vals[k], true
		}
	}
	return "", false
}

// Has reports whether key is present.
func (f Fields) Has(key string) bool {
	_, ok := f.vals[key]
	return ok
}

// Len returns the number of fields.
func (f Fields) Len() int {
	return len(f.keys)
}

// Keys returns the keys in insertion order.
func (f Fields) Keys() []string {
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

// Row returns the values for the given header, "" for keys not present.
func (f Fields) Row(header []string) []string {
	row := make([]string, len(header))
	for i, key := range header {
		row[i] = f.vals[key]
	}
	return row
}

// Clone returns an independent copy.
func (f Fields) Clone() Fields {
	out := Fields{
		keys: make([]string, len(f.keys)),
		vals: make(map[string]string, len(f.vals)),
	}
	copy(out.keys, f.keys)
	for k, v := range f.vals {
		out.vals[k] = v
	}
	return out
}
