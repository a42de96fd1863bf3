// Package mapping holds the per-file header mappings and the heuristic that
// proposes them.
package mapping

import (
	"slices"

	"github.com/nconklindev/harmony/internal/types"
)

// Store keeps one FileMapping per source file name, in ingest order.
// It is not safe for concurrent use.
type Store struct {
	order []string
	files map[string]*types.FileMapping
}

func NewStore() *Store {
	return &Store{files: make(map[string]*types.FileMapping)}
}

// FromRows builds a FileMapping from the rows of a file's first sheet: row 0
// gives the headers and the next MaxPreviewRows rows the preview. It reports
// false when there are no rows at all.
func FromRows(rows [][]types.Cell) (*types.FileMapping, bool) {
	if len(rows) == 0 {
		return nil, false
	}

	headers := make([]string, len(rows[0]))
	for i, c := range rows[0] {
		headers[i] = c.String()
	}

	end := min(len(rows), 1+types.MaxPreviewRows)
	preview := make([][]types.Cell, 0, end-1)
	for _, row := range rows[1:end] {
		preview = append(preview, slices.Clone(row))
	}

	return &types.FileMapping{
		Headers: headers,
		Mapping: types.Mapping{},
		Preview: preview,
	}, true
}

// Ingest records a file from its first-sheet rows. A file name that is
// already present is left untouched and reported as not added, as is a sheet
// with no rows.
func (s *Store) Ingest(name string, rows [][]types.Cell) (*types.FileMapping, bool) {
	if _, ok := s.files[name]; ok {
		return nil, false
	}
	fm, ok := FromRows(rows)
	if !ok {
		return nil, false
	}
	s.order = append(s.order, name)
	s.files[name] = fm
	return fm, true
}

// Has reports whether a file has been ingested.
func (s *Store) Has(name string) bool {
	_, ok := s.files[name]
	return ok
}

// Get returns the stored mapping for a file. Callers must not mutate it.
func (s *Store) Get(name string) (*types.FileMapping, bool) {
	fm, ok := s.files[name]
	return fm, ok
}

// Names lists files in ingest order.
func (s *Store) Names() []string {
	return slices.Clone(s.order)
}

func (s *Store) Len() int { return len(s.order) }

// SetMapping points a header at field, or clears it when field is empty.
// The field is not checked against the registry.
func (s *Store) SetMapping(file, header, field string) bool {
	fm, ok := s.files[file]
	if !ok {
		return false
	}
	m := fm.Mapping.Clone()
	m[header] = field
	fm.Mapping = m
	return true
}

// Replace swaps a file's whole mapping, e.g. with Suggest output.
func (s *Store) Replace(file string, m types.Mapping) bool {
	fm, ok := s.files[file]
	if !ok {
		return false
	}
	fm.Mapping = m.Clone()
	return true
}

// Remove drops a file and its mapping.
func (s *Store) Remove(name string) bool {
	if _, ok := s.files[name]; !ok {
		return false
	}
	delete(s.files, name)
	s.order = slices.DeleteFunc(s.order, func(n string) bool { return n == name })
	return true
}

// Snapshot returns deep copies of every mapping in ingest order so they can
// be used outside the caller's lock.
func (s *Store) Snapshot() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, name := range s.order {
		fm := s.files[name]
		out = append(out, Entry{
			Name: name,
			File: types.FileMapping{
				Headers: slices.Clone(fm.Headers),
				Mapping: fm.Mapping.Clone(),
				Preview: fm.Preview,
			},
		})
	}
	return out
}

// Entry pairs a file name with its mapping.
type Entry struct {
	Name string
	File types.FileMapping
}

// MappedPercent is the share of a file's headers that have a target, rounded
// to the nearest whole percent.
func MappedPercent(fm *types.FileMapping) int {
	if fm == nil || len(fm.Headers) == 0 {
		return 0
	}
	mapped := 0
	for _, h := range fm.Headers {
		if _, ok := fm.Mapping.Target(h); ok {
			mapped++
		}
	}
	return (mapped*100 + len(fm.Headers)/2) / len(fm.Headers)
}

// SampleValue returns the first non-blank preview value under a header
// position, for display next to the header.
func SampleValue(fm *types.FileMapping, col int) types.Cell {
	for _, row := range fm.Preview {
		if col < len(row) && !row[col].Blank() {
			return row[col]
		}
	}
	return types.Null()
}
