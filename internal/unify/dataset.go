package unify

import (
	"github.com/nconklindev/harmony/internal/types"
)

// Dataset is the unified output across files, in file then row order.
type Dataset struct {
	Rows []types.MappedRow
}

// Concat appends per-file results in the order given. Rows describing the
// same entity in different files stay separate.
func Concat(parts ...[]types.MappedRow) Dataset {
	var d Dataset
	for _, p := range parts {
		d.Rows = append(d.Rows, p...)
	}
	return d
}

func (d Dataset) Len() int { return len(d.Rows) }

// Sources lists distinct source files in first-seen order.
func (d Dataset) Sources() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range d.Rows {
		if !seen[r.Source] {
			seen[r.Source] = true
			out = append(out, r.Source)
		}
	}
	return out
}

// BySource groups rows per file, preserving row order.
func (d Dataset) BySource() map[string][]types.MappedRow {
	out := make(map[string][]types.MappedRow)
	for _, r := range d.Rows {
		out[r.Source] = append(out[r.Source], r)
	}
	return out
}

// Stats summarizes a dataset for the operator.
type Stats struct {
	Rows        int `json:"rows"`
	Sources     int `json:"sources"`
	Fields      int `json:"fields"`
	FilledCells int `json:"filledCells"`
	TotalCells  int `json:"totalCells"`
	// Completion is FilledCells/TotalCells as a rounded percentage.
	Completion int `json:"completion"`
}

// Stats counts non-null values of fields across all rows.
func (d Dataset) Stats(fields []string) Stats {
	s := Stats{
		Rows:    len(d.Rows),
		Sources: len(d.Sources()),
		Fields:  len(fields),
	}
	for _, r := range d.Rows {
		for _, f := range fields {
			if v, ok := r.Values[f]; ok && !v.IsNull() {
				s.FilledCells++
			}
		}
	}
	s.TotalCells = len(d.Rows) * len(fields)
	if s.TotalCells > 0 {
		s.Completion = (s.FilledCells*100 + s.TotalCells/2) / s.TotalCells
	}
	return s
}
