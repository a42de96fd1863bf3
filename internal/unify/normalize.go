// Package unify turns per-file raw rows into records keyed by the standard
// fields, tagging each with the file and row it came from.
package unify

import (
	"github.com/nconklindev/harmony/internal/mapping"
	"github.com/nconklindev/harmony/internal/types"
)

// FirstDataRow is the 1-based sheet row number of the first row after the header.
const FirstDataRow = 2

// Normalize builds one record. Every field starts null; each header position
// then copies its raw cell into the field it is mapped to. A later header
// overwrites an earlier one that targets the same field. Unmapped headers,
// targets that are not in fields, and cells past the last header are ignored;
// a header with no cell leaves its field null.
func Normalize(source string, rowNum int, fm *types.FileMapping, fields []string, raw []types.Cell) types.MappedRow {
	values := make(map[string]types.Cell, len(fields))
	for _, f := range fields {
		values[f] = types.Null()
	}

	for col, header := range fm.Headers {
		target, ok := fm.Mapping.Target(header)
		if !ok {
			continue
		}
		if _, known := values[target]; !known {
			continue
		}
		if col < len(raw) {
			values[target] = raw[col]
		} else {
			values[target] = types.Null()
		}
	}

	return types.MappedRow{
		Source: source,
		Row:    rowNum,
		Fields: fields,
		Values: values,
	}
}

// Preview unifies the stored preview rows of every file, in the order given.
// No file is re-read. The k-th preview row of a file gets row number k+2.
func Preview(entries []mapping.Entry, fields []string) []types.MappedRow {
	fields = append([]string(nil), fields...)

	var out []types.MappedRow
	for _, e := range entries {
		fm := e.File
		for k, raw := range fm.Preview {
			out = append(out, Normalize(e.Name, k+FirstDataRow, &fm, fields, raw))
		}
	}
	return out
}

// Rows unifies every data row of a sheet. rows[0] is the header row and is
// skipped; sheet index i produces row number i+1.
func Rows(source string, fm *types.FileMapping, fields []string, rows [][]types.Cell) []types.MappedRow {
	if len(rows) < 2 {
		return nil
	}
	fields = append([]string(nil), fields...)

	out := make([]types.MappedRow, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		out = append(out, Normalize(source, i+1, fm, fields, rows[i]))
	}
	return out
}
