package codec

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/nconklindev/harmony/internal/types"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the label used when writing a unified dataset.
const DefaultSheet = "Unified Candidate Data"

// XLSX reads and writes Office Open XML workbooks through excelize.
type XLSX struct{}

// Read decodes every sheet into typed cells. Numbers stay numbers and booleans
// stay booleans; date-typed cells become dates.
func (XLSX) Read(name string, data []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	wb := &Workbook{
		SheetNames: f.GetSheetList(),
		Sheets:     make(map[string][][]types.Cell),
	}

	for _, sheetName := range wb.SheetNames {
		rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", sheetName, err)
		}

		typed := make([][]types.Cell, len(rows))
		for rowIdx, row := range rows {
			typed[rowIdx] = make([]types.Cell, len(row))
			for colIdx, raw := range row {
				if raw == "" {
					continue
				}
				cellName, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
				if err != nil {
					return nil, err
				}
				cellType, err := f.GetCellType(sheetName, cellName)
				if err != nil {
					return nil, err
				}
				typed[rowIdx][colIdx] = toCell(cellType, raw)
			}
		}
		wb.Sheets[sheetName] = typed
	}

	return wb, nil
}

// toCell converts a raw cell value according to its declared type.
func toCell(cellType excelize.CellType, raw string) types.Cell {
	switch cellType {
	case excelize.CellTypeBool:
		return types.Bool(raw == "1" || raw == "TRUE" || raw == "true")
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return types.Date(t)
		}
		if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
			return types.Date(t)
		}
		return types.String(raw)
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return types.Number(n)
		}
		return types.String(raw)
	default:
		return types.String(raw)
	}
}

// Write lays rows out as one sheet: a header row of every key seen across
// the rows (first-seen order) followed by one line per row.
func (XLSX) Write(rows []types.MappedRow, sheet string) ([]byte, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, err
	}

	columns := Columns(rows)
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}

	for i, row := range rows {
		line := make([]any, len(columns))
		for j, col := range columns {
			switch col {
			case types.SourceKey:
				line[j] = row.Source
			case types.RowKey:
				line[j] = row.Row
			default:
				if v, ok := row.Values[col]; ok {
					line[j] = v.Value()
				}
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Columns returns the union of row keys in first-seen order.
func Columns(rows []types.MappedRow) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, row := range rows {
		for _, k := range row.Keys() {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	return columns
}
