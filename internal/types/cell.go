package types

import (
	"encoding/json"
	"strconv"
	"time"
)

// CellKind identifies which variant a Cell holds.
type CellKind uint8

const (
	CellNull CellKind = iota
	CellString
	CellNumber
	CellBool
	CellDate
)

func (k CellKind) String() string {
	switch k {
	case CellNull:
		return "null"
	case CellString:
		return "string"
	case CellNumber:
		return "number"
	case CellBool:
		return "bool"
	case CellDate:
		return "date"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Cell is a raw spreadsheet value. The zero Cell is null.
type Cell struct {
	kind CellKind
	str  string
	num  float64
	b    bool
	t    time.Time
}

func Null() Cell { return Cell{} }
func String(s string) Cell { return Cell{kind: CellString, str: s} }
func Number(n float64) Cell { return Cell{kind: CellNumber, num: n} }
func Bool(b bool) Cell { return Cell{kind: CellBool, b: b} }
func Date(t time.Time) Cell { return Cell{kind: CellDate, t: t} }
func (c Cell) Kind() CellKind { return c.kind }
func (c Cell) IsNull() bool { return c.kind == CellNull }
func (c Cell) Float() float64 { return c.num }
func (c Cell) Boolean() bool { return c.b }
func (c Cell) Time() time.Time { return c.t }

// Text returns the string payload of a string cell.
func (c Cell) Text() string { return c.str }

// Blank reports whether the cell is null or an empty string.
func (c Cell) Blank() bool {
	return c.kind == CellNull || (c.kind == CellString && c.str == "")
}

// String renders the cell for display and for header labels. Null renders as "".
func (c Cell) String() string {
	switch c.kind {
	case CellString:
		return c.str
	case CellNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	case CellBool:
		return strconv.FormatBool(c.b)
	case CellDate:
		return c.t.Format(time.RFC3339)
	default:
		return ""
	}
}

// Value returns the payload as a plain Go value, nil for null.
func (c Cell) Value() any {
	switch c.kind {
	case CellString:
		return c.str
	case CellNumber:
		return c.num
	case CellBool:
		return c.b
	case CellDate:
		return c.t
	default:
		return nil
	}
}

func (c Cell) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Value())
}

// UnmarshalJSON maps JSON scalars onto cells. Strings stay strings; dates are
// not inferred.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*c = Null()
	case string:
		*c = String(x)
	case float64:
		*c = Number(x)
	case bool:
		*c = Bool(x)
	default:
		*c = String(string(data))
	}
	return nil
}

// Strings converts a row of plain text into cells, empty text becoming null.
func Strings(row []string) []Cell {
	out := make([]Cell, len(row))
	for i, s := range row {
		if s != "" {
			out[i] = String(s)
		}
	}
	return out
}
