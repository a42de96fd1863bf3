package codec

import (
	"bytes"
	"encoding/csv"

	"github.com/nconklindev/harmony/internal/types"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSV decodes comma separated files as a single sheet of text cells.
type CSV struct {
	// Comma overrides the field delimiter when non-zero.
	Comma rune
}

func (c CSV) Read(name string, data []byte) (*Workbook, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	if c.Comma != 0 {
		reader.Comma = c.Comma
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	rows := make([][]types.Cell, len(records))
	for i, record := range records {
		rows[i] = types.Strings(record)
	}

	sheet := "Sheet1"
	return &Workbook{
		SheetNames: []string{sheet},
		Sheets:     map[string][][]types.Cell{sheet: rows},
	}, nil
}
