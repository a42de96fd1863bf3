package codec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nconklindev/harmony/internal/errs"
	"github.com/nconklindev/harmony/internal/types"
)

// Workbook is a decoded spreadsheet. Only the first sheet is ever consulted.
type Workbook struct {
	SheetNames []string
	Sheets     map[string][][]types.Cell
}

// FirstSheetRows returns the rows of SheetNames[0].
func (w *Workbook) FirstSheetRows() [][]types.Cell {
	if w == nil || len(w.SheetNames) == 0 {
		return nil
	}
	return w.Sheets[w.SheetNames[0]]
}

// Reader decodes raw file bytes.
type Reader interface {
	Read(name string, data []byte) (*Workbook, error)
}

// Writer encodes a unified dataset as a single-sheet file.
type Writer interface {
	Write(rows []types.MappedRow, sheet string) ([]byte, error)
}

// File is a source file that can be read more than once: at ingest and again
// for full unification.
type File interface {
	Name() string
	Bytes(ctx context.Context) ([]byte, error)
}

// DiskFile reads from the local filesystem on every call.
type DiskFile struct {
	Path string
}

func (f DiskFile) Name() string { return filepath.Base(f.Path) }

func (f DiskFile) Bytes(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(f.Path)
}

// MemFile holds uploaded content.
type MemFile struct {
	FileName string
	Data     []byte
}

func (f MemFile) Name() string { return f.FileName }

func (f MemFile) Bytes(ctx context.Context) ([]byte, error) {
	return f.Data, ctx.Err()
}

// Auto picks a decoder from the file extension.
type Auto struct {
	XLSX XLSX
	CSV  CSV
}

func (a Auto) Read(name string, data []byte) (*Workbook, error) {
	ext := strings.ToLower(filepath.Ext(name))

	switch ext {
	case ".xlsx", ".xlsm":
		return a.XLSX.Read(name, data)
	case ".csv":
		return a.CSV.Read(name, data)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
}

// Supported reports whether Auto can decode the file name.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".csv":
		return true
	}
	return false
}

// Load reads f and decodes it. Any failure is reported as a decode error.
func Load(ctx context.Context, r Reader, f File) (*Workbook, error) {
	data, err := f.Bytes(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.Decode, "read "+f.Name(), err)
	}
	wb, err := r.Read(f.Name(), data)
	if err != nil {
		return nil, errs.Wrap(errs.Decode, "decode "+f.Name(), err)
	}
	return wb, nil
}

// ReadFileData loads the first sheet and splits off the header row. It
// returns nil data when the sheet has no rows.
func ReadFileData(ctx context.Context, r Reader, f File) (*types.FileData, error) {
	wb, err := Load(ctx, r, f)
	if err != nil {
		return nil, err
	}

	rows := wb.FirstSheetRows()
	if len(rows) == 0 {
		return nil, nil
	}

	headers := make([]string, len(rows[0]))
	for i, c := range rows[0] {
		headers[i] = c.String()
	}

	return &types.FileData{
		Headers: headers,
		Rows:    rows[1:],
	}, nil
}
