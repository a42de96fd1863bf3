package types

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Provenance keys carried by every MappedRow.
const (
	SourceKey = "_source"
	RowKey    = "_row"
)

// MaxPreviewRows is the number of data rows kept per file for preview unification.
const MaxPreviewRows = 4

// DefaultFields seeds a new field registry.
var DefaultFields = []string{
	"candidateId", "firstName", "lastName", "email", "phone", "skills", "experience", "education",
}

// FileData is the raw content of the first worksheet of a source file.
type FileData struct {
	Headers []string
	Rows    [][]Cell
}

// FileMapping tracks a single source file: its headers, a preview sample and
// the operator's header to field assignments.
type FileMapping struct {
	Headers []string
	Mapping Mapping
	Preview [][]Cell
}

// Mapping assigns headers to standard fields. An empty target means unmapped.
type Mapping map[string]string

// Target returns the field a header is mapped to.
func (m Mapping) Target(header string) (string, bool) {
	f, ok := m[header]
	if !ok || f == "" {
		return "", false
	}
	return f, true
}

// Clone returns a copy safe to mutate.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MarshalJSON writes unmapped headers as null.
func (m Mapping) MarshalJSON() ([]byte, error) {
	out := make(map[string]*string, len(m))
	for k, v := range m {
		if v == "" {
			out[k] = nil
			continue
		}
		v := v
		out[k] = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts null for unmapped headers.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	var in map[string]*string
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := make(Mapping, len(in))
	for k, v := range in {
		if v != nil {
			out[k] = *v
		} else {
			out[k] = ""
		}
	}
	*m = out
	return nil
}

// MappedRow is one normalized output record. Fields is the registry snapshot
// taken when the row was produced; Values has exactly those keys.
type MappedRow struct {
	Source string
	Row    int
	Fields []string
	Values map[string]Cell
}

// Get returns the value of a field, or a null cell if the row does not carry it.
func (r MappedRow) Get(field string) Cell {
	return r.Values[field]
}

// Keys returns the row's keys in output order: provenance then fields.
func (r MappedRow) Keys() []string {
	keys := make([]string, 0, len(r.Fields)+2)
	keys = append(keys, SourceKey, RowKey)
	return append(keys, r.Fields...)
}

// MarshalJSON writes the row as a flat object, provenance first and fields in
// registry order.
func (r MappedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	src, _ := json.Marshal(r.Source)
	buf.WriteString(`{"` + SourceKey + `":`)
	buf.Write(src)
	buf.WriteString(`,"` + RowKey + `":`)
	buf.WriteString(strconv.Itoa(r.Row))
	for _, f := range r.Fields {
		k, _ := json.Marshal(f)
		v, err := json.Marshal(r.Values[f])
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// SaveResult tallies a persistence run.
type SaveResult struct {
	Success int `json:"success"`
	Error   int `json:"error"`
}
