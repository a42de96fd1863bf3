package unify

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nconklindev/harmony/internal/codec"
	"github.com/nconklindev/harmony/internal/errs"
	"github.com/nconklindev/harmony/internal/mapping"
	"github.com/nconklindev/harmony/internal/types"
)

type failingFile struct{ name string }

func (f failingFile) Name() string { return f.name }
func (f failingFile) Bytes(context.Context) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func csvFile(name, content string) codec.File {
	return codec.MemFile{FileName: name, Data: []byte(content)}
}

func keys(r types.MappedRow) []string {
	var out []string
	for k := range r.Values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestNormalize_LastHeaderWins(t *testing.T) {
	fm := &types.FileMapping{
		Headers: []string{"A", "B"},
		Mapping: types.Mapping{"A": "x", "B": "x"},
	}

	row := Normalize("f.csv", 2, fm, []string{"x"}, []types.Cell{types.Number(1), types.Number(2)})

	assert.Equal(t, types.Number(2), row.Get("x"))
}

func TestNormalize_UnmappedTolerance(t *testing.T) {
	fm := &types.FileMapping{
		Headers: []string{"Name", "Notes", "Email"},
		Mapping: types.Mapping{"Name": "firstName", "Notes": ""},
	}
	fields := []string{"firstName", "email", "phone"}

	row := Normalize("f.csv", 2, fm, fields, types.Strings([]string{"Jane", "hello", "j@x"}))

	assert.Equal(t, types.String("Jane"), row.Get("firstName"))
	assert.True(t, row.Get("email").IsNull())
	assert.True(t, row.Get("phone").IsNull())
	for _, v := range row.Values {
		assert.NotEqual(t, types.String("hello"), v)
	}
}

func TestNormalize_RaggedRows(t *testing.T) {
	fm := &types.FileMapping{
		Headers: []string{"A", "B"},
		Mapping: types.Mapping{"A": "a", "B": "b"},
	}

	short := Normalize("f", 2, fm, []string{"a", "b"}, []types.Cell{types.String("1")})
	assert.Equal(t, types.String("1"), short.Get("a"))
	assert.True(t, short.Get("b").IsNull())

	long := Normalize("f", 3, fm, []string{"a", "b"}, types.Strings([]string{"1", "2", "3", "4"}))
	assert.Equal(t, []string{"a", "b"}, keys(long))
}

func TestNormalize_StaleTargetIgnored(t *testing.T) {
	fm := &types.FileMapping{
		Headers: []string{"ID", "Email"},
		Mapping: types.Mapping{"ID": "candidateId", "Email": "email"},
	}

	row := Normalize("f", 2, fm, []string{"email"}, types.Strings([]string{"7", "e@x"}))

	assert.Equal(t, []string{"email"}, keys(row))
	assert.Equal(t, types.String("e@x"), row.Get("email"))
}

func TestNormalize_PassThrough(t *testing.T) {
	fm := &types.FileMapping{
		Headers: []string{"n", "b", "s"},
		Mapping: types.Mapping{"n": "n", "b": "b", "s": "s"},
	}
	raw := []types.Cell{types.Number(42), types.Bool(false), types.String("007")}

	row := Normalize("f", 2, fm, []string{"n", "b", "s"}, raw)

	assert.Equal(t, raw[0], row.Get("n"))
	assert.Equal(t, raw[1], row.Get("b"))
	assert.Equal(t, raw[2], row.Get("s"))
}

func TestPreview_CompletenessAndProvenance(t *testing.T) {
	s := mapping.NewStore()
	s.Ingest("a.xlsx", [][]types.Cell{
		types.Strings([]string{"Email", "Junk"}),
		types.Strings([]string{"1@x", "j"}),
		types.Strings([]string{"2@x", "j"}),
		types.Strings([]string{"3@x", "j"}),
	})
	s.Ingest("b.csv", [][]types.Cell{
		types.Strings([]string{"Phone"}),
		types.Strings([]string{"555"}),
	})
	s.SetMapping("a.xlsx", "Email", "email")
	s.SetMapping("b.csv", "Phone", "phone")

	fields := []string{"email", "phone", "skills"}
	rows := Preview(s.Snapshot(), fields)
	require.Len(t, rows, 4, spew.Sdump(rows))

	lastRow := map[string]int{}
	for _, r := range rows {
		assert.Equal(t, []string{"email", "phone", "skills"}, keys(r))
		assert.Greater(t, r.Row, lastRow[r.Source])
		if lastRow[r.Source] == 0 {
			assert.Equal(t, 2, r.Row)
		}
		lastRow[r.Source] = r.Row
	}

	assert.Equal(t, "a.xlsx", rows[0].Source)
	assert.Equal(t, 4, rows[2].Row)
	assert.Equal(t, "b.csv", rows[3].Source)
	assert.Equal(t, types.String("555"), rows[3].Get("phone"))
}

func TestPreview_FieldsSnapshot(t *testing.T) {
	fields := []string{"email"}
	rows := Preview([]mapping.Entry{{
		Name: "a",
		File: types.FileMapping{Headers: []string{"e"}, Preview: [][]types.Cell{{types.String("x")}}},
	}}, fields)
	fields[0] = "renamed"

	require.Len(t, rows, 1)
	assert.Equal(t, []string{"email"}, rows[0].Fields)
}

func TestRows_Numbering(t *testing.T) {
	fm := &types.FileMapping{Headers: []string{"A"}, Mapping: types.Mapping{"A": "a"}}
	sheet := [][]types.Cell{
		types.Strings([]string{"A"}),
		types.Strings([]string{"1"}),
		{},
		types.Strings([]string{"3"}),
	}

	rows := Rows("f", fm, []string{"a"}, sheet)
	require.Len(t, rows, 3)
	assert.Equal(t, 2, rows[0].Row)
	assert.Equal(t, 3, rows[1].Row)
	assert.True(t, rows[1].Get("a").IsNull())
	assert.Equal(t, 4, rows[2].Row)

	assert.Nil(t, Rows("f", fm, []string{"a"}, sheet[:1]))
}

func TestEngineFull_PartialFailure(t *testing.T) {
	e := NewEngine(codec.Auto{}, nil)
	fm := types.FileMapping{Headers: []string{"Email"}, Mapping: types.Mapping{"Email": "email"}}

	jobs := []Job{
		{File: csvFile("one.csv", "Email\na@x\nb@x\n"), Mapping: fm},
		{File: failingFile{name: "two.csv"}, Mapping: fm},
		{File: csvFile("three.csv", "Email\nc@x\n"), Mapping: fm},
	}

	progress := make(chan float64, 10)
	result := e.Full(context.Background(), jobs, []string{"email"}, progress)
	close(progress)

	require.Len(t, result.Rows, 3, spew.Sdump(result.Rows))
	assert.Equal(t, "one.csv", result.Rows[0].Source)
	assert.Equal(t, "one.csv", result.Rows[1].Source)
	assert.Equal(t, "three.csv", result.Rows[2].Source)
	assert.Equal(t, 2, result.Rows[2].Row)

	require.Len(t, result.FailedFiles, 1)
	assert.Equal(t, "two.csv", result.FailedFiles[0].File)
	assert.True(t, errs.IsKind(result.FailedFiles[0].Err, errs.Decode))
	assert.Equal(t, 3, result.Files)
	assert.Equal(t, 2, result.Succeeded())
	assert.NotEmpty(t, result.RunID)

	var reports []float64
	for p := range progress {
		reports = append(reports, p)
	}
	assert.Equal(t, 1.0, reports[len(reports)-1])
}

func TestEngineFull_DecodeFailure(t *testing.T) {
	e := NewEngine(codec.Auto{}, nil)
	fm := types.FileMapping{Headers: []string{"Email"}, Mapping: types.Mapping{"Email": "email"}}

	result := e.Full(context.Background(), []Job{
		{File: codec.MemFile{FileName: "bad.xlsx", Data: []byte("nope")}, Mapping: fm},
		{File: csvFile("ok.csv", "Email\na@x\n"), Mapping: fm},
	}, []string{"email"}, nil)

	assert.Len(t, result.Rows, 1)
	assert.Len(t, result.FailedFiles, 1)
}

func TestEndToEnd(t *testing.T) {
	fields := []string{"firstName", "lastName", "email"}
	s := mapping.NewStore()
	s.Ingest("A", [][]types.Cell{
		types.Strings([]string{"First", "Last", "Email"}),
		types.Strings([]string{"Jane", "Doe", "jane@x.com"}),
	})
	s.Ingest("B", [][]types.Cell{
		types.Strings([]string{"fname", "lname"}),
		types.Strings([]string{"Tom", "Lee"}),
	})
	for _, name := range s.Names() {
		fm, _ := s.Get(name)
		s.Replace(name, mapping.Suggest(fm.Headers, fm.Mapping, fields, mapping.DefaultRules()))
	}

	rows := Preview(s.Snapshot(), fields)
	require.Len(t, rows, 2)

	expected := []types.MappedRow{
		{
			Source: "A", Row: 2, Fields: fields,
			Values: map[string]types.Cell{
				"firstName": types.String("Jane"),
				"lastName":  types.String("Doe"),
				"email":     types.String("jane@x.com"),
			},
		},
		{
			Source: "B", Row: 2, Fields: fields,
			Values: map[string]types.Cell{
				"firstName": types.String("Tom"),
				"lastName":  types.String("Lee"),
				"email":     types.Null(),
			},
		},
	}
	assert.Equal(t, expected, rows, spew.Sdump(rows))

	b, err := rows[1].MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"firstName":"Tom","lastName":"Lee","email":null,"_source":"B","_row":2}`, string(b))
}

func TestDatasetStats(t *testing.T) {
	fields := []string{"a", "b"}
	d := Concat(
		[]types.MappedRow{
			{Source: "x", Row: 2, Fields: fields, Values: map[string]types.Cell{"a": types.String("1"), "b": types.Null()}},
		},
		[]types.MappedRow{
			{Source: "y", Row: 2, Fields: fields, Values: map[string]types.Cell{"a": types.String("1"), "b": types.Number(3)}},
			{Source: "y", Row: 3, Fields: fields, Values: map[string]types.Cell{"a": types.Null(), "b": types.Null()}},
		},
	)

	s := d.Stats(fields)
	assert.Equal(t, Stats{Rows: 3, Sources: 2, Fields: 2, FilledCells: 3, TotalCells: 6, Completion: 50}, s)
	assert.Equal(t, []string{"x", "y"}, d.Sources())
	assert.Len(t, d.BySource()["y"], 2)

	assert.Equal(t, Stats{Fields: 2}, Dataset{}.Stats(fields))
}
