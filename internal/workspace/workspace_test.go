package workspace

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/nconklindev/harmony/internal/auth"
	"github.com/nconklindev/harmony/internal/codec"
	"github.com/nconklindev/harmony/internal/errs"
	"github.com/nconklindev/harmony/internal/store"
	"github.com/nconklindev/harmony/internal/types"
)

var (
	admin  = auth.Actor{ID: uuid.New(), Elevated: true}
	viewer = auth.Actor{ID: uuid.New()}
)

type memInserter struct {
	saved []store.Candidate
	fail  bool
}

func (m *memInserter) Insert(_ context.Context, c store.Candidate) error {
	if m.fail {
		return errors.New("insert failed")
	}
	m.saved = append(m.saved, c)
	return nil
}

func file(name, content string) codec.File {
	return codec.MemFile{FileName: name, Data: []byte(content)}
}

func newWorkspace(ins store.Inserter) *Workspace {
	return New(Options{
		Fields:   []string{"firstName", "lastName", "email"},
		Inserter: ins,
	})
}

func loaded(t *testing.T, ins store.Inserter) *Workspace {
	t.Helper()
	w := newWorkspace(ins)
	ctx := context.Background()

	added, err := w.AddFile(ctx, admin, file("A.csv", "First,Last,Email\nJane,Doe,jane@x.com\n"))
	require.NoError(t, err)
	require.True(t, added)
	added, err = w.AddFile(ctx, admin, file("B.csv", "fname,lname\nTom,Lee\nAmy,Ng\n"))
	require.NoError(t, err)
	require.True(t, added)
	return w
}

func TestMutationsRequireElevation(t *testing.T) {
	w := loaded(t, &memInserter{})
	before := w.Files()
	ctx := context.Background()

	checks := map[string]func() error{
		"AddFile": func() error {
			_, err := w.AddFile(ctx, viewer, file("C.csv", "x\n1\n"))
			return err
		},
		"RemoveFile": func() error { _, err := w.RemoveFile(viewer, "A.csv"); return err },
		"SetMapping": func() error { _, err := w.SetMapping(viewer, "A.csv", "First", "email"); return err },
		"ReplaceMapping": func() error {
			_, err := w.ReplaceMapping(viewer, "A.csv", types.Mapping{"First": "email"})
			return err
		},
		"SuggestMappings": func() error { return w.SuggestMappings(viewer) },
		"GeneratePreview": func() error { _, err := w.GeneratePreview(viewer); return err },
		"ProcessAll":      func() error { _, err := w.ProcessAll(ctx, viewer, nil); return err },
		"Save":            func() error { _, err := w.Save(ctx, viewer); return err },
		"Export":          func() error { _, err := w.Export(viewer); return err },
		"AddField":        func() error { return w.AddField(viewer, "salary") },
		"RemoveField":     func() error { _, err := w.RemoveField(viewer, "email"); return err },
	}

	for name, call := range checks {
		t.Run(name, func(t *testing.T) {
			err := call()
			assert.True(t, errs.IsKind(err, errs.Authorization), "got %v", err)
		})
	}

	assert.Equal(t, before, w.Files())
	assert.Equal(t, []string{"firstName", "lastName", "email"}, w.Fields())
	assert.Nil(t, w.Preview())
	assert.Zero(t, w.Unified().Len())
}

func TestAddFile_SkipsKnownAndEmpty(t *testing.T) {
	w := loaded(t, nil)
	ctx := context.Background()

	added, err := w.AddFile(ctx, admin, file("A.csv", "Other\nvalue\n"))
	require.NoError(t, err)
	assert.False(t, added)
	fm, ok := w.Mapping("A.csv")
	require.True(t, ok)
	assert.Equal(t, []string{"First", "Last", "Email"}, fm.Headers)

	added, err = w.AddFile(ctx, admin, file("empty.csv", ""))
	require.NoError(t, err)
	assert.False(t, added)
	assert.Len(t, w.Files(), 2)
}

func TestAddFile_DecodeError(t *testing.T) {
	w := newWorkspace(nil)

	added, err := w.AddFile(context.Background(), admin, file("notes.txt", "hello"))

	assert.False(t, added)
	assert.True(t, errs.IsKind(err, errs.Decode))
	assert.Empty(t, w.Files())
}

func TestEndToEndFlow(t *testing.T) {
	ins := &memInserter{}
	w := loaded(t, ins)
	ctx := context.Background()

	require.NoError(t, w.SuggestMappings(admin))
	fm, _ := w.Mapping("B.csv")
	assert.Equal(t, types.Mapping{"fname": "firstName", "lname": "lastName"}, fm.Mapping)

	preview, err := w.GeneratePreview(admin)
	require.NoError(t, err)
	require.Len(t, preview, 3, spew.Sdump(preview))
	assert.Equal(t, preview, w.Preview())

	progress := make(chan float64, 4)
	result, err := w.ProcessAll(ctx, admin, progress)
	require.NoError(t, err)
	assert.Empty(t, result.FailedFiles)
	assert.Same(t, result, w.LastBatch())

	unified := w.Unified()
	require.Equal(t, 3, unified.Len())
	assert.Equal(t, []string{"A.csv", "B.csv"}, unified.Sources())
	assert.Equal(t, types.String("Jane"), unified.Rows[0].Get("firstName"))
	assert.True(t, unified.Rows[1].Get("email").IsNull())
	assert.Equal(t, 3, unified.Rows[2].Row)

	data, err := w.Export(admin)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(codec.DefaultSheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"_source", "_row", "firstName", "lastName", "email"}, rows[0])
	assert.Len(t, rows, 4)

	saved, err := w.Save(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, types.SaveResult{Success: 3}, saved)
	require.Len(t, ins.saved, 3)
	assert.Equal(t, admin.ID, ins.saved[0].CreatedBy)
	assert.Equal(t, "B.csv", *ins.saved[2].SourceFile)
}

func TestProcessAll_NoFiles(t *testing.T) {
	w := newWorkspace(nil)

	_, err := w.ProcessAll(context.Background(), admin, nil)

	assert.True(t, errs.IsKind(err, errs.Precondition))
}

func TestSavePreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("No unified data", func(t *testing.T) {
		ins := &memInserter{}
		w := loaded(t, ins)

		result, err := w.Save(ctx, admin)
		assert.True(t, errs.IsKind(err, errs.Precondition))
		assert.Equal(t, types.SaveResult{}, result)
		assert.Empty(t, ins.saved)
	})

	t.Run("No identity", func(t *testing.T) {
		ins := &memInserter{}
		w := loaded(t, ins)
		_, err := w.ProcessAll(ctx, admin, nil)
		require.NoError(t, err)

		result, err := w.Save(ctx, auth.Actor{Elevated: true})
		assert.True(t, errs.IsKind(err, errs.Precondition))
		assert.Equal(t, types.SaveResult{Error: 3}, result)
		assert.Empty(t, ins.saved)
	})

	t.Run("No inserter", func(t *testing.T) {
		w := loaded(t, nil)
		_, err := w.ProcessAll(ctx, admin, nil)
		require.NoError(t, err)

		_, err = w.Save(ctx, admin)
		assert.True(t, errs.IsKind(err, errs.Precondition))
	})

	t.Run("Row failures are counted", func(t *testing.T) {
		w := loaded(t, &memInserter{fail: true})
		_, err := w.ProcessAll(ctx, admin, nil)
		require.NoError(t, err)

		result, err := w.Save(ctx, admin)
		require.NoError(t, err)
		assert.Equal(t, types.SaveResult{Error: 3}, result)
	})
}

func TestFieldChangesApplyToNextUnification(t *testing.T) {
	w := loaded(t, nil)
	require.NoError(t, w.SuggestMappings(admin))

	removed, err := w.RemoveField(admin, "email")
	require.NoError(t, err)
	assert.True(t, removed)
	require.NoError(t, w.AddField(admin, "phone"))

	err = w.AddField(admin, "phone")
	assert.True(t, errs.IsKind(err, errs.Validation))

	preview, err := w.GeneratePreview(admin)
	require.NoError(t, err)
	for _, r := range preview {
		assert.Equal(t, []string{"_source", "_row", "firstName", "lastName", "phone"}, r.Keys())
	}
}

func TestRemoveFileAndSetMapping(t *testing.T) {
	w := loaded(t, nil)

	ok, err := w.SetMapping(admin, "A.csv", "Email", "email")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = w.SetMapping(admin, "missing.csv", "Email", "email")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = w.RemoveFile(admin, "A.csv")
	require.NoError(t, err)
	assert.True(t, ok)
	_, found := w.Mapping("A.csv")
	assert.False(t, found)
	require.Len(t, w.Files(), 1)
	assert.Equal(t, "B.csv", w.Files()[0].Name)
}
