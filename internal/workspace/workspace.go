// Package workspace is the operator session: the field registry, the
// ingested files with their mappings, and the latest preview and unified
// datasets. Every mutating entry point takes the acting operator explicitly
// and is refused unless that operator is elevated.
package workspace

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/nconklindev/harmony/internal/auth"
	"github.com/nconklindev/harmony/internal/codec"
	"github.com/nconklindev/harmony/internal/errs"
	"github.com/nconklindev/harmony/internal/fields"
	"github.com/nconklindev/harmony/internal/mapping"
	"github.com/nconklindev/harmony/internal/store"
	"github.com/nconklindev/harmony/internal/types"
	"github.com/nconklindev/harmony/internal/unify"
)

// Options configures a Workspace. Zero values fall back to the defaults.
type Options struct {
	Fields []string
	Rules  *mapping.RuleSet
	Reader codec.Reader
	Writer codec.Writer
	Sheet  string
	// Inserter persists candidates. Save fails when it is nil.
	Inserter store.Inserter
	Logger   *zap.Logger
}

// Workspace holds one operator session. It is safe for concurrent use; the
// lock is never held while reading files or talking to the database.
type Workspace struct {
	mu       sync.Mutex
	registry *fields.Registry
	mappings *mapping.Store
	files    map[string]codec.File
	preview  []types.MappedRow
	unified  unify.Dataset
	batch    *unify.BatchResult

	rules    mapping.RuleSet
	reader   codec.Reader
	writer   codec.Writer
	sheet    string
	engine   *unify.Engine
	inserter store.Inserter
	logger   *zap.Logger
}

// New returns an empty workspace.
func New(opts Options) *Workspace {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := fields.NewDefault()
	if len(opts.Fields) > 0 {
		registry = fields.New(opts.Fields...)
	}

	rules := mapping.DefaultRules()
	if opts.Rules != nil {
		rules = *opts.Rules
	}

	var reader codec.Reader = codec.Auto{}
	if opts.Reader != nil {
		reader = opts.Reader
	}
	var writer codec.Writer = codec.XLSX{}
	if opts.Writer != nil {
		writer = opts.Writer
	}
	sheet := opts.Sheet
	if sheet == "" {
		sheet = codec.DefaultSheet
	}

	return &Workspace{
		registry: registry,
		mappings: mapping.NewStore(),
		files:    make(map[string]codec.File),
		rules:    rules,
		reader:   reader,
		writer:   writer,
		sheet:    sheet,
		engine:   unify.NewEngine(reader, logger),
		inserter: opts.Inserter,
		logger:   logger.Named("workspace"),
	}
}

// AddFile reads the first sheet of f and records its headers and preview
// rows. A file whose name is already present, or whose sheet is empty, is
// skipped and reported as not added.
func (w *Workspace) AddFile(ctx context.Context, actor auth.Actor, f codec.File) (bool, error) {
	if err := auth.Require(actor, "add file"); err != nil {
		return false, err
	}

	w.mu.Lock()
	known := w.mappings.Has(f.Name())
	w.mu.Unlock()
	if known {
		w.logger.Debug("Skipping known file", zap.String("file", f.Name()))
		return false, nil
	}

	wb, err := codec.Load(ctx, w.reader, f)
	if err != nil {
		w.logger.Error("Failed to read file", zap.String("file", f.Name()), zap.Error(err))
		return false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	fm, ok := w.mappings.Ingest(f.Name(), wb.FirstSheetRows())
	if !ok {
		return false, nil
	}
	w.files[f.Name()] = f

	w.logger.Info("Added file",
		zap.String("file", f.Name()),
		zap.Int("headers", len(fm.Headers)),
		zap.Int("preview_rows", len(fm.Preview)))
	return true, nil
}

// RemoveFile forgets a file and its mapping.
func (w *Workspace) RemoveFile(actor auth.Actor, name string) (bool, error) {
	if err := auth.Require(actor, "remove file"); err != nil {
		return false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.files, name)
	return w.mappings.Remove(name), nil
}

// SetMapping points header at field, or clears it when field is empty. The
// field is not checked against the registry.
func (w *Workspace) SetMapping(actor auth.Actor, file, header, field string) (bool, error) {
	if err := auth.Require(actor, "set mapping"); err != nil {
		return false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	return w.mappings.SetMapping(file, header, field), nil
}

// ReplaceMapping swaps a file's whole mapping.
func (w *Workspace) ReplaceMapping(actor auth.Actor, file string, m types.Mapping) (bool, error) {
	if err := auth.Require(actor, "set mapping"); err != nil {
		return false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	return w.mappings.Replace(file, m), nil
}

// SuggestMappings fills unmapped headers of the named files, or of every
// file when none are named. Existing choices are kept.
func (w *Workspace) SuggestMappings(actor auth.Actor, names ...string) error {
	if err := auth.Require(actor, "suggest mappings"); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if len(names) == 0 {
		names = w.mappings.Names()
	}
	fieldList := w.registry.List()
	for _, name := range names {
		fm, ok := w.mappings.Get(name)
		if !ok {
			continue
		}
		w.mappings.Replace(name, mapping.Suggest(fm.Headers, fm.Mapping, fieldList, w.rules))
	}
	return nil
}

// GeneratePreview unifies the stored preview rows of every file.
func (w *Workspace) GeneratePreview(actor auth.Actor) ([]types.MappedRow, error) {
	if err := auth.Require(actor, "generate preview"); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.preview = unify.Preview(w.mappings.Snapshot(), w.registry.List())
	return cloneRows(w.preview), nil
}

// ProcessAll re-reads every file and unifies all of its rows. Files that
// fail to read are reported in the result and add no rows. The previous
// unified dataset is replaced.
func (w *Workspace) ProcessAll(ctx context.Context, actor auth.Actor, progress chan<- float64) (*unify.BatchResult, error) {
	if err := auth.Require(actor, "process files"); err != nil {
		return nil, err
	}

	w.mu.Lock()
	entries := w.mappings.Snapshot()
	fieldList := w.registry.List()
	jobs := make([]unify.Job, 0, len(entries))
	for _, e := range entries {
		jobs = append(jobs, unify.Job{File: w.files[e.Name], Mapping: e.File})
	}
	w.mu.Unlock()

	if len(jobs) == 0 {
		return nil, errs.New(errs.Precondition, "process files", "no files added")
	}

	result := w.engine.Full(ctx, jobs, fieldList, progress)

	w.mu.Lock()
	w.unified = unify.Concat(result.Rows)
	w.batch = result
	w.mu.Unlock()

	return result, nil
}

// Save writes every unified row through the inserter, stamped with the
// actor's id. Row failures are counted, not returned. Without unified rows,
// an actor id or an inserter nothing is written.
func (w *Workspace) Save(ctx context.Context, actor auth.Actor) (types.SaveResult, error) {
	if err := auth.Require(actor, "save"); err != nil {
		return types.SaveResult{}, err
	}

	w.mu.Lock()
	rows := cloneRows(w.unified.Rows)
	inserter := w.inserter
	w.mu.Unlock()

	if len(rows) == 0 {
		return types.SaveResult{}, errs.New(errs.Precondition, "save", "no unified data")
	}
	if !actor.HasIdentity() {
		return types.SaveResult{Error: len(rows)}, errs.New(errs.Precondition, "save", "no actor identity")
	}
	if inserter == nil {
		return types.SaveResult{Error: len(rows)}, errs.New(errs.Precondition, "save", "persistence not configured")
	}

	return store.SaveAll(ctx, inserter, rows, actor.ID, w.logger), nil
}

// Export serializes the unified dataset to a workbook.
func (w *Workspace) Export(actor auth.Actor) ([]byte, error) {
	if err := auth.Require(actor, "export"); err != nil {
		return nil, err
	}

	w.mu.Lock()
	rows := cloneRows(w.unified.Rows)
	w.mu.Unlock()

	if len(rows) == 0 {
		return nil, errs.New(errs.Precondition, "export", "no unified data")
	}

	data, err := w.writer.Write(rows, w.sheet)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return data, nil
}

// AddField appends a standard field.
func (w *Workspace) AddField(actor auth.Actor, name string) error {
	if err := auth.Require(actor, "add field"); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	return w.registry.Add(name)
}

// RemoveField drops a standard field. Mappings that target it are left in
// place and ignored during unification.
func (w *Workspace) RemoveField(actor auth.Actor, name string) (bool, error) {
	if err := auth.Require(actor, "remove field"); err != nil {
		return false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	return w.registry.Remove(name), nil
}

// Files returns every ingested file in insertion order.
func (w *Workspace) Files() []mapping.Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mappings.Snapshot()
}

// Mapping returns a copy of one file's mapping.
func (w *Workspace) Mapping(name string) (types.FileMapping, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, e := range w.mappings.Snapshot() {
		if e.Name == name {
			return e.File, true
		}
	}
	return types.FileMapping{}, false
}

func (w *Workspace) Fields() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.registry.List()
}

func (w *Workspace) Preview() []types.MappedRow {
	w.mu.Lock()
	defer w.mu.Unlock()
	return cloneRows(w.preview)
}

// Unified returns the dataset from the last ProcessAll.
func (w *Workspace) Unified() unify.Dataset {
	w.mu.Lock()
	defer w.mu.Unlock()
	return unify.Concat(w.unified.Rows)
}

// LastBatch returns the result of the last ProcessAll, or nil.
func (w *Workspace) LastBatch() *unify.BatchResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.batch
}

func cloneRows(rows []types.MappedRow) []types.MappedRow {
	if rows == nil {
		return nil
	}
	out := make([]types.MappedRow, len(rows))
	copy(out, rows)
	return out
}
