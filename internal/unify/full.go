package unify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nconklindev/harmony/internal/codec"
	"github.com/nconklindev/harmony/internal/types"
)

// Job is one file queued for full unification.
type Job struct {
	File    codec.File
	Mapping types.FileMapping
}

// FileError records a file that contributed no rows.
type FileError struct {
	File string
	Err  error
}

// BatchResult is the outcome of a full unification run.
type BatchResult struct {
	RunID       string
	Rows        []types.MappedRow
	Files       int
	FailedFiles []FileError
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}

// Succeeded is the number of files that were read.
func (r *BatchResult) Succeeded() int { return r.Files - len(r.FailedFiles) }

func (r *BatchResult) complete() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}

// Engine re-reads source files through a codec.
type Engine struct {
	reader codec.Reader
	logger *zap.Logger
}

// NewEngine returns an engine. A nil logger disables logging.
func NewEngine(reader codec.Reader, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{reader: reader, logger: logger.Named("unify")}
}

// File reads a whole file and unifies every data row.
func (e *Engine) File(ctx context.Context, job Job, fields []string) ([]types.MappedRow, error) {
	wb, err := codec.Load(ctx, e.reader, job.File)
	if err != nil {
		return nil, err
	}
	return Rows(job.File.Name(), &job.Mapping, fields, wb.FirstSheetRows()), nil
}

// Full unifies jobs one after another, in order. A file that fails to read
// is logged and recorded in FailedFiles and adds no rows; the run always
// continues to the next file. If progress is non-nil the fraction of files
// done is sent after each file without blocking.
func (e *Engine) Full(ctx context.Context, jobs []Job, fields []string, progress chan<- float64) *BatchResult {
	result := &BatchResult{
		RunID:     uuid.New().String(),
		Files:     len(jobs),
		StartTime: time.Now(),
	}
	logger := e.logger.With(zap.String("run_id", result.RunID))

	reportProgress := func(done int) {
		if progress != nil && len(jobs) > 0 {
			select {
			case progress <- float64(done) / float64(len(jobs)):
			default:
			}
		}
	}

	for i, job := range jobs {
		rows, err := e.File(ctx, job, fields)
		if err != nil {
			logger.Error("Failed to process file",
				zap.String("file", job.File.Name()),
				zap.Error(err))
			result.FailedFiles = append(result.FailedFiles, FileError{File: job.File.Name(), Err: err})
		} else {
			logger.Debug("Processed file",
				zap.String("file", job.File.Name()),
				zap.Int("rows", len(rows)))
			result.Rows = append(result.Rows, rows...)
		}
		reportProgress(i + 1)
	}

	result.complete()
	logger.Info("Unification complete",
		zap.Int("files", result.Files),
		zap.Int("failed_files", len(result.FailedFiles)),
		zap.Int("rows", len(result.Rows)),
		zap.Duration("duration", result.Duration))

	return result
}
