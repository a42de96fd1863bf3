package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nconklindev/harmony/internal/codec"
	"github.com/nconklindev/harmony/internal/errs"
	"github.com/nconklindev/harmony/internal/mapping"
	"github.com/nconklindev/harmony/internal/store"
	"github.com/nconklindev/harmony/internal/types"
	"github.com/nconklindev/harmony/internal/unify"
	"github.com/nconklindev/harmony/internal/workspace"
)

const MaxUploadSize = 32 << 20

// CandidateLister reads back saved candidates.
type CandidateLister interface {
	List(ctx context.Context) ([]store.Candidate, error)
}

type Handler struct {
	Workspace  *workspace.Workspace
	Candidates CandidateLister
	ExportFile string
	logger     *zap.Logger
}

func NewHandler(ws *workspace.Workspace, candidates CandidateLister, exportFile string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exportFile == "" {
		exportFile = "unified_candidate_data.xlsx"
	}
	return &Handler{
		Workspace:  ws,
		Candidates: candidates,
		ExportFile: exportFile,
		logger:     logger.Named("api"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/files", h.ListFiles)
		r.Post("/files", h.UploadFiles)
		r.Delete("/files/{name}", h.RemoveFile)
		r.Put("/files/{name}/mapping", h.SetMapping)
		r.Post("/mappings/suggest", h.SuggestMappings)

		r.Get("/fields", h.ListFields)
		r.Post("/fields", h.AddField)
		r.Delete("/fields/{name}", h.RemoveField)

		r.Post("/preview", h.GeneratePreview)
		r.Post("/process", h.ProcessAll)
		r.Post("/save", h.Save)
		r.Get("/export", h.Export)
		r.Get("/candidates", h.ListCandidates)
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// FileView is the JSON shape of an ingested file.
type FileView struct {
	Name          string         `json:"name"`
	Headers       []string       `json:"headers"`
	Mapping       types.Mapping  `json:"mapping"`
	Preview       [][]types.Cell `json:"preview"`
	MappedPercent int            `json:"mappedPercent"`
}

func fileViews(entries []mapping.Entry) []FileView {
	out := make([]FileView, 0, len(entries))
	for _, e := range entries {
		fm := e.File
		out = append(out, FileView{
			Name:          e.Name,
			Headers:       fm.Headers,
			Mapping:       fm.Mapping,
			Preview:       fm.Preview,
			MappedPercent: mapping.MappedPercent(&fm),
		})
	}
	return out
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, fileViews(h.Workspace.Files()))
}

type uploadResult struct {
	Added   []string          `json:"added"`
	Skipped []string          `json:"skipped"`
	Errors  map[string]string `json:"errors,omitempty"`
	Files   []FileView        `json:"files"`
}

// UploadFiles ingests every "file" part of a multipart form. Decode failures
// are reported per file; the rest of the upload still goes through.
func (h *Handler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	actor := ActorFrom(r.Context())

	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	parts := r.MultipartForm.File["file"]
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}

	result := uploadResult{Added: []string{}, Skipped: []string{}}
	for _, part := range parts {
		f, err := part.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to open upload")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read upload")
			return
		}

		added, err := h.Workspace.AddFile(r.Context(), actor, codec.MemFile{FileName: part.Filename, Data: data})
		switch {
		case errs.IsKind(err, errs.Authorization):
			h.fail(w, err)
			return
		case err != nil:
			if result.Errors == nil {
				result.Errors = make(map[string]string)
			}
			result.Errors[part.Filename] = err.Error()
		case added:
			result.Added = append(result.Added, part.Filename)
		default:
			result.Skipped = append(result.Skipped, part.Filename)
		}
	}

	result.Files = fileViews(h.Workspace.Files())
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) RemoveFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ok, err := h.Workspace.RemoveFile(ActorFrom(r.Context()), name)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown file %q", name))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetMapping replaces a file's mapping with the JSON object in the body.
// A null target clears a header.
func (h *Handler) SetMapping(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var m types.Mapping
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ok, err := h.Workspace.ReplaceMapping(ActorFrom(r.Context()), name, m)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown file %q", name))
		return
	}

	fm, _ := h.Workspace.Mapping(name)
	writeJSON(w, http.StatusOK, fileViews([]mapping.Entry{{Name: name, File: fm}})[0])
}

func (h *Handler) SuggestMappings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Files []string `json:"files"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	if err := h.Workspace.SuggestMappings(ActorFrom(r.Context()), req.Files...); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fileViews(h.Workspace.Files()))
}

func (h *Handler) ListFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Workspace.Fields())
}

func (h *Handler) AddField(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.Workspace.AddField(ActorFrom(r.Context()), req.Name); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.Workspace.Fields())
}

func (h *Handler) RemoveField(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ok, err := h.Workspace.RemoveField(ActorFrom(r.Context()), name)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown field %q", name))
		return
	}
	writeJSON(w, http.StatusOK, h.Workspace.Fields())
}

func (h *Handler) GeneratePreview(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Workspace.GeneratePreview(ActorFrom(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	if rows == nil {
		rows = []types.MappedRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

type processResponse struct {
	RunID       string            `json:"runId"`
	Files       int               `json:"files"`
	Succeeded   int               `json:"succeeded"`
	FailedFiles map[string]string `json:"failedFiles"`
	Duration    string            `json:"duration"`
	Stats       unify.Stats       `json:"stats"`
	Rows        []types.MappedRow `json:"rows"`
}

func (h *Handler) ProcessAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.Workspace.ProcessAll(r.Context(), ActorFrom(r.Context()), nil)
	if err != nil {
		h.fail(w, err)
		return
	}

	resp := processResponse{
		RunID:       result.RunID,
		Files:       result.Files,
		Succeeded:   result.Succeeded(),
		FailedFiles: make(map[string]string, len(result.FailedFiles)),
		Duration:    result.Duration.Round(time.Millisecond).String(),
		Stats:       unify.Concat(result.Rows).Stats(h.Workspace.Fields()),
		Rows:        result.Rows,
	}
	for _, fe := range result.FailedFiles {
		resp.FailedFiles[fe.File] = fe.Err.Error()
	}
	if resp.Rows == nil {
		resp.Rows = []types.MappedRow{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	result, err := h.Workspace.Save(r.Context(), ActorFrom(r.Context()))
	if err != nil {
		h.logger.Warn("Save refused", zap.Error(err))
		writeJSON(w, statusFor(err), map[string]any{
			"error":  err.Error(),
			"result": result,
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.Workspace.Export(ActorFrom(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.ExportFile))
	w.Write(data)
}

func (h *Handler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	if h.Candidates == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence not configured")
		return
	}

	candidates, err := h.Candidates.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list candidates", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list candidates")
		return
	}
	if candidates == nil {
		candidates = []store.Candidate{}
	}
	writeJSON(w, http.StatusOK, candidates)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	var e *errs.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case errs.Validation:
		return http.StatusBadRequest
	case errs.Decode:
		return http.StatusUnprocessableEntity
	case errs.Authorization:
		return http.StatusForbidden
	case errs.Precondition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
