package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pdf-conversion-service/internal/log"
	"pdf-conversion-service/internal/merge"
	"pdf-conversion-service/internal/models"
	"pdf-conversion-service/internal/telemetry"
)

// handleConvert accepts a PDF upload, registers the job, and spawns its
// worker. Launch failures are surfaced here synchronously; everything the
// worker does afterwards arrives through polling.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file too large, maximum size is %d bytes", s.cfg.MaxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	name := sanitizeFilename(header.Filename)
	if name == "" {
		writeError(w, http.StatusBadRequest, "no file selected")
		return
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		writeError(w, http.StatusBadRequest, "only PDF files are allowed")
		return
	}

	id := uuid.NewString()
	ctx := log.ContextAttrs(r.Context(), slog.String("job_id", id))
	inputPath := filepath.Join(s.cfg.UploadDir, id+"_"+name)
	outputName := strings.TrimSuffix(name, filepath.Ext(name)) + ".docx"
	outputPath := filepath.Join(s.cfg.OutputDir, id+"_"+outputName)

	if err := saveUpload(inputPath, file); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	if _, err := s.reg.Create(id); err != nil {
		_ = os.Remove(inputPath)
		writeError(w, http.StatusInternalServerError, "failed to register job")
		return
	}
	telemetry.JobsSubmitted.Inc()

	if err := s.sup.Start(id, inputPath, outputPath); err != nil {
		s.logger.ErrorContext(ctx, "worker launch failed", "err", err)
		msg := fmt.Sprintf("failed to start conversion: %v", err)
		_ = s.reg.Update(id, models.StatusUpdate{
			Status:  models.StatusPtr(models.StatusError),
			Step:    models.StrPtr(models.StepError),
			Message: models.StrPtr(msg),
			Error:   models.StrPtr(msg),
		})
		_ = os.Remove(inputPath)
		telemetry.JobsFailed.Inc()
		writeError(w, http.StatusInternalServerError, msg)
		return
	}

	s.logger.InfoContext(ctx, "conversion accepted", "filename", name)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":   id,
		"filename": name,
		"message":  "File uploaded successfully. Conversion started.",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.reg.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleHeartbeat is fire-and-forget: it always succeeds, and only records a
// touch for jobs that are still running so terminal jobs cannot grow stale
// tracker entries.
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if rec, err := s.reg.Get(id); err == nil && !rec.Status.Terminal() {
		s.hb.Touch(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := s.sup.Cancel(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]models.Status{"status": status})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.reg.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if rec.Status != models.StatusCompleted {
		writeError(w, http.StatusConflict, "file not ready for download")
		return
	}
	ref := filepath.Base(rec.OutputRef)
	path := filepath.Join(s.cfg.OutputDir, ref)
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "output file not found")
		return
	}
	// Client-facing name drops the internal "<id>_" prefix.
	downloadName := strings.TrimPrefix(ref, id+"_")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	http.ServeFile(w, r, path)
}

// handleCleanup removes the record and every file belonging to the job. It is
// idempotent; a job with a live worker must be cancelled first so resource
// release stays with its monitor task.
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing job id")
		return
	}
	if s.sup.Active(id) {
		writeError(w, http.StatusConflict, "job is still running, cancel it first")
		return
	}

	s.reg.Delete(id)
	s.hb.Remove(id)
	for _, dir := range []string{s.cfg.UploadDir, s.cfg.OutputDir, s.cfg.WorkDir} {
		removeByPrefix(dir, id)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "files cleaned up successfully"})
}

// handleMerge merges uploaded DOCX files synchronously. The result is
// registered as a completed job so download and cleanup work the same way
// they do for conversions.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload too large, maximum size is %d bytes", s.cfg.MaxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) < 2 {
		writeError(w, http.StatusBadRequest, "at least two documents required")
		return
	}

	id := uuid.NewString()
	ctx := log.ContextAttrs(r.Context(), slog.String("job_id", id))
	inputs := make([]string, 0, len(headers))
	defer func() {
		for _, p := range inputs {
			_ = os.Remove(p)
		}
	}()

	for i, h := range headers {
		name := sanitizeFilename(h.Filename)
		if !strings.EqualFold(filepath.Ext(name), ".docx") {
			writeError(w, http.StatusBadRequest, "only DOCX files can be merged")
			return
		}
		f, err := h.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable upload")
			return
		}
		path := filepath.Join(s.cfg.WorkDir, fmt.Sprintf("%s_merge_%d.docx", id, i))
		err = saveUpload(path, f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to store upload")
			return
		}
		inputs = append(inputs, path)
	}

	outputName := id + "_merged.docx"
	outputPath := filepath.Join(s.cfg.OutputDir, outputName)

	if _, err := s.reg.Create(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register job")
		return
	}

	if err := merge.Files(ctx, inputs, outputPath); err != nil {
		s.logger.ErrorContext(ctx, "merge failed", "err", err)
		msg := fmt.Sprintf("merge failed: %v", err)
		_ = s.reg.Update(id, models.StatusUpdate{
			Status:  models.StatusPtr(models.StatusError),
			Step:    models.StrPtr(models.StepError),
			Message: models.StrPtr(msg),
			Error:   models.StrPtr(msg),
		})
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	_ = s.reg.Update(id, models.StatusUpdate{
		Status:    models.StatusPtr(models.StatusCompleted),
		Progress:  models.IntPtr(100),
		Step:      models.StrPtr(models.StepCompleted),
		Message:   models.StrPtr(fmt.Sprintf("Merged %d documents successfully", len(inputs))),
		OutputRef: models.StrPtr(outputName),
	})
	telemetry.MergesTotal.Inc()

	writeJSON(w, http.StatusCreated, map[string]string{
		"job_id":     id,
		"output_ref": outputName,
	})
}

func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(path)
		return err
	}
	return dst.Close()
}

// removeByPrefix deletes every file in dir whose name starts with prefix.
func removeByPrefix(dir, prefix string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			_ = os.Remove(filepath.Join(dir, e.Name()))
		}
	}
}

// sanitizeFilename reduces an uploaded name to a safe base name.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" || out == "." || out == ".." {
		return ""
	}
	return out
}
