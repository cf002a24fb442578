package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/escolab/pi-pipeline/constants"
	"github.com/escolab/pi-pipeline/internal/common"
	"github.com/escolab/pi-pipeline/internal/dispatch"
	"github.com/escolab/pi-pipeline/internal/entity"
)

// uploadField is the multipart form field carrying the document.
const uploadField = "piFile"

// maxUploadBytes caps a single submission body.
const maxUploadBytes = 20 << 20

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, fmt.Errorf("%w: multipart form expected", common.ErrInvalidInput))
		return
	}

	userID := strings.TrimSpace(r.FormValue("userId"))
	if userID == "" {
		writeError(w, fmt.Errorf("%w: userId is required", common.ErrInvalidInput))
		return
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, fmt.Errorf("%w: file field %q is required", common.ErrInvalidInput, uploadField))
		return
	}
	defer file.Close()

	ext := constants.NormalizeExt(filepath.Ext(header.Filename))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		writeError(w, fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, ext))
		return
	}

	dstPath, err := s.stageUpload(file, ext)
	if err != nil {
		s.logger.Error("upload staging failed", "filename", header.Filename, "error", err)
		writeError(w, common.ErrInternal)
		return
	}

	jobID, err := s.dispatcher.Submit(r.Context(), dispatch.Upload{
		UserID:   userID,
		Filename: header.Filename,
		FilePath: dstPath,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID.String()})
}

// stageUpload copies the multipart part to the upload directory under a
// collision-free name. The descriptor carries this path to the worker.
func (s *Server) stageUpload(src io.Reader, ext string) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	dstPath := filepath.Join(s.uploadDir, uuid.NewString()+"."+ext)
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dstPath)
		return "", fmt.Errorf("write staged file: %w", err)
	}
	return dstPath, nil
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		writeError(w, fmt.Errorf("%w: userId is required", common.ErrInvalidInput))
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, fmt.Errorf("%w: job id must be a UUID", common.ErrInvalidInput))
		return
	}

	job, err := s.jobs.GetByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Error("job lookup failed", "job_id", id, "error", err)
		}
		writeError(w, err)
		return
	}
	if job.UserID != userID {
		writeError(w, fmt.Errorf("job %s: %w", id, common.ErrForbidden))
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		writeError(w, fmt.Errorf("%w: userId is required", common.ErrInvalidInput))
		return
	}

	jobs, err := s.jobs.ListByUser(r.Context(), userID)
	if err != nil {
		s.logger.Error("job listing failed", "user_id", userID, "error", err)
		writeError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*entity.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}
