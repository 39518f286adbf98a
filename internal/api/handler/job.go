package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hszk-dev/dashstream/internal/domain/model"
	"github.com/hszk-dev/dashstream/internal/domain/repository"
	"github.com/hszk-dev/dashstream/internal/transcoder"
	"github.com/hszk-dev/dashstream/internal/usecase"
)

// multipartMemory is how much of a multipart upload is held in memory before
// spilling to a temp file.
const multipartMemory = 32 << 20

// Request/Response types

type JobResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

type SubmitObjectRequest struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

type CreateUploadRequest struct {
	FileName string `json:"file_name"`
}

type CreateUploadResponse struct {
	Key       string `json:"key"`
	UploadURL string `json:"upload_url"`
}

type JobRecordResponse struct {
	JobID     string `json:"jobId"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ListJobsResponse struct {
	Jobs []JobRecordResponse `json:"jobs"`
}

// JobHandler handles encode job HTTP requests.
type JobHandler struct {
	svc            usecase.EncodeService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewJobHandler creates a new JobHandler. maxUploadBytes caps the multipart
// request body; zero disables the cap.
func NewJobHandler(svc usecase.EncodeService, maxUploadBytes int64, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{svc: svc, maxUploadBytes: maxUploadBytes, logger: logger}
}

// Submit handles POST /api/encode (multipart fields "name" and "file").
func (h *JobHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(w, http.StatusRequestEntityTooLarge, "source_too_large", "Upload exceeds maximum size")
			return
		}
		Error(w, http.StatusBadRequest, "invalid_request", "Expected a multipart form with name and file")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		Error(w, http.StatusBadRequest, "missing_file", "File is required")
		return
	}
	defer func() { _ = file.Close() }()

	job, err := h.svc.Submit(r.Context(), usecase.SubmitInput{
		Name:     r.FormValue("name"),
		FileName: header.Filename,
		Source:   file,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusAccepted, toJobResponse(job.ID, job.Status))
}

// SubmitObject handles POST /api/encode/object
func (h *JobHandler) SubmitObject(w http.ResponseWriter, r *http.Request) {
	var req SubmitObjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	job, err := h.svc.SubmitObject(r.Context(), usecase.SubmitObjectInput{
		Name: req.Name,
		Key:  req.Key,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusAccepted, toJobResponse(job.ID, job.Status))
}

// CreateUpload handles POST /api/uploads
func (h *JobHandler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	var req CreateUploadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	output, err := h.svc.CreateUpload(r.Context(), usecase.CreateUploadInput{FileName: req.FileName})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusCreated, CreateUploadResponse{
		Key:       output.Key,
		UploadURL: output.UploadURL,
	})
}

// Status handles GET /api/status/{jobId}
func (h *JobHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobId"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_job_id", "Job ID must be a valid UUID")
		return
	}

	status, err := h.svc.Status(r.Context(), jobID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, toJobResponse(jobID, status))
}

// List handles GET /api/jobs?limit=n
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "invalid_limit", "Limit must be a non-negative integer")
			return
		}
		limit = n
	}

	jobs, err := h.svc.RecentJobs(r.Context(), limit)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobRecordResponse, 0, len(jobs))}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, toJobRecordResponse(job))
	}
	JSON(w, http.StatusOK, resp)
}

func (h *JobHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrJobNotFound):
		Error(w, http.StatusNotFound, "job_not_found", "Job not found")
	case errors.Is(err, repository.ErrObjectNotFound):
		Error(w, http.StatusNotFound, "object_not_found", "Uploaded object not found")
	case errors.Is(err, model.ErrEmptyStreamName):
		Error(w, http.StatusBadRequest, "invalid_name", "Name is required")
	case errors.Is(err, model.ErrInvalidStreamName):
		Error(w, http.StatusBadRequest, "invalid_name", "Name must be a single path segment")
	case errors.Is(err, model.ErrStreamNameTooLong):
		Error(w, http.StatusBadRequest, "invalid_name", "Name exceeds maximum length")
	case errors.Is(err, usecase.ErrMissingSource):
		Error(w, http.StatusBadRequest, "missing_file", "File is required")
	case errors.Is(err, usecase.ErrEmptyFileName):
		Error(w, http.StatusBadRequest, "invalid_file_name", "File name is required")
	case errors.Is(err, usecase.ErrSourceTooLarge):
		Error(w, http.StatusRequestEntityTooLarge, "source_too_large", "Upload exceeds maximum size")
	case errors.Is(err, transcoder.ErrManifestInUse):
		Error(w, http.StatusConflict, "stream_busy", "Another job is still encoding this stream")
	case errors.Is(err, transcoder.ErrSupervisorClosed):
		Error(w, http.StatusServiceUnavailable, "shutting_down", "Server is shutting down")
	case errors.Is(err, usecase.ErrObjectStorageDisabled):
		Error(w, http.StatusServiceUnavailable, "object_storage_disabled", "Object storage is not enabled")
	case errors.Is(err, usecase.ErrHistoryDisabled):
		Error(w, http.StatusServiceUnavailable, "history_disabled", "Job history is not enabled")
	default:
		h.logger.Error("request failed", slog.String("error", err.Error()))
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

func toJobResponse(id uuid.UUID, status model.Status) JobResponse {
	return JobResponse{
		JobID:  id.String(),
		Status: status.String(),
	}
}

func toJobRecordResponse(j *model.Job) JobRecordResponse {
	return JobRecordResponse{
		JobID:     j.ID.String(),
		Name:      j.Name,
		Status:    j.Status.String(),
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
}
