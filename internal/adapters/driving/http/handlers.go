package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"query cannot be empty"`
}

// MessageResponse represents a simple message response
// @Description Simple message response
type MessageResponse struct {
	Message string `json:"message" example:"Caches cleared"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// HealthResponse reports the state of each infrastructure dependency
// @Description Health check response
type HealthResponse struct {
	Status    string            `json:"status" example:"healthy"`
	Version   string            `json:"version" example:"1.0.0"`
	Checks    map[string]string `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
}

// UploadResponse is returned once an upload has been accepted
// @Description Upload accepted response
type UploadResponse struct {
	TaskID  string `json:"task_id" example:"0b7e4d7a-5b7c-4f43-9d8e-1c0f4f2a9f11"`
	Status  string `json:"status" example:"processing"`
	Message string `json:"message" example:"Upload started for report.pdf"`
}

// DualAnswerInfo describes how the returned answer was chosen
// @Description Dual answer details
type DualAnswerInfo struct {
	LocalAnswer        string `json:"local_answer"`
	ExternalAnswer     string `json:"external_answer"`
	SelectedSource     string `json:"selected_source" example:"local"`
	SelectionReason    string `json:"selection_reason"`
	DualAnswersEnabled bool   `json:"dual_answers_enabled"`
}

// AnswerResponse is the search endpoint response
// @Description Answer with its source documents
type AnswerResponse struct {
	Query   string             `json:"query"`
	Answer  string             `json:"answer"`
	Sources []domain.SourceRef `json:"sources"`
	// ProcessingTime is in seconds
	ProcessingTime float64         `json:"processing_time"`
	DualAnswers    *DualAnswerInfo `json:"dual_answers,omitempty"`
}

// MetricsResponse reports store and cache sizes
// @Description Service metrics
type MetricsResponse struct {
	DocumentsCount  int               `json:"documents_count"`
	ChunksCount     int               `json:"chunks_count"`
	AvgChunksPerDoc float64           `json:"avg_chunks_per_doc"`
	TotalFileSize   int64             `json:"total_file_size"`
	Cache           domain.CacheStats `json:"cache"`
}

// CleanupResponse reports a task cleanup run
// @Description Task cleanup result
type CleanupResponse struct {
	Message string `json:"message"`
	Removed int    `json:"removed"`
}

// Request defaults and limits.
const (
	maxSearchLimit     = domain.MaxTopK
	defaultSearchLimit = 10
	defaultCleanupAge  = 24
	maxCleanupAge      = 168
	healthCheckTimeout = 5 * time.Second
	uploadFormField    = "file"
	uploadMemoryBuffer = 8 << 20
)

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Pings every configured infrastructure dependency
// @Tags         Health
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Failure      503  {object}  HealthResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Version:   s.version,
		Checks:    make(map[string]string, len(s.checks)),
		Timestamp: time.Now().UTC(),
	}
	for name, p := range s.checks {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", "component", name, "error", err)
			resp.Checks[name] = "unhealthy"
			resp.Status = "unhealthy"
			continue
		}
		resp.Checks[name] = "healthy"
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// Ingestion endpoints

// handleUpload godoc
// @Summary      Upload a document
// @Description  Stores the file and starts background ingestion. Poll the returned task for progress.
// @Tags         Ingestion
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "Document to ingest"
// @Success      202   {object}  UploadResponse
// @Failure      400   {object}  ErrorResponse  "Missing file or unsupported type"
// @Failure      413   {object}  ErrorResponse  "Upload too large"
// @Failure      500   {object}  ErrorResponse  "Internal server error"
// @Router       /upload [post]
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(uploadMemoryBuffer); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", s.maxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	taskID, err := s.ingestionService.StartIngestion(r.Context(), file, header.Filename)
	if err != nil {
		s.writeServiceError(w, err, "upload failed")
		return
	}

	writeJSON(w, http.StatusAccepted, UploadResponse{
		TaskID:  taskID,
		Status:  string(domain.TaskStatusProcessing),
		Message: "Upload started for " + header.Filename,
	})
}

// handleUploadStatus godoc
// @Summary      Get upload status
// @Description  Returns the progress of a background ingestion task
// @Tags         Ingestion
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  domain.Task
// @Failure      404  {object}  ErrorResponse  "Task not found"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /upload/status/{id} [get]
func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing task id")
		return
	}

	task, err := s.ingestionService.GetTaskStatus(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err, "failed to get task status")
		return
	}
	if task.Status == domain.TaskStatusNotFound {
		writeError(w, http.StatusNotFound, domain.TaskNotFoundMessage)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Query endpoints

// handleSearch godoc
// @Summary      Ask a question
// @Description  Retrieves relevant chunks, reranks them and answers from the best contexts
// @Tags         Search
// @Produce      json
// @Param        q       query     string  true   "Question"
// @Param        limit   query     int     false  "Number of chunks to consider (max 50)"
// @Param        offset  query     int     false  "Results offset"
// @Param        doc_id  query     string  false  "Restrict to one document"
// @Success      200     {object}  AnswerResponse
// @Failure      400     {object}  ErrorResponse  "Empty query or invalid paging"
// @Failure      500     {object}  ErrorResponse  "Internal server error"
// @Router       /search [get]
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := intParam(q.Get("limit"), defaultSearchLimit)
	if err != nil || limit < 1 || limit > maxSearchLimit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxSearchLimit))
		return
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	query := q.Get("q")
	result, err := s.queryService.Query(r.Context(), query, domain.SearchOptions{
		TopK:       limit,
		Offset:     offset,
		DocumentID: q.Get("doc_id"),
	})
	if err != nil {
		s.writeServiceError(w, err, "search failed")
		return
	}

	sources := result.Sources
	if sources == nil {
		sources = []domain.SourceRef{}
	}
	resp := AnswerResponse{
		Query:          query,
		Answer:         result.Answer,
		Sources:        sources,
		ProcessingTime: result.ProcessingTime.Seconds(),
	}
	if result.SelectionReason != domain.ReasonRuleBased {
		resp.DualAnswers = &DualAnswerInfo{
			LocalAnswer:        result.LocalAnswer,
			ExternalAnswer:     result.ExternalAnswer,
			SelectedSource:     string(result.Source),
			SelectionReason:    result.SelectionReason,
			DualAnswersEnabled: result.SelectionReason != domain.ReasonExternalNotConfigured,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Document endpoints

// handleListDocuments godoc
// @Summary      List documents
// @Description  Document summaries with chunk counts, newest first
// @Tags         Documents
// @Produce      json
// @Param        skip   query     int  false  "Documents to skip (default 0)"
// @Param        limit  query     int  false  "Page size (1-200, default 100)"
// @Success      200    {array}   domain.DocumentSummary
// @Failure      400    {object}  ErrorResponse  "Invalid paging parameters"
// @Failure      500    {object}  ErrorResponse  "Internal server error"
// @Router       /documents [get]
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, err := intParam(q.Get("skip"), 0)
	if err != nil || skip < 0 {
		writeError(w, http.StatusBadRequest, "skip must be a non-negative integer")
		return
	}
	limit, err := intParam(q.Get("limit"), domain.DefaultListLimit)
	if err != nil || limit < 1 || limit > domain.MaxListLimit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", domain.MaxListLimit))
		return
	}

	docs, err := s.docService.List(r.Context(), skip, limit)
	if err != nil {
		s.writeServiceError(w, err, "failed to retrieve documents")
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// handleGetDocument godoc
// @Summary      Get document
// @Description  Get a document with its chunks in stored order
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  domain.DocumentWithChunks
// @Failure      404  {object}  ErrorResponse  "Document not found"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /documents/{id} [get]
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing document id")
		return
	}

	doc, err := s.docService.GetWithChunks(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		s.writeServiceError(w, err, "failed to get document")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// handleDeleteDocument godoc
// @Summary      Delete document
// @Description  Delete a document and its chunks
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  MessageResponse
// @Failure      404  {object}  ErrorResponse  "Document not found"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /documents/{id} [delete]
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing document id")
		return
	}

	if err := s.docService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		s.writeServiceError(w, err, "failed to delete document")
		return
	}

	// Cached rankings may still reference the deleted chunks
	s.queryService.ClearCache()
	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("Document %s deleted", id)})
}

// Cache endpoints

// handleCacheStats godoc
// @Summary      Cache statistics
// @Description  Sizes of the embedding and search caches
// @Tags         Cache
// @Produce      json
// @Success      200  {object}  domain.CacheStats
// @Router       /cache/stats [get]
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queryService.CacheStats())
}

// handleClearCache godoc
// @Summary      Clear caches
// @Description  Empties the embedding and search caches
// @Tags         Cache
// @Produce      json
// @Success      200  {object}  MessageResponse
// @Router       /cache/clear [post]
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.queryService.ClearCache()
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Embedding and search caches cleared"})
}

// Admin endpoints

// handleMetrics godoc
// @Summary      Service metrics
// @Description  Document, chunk and byte totals with cache sizes
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  MetricsResponse
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /metrics [get]
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.docService.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, err, "failed to collect metrics")
		return
	}
	writeJSON(w, http.StatusOK, MetricsResponse{
		DocumentsCount:  stats.Documents,
		ChunksCount:     stats.Chunks,
		AvgChunksPerDoc: stats.AvgChunksPerDocument(),
		TotalFileSize:   stats.TotalFileSize,
		Cache:           s.queryService.CacheStats(),
	})
}

// handleCleanupTasks godoc
// @Summary      Clean up old tasks
// @Description  Removes task records not updated within max_age_hours, whatever their status
// @Tags         Admin
// @Produce      json
// @Param        max_age_hours  query     int  false  "Age threshold in hours (1-168, default 24)"
// @Success      200            {object}  CleanupResponse
// @Failure      400            {object}  ErrorResponse  "Invalid max_age_hours"
// @Failure      500            {object}  ErrorResponse  "Internal server error"
// @Router       /admin/cleanup-tasks [post]
func (s *Server) handleCleanupTasks(w http.ResponseWriter, r *http.Request) {
	hours, err := intParam(r.URL.Query().Get("max_age_hours"), defaultCleanupAge)
	if err != nil || hours < 1 || hours > maxCleanupAge {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("max_age_hours must be between 1 and %d", maxCleanupAge))
		return
	}

	removed, err := s.ingestionService.CleanupTasks(r.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		s.writeServiceError(w, err, "failed to clean up tasks")
		return
	}

	writeJSON(w, http.StatusOK, CleanupResponse{
		Message: fmt.Sprintf("Cleaned up tasks older than %d hours", hours),
		Removed: removed,
	})
}

// Helpers

// writeServiceError maps domain errors to status codes. Unexpected errors
// are logged and reported with the generic fallback message.
func (s *Server) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupportedFileType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrWorkerStopped), errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		s.logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
