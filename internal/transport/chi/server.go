package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/assessdex/internal/domain"
	"github.com/kailas-cloud/assessdex/internal/domain/module"
	"github.com/kailas-cloud/assessdex/internal/domain/search/filter"
	"github.com/kailas-cloud/assessdex/internal/domain/search/request"
	"github.com/kailas-cloud/assessdex/internal/domain/search/result"
	"github.com/kailas-cloud/assessdex/internal/logger"
	documentuc "github.com/kailas-cloud/assessdex/internal/usecase/document"
	enhanceuc "github.com/kailas-cloud/assessdex/internal/usecase/enhance"
	healthuc "github.com/kailas-cloud/assessdex/internal/usecase/health"
	insightuc "github.com/kailas-cloud/assessdex/internal/usecase/insight"
	searchuc "github.com/kailas-cloud/assessdex/internal/usecase/search"
)

// BasePath prefixes every API route.
const BasePath = "/api/v1/vector-search"

const (
	maxJSONBody     = 1 << 20
	multipartMemory = 8 << 20
	// multipart framing allowance on top of the file size limit
	multipartSlack = 1 << 20
)

// Server holds HTTP handlers for the vector search API.
type Server struct {
	documents     *documentuc.Service
	search        *searchuc.Service
	insights      *insightuc.Service
	enhance       *enhanceuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	maxUpload     int64
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	documents *documentuc.Service,
	search *searchuc.Service,
	insights *insightuc.Service,
	enhance *enhanceuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{
		documents:     documents,
		search:        search,
		insights:      insights,
		enhance:       enhance,
		health:        health,
		logger:        logger,
		maxUpload:     documentuc.DefaultMaxUploadBytes,
		errorHandlers: defaultErrorHandlers(),
	}
}

// WithMaxUploadBytes sets the upload size limit enforced before reading the body.
func (s *Server) WithMaxUploadBytes(n int64) *Server {
	if n > 0 {
		s.maxUpload = n
	}
	return s
}

// Routes mounts API handlers on r.
func (s *Server) Routes(r chi.Router) {
	r.Route(BasePath, func(r chi.Router) {
		r.Post("/documents/{assessmentId}/{moduleType}", s.UploadDocument)
		r.Get("/documents/{documentId}", s.GetDocument)
		r.Delete("/documents/{documentId}", s.DeleteDocument)
		r.Post("/search", s.Search)
		r.Get("/similar/{documentId}", s.Similar)
		r.Get("/insights/{assessmentId}/{moduleType}", s.Insights)
		r.Post("/enhanced-analysis", s.EnhancedAnalysis)
		r.Get("/stats", s.Stats)
		r.Post("/rebuild", s.Rebuild)
		r.Post("/test-embedding", s.TestEmbedding)
	})
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// UploadDocument handles POST /documents/{assessmentId}/{moduleType}.
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	assessmentID, ok := pathID(w, r, "assessmentId")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartSlack)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, domain.ErrFileTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "file is required")
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > s.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, domain.ErrFileTooLarge.Error())
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "failed to read file")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.documents.Ingest(ctx, documentuc.IngestRequest{
		Data:           data,
		FileName:       header.Filename,
		ContentType:    header.Header.Get("Content-Type"),
		AssessmentID:   assessmentID,
		AssessmentName: r.FormValue("assessmentName"),
		ModuleType:     chi.URLParam(r, "moduleType"),
	})
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadToDTO(&res))
}

// GetDocument handles GET /documents/{documentId}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentId")
	chunks, err := s.documents.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentResponse{DocumentID: id, Chunks: embeddingsToDTO(chunks)})
}

// DeleteDocument handles DELETE /documents/{documentId}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.documents.Delete(r.Context(), chi.URLParam(r, "documentId"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, CodeDocumentNotFound, domain.ErrDocumentNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	f, err := searchFilter(body.AssessmentID, body.ModuleTypes)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	req, err := request.New(body.Query, f, derefInt(body.TopK), body.SimilarityThreshold, body.IncludeMetadata)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results, err := s.search.Search(ctx, &req)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{Results: searchResultsToDTO(results), Count: len(results)})
}

// Similar handles GET /similar/{documentId}.
func (s *Server) Similar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	topK, ok := queryInt(w, q.Get("topK"), "topK")
	if !ok {
		return
	}
	threshold, ok := queryFloat(w, q.Get("similarityThreshold"), "similarityThreshold")
	if !ok {
		return
	}

	req, err := request.NewSimilar(chi.URLParam(r, "documentId"), topK, threshold)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	results, err := s.search.Similar(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{Results: searchResultsToDTO(results), Count: len(results)})
}

// Insights handles GET /insights/{assessmentId}/{moduleType}.
func (s *Server) Insights(w http.ResponseWriter, r *http.Request) {
	assessmentID, ok := pathID(w, r, "assessmentId")
	if !ok {
		return
	}
	maxInsights, ok := queryInt(w, r.URL.Query().Get("maxInsights"), "maxInsights")
	if !ok {
		return
	}

	found, err := s.insights.FindInsights(r.Context(), assessmentID, chi.URLParam(r, "moduleType"), maxInsights)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	out := make([]Insight, len(found))
	for i := range found {
		out[i] = insightToDTO(&found[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// EnhancedAnalysis handles POST /enhanced-analysis.
func (s *Server) EnhancedAnalysis(w http.ResponseWriter, r *http.Request) {
	var body EnhanceRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	req := enhanceuc.Request{
		OriginalRequest: body.OriginalRequest,
		ModuleType:      body.ModuleType,
		AssessmentID:    body.AssessmentID,
	}
	if body.RelevantDocuments != nil {
		req.RelevantDocuments = make([]result.Result, len(*body.RelevantDocuments))
		for i, d := range *body.RelevantDocuments {
			req.RelevantDocuments[i] = searchResultFromDTO(d)
		}
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.enhance.Enhance(ctx, req)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	s.requestLogger(r).Info("Enhanced analysis generated",
		zap.Int64("assessment_id", body.AssessmentID),
		zap.String("module_type", body.ModuleType),
		zap.Int("context_documents", len(res.ContextDocuments)),
	)
	writeJSON(w, http.StatusOK, enhanceToDTO(&res))
}

// Stats handles GET /stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.documents.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsToDTO(&st))
}

// Rebuild handles POST /rebuild. The run is synchronous.
func (s *Server) Rebuild(w http.ResponseWriter, r *http.Request) {
	rep, err := s.documents.Rebuild(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rebuildToDTO(&rep))
}

// TestEmbedding handles POST /test-embedding.
func (s *Server) TestEmbedding(w http.ResponseWriter, r *http.Request) {
	var body TestEmbeddingRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.documents.TestEmbedding(ctx, body.Text)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, TestEmbeddingResponse{
		Success:          true,
		Dimensions:       res.Dimensions,
		TokenCount:       res.TokenCount,
		ProcessingTimeMs: res.ProcessingTime.Milliseconds(),
		Sample:           res.Sample,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	resp := HealthResponse{
		Status:    string(report.Status),
		Checks:    make(map[string]string, len(report.Checks)),
		LatencyMs: make(map[string]int64, len(report.Latency)),
	}
	for k, v := range report.Checks {
		resp.Checks[k] = string(v)
	}
	for k, v := range report.Latency {
		resp.LatencyMs[k] = v.Milliseconds()
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// requestLogger prefers the request-scoped logger installed by the logging middleware.
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	if l := logger.FromContext(r.Context()); l.Core().Enabled(zap.ErrorLevel) {
		return l
	}
	return s.logger
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func queryInt(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, name+" must be an integer")
		return 0, false
	}
	return n, true
}

func queryFloat(w http.ResponseWriter, raw, name string) (*float64, bool) {
	if raw == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, name+" must be a number")
		return nil, false
	}
	return &f, true
}

func searchFilter(assessmentID *int64, moduleTypes []string) (filter.Filter, error) {
	var id int64
	if assessmentID != nil {
		if *assessmentID <= 0 {
			return filter.Filter{}, domain.NewValidationError("assessmentId", "must be positive")
		}
		id = *assessmentID
	}
	mts, err := module.ParseList(moduleTypes)
	if err != nil {
		return filter.Filter{}, err //nolint:wrapcheck // domain sentinel
	}
	return filter.New(id, mts), nil
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// rebuildErrorMessage reports the sentinel behind a per-document failure.
func rebuildErrorMessage(err error) string {
	for _, sentinel := range []error{
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrRateLimited,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingProviderError,
		domain.ErrDocumentNotFound,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}
