package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/kailas-cloud/assessdex/internal/domain"
)

// ErrorCode is the machine readable error kind returned to clients.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest            ErrorCode = "bad_request"
	CodeValidationFailed      ErrorCode = "validation_failed"
	CodeUnauthorized          ErrorCode = "unauthorized"
	CodeDocumentNotFound      ErrorCode = "document_not_found"
	CodeNotFound              ErrorCode = "not_found"
	CodeFileTooLarge          ErrorCode = "file_too_large"
	CodeEmbeddingQuota        ErrorCode = "embedding_quota_exceeded"
	CodeRateLimited           ErrorCode = "rate_limited"
	CodeRebuildInProgress     ErrorCode = "rebuild_in_progress"
	CodeEmbeddingProviderFail ErrorCode = "embedding_provider_error"
	CodeInternal              ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// defaultErrorHandlers is ordered: the first match wins, so more specific
// sentinels come before the provider error they are usually wrapped with.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrInvalidModuleType, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrEmptyQuery, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrEmptyDocument, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, CodeDocumentNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge, CodeFileTooLarge),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, CodeEmbeddingQuota),
		rateLimitHandler,
		sentinelHandler(domain.ErrRebuildInProgress, http.StatusConflict, CodeRebuildInProgress),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderFail),
	}
}

// validationHandler exposes the offending field, never the wrapped internals.
func validationHandler(w http.ResponseWriter, err error) bool {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, ve.Error())
		return true
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, domain.ErrInvalidInput.Error())
		return true
	}
	return false
}

func rateLimitHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrRateLimited) {
		return false
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	writeError(w, http.StatusTooManyRequests, CodeRateLimited, domain.ErrRateLimited.Error())
	return true
}

const retryAfterSeconds = 5

// sentinelHandler returns an errorHandler that matches a single sentinel error
// and reports only the sentinel's message.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.requestLogger(r)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("Request failed", zap.Error(err))
			return
		}
	}
	log.Error("Internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set(embeddingTokensHeader, strconv.Itoa(usage.TotalTokens))
	}
}
