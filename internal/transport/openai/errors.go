package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/assessdex/internal/domain"
)

// classify turns a client error into one that matches domain.ErrEmbeddingProviderError.
// HTTP 429 also matches domain.ErrRateLimited so the rate limiter backs off.
func classify(err error) error {
	var (
		reqErr *openai.RequestError
		apiErr *openai.APIError
	)
	switch {
	case errors.As(err, &apiErr):
		return providerError(apiErr.HTTPStatusCode, apiErr.Message)
	case errors.As(err, &reqErr):
		return providerError(reqErr.HTTPStatusCode, bodyMessage(reqErr.Body))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("embedding request aborted: %w: %w", err, domain.ErrEmbeddingProviderError)
	default:
		return fmt.Errorf("embedding request failed: %w: %w", err, domain.ErrEmbeddingProviderError)
	}
}

func providerError(status int, msg string) error {
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("embedding API error %d: %s: %w: %w",
			status, msg, domain.ErrRateLimited, domain.ErrEmbeddingProviderError)
	}
	return fmt.Errorf("embedding API error %d: %s: %w", status, msg, domain.ErrEmbeddingProviderError)
}

// bodyMessage pulls a readable message out of a non-OpenAI error body.
// Nebius answers {"detail": "..."}; anything else is returned trimmed.
func bodyMessage(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Detail != "" {
			return parsed.Detail
		}
		if parsed.Error.Message != "" {
			return parsed.Error.Message
		}
	}
	const maxBody = 200
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxBody {
		msg = msg[:maxBody] + "..."
	}
	return msg
}
