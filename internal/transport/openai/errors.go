package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/docrag/internal/domain"
)

// parseAPIError extracts a human-readable error from the API response and classifies it.
// 429 is rate limited and transient; 408 and 5xx are transient; other 4xx are permanent.
// Errors without an HTTP status are network failures and transient.
func parseAPIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("provider request: %w", err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return classifyStatus(reqErr.HTTPStatusCode, detail)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}

	return fmt.Errorf("provider request failed: %v: %w", err, domain.ErrTransientProvider)
}

func classifyStatus(status int, detail string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("provider API error %d: %s: %w: %w",
			status, detail, domain.ErrRateLimited, domain.ErrTransientProvider)
	case status == http.StatusRequestTimeout, status >= http.StatusInternalServerError:
		return fmt.Errorf("provider API error %d: %s: %w", status, detail, domain.ErrTransientProvider)
	default:
		return fmt.Errorf("provider API error %d: %s: %w", status, detail, domain.ErrPermanentProvider)
	}
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
