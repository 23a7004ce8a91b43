package domain

import (
	"context"
	"errors"
)

var (
	// ErrInvalidConfig signals invalid chunking, batching or retry parameters.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrVectorDimMismatch signals an embedding whose length differs from the index dimension.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrTransientProvider signals a retryable embedding provider failure (timeout, 5xx, network).
	ErrTransientProvider = errors.New("transient provider error")
	// ErrRateLimited signals a provider rate limit hit. Always wrapped together with ErrTransientProvider.
	ErrRateLimited = errors.New("rate limited")
	// ErrPermanentProvider signals a non-retryable provider failure (auth, malformed input).
	ErrPermanentProvider = errors.New("permanent provider error")
	// ErrRetryExhausted signals that the retry budget ran out on a transient failure.
	ErrRetryExhausted = errors.New("retry budget exhausted")

	// ErrStore signals a failed read or write against the storage backend.
	ErrStore = errors.New("store error")

	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidRequest signals a malformed ingest or query request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrIngestInProgress signals that another ingestion or deletion of the same document is running.
	ErrIngestInProgress = errors.New("ingestion already in progress")
)

// Class is the coarse error category reported to callers and logs.
type Class string

// Error classes.
const (
	ClassConfiguration     Class = "configuration"
	ClassTransientProvider Class = "transient_provider"
	ClassPermanentProvider Class = "permanent_provider"
	ClassStore             Class = "store"
	ClassNotFound          Class = "not_found"
	ClassInvalidRequest    Class = "invalid_request"
	ClassConflict          Class = "conflict"
	ClassCanceled          Class = "canceled"
	ClassInternal          Class = "internal"
)

// Classify maps an error chain to its Class. Order matters: the most specific match wins.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrVectorDimMismatch):
		return ClassConfiguration
	case errors.Is(err, ErrPermanentProvider):
		return ClassPermanentProvider
	case errors.Is(err, ErrTransientProvider), errors.Is(err, ErrRateLimited):
		return ClassTransientProvider
	case errors.Is(err, ErrStore):
		return ClassStore
	case errors.Is(err, ErrDocumentNotFound):
		return ClassNotFound
	case errors.Is(err, ErrInvalidRequest):
		return ClassInvalidRequest
	case errors.Is(err, ErrIngestInProgress):
		return ClassConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ClassCanceled
	default:
		return ClassInternal
	}
}

// IsRetryable reports whether err is worth another attempt at the same granularity.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrPermanentProvider) || errors.Is(err, ErrInvalidConfig) {
		return false
	}
	return errors.Is(err, ErrTransientProvider) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrStore)
}
