// Package chi exposes ingestion, retrieval and answering over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/extract"
	logpkg "github.com/kailas-cloud/docrag/internal/logger"
	"github.com/kailas-cloud/docrag/internal/usecase/ingest"
)

// Error codes returned in ErrorResponse.Code.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeUnauthorized      = "unauthorized"
	codeDocumentNotFound  = "document_not_found"
	codeConflict          = "ingest_in_progress"
	codeVectorDimMismatch = "vector_dim_mismatch"
	codeInvalidConfig     = "invalid_configuration"
	codeRateLimited       = "rate_limited"
	codeProviderError     = "embedding_provider_error"
	codeProviderDown      = "embedding_provider_unavailable"
	codeStoreUnavailable  = "store_unavailable"
	codeTimeout           = "timeout"
	codeCanceled          = "request_canceled"
	codeNotImplemented    = "not_implemented"
	codeTooLarge          = "payload_too_large"
	codeInternal          = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers. A nil answerer disables POST /answer.
type Server struct {
	documents     Ingester
	retriever     Retriever
	answerer      Answerer
	health        HealthChecker
	logger        *zap.Logger
	validate      *validator.Validate
	maxUpload     int64
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. maxUpload caps raw upload bodies in bytes.
func NewServer(
	documents Ingester,
	retriever Retriever,
	answerer Answerer,
	health HealthChecker,
	logger *zap.Logger,
	maxUpload int64,
) *Server {
	s := &Server{
		documents: documents,
		retriever: retriever,
		answerer:  answerer,
		health:    health,
		logger:    logger,
		validate:  newValidator(),
		maxUpload: maxUpload,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrIngestInProgress, http.StatusConflict, codeConflict),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeVectorDimMismatch),
		sentinelHandler(domain.ErrInvalidConfig, http.StatusBadRequest, codeInvalidConfig),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrPermanentProvider, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrTransientProvider, http.StatusServiceUnavailable, codeProviderDown),
		sentinelHandler(domain.ErrStore, http.StatusServiceUnavailable, codeStoreUnavailable),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, codeTimeout),
		sentinelHandler(context.Canceled, http.StatusRequestTimeout, codeCanceled),
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-facing message without exposing store or provider internals.
// Validation and lookup failures carry caller input, so their full text is returned.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidRequest) || errors.Is(err, domain.ErrDocumentNotFound) ||
		errors.Is(err, domain.ErrIngestInProgress) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrVectorDimMismatch,
		domain.ErrInvalidConfig,
		domain.ErrPermanentProvider,
		domain.ErrRateLimited,
		domain.ErrTransientProvider,
		domain.ErrStore,
		context.DeadlineExceeded,
		context.Canceled,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// Ingestion failures also report the document and the last completed stage.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		var ierr *ingest.Error
		if errors.As(err, &ierr) {
			writeJSON(w, status, ErrorResponse{
				Code:       code,
				Message:    msg,
				DocumentID: ierr.DocumentID,
				Stage:      string(ierr.Stage),
				Class:      string(ierr.Class),
			})
			return true
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.requestLogger(r)
	log.Warn("domain error", zap.Error(err), zap.String("class", string(domain.Classify(err))))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}

// bodyLimit is the byte cap for request bodies, bounded by what extract accepts.
func (s *Server) bodyLimit() int64 {
	if s.maxUpload <= 0 || s.maxUpload > extract.MaxFileSize {
		return extract.MaxFileSize
	}
	return s.maxUpload
}

// decodeBody decodes a size-limited JSON body into dst and validates its struct tags.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.bodyLimit())).Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, codeTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", mbe.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return fe.Field() + " failed " + fe.Tag() + "=" + fe.Param()
	}
	return fe.Field() + " failed " + fe.Tag()
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return logpkg.FromContext(r.Context(), s.logger)
}
