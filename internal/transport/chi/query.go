package chi

import (
	"net/http"

	"github.com/kailas-cloud/docrag/internal/domain/retrieval"
	healthuc "github.com/kailas-cloud/docrag/internal/usecase/health"
	"github.com/kailas-cloud/docrag/internal/usecase/retrieve"
)

// Query handles POST /query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	items, err := s.retriever.Query(r.Context(), toRetrieveRequest(req))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, QueryResponse{Items: itemsToDTO(items)})
}

// Answer handles POST /answer.
func (s *Server) Answer(w http.ResponseWriter, r *http.Request) {
	if s.answerer == nil {
		writeError(w, http.StatusNotImplemented, codeNotImplemented, "answer generation is not configured")
		return
	}

	var req QueryRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	res, err := s.answerer.Answer(r.Context(), toRetrieveRequest(req))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	sources := res.Sources
	if sources == nil {
		sources = retrieval.Sources(res.Items)
	}
	writeJSON(w, http.StatusOK, AnswerResponse{
		Answer:  res.Answer,
		Items:   itemsToDTO(res.Items),
		Sources: sources,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

func toRetrieveRequest(req QueryRequest) retrieve.Request {
	return retrieve.Request{
		Text:        req.Query,
		K:           req.K,
		DocumentIDs: req.DocumentIDs,
		MinScore:    req.MinScore,
	}
}
