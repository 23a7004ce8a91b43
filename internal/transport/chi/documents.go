package chi

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/extract"
	"github.com/kailas-cloud/docrag/internal/usecase/ingest"
)

// UploadParams are the query parameters of POST /documents/upload.
type UploadParams struct {
	ID     string
	Name   string
	Format string
}

// ListParams are the query parameters of GET /documents.
type ListParams struct {
	State string
}

// PutDocument handles PUT /documents/{id}.
func (s *Server) PutDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentIDParam(w, r)
	if !ok {
		return
	}

	var req PutDocumentRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	doc, err := s.documents.Ingest(r.Context(), ingest.Request{
		DocumentID: id,
		Name:       req.Name,
		Format:     formatOrDefault(req.Format),
		Text:       req.Text,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, documentToDTO(doc))
}

// CreateDocument handles POST /documents.
func (s *Server) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	doc, err := s.documents.Ingest(r.Context(), ingest.Request{
		DocumentID: req.ID,
		Name:       req.Name,
		Format:     formatOrDefault(req.Format),
		Text:       req.Text,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/documents/"+doc.ID())
	writeJSON(w, http.StatusCreated, documentToDTO(doc))
}

// UploadDocument handles POST /documents/upload. The body is the raw file.
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	params, err := bindUploadParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	var format extract.Format
	if params.Format != "" {
		format, err = extract.ParseFormat(params.Format)
	} else {
		format, err = extract.FormatFromName(params.Name)
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.bodyLimit()))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, codeTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", mbe.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "read body: "+err.Error())
		return
	}

	text, err := extract.Extract(format, data)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	doc, err := s.documents.Ingest(r.Context(), ingest.Request{
		DocumentID: params.ID,
		Name:       params.Name,
		Format:     string(format),
		Text:       text,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/documents/"+doc.ID())
	writeJSON(w, http.StatusCreated, documentToDTO(doc))
}

// ListDocuments handles GET /documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	var params ListParams
	if err := runtime.BindQueryParameter("form", true, false, "state", r.URL.Query(), &params.State); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	var state document.State
	if params.State != "" {
		st, err := document.ParseState(params.State)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
			return
		}
		state = st
	}

	docs, err := s.documents.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]Document, 0, len(docs))
	for _, d := range docs {
		if state != "" && d.State() != state {
			continue
		}
		items = append(items, documentToDTO(d))
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Items: items, Count: len(items)})
}

// GetDocument handles GET /documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentIDParam(w, r)
	if !ok {
		return
	}

	doc, err := s.documents.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, documentToDTO(doc))
}

// DeleteDocument handles DELETE /documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentIDParam(w, r)
	if !ok {
		return
	}

	if err := s.documents.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func documentIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chirouter.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Sprintf("Invalid format for parameter id: %s", err))
		return "", false
	}
	if err := document.ValidateID(id); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return "", false
	}
	return id, true
}

func bindUploadParams(r *http.Request) (UploadParams, error) {
	var params UploadParams
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "name", q, &params.Name); err != nil {
		return UploadParams{}, fmt.Errorf("invalid format for parameter name: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "format", q, &params.Format); err != nil {
		return UploadParams{}, fmt.Errorf("invalid format for parameter format: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "id", q, &params.ID); err != nil {
		return UploadParams{}, fmt.Errorf("invalid format for parameter id: %w", err)
	}
	return params, nil
}

func formatOrDefault(f string) string {
	if f == "" {
		return string(extract.FormatText)
	}
	return f
}
