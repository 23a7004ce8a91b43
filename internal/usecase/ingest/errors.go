package ingest

import (
	"fmt"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/document"
)

// Error reports a failed ingestion: the document, the last stage it completed and the cause.
type Error struct {
	DocumentID string
	Stage      document.State
	Class      domain.Class
	Err        error
}

func newError(doc *document.Document, err error) *Error {
	return &Error{
		DocumentID: doc.ID(),
		Stage:      doc.LastStage(),
		Class:      domain.Classify(err),
		Err:        err,
	}
}

func (e *Error) Error() string {
	stage := string(e.Stage)
	if stage == "" {
		stage = "start"
	}
	return fmt.Sprintf("ingest %s failed after %s (%s): %v", e.DocumentID, stage, e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
