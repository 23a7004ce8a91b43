// Package mcp serves document ingestion and retrieval as Model Context Protocol tools.
package mcp

import "errors"

var (
	// ErrMissingDocuments is returned when the document service is not provided.
	ErrMissingDocuments = errors.New("mcp: document service is required")
	// ErrMissingRetriever is returned when the retrieval service is not provided.
	ErrMissingRetriever = errors.New("mcp: retrieval service is required")
)
