// Package extract turns uploaded files into plain text for ingestion.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/kailas-cloud/docrag/internal/domain"
)

// Format is a source format tag stored with each document.
type Format string

// Supported formats.
const (
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
)

// Binary reports whether the format needs a file rather than inline text.
func (f Format) Binary() bool {
	return f == FormatPDF || f == FormatDOCX
}

// MaxFileSize bounds uploads accepted by Extract.
const MaxFileSize = 32 << 20

var extensions = map[string]Format{
	".txt":      FormatText,
	".text":     FormatText,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".pdf":      FormatPDF,
	".docx":     FormatDOCX,
}

// ParseFormat validates a format tag. Matching is case-insensitive.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatText, FormatMarkdown, FormatPDF, FormatDOCX:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format %q: %w", s, domain.ErrInvalidRequest)
}

// FormatFromName infers the format from a file name extension.
func FormatFromName(name string) (Format, error) {
	if f, ok := extensions[strings.ToLower(filepath.Ext(name))]; ok {
		return f, nil
	}
	return "", fmt.Errorf("cannot infer format of %q: %w", name, domain.ErrInvalidRequest)
}

// Extract returns the plain text of data in the given format.
func Extract(format Format, data []byte) (string, error) {
	if len(data) > MaxFileSize {
		return "", fmt.Errorf("file too large (max %d bytes): %w", MaxFileSize, domain.ErrInvalidRequest)
	}
	switch format {
	case FormatText, FormatMarkdown:
		return plainText(data)
	case FormatPDF:
		return pdfText(data)
	case FormatDOCX:
		return docxText(data)
	default:
		return "", fmt.Errorf("unsupported format %q: %w", format, domain.ErrInvalidRequest)
	}
}

func plainText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", fmt.Errorf("text is not valid UTF-8: %w", domain.ErrInvalidRequest)
	}
	return normalizeNewlines(string(data)), nil
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w: %w", domain.ErrInvalidRequest, err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w: %w", domain.ErrInvalidRequest, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return normalizeNewlines(buf.String()), nil
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
}
