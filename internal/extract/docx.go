package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kailas-cloud/docrag/internal/domain"
)

const (
	docxBody      = "word/document.xml"
	wordprocessNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
)

// docxText returns the paragraphs of the main document part, one per line.
// Tabs and explicit breaks inside a paragraph are kept.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w: %w", domain.ErrInvalidRequest, err)
	}
	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return "", fmt.Errorf("docx has no %s: %w", docxBody, domain.ErrInvalidRequest)
	}
	if body.UncompressedSize64 > MaxFileSize*4 {
		return "", fmt.Errorf("docx body too large: %w", domain.ErrInvalidRequest)
	}
	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w: %w", docxBody, domain.ErrInvalidRequest, err)
	}
	defer rc.Close()

	paragraphs, err := docxParagraphs(io.LimitReader(rc, MaxFileSize*4))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w: %w", docxBody, domain.ErrInvalidRequest, err)
	}
	return strings.Join(paragraphs, "\n"), nil
}

func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		paragraphs []string
		cur        strings.Builder
		inPara     bool
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordprocessNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				inPara = true
				cur.Reset()
			case "t":
				inText = true
			case "tab":
				cur.WriteByte('\t')
			case "br", "cr":
				cur.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Space != wordprocessNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inPara {
					paragraphs = append(paragraphs, cur.String())
				}
				inPara = false
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	return paragraphs, nil
}
