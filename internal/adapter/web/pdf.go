package web

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
)

const confidencePDF = 0.8

// ParsePDF extracts the plain text, page count and document title of a PDF.
// Scanned documents without a text layer come back with empty text.
func ParsePDF(body []byte) (content entity.ExtractedContent, err error) {
	// The parser panics on some malformed object streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: malformed pdf: %v", repository.ErrExtractionFailed, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return content, fmt.Errorf("%w: %v", repository.ErrExtractionFailed, err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return content, fmt.Errorf("%w: %v", repository.ErrExtractionFailed, err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return content, fmt.Errorf("%w: %v", repository.ErrExtractionFailed, err)
	}

	var lines []string
	for _, line := range strings.Split(string(raw), "\n") {
		if line = collapse(line); line != "" {
			lines = append(lines, line)
		}
	}

	return entity.ExtractedContent{
		Type:                 entity.SourceTypePDF,
		Title:                collapse(reader.Trailer().Key("Info").Key("Title").Text()),
		Text:                 strings.Join(lines, "\n"),
		Metadata:             map[string]any{"pages": reader.NumPage()},
		ExtractionMethod:     entity.ExtractionWebFetch,
		ExtractionConfidence: confidencePDF,
	}, nil
}
