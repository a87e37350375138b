package repository

import "errors"

var (
	ErrNotFound   = errors.New("record not found")
	ErrQueueEmpty = errors.New("queue is empty")

	// Extraction failures. Adapters wrap one of these so callers can classify with errors.Is.
	ErrExtractionFailed   = errors.New("content extraction failed")
	ErrExtractionTimeout  = errors.New("content extraction timed out")
	ErrContentRestricted  = errors.New("content is restricted or requires authentication")
	ErrUnsupportedContent = errors.New("unsupported content type")
)
