package usecase

import "errors"

var (
	// ErrEmptyContent means extraction produced no persistable text. No source or
	// chunk row is written for the URL.
	ErrEmptyContent  = errors.New("extracted content is empty: zero chunks to persist")
	ErrInvalidURL    = errors.New("url must be an absolute http(s) url")
	ErrEmptyQuestion = errors.New("question must not be empty")
)
