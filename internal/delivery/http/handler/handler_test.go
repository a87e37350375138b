package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/user/knowledge-service/internal/repository"
	"github.com/user/knowledge-service/internal/usecase"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: %q", usecase.ErrInvalidURL, "x"), http.StatusBadRequest},
		{usecase.ErrEmptyQuestion, http.StatusBadRequest},
		{fmt.Errorf("failed to load job 4: %w", repository.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("https://a.test/: %w", usecase.ErrEmptyContent), http.StatusUnprocessableEntity},
		{repository.ErrExtractionFailed, http.StatusBadGateway},
		{repository.ErrContentRestricted, http.StatusBadGateway},
		{repository.ErrUnsupportedContent, http.StatusBadGateway},
		{fmt.Errorf("failed to extract: %w", repository.ErrExtractionTimeout), http.StatusBadGateway},
		{context.Canceled, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}
