package request

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/user/knowledge-service/internal/entity"
)

type IngestRequest struct {
	URL        string `json:"url" validate:"required,url"`
	Collection string `json:"collection" validate:"omitempty,max=100"`
	Force      bool   `json:"force"`
	Wait       bool   `json:"wait"` // ingest inline even when the queue is enabled
}

type AskRequest struct {
	Question   string `json:"question" validate:"required"`
	Collection string `json:"collection" validate:"omitempty,max=100"`
	Domain     string `json:"domain"`
	SourceType string `json:"source_type" validate:"omitempty,oneof=article youtube twitter tiktok pdf unknown"`
	URL        string `json:"url" validate:"omitempty,url"`
}

func (r AskRequest) Filters() entity.SearchFilters {
	return entity.SearchFilters{
		Collection: r.Collection,
		Domain:     r.Domain,
		SourceType: strings.ToLower(r.SourceType),
		URL:        r.URL,
	}
}

// SearchQuery is bound from the query string of GET /api/search.
type SearchQuery struct {
	Query      string `validate:"required"`
	Limit      int    `validate:"omitempty,min=1,max=50"`
	Collection string `validate:"omitempty,max=100"`
	Domain     string
	SourceType string `validate:"omitempty,oneof=article youtube twitter tiktok pdf unknown"`
	URL        string `validate:"omitempty,url"`
}

func (q SearchQuery) Filters() entity.SearchFilters {
	return entity.SearchFilters{
		Collection: q.Collection,
		Domain:     q.Domain,
		SourceType: q.SourceType,
		URL:        q.URL,
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate checks struct tags and flattens failures into one readable error.
func Validate(v any) error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "url":
		return field + " must be a valid URL"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "min", "max":
		return fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}
