package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
	"github.com/user/knowledge-service/pkg/logger"
)

const (
	DefaultMinReadableChars = 300

	confidenceReadable = 0.9
	confidenceThin     = 0.5
)

// RelayDecision is the input to ShouldUseBrowserRelay.
type RelayDecision struct {
	Enabled          bool
	Status           int
	ReadableChars    int
	MinReadableChars int
}

// ShouldUseBrowserRelay reports whether a fetch should be retried through a
// real browser: the fallback is enabled and the page was blocked or too thin.
func ShouldUseBrowserRelay(d RelayDecision) bool {
	if !d.Enabled {
		return false
	}
	switch d.Status {
	case http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	}
	threshold := d.MinReadableChars
	if threshold <= 0 {
		threshold = DefaultMinReadableChars
	}
	return d.ReadableChars < threshold
}

// RelaySwitch reports whether the browser relay fallback is currently enabled.
type RelaySwitch interface {
	BrowserRelayEnabled(ctx context.Context) bool
}

// Extractor implements ExtractorRepository with a plain HTTP fetch and an
// optional browser relay fallback.
type Extractor struct {
	fetcher          *Fetcher
	relay            repository.ExtractorRepository
	relaySwitch      RelaySwitch
	minReadableChars int
	maxLinks         int
	logger           *zap.Logger
}

type Option func(*Extractor)

// WithBrowserRelay sets the fallback extractor and the switch that enables it.
func WithBrowserRelay(relay repository.ExtractorRepository, sw RelaySwitch) Option {
	return func(e *Extractor) {
		e.relay = relay
		e.relaySwitch = sw
	}
}

func WithMinReadableChars(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.minReadableChars = n
		}
	}
}

// WithMaxLinks bounds the outbound links reported as links_to relations.
func WithMaxLinks(n int) Option {
	return func(e *Extractor) { e.maxLinks = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = logger.OrNop(l) }
}

func NewExtractor(fetcher *Fetcher, opts ...Option) *Extractor {
	e := &Extractor{
		fetcher:          fetcher,
		minReadableChars: DefaultMinReadableChars,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extractor) Extract(ctx context.Context, rawURL string) (*entity.SourceBundle, error) {
	resp, err := e.fetcher.Get(ctx, rawURL, "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}

	var page *Page
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if ok {
		if isPDF(rawURL, resp) {
			content, err := ParsePDF(resp.Body)
			if err != nil {
				return nil, err
			}
			if content.Title == "" {
				content.Title = pdfTitleFromURL(resp.URL)
			}
			return &entity.SourceBundle{Source: content}, nil
		}
		page, err = ParseHTML(resp.URL, resp.Body, e.maxLinks)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", repository.ErrExtractionFailed, err)
		}
	}

	readable := 0
	if page != nil {
		readable = page.ReadableChars
	}
	decision := RelayDecision{
		Enabled:          e.relay != nil && e.relaySwitch != nil && e.relaySwitch.BrowserRelayEnabled(ctx),
		Status:           resp.StatusCode,
		ReadableChars:    readable,
		MinReadableChars: e.minReadableChars,
	}
	if ShouldUseBrowserRelay(decision) {
		e.logger.Info("Falling back to browser relay",
			zap.String("url", rawURL),
			zap.Int("status", resp.StatusCode),
			zap.Int("readable_chars", readable),
		)
		bundle, relayErr := e.relay.Extract(ctx, rawURL)
		if relayErr == nil {
			return bundle, nil
		}
		e.logger.Warn("Browser relay failed", zap.String("url", rawURL), zap.Error(relayErr))
		if page == nil {
			return nil, errors.Join(StatusError(resp.StatusCode), relayErr)
		}
	}

	if page == nil {
		return nil, StatusError(resp.StatusCode)
	}

	content := page.Content
	content.ExtractionMethod = entity.ExtractionWebFetch
	content.ExtractionConfidence = confidenceReadable
	if page.ReadableChars < e.minReadableChars {
		content.ExtractionConfidence = confidenceThin
	}
	return BundleFromPage(content, page.Links), nil
}

// BundleFromPage wraps parsed content and its links as links_to relations.
func BundleFromPage(content entity.ExtractedContent, links []string) *entity.SourceBundle {
	bundle := &entity.SourceBundle{Source: content}
	for _, l := range links {
		bundle.Related = append(bundle.Related, entity.RelatedURL{RelationType: entity.RelationLinksTo, URL: l})
	}
	return bundle
}

func isPDF(rawURL string, resp *Response) bool {
	if strings.Contains(strings.ToLower(resp.ContentType), "application/pdf") {
		return true
	}
	if mimetype.Detect(resp.Body).Is("application/pdf") {
		return true
	}
	p := strings.ToLower(strings.SplitN(rawURL, "?", 2)[0])
	return strings.HasSuffix(p, ".pdf")
}

// pdfTitleFromURL names a PDF without document info after its file name.
func pdfTitleFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return ""
	}
	return strings.TrimSuffix(name, path.Ext(name))
}
