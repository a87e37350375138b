// Package extractor routes a URL to the extractor that understands it.
package extractor

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
	"github.com/user/knowledge-service/pkg/logger"
	"github.com/user/knowledge-service/pkg/metrics"
	"github.com/user/knowledge-service/pkg/utils"
)

// Route is an extractor together with the URLs it accepts.
type Route struct {
	Name      string
	Match     func(rawURL string) bool
	Extractor repository.ExtractorRepository
}

// Router implements ExtractorRepository by dispatching to the first matching
// route and falling back to a default extractor.
type Router struct {
	routes   []Route
	fallback repository.ExtractorRepository
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewRouter(fallback repository.ExtractorRepository, m *metrics.Metrics, log *zap.Logger, routes ...Route) *Router {
	return &Router{routes: routes, fallback: fallback, metrics: m, logger: logger.OrNop(log)}
}

func (r *Router) Extract(ctx context.Context, rawURL string) (*entity.SourceBundle, error) {
	name, ext := "web", r.fallback
	for _, route := range r.routes {
		if route.Match(rawURL) {
			name, ext = route.Name, route.Extractor
			break
		}
	}

	start := time.Now()
	bundle, err := ext.Extract(ctx, rawURL)
	r.metrics.ObserveExtraction(utils.HostDomain(rawURL), time.Since(start))
	if err != nil {
		r.logger.Warn("Extraction failed", zap.String("url", rawURL), zap.String("extractor", name), zap.Error(err))
		return nil, err
	}

	// Extractors that only know they parsed HTML report an article; the URL
	// tells us more.
	if detected := DetectSourceType(rawURL); bundle.Source.Type == "" ||
		(bundle.Source.Type == entity.SourceTypeArticle && detected != entity.SourceTypeArticle) {
		bundle.Source.Type = detected
	}
	return bundle, nil
}

// DetectSourceType classifies a URL by host and path.
func DetectSourceType(rawURL string) entity.SourceType {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return entity.SourceTypeUnknown
	}
	host := utils.HostDomain(rawURL)
	path := strings.ToLower(u.Path)

	switch {
	case host == "youtu.be" || host == "youtube.com" || strings.HasSuffix(host, ".youtube.com"):
		return entity.SourceTypeYouTube
	case host == "x.com" || host == "twitter.com" || strings.HasSuffix(host, ".twitter.com"):
		return entity.SourceTypeTwitter
	case host == "tiktok.com" || strings.HasSuffix(host, ".tiktok.com"):
		return entity.SourceTypeTikTok
	case strings.HasSuffix(path, ".pdf"):
		return entity.SourceTypePDF
	}
	return entity.SourceTypeArticle
}
