// Package youtube extracts video transcripts as source text.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	ytclient "github.com/kkdai/youtube/v2"
	"go.uber.org/zap"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
	"github.com/user/knowledge-service/pkg/logger"
)

const (
	DefaultLang = "en"

	transcriptConfidence = 0.85
)

var videoURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^https?://youtu\.be/([A-Za-z0-9_-]{11})(?:[/?#&]|$)`),
	regexp.MustCompile(`(?i)^https?://(?:www\.|m\.|music\.)?youtube\.com/watch\?(?:.*&)?v=([A-Za-z0-9_-]{11})(?:[&#]|$)`),
	regexp.MustCompile(`(?i)^https?://(?:www\.|m\.)?youtube\.com/(?:shorts|embed|live)/([A-Za-z0-9_-]{11})(?:[/?#&]|$)`),
}

// VideoID returns the id of a YouTube video URL.
func VideoID(rawURL string) (string, bool) {
	rawURL = strings.TrimSpace(rawURL)
	for _, p := range videoURLPatterns {
		if m := p.FindStringSubmatch(rawURL); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// Client is the part of the YouTube client the extractor needs.
type Client interface {
	GetVideoContext(ctx context.Context, id string) (*ytclient.Video, error)
	GetTranscriptCtx(ctx context.Context, video *ytclient.Video, lang string) (ytclient.VideoTranscript, error)
}

// Extractor implements ExtractorRepository for video URLs.
type Extractor struct {
	client Client
	lang   string
	logger *zap.Logger
}

// NewExtractor uses a default YouTube client when client is nil.
func NewExtractor(client Client, lang string, log *zap.Logger) *Extractor {
	if client == nil {
		client = &ytclient.Client{}
	}
	if lang == "" {
		lang = DefaultLang
	}
	return &Extractor{client: client, lang: lang, logger: logger.OrNop(log)}
}

func (e *Extractor) Supports(rawURL string) bool {
	_, ok := VideoID(rawURL)
	return ok
}

func (e *Extractor) Extract(ctx context.Context, rawURL string) (*entity.SourceBundle, error) {
	id, ok := VideoID(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: not a video url: %s", repository.ErrUnsupportedContent, rawURL)
	}

	video, err := e.client.GetVideoContext(ctx, id)
	if err != nil {
		return nil, classifyError(ctx, "video lookup", err)
	}
	segments, err := e.client.GetTranscriptCtx(ctx, video, e.lang)
	if err != nil {
		return nil, classifyError(ctx, "transcript", err)
	}

	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if text := strings.Join(strings.Fields(html.UnescapeString(s.Text)), " "); text != "" {
			parts = append(parts, text)
		}
	}
	e.logger.Debug("Fetched transcript", zap.String("video_id", id), zap.Int("segments", len(segments)))

	content := entity.ExtractedContent{
		Type:   entity.SourceTypeYouTube,
		Title:  video.Title,
		Author: video.Author,
		Text:   strings.Join(parts, " "),
		Metadata: map[string]any{
			"videoId":         id,
			"transcriptCount": len(segments),
			"durationSeconds": int(video.Duration.Seconds()),
		},
		ExtractionMethod:     entity.ExtractionAPI,
		ExtractionConfidence: transcriptConfidence,
	}
	if !video.PublishDate.IsZero() {
		published := video.PublishDate.UTC()
		content.PublishedAt = &published
	}
	return &entity.SourceBundle{Source: content}, nil
}

func classifyError(ctx context.Context, step string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", repository.ErrExtractionTimeout, step, err)
	}
	return fmt.Errorf("%w: %s: %v", repository.ErrExtractionFailed, step, err)
}
