package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	ytclient "github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/knowledge-service/internal/adapter/youtube"
	"github.com/user/knowledge-service/internal/entity"
)

type stubExtractor struct {
	typ   entity.SourceType
	err   error
	calls []string
}

func (s *stubExtractor) Extract(_ context.Context, url string) (*entity.SourceBundle, error) {
	s.calls = append(s.calls, url)
	if s.err != nil {
		return nil, s.err
	}
	return &entity.SourceBundle{Source: entity.ExtractedContent{Type: s.typ, Text: "x"}}, nil
}

func TestDetectSourceType(t *testing.T) {
	tests := map[string]entity.SourceType{
		"https://www.youtube.com/watch?v=abc":   entity.SourceTypeYouTube,
		"https://youtu.be/abc":                  entity.SourceTypeYouTube,
		"https://m.youtube.com/watch?v=abc":     entity.SourceTypeYouTube,
		"https://x.com/alice/status/1":          entity.SourceTypeTwitter,
		"https://mobile.twitter.com/a/status/1": entity.SourceTypeTwitter,
		"https://www.tiktok.com/@a/video/1":     entity.SourceTypeTikTok,
		"https://a.test/files/report.PDF?dl=1":  entity.SourceTypePDF,
		"https://a.test/blog/post":              entity.SourceTypeArticle,
		"not a url":                             entity.SourceTypeUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, DetectSourceType(in), in)
	}
}

func TestRouter_Dispatch(t *testing.T) {
	web := &stubExtractor{typ: entity.SourceTypeArticle}
	social := &stubExtractor{typ: entity.SourceTypeTwitter}
	r := NewRouter(web, nil, nil, Route{
		Name:      "twitter",
		Match:     func(u string) bool { return strings.Contains(u, "x.com") },
		Extractor: social,
	})

	bundle, err := r.Extract(context.Background(), "https://x.com/a/status/1")
	require.NoError(t, err)
	assert.Equal(t, entity.SourceTypeTwitter, bundle.Source.Type)
	assert.Len(t, social.calls, 1)

	bundle, err = r.Extract(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)
	assert.Equal(t, entity.SourceTypeYouTube, bundle.Source.Type, "article result refined by url")
	assert.Len(t, web.calls, 1)
}

func TestRouter_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRouter(&stubExtractor{err: boom}, nil, nil)

	_, err := r.Extract(context.Background(), "https://a.test")
	assert.ErrorIs(t, err, boom)
}

type transcriptClient struct{}

func (transcriptClient) GetVideoContext(_ context.Context, id string) (*ytclient.Video, error) {
	return &ytclient.Video{ID: id, Title: "Talk"}, nil
}

func (transcriptClient) GetTranscriptCtx(context.Context, *ytclient.Video, string) (ytclient.VideoTranscript, error) {
	return ytclient.VideoTranscript{{Text: "hello"}, {Text: "world"}}, nil
}

func TestRouter_VideoAndPDF(t *testing.T) {
	web := &stubExtractor{typ: entity.SourceTypePDF}
	yt := youtube.NewExtractor(transcriptClient{}, "", nil)
	r := NewRouter(web, nil, nil, Route{Name: "youtube", Match: yt.Supports, Extractor: yt})

	bundle, err := r.Extract(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, entity.SourceTypeYouTube, bundle.Source.Type)
	assert.Equal(t, "hello world", bundle.Source.Text)
	assert.Equal(t, entity.ExtractionAPI, bundle.Source.ExtractionMethod)
	assert.Empty(t, web.calls)

	// A sniffed PDF keeps its type even without a .pdf path.
	bundle, err = r.Extract(context.Background(), "https://a.test/download?id=7")
	require.NoError(t, err)
	assert.Equal(t, entity.SourceTypePDF, bundle.Source.Type)
	assert.Len(t, web.calls, 1)
}
