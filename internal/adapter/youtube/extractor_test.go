package youtube

import (
	"context"
	"errors"
	"testing"
	"time"

	ytclient "github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
)

type fakeClient struct {
	video         *ytclient.Video
	transcript    ytclient.VideoTranscript
	videoErr      error
	transcriptErr error

	gotID   string
	gotLang string
}

func (f *fakeClient) GetVideoContext(_ context.Context, id string) (*ytclient.Video, error) {
	f.gotID = id
	return f.video, f.videoErr
}

func (f *fakeClient) GetTranscriptCtx(_ context.Context, _ *ytclient.Video, lang string) (ytclient.VideoTranscript, error) {
	f.gotLang = lang
	return f.transcript, f.transcriptErr
}

func TestVideoID(t *testing.T) {
	tests := []struct {
		url  string
		id   string
		want bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtube.com/watch?feature=share&v=dQw4w9WgXcQ&t=10s", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ", true},
		{"https://m.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/channel/UCabcdefghijk", "", false},
		{"https://www.youtube.com/watch?v=short", "", false},
		{"https://example.com/watch?v=dQw4w9WgXcQ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			id, ok := VideoID(tt.url)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestExtractor_Extract(t *testing.T) {
	published := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{
		video: &ytclient.Video{
			ID:          "dQw4w9WgXcQ",
			Title:       "Retention deep dive",
			Author:      "Growth Team",
			Duration:    95 * time.Second,
			PublishDate: published,
		},
		transcript: ytclient.VideoTranscript{
			{Text: "we cut churn"},
			{Text: "  "},
			{Text: "by 20% &amp; kept\nit there"},
		},
	}
	e := NewExtractor(client, "de", nil)

	require.True(t, e.Supports("https://youtu.be/dQw4w9WgXcQ"))
	bundle, err := e.Extract(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)

	assert.Equal(t, "dQw4w9WgXcQ", client.gotID)
	assert.Equal(t, "de", client.gotLang)
	src := bundle.Source
	assert.Equal(t, entity.SourceTypeYouTube, src.Type)
	assert.Equal(t, "Retention deep dive", src.Title)
	assert.Equal(t, "Growth Team", src.Author)
	assert.Equal(t, "we cut churn by 20% & kept it there", src.Text)
	assert.Equal(t, entity.ExtractionAPI, src.ExtractionMethod)
	require.NotNil(t, src.PublishedAt)
	assert.True(t, published.Equal(*src.PublishedAt))
	assert.Equal(t, 3, src.Metadata["transcriptCount"])
	assert.Equal(t, 95, src.Metadata["durationSeconds"])
	assert.Empty(t, bundle.Related)
}

func TestExtractor_Errors(t *testing.T) {
	e := NewExtractor(&fakeClient{}, "", nil)
	assert.Equal(t, DefaultLang, e.lang)
	assert.False(t, e.Supports("https://example.com/article"))

	_, err := e.Extract(context.Background(), "https://example.com/article")
	assert.ErrorIs(t, err, repository.ErrUnsupportedContent)

	e = NewExtractor(&fakeClient{videoErr: errors.New("video unavailable")}, "", nil)
	_, err = e.Extract(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	assert.ErrorIs(t, err, repository.ErrExtractionFailed)
	assert.ErrorContains(t, err, "video unavailable")

	e = NewExtractor(&fakeClient{video: &ytclient.Video{}, transcriptErr: context.DeadlineExceeded}, "", nil)
	_, err = e.Extract(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	assert.ErrorIs(t, err, repository.ErrExtractionTimeout)
}
