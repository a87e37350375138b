package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/knowledge-service/internal/adapter/memory"
	"github.com/user/knowledge-service/internal/adapter/vector"
	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
)

func TestSettingsUseCase(t *testing.T) {
	store := memory.NewStore()
	repo := memory.NewSettingsRepo(store)
	uc := NewSettingsUseCase(repo, entity.Settings{AutoSummaryEnabled: true}, nil)
	ctx := context.Background()

	s, err := uc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.Settings{AutoSummaryEnabled: true}, s)
	assert.False(t, uc.BrowserRelayEnabled(ctx))

	on := true
	s, err = uc.Update(ctx, entity.SettingsPatch{BrowserRelayFallbackEnabled: &on})
	require.NoError(t, err)
	assert.Equal(t, entity.Settings{AutoSummaryEnabled: true, BrowserRelayFallbackEnabled: true}, s)
	assert.True(t, uc.BrowserRelayEnabled(ctx))

	// Keys missing from the stored document fall back to defaults.
	require.NoError(t, repo.Put(ctx, entity.SettingsKey, []byte(`{"browser_relay_fallback_enabled":true}`)))
	s, err = uc.Get(ctx)
	require.NoError(t, err)
	assert.True(t, s.AutoSummaryEnabled)

	require.NoError(t, repo.Put(ctx, entity.SettingsKey, []byte(`{not json`)))
	s, err = uc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.Settings{AutoSummaryEnabled: true}, s)
}

func TestHealthUseCase(t *testing.T) {
	h := newHarness(t, defaultIngestConfig())
	h.extractor.add("https://ok.test/", entity.SourceTypeArticle, longText)
	_, err := h.ingest.Ingest(context.Background(), "https://ok.test/", IngestOptions{})
	require.NoError(t, err)
	_, err = h.ingest.Ingest(context.Background(), "https://missing.test/", IngestOptions{})
	require.Error(t, err)

	queue := memory.NewQueueRepo()
	require.NoError(t, queue.Push(context.Background(), &entity.IngestRequest{ID: "1", URL: "https://q.test/"}))

	uc := NewHealthUseCase(h.sources, h.chunks, h.jobs, queue, vector.NewLinear(), nil)
	status, err := uc.Health(context.Background())
	require.NoError(t, err)

	assert.True(t, status.DBOK)
	assert.Equal(t, 1, status.Sources)
	assert.Equal(t, 1, status.Chunks)
	assert.Equal(t, map[entity.JobStatus]int{
		entity.JobStatusRunning: 0,
		entity.JobStatusDone:    1,
		entity.JobStatusFailed:  1,
	}, status.Jobs)
	assert.Equal(t, 1, status.RecentFailures24h)
	assert.Equal(t, vector.LinearName, status.VectorIndex)
	assert.Equal(t, int64(1), status.QueueDepth)
}

type downSources struct{ repository.SourceRepository }

func (downSources) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthUseCase_StoreDown(t *testing.T) {
	uc := NewHealthUseCase(downSources{}, nil, nil, nil, nil, nil)
	status, err := uc.Health(context.Background())
	require.NoError(t, err)
	assert.False(t, status.DBOK)
	assert.Len(t, status.Jobs, 3)
}

func TestJobUseCase(t *testing.T) {
	h := newHarness(t, defaultIngestConfig())
	h.extractor.add("https://ok.test/", entity.SourceTypeArticle, longText)
	res, err := h.ingest.Ingest(context.Background(), "https://ok.test/", IngestOptions{})
	require.NoError(t, err)

	uc := NewJobUseCase(h.jobs, h.logs)
	report, err := uc.Get(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusDone, report.Job.Status)
	assert.Equal(t, "https://ok.test/", report.Job.Payload.URL)
	require.NotEmpty(t, report.Logs)
	assert.Equal(t, "ingest_started", report.Logs[0].EventType)

	_, err = uc.Get(context.Background(), 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

type flakyCache struct {
	repository.SourceCacheRepository
	sets int
}

func (f *flakyCache) Get(context.Context, string) (int64, error) {
	return 0, errors.New("redis unavailable")
}

func (f *flakyCache) Set(context.Context, string, int64, time.Duration) error {
	f.sets++
	return errors.New("redis unavailable")
}

func TestDedupIndex(t *testing.T) {
	store := memory.NewStore()
	sources := memory.NewSourceRepo(store)
	ctx := context.Background()
	id, err := sources.Create(ctx, &entity.Source{URL: "https://a.test/#x", CanonicalURL: "https://a.test/"})
	require.NoError(t, err)

	t.Run("store hit warms cache", func(t *testing.T) {
		cache := memory.NewSourceCacheRepo()
		d := NewDedupIndex(sources, cache, time.Hour, nil)

		got, ok, err := d.Find(ctx, "https://a.test/")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, id, got)

		cached, err := cache.Get(ctx, "https://a.test/")
		require.NoError(t, err)
		assert.Equal(t, id, cached)

		d.Forget(ctx, "https://a.test/")
		_, err = cache.Get(ctx, "https://a.test/")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("miss", func(t *testing.T) {
		d := NewDedupIndex(sources, nil, time.Hour, nil)
		_, ok, err := d.Find(ctx, "https://b.test/")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("cache failures fall back to the store", func(t *testing.T) {
		cache := &flakyCache{}
		d := NewDedupIndex(sources, cache, time.Hour, nil)
		got, ok, err := d.Find(ctx, "https://a.test/")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, id, got)
		assert.Equal(t, 1, cache.sets)
	})
}
