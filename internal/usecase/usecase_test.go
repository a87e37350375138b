package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/user/knowledge-service/internal/adapter/embedding"
	"github.com/user/knowledge-service/internal/adapter/memory"
	"github.com/user/knowledge-service/internal/adapter/vector"
	"github.com/user/knowledge-service/internal/chunker"
	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/ranking"
	"github.com/user/knowledge-service/internal/repository"
	"github.com/user/knowledge-service/internal/synthesis"
)

// fakeExtractor serves fixed bundles keyed by URL.
type fakeExtractor struct {
	mu      sync.Mutex
	bundles map[string]*entity.SourceBundle
	errs    map[string]error
	block   map[string]bool
	calls   map[string]int
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		bundles: make(map[string]*entity.SourceBundle),
		errs:    make(map[string]error),
		block:   make(map[string]bool),
		calls:   make(map[string]int),
	}
}

func (f *fakeExtractor) add(url string, typ entity.SourceType, text string, related ...entity.RelatedURL) {
	f.bundles[url] = &entity.SourceBundle{
		Source: entity.ExtractedContent{
			Type:                 typ,
			Title:                "Title of " + url,
			Text:                 text,
			ExtractionMethod:     entity.ExtractionWebFetch,
			ExtractionConfidence: 0.9,
		},
		Related: related,
	}
}

func (f *fakeExtractor) Extract(ctx context.Context, url string) (*entity.SourceBundle, error) {
	f.mu.Lock()
	f.calls[url]++
	block, err, bundle := f.block[url], f.errs[url], f.bundles[url]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		return nil, fmt.Errorf("%w: no fixture for %s", repository.ErrExtractionFailed, url)
	}
	copied := *bundle
	return &copied, nil
}

func (f *fakeExtractor) callsFor(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

type harness struct {
	store     *memory.Store
	sources   *memory.SourceRepoImpl
	chunks    *memory.ChunkRepoImpl
	relations *memory.RelationRepoImpl
	jobs      *memory.JobRepoImpl
	logs      *memory.ObservabilityRepoImpl
	cache     *memory.SourceCacheRepoImpl
	extractor *fakeExtractor
	ingest    *IngestUseCase
	search    *SearchUseCase
}

func newHarness(t *testing.T, cfg IngestConfig) *harness {
	t.Helper()
	store := memory.NewStore()
	h := &harness{
		store:     store,
		sources:   memory.NewSourceRepo(store),
		chunks:    memory.NewChunkRepo(store),
		relations: memory.NewRelationRepo(store),
		jobs:      memory.NewJobRepo(store),
		logs:      memory.NewObservabilityRepo(store),
		cache:     memory.NewSourceCacheRepo(),
		extractor: newFakeExtractor(),
	}
	embedder := embedding.NewLocalEmbedder(128)
	vectors := vector.NewLinear()
	ranker := ranking.New(ranking.Config{})

	h.ingest = NewIngestUseCase(IngestDeps{
		Sources:   h.sources,
		Chunks:    h.chunks,
		Relations: h.relations,
		Jobs:      h.jobs,
		Logs:      h.logs,
		Extractor: h.extractor,
		Embedder:  embedder,
		Vectors:   vectors,
		Dedup:     NewDedupIndex(h.sources, h.cache, time.Hour, nil),
		Chunker:   chunker.New(),
		Ranker:    ranker,
	}, cfg, nil)

	catalog := synthesis.NewCatalog([]synthesis.CatalogEntry{
		{Canonical: "Alpha Plan"},
		{Canonical: "Beta Plan"},
	})
	h.search = NewSearchUseCase(h.chunks, h.sources, embedder, vectors, ranker,
		synthesis.New(synthesis.WithCatalog(catalog)), 0, nil, nil)
	return h
}

func defaultIngestConfig() IngestConfig {
	return IngestConfig{MaxDepth: 2, MaxSources: 25}
}

func (h *harness) countChunks(t *testing.T) int {
	t.Helper()
	n, err := h.chunks.Count(context.Background())
	require.NoError(t, err)
	return n
}

func (h *harness) countSources(t *testing.T) int {
	t.Helper()
	n, err := h.sources.Count(context.Background())
	require.NoError(t, err)
	return n
}

func (h *harness) edges(t *testing.T, parentID int64) map[int64]entity.RelationType {
	t.Helper()
	rels, err := h.relations.ListByParent(context.Background(), parentID)
	require.NoError(t, err)
	out := make(map[int64]entity.RelationType, len(rels))
	for _, r := range rels {
		out[r.ChildSourceID] = r.RelationType
	}
	return out
}

func (h *harness) eventTypes(t *testing.T, jobID int64) []string {
	t.Helper()
	logs, err := h.logs.ListLogs(context.Background(), jobID)
	require.NoError(t, err)
	var out []string
	for _, l := range logs {
		out = append(out, l.EventType)
	}
	return out
}
