package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/ranking"
	"github.com/user/knowledge-service/internal/repository"
	"github.com/user/knowledge-service/internal/synthesis"
	"github.com/user/knowledge-service/pkg/logger"
	"github.com/user/knowledge-service/pkg/metrics"
	"github.com/user/knowledge-service/pkg/utils"
)

const (
	DefaultSearchLimit = 5
	DefaultAnswerLimit = 6

	lowConfidenceNote = "  Note: Confidence is low. Results may be loosely related; try narrower filters or ingest more relevant content."
)

// SearchOptions controls a retrieval call.
type SearchOptions struct {
	Limit   int
	Filters entity.SearchFilters
}

// Answer is a synthesized reply together with the retrieval that backs it.
type Answer struct {
	Text          string               `json:"answer"`
	Intent        synthesis.Intent     `json:"intent"`
	Path          synthesis.Path       `json:"path"`
	LowConfidence bool                 `json:"low_confidence"`
	Citations     []synthesis.Citation `json:"citations"`
	Retrieval     *entity.SearchResult `json:"retrieval"`
}

// SearchUseCase ranks stored chunks against a query and synthesizes answers.
type SearchUseCase struct {
	chunks      repository.ChunkRepository
	sources     repository.SourceRepository
	embedder    repository.Embedder
	vectors     repository.VectorIndex
	ranker      *ranking.Ranker
	engine      *synthesis.Engine
	answerLimit int
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewSearchUseCase(
	chunks repository.ChunkRepository,
	sources repository.SourceRepository,
	embedder repository.Embedder,
	vectors repository.VectorIndex,
	ranker *ranking.Ranker,
	engine *synthesis.Engine,
	answerLimit int,
	m *metrics.Metrics,
	log *zap.Logger,
) *SearchUseCase {
	if answerLimit <= 0 {
		answerLimit = DefaultAnswerLimit
	}
	if engine == nil {
		engine = synthesis.New()
	}
	return &SearchUseCase{
		chunks:      chunks,
		sources:     sources,
		embedder:    embedder,
		vectors:     vectors,
		ranker:      ranker,
		engine:      engine,
		answerLimit: answerLimit,
		metrics:     m,
		logger:      logger.OrNop(log),
	}
}

// Search scores every candidate chunk that passes the filters and returns the
// top hits. Candidate counts are taken after all filters, before the limit.
func (uc *SearchUseCase) Search(ctx context.Context, query string, opts SearchOptions) (*entity.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuestion
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	filters := normalizeFilters(opts.Filters)

	start := time.Now()
	defer func() { uc.metrics.ObserveSearch(time.Since(start)) }()

	candidates, err := uc.chunks.ListCandidates(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate chunks: %w", err)
	}
	if filters.Domain != "" {
		kept := candidates[:0]
		for _, c := range candidates {
			if utils.MatchesDomain(c.Source.URL, filters.Domain) {
				kept = append(kept, c)
			}
		}
		candidates = kept
	}

	result := &entity.SearchResult{
		Chunks:           []entity.RankedChunk{},
		CandidateChunks:  len(candidates),
		CandidateSources: distinctSources(candidates),
	}
	if len(candidates) == 0 {
		return result, nil
	}

	query64 := uc.embedder.Embed(ctx, query)
	sims, err := uc.vectors.Similarities(ctx, query64, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to score candidates with %s index: %w", uc.vectors.Name(), err)
	}

	ranked := make([]entity.RankedChunk, len(candidates))
	for i, c := range candidates {
		recency := uc.ranker.RecencyBoost(c.Source.IngestedAt)
		ranked[i] = entity.RankedChunk{
			ChunkID:      c.Chunk.ID,
			SourceID:     c.Source.ID,
			ChunkIndex:   c.Chunk.Index,
			Text:         c.Chunk.Text,
			SectionTitle: c.Chunk.SectionTitle,
			Title:        c.Source.Title,
			URL:          c.Source.URL,
			SourceType:   c.Source.Type,
			Collection:   c.Source.Collection,
			IngestedAt:   c.Source.IngestedAt,
			Semantic:     sims[i],
			Recency:      recency,
			SourceWeight: c.Source.SourceWeight,
			FinalScore:   uc.ranker.Score(sims[i], recency, c.Source.SourceWeight),
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].FinalScore > ranked[j].FinalScore })

	result.Chunks = ranked[:min(limit, len(ranked))]
	uc.logger.Debug("Search completed",
		zap.String("filters", filters.Describe()),
		zap.Int("candidates", result.CandidateChunks),
		zap.Int("returned", len(result.Chunks)),
	)
	return result, nil
}

// Answer retrieves the best chunks for question and renders a formatted answer
// with citations and retrieval context.
func (uc *SearchUseCase) Answer(ctx context.Context, question string, filters entity.SearchFilters) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	filters = normalizeFilters(filters)

	found, err := uc.Search(ctx, question, SearchOptions{Limit: uc.answerLimit, Filters: filters})
	if err != nil {
		return nil, err
	}
	if len(found.Chunks) == 0 {
		return &Answer{
			Text:          noResultsText(filters),
			Intent:        synthesis.DetectIntent(question),
			LowConfidence: true,
			Citations:     []synthesis.Citation{},
			Retrieval:     found,
		}, nil
	}

	cites := synthesis.BuildCitations(found.Chunks)
	res := uc.engine.Synthesize(question, found.Chunks, cites)
	uc.metrics.IncSynthesis(string(res.Path))

	lines := []string{"Answer:"}
	lines = append(lines, res.Lines...)
	if res.LowConfidence {
		lines = append(lines, lowConfidenceNote)
	}
	lines = append(lines, "", "Citations:")
	for _, c := range cites.List() {
		lines = append(lines, fmt.Sprintf("  [%d] %s (%s)", c.Index, c.Title, c.URL))
	}
	lines = append(lines, "",
		"Retrieval context:",
		"  Filters: "+filters.Describe(),
		fmt.Sprintf("  Candidate chunks: %d", found.CandidateChunks),
		fmt.Sprintf("  Candidate sources: %d", found.CandidateSources),
		fmt.Sprintf("  Returned: %d chunks", len(found.Chunks)),
	)

	return &Answer{
		Text:          strings.Join(lines, "\n"),
		Intent:        res.Intent,
		Path:          res.Path,
		LowConfidence: res.LowConfidence,
		Citations:     cites.List(),
		Retrieval:     found,
	}, nil
}

// ListCollections returns source and chunk counts per collection.
func (uc *SearchUseCase) ListCollections(ctx context.Context) ([]entity.CollectionStats, error) {
	stats, err := uc.sources.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return stats, nil
}

func noResultsText(filters entity.SearchFilters) string {
	lines := []string{"No matching knowledge found."}
	if !filters.IsEmpty() {
		lines = append(lines,
			"",
			"Active filters: "+filters.Describe(),
			"",
			"Try broadening your search:",
			`  kb ask "your question"                  # no filters`,
			"  kb collections                          # see available collections",
		)
	} else {
		lines = append(lines,
			"Ingest some content first:",
			"  kb ingest <url>",
		)
	}
	return strings.Join(lines, "\n")
}

func normalizeFilters(f entity.SearchFilters) entity.SearchFilters {
	f.Collection = strings.TrimSpace(f.Collection)
	f.Domain = strings.TrimSpace(f.Domain)
	f.SourceType = strings.ToLower(strings.TrimSpace(f.SourceType))
	f.URL = strings.TrimSpace(f.URL)
	return f
}

func distinctSources(candidates []entity.ChunkCandidate) int {
	seen := make(map[int64]struct{}, len(candidates))
	for _, c := range candidates {
		seen[c.Source.ID] = struct{}{}
	}
	return len(seen)
}
