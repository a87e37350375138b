package usecase

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/synthesis"
)

const pricingDocument = `ALPHA PLAN
Alpha Plan is built for solo founders launching their first product. It costs $50/mo. Join the Alpha waitlist today.
BETA PLAN
Beta Plan is designed for growing agencies with larger client rosters. Pricing is $200/mo billed monthly. Book a Beta demo.
MARKET CONTEXT
Agencies in this market report revenue of $500k annually. Most teams upgrade within a year.`

func TestAnswer_OfferStructureEndToEnd(t *testing.T) {
	h := newHarness(t, defaultIngestConfig())
	h.extractor.add("https://plans.test/pricing", entity.SourceTypeArticle, pricingDocument)

	_, err := h.ingest.Ingest(context.Background(), "https://plans.test/pricing", IngestOptions{})
	require.NoError(t, err)

	ans, err := h.search.Answer(context.Background(), "what are our pricing plans?", entity.SearchFilters{})
	require.NoError(t, err)
	assert.Equal(t, synthesis.PathStructured, ans.Path)

	lines := strings.Split(ans.Text, "\n")
	start := -1
	for i, l := range lines {
		if l == "Offer structure:" {
			start = i
		}
	}
	require.GreaterOrEqual(t, start, 0, ans.Text)

	var alpha, beta string
	for _, l := range lines[start+1:] {
		if l == "" {
			break
		}
		switch {
		case strings.Contains(l, "Alpha Plan"):
			alpha = l
		case strings.Contains(l, "Beta Plan"):
			beta = l
		}
		assert.LessOrEqual(t, utf8.RuneCountInString(l), 2+synthesis.DefaultMaxBulletLen+3+4)
	}
	assert.Contains(t, alpha, "($50/mo)")
	assert.Contains(t, beta, "($200/mo)")
	assert.NotContains(t, ans.Text, "$500")

	assert.Contains(t, ans.Text, "Citations:")
	assert.Contains(t, ans.Text, "  [1] Title of https://plans.test/pricing (https://plans.test/pricing)")
	assert.Contains(t, ans.Text, "Retrieval context:")
	assert.Contains(t, ans.Text, "  Filters: none")
	assert.Contains(t, ans.Text, "  Candidate chunks: 3")
	assert.Contains(t, ans.Text, "  Candidate sources: 1")
	assert.Contains(t, ans.Text, "  Returned: 3 chunks")
}

func seedCollections(t *testing.T, h *harness) {
	t.Helper()
	h.extractor.add("https://www.alpha.test/one", entity.SourceTypeArticle, "Alpha notes about onboarding and retention.")
	h.extractor.add("https://alpha.test/two", entity.SourceTypePDF, "Alpha report on churn and retention.")
	h.extractor.add("https://beta.test/one", entity.SourceTypeArticle, "Beta notes about hiring and retention.")

	for url, collection := range map[string]string{
		"https://www.alpha.test/one": "alpha",
		"https://alpha.test/two":     "alpha",
		"https://beta.test/one":      "beta",
	} {
		_, err := h.ingest.Ingest(context.Background(), url, IngestOptions{Collection: collection})
		require.NoError(t, err)
	}
}

func TestSearch_Filters(t *testing.T) {
	h := newHarness(t, defaultIngestConfig())
	seedCollections(t, h)
	ctx := context.Background()

	tests := []struct {
		name    string
		filters entity.SearchFilters
		chunks  int
		sources int
	}{
		{"none", entity.SearchFilters{}, 3, 3},
		{"collection", entity.SearchFilters{Collection: "alpha"}, 2, 2},
		{"domain strips www", entity.SearchFilters{Domain: "https://WWW.alpha.test/x"}, 2, 2},
		{"domain is exact", entity.SearchFilters{Domain: "test"}, 0, 0},
		{"type", entity.SearchFilters{SourceType: "PDF"}, 1, 1},
		{"url", entity.SearchFilters{URL: "https://beta.test/one"}, 1, 1},
		{"combined", entity.SearchFilters{Collection: "beta", Domain: "alpha.test"}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.search.Search(ctx, "retention", SearchOptions{Filters: tt.filters})
			require.NoError(t, err)
			assert.Equal(t, tt.chunks, res.CandidateChunks)
			assert.Equal(t, tt.sources, res.CandidateSources)
			assert.Len(t, res.Chunks, tt.chunks)
			if tt.filters.Collection != "" {
				for _, c := range res.Chunks {
					assert.Equal(t, tt.filters.Collection, c.Collection)
				}
			}
		})
	}
}

func TestSearch_RankingAndLimit(t *testing.T) {
	h := newHarness(t, defaultIngestConfig())
	seedCollections(t, h)

	res, err := h.search.Search(context.Background(), "churn report", SearchOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, res.Chunks, 2)
	assert.Equal(t, 3, res.CandidateChunks)
	assert.GreaterOrEqual(t, res.Chunks[0].FinalScore, res.Chunks[1].FinalScore)
	assert.Equal(t, "https://alpha.test/two", res.Chunks[0].URL)

	top := res.Chunks[0]
	assert.InDelta(t, 1.0, top.Recency, 0.01)
	assert.Equal(t, 1.1, top.SourceWeight)
	assert.InDelta(t, 0.65*top.Semantic+0.2*top.Recency+0.15*top.SourceWeight, top.FinalScore, 1e-9)
}

func TestSearch_EmptyQuery(t *testing.T) {
	h := newHarness(t, defaultIngestConfig())

	_, err := h.search.Search(context.Background(), "   ", SearchOptions{})
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	_, err = h.search.Answer(context.Background(), "", entity.SearchFilters{})
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestAnswer_NoResults(t *testing.T) {
	h := newHarness(t, defaultIngestConfig())

	ans, err := h.search.Answer(context.Background(), "anything", entity.SearchFilters{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ans.Text, "No matching knowledge found."))
	assert.Contains(t, ans.Text, "kb ingest <url>")

	seedCollections(t, h)
	ans, err = h.search.Answer(context.Background(), "anything", entity.SearchFilters{Collection: "missing"})
	require.NoError(t, err)
	assert.Contains(t, ans.Text, "Active filters: collection=missing")
	assert.Contains(t, ans.Text, "Try broadening your search:")
	assert.Equal(t, 0, ans.Retrieval.CandidateChunks)
}

func TestAnswer_GeneralWithFilters(t *testing.T) {
	h := newHarness(t, defaultIngestConfig())
	seedCollections(t, h)

	ans, err := h.search.Answer(context.Background(), "how did we improve retention", entity.SearchFilters{Collection: "alpha"})
	require.NoError(t, err)
	assert.Equal(t, synthesis.IntentGeneral, ans.Intent)
	assert.True(t, strings.HasPrefix(ans.Text, "Answer:\n- "))
	assert.Len(t, ans.Citations, 2)
	assert.Contains(t, ans.Text, "  Filters: collection=alpha")
	assert.Contains(t, ans.Text, "  Candidate sources: 2")
	assert.NotContains(t, ans.Text, "beta.test")
}

func TestListCollections(t *testing.T) {
	h := newHarness(t, defaultIngestConfig())
	seedCollections(t, h)

	stats, err := h.search.ListCollections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []entity.CollectionStats{
		{Collection: "alpha", SourceCount: 2, ChunkCount: 2},
		{Collection: "beta", SourceCount: 1, ChunkCount: 1},
	}, stats)
}
