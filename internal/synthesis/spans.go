package synthesis

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/user/knowledge-service/internal/entity"
)

const (
	longSpanLen     = 200
	longSpanPenalty = 0.8
	positionDecay   = 0.3
)

var stopwords = map[string]struct{}{
	"what": {}, "is": {}, "the": {}, "our": {}, "a": {}, "an": {}, "of": {}, "and": {},
	"or": {}, "for": {}, "to": {}, "in": {}, "on": {}, "how": {}, "do": {}, "does": {},
	"are": {}, "we": {}, "my": {}, "their": {}, "its": {}, "this": {}, "that": {},
}

var nonQueryChars = regexp.MustCompile(`[^a-z0-9\s]`)

// QueryTerms lowercases the question and keeps non-stopword terms longer than two characters.
func QueryTerms(question string) []string {
	cleaned := nonQueryChars.ReplaceAllString(strings.ToLower(question), "")
	var terms []string
	for _, w := range strings.Fields(cleaned) {
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		terms = append(terms, w)
	}
	return terms
}

// SpanRelevance is the fraction of terms present in span.
func SpanRelevance(span string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(span)
	hits := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

// ScoredSpan is a candidate sentence for a general answer bullet.
type ScoredSpan struct {
	Text     string
	SourceID int64
	Score    float64
}

// ExtractKeySpans scores every sentence of every chunk, then returns up to
// maxSpans deduplicated spans, best first.
func ExtractKeySpans(chunks []entity.RankedChunk, question string, maxSpans int) []ScoredSpan {
	terms := QueryTerms(question)

	var all []ScoredSpan
	for _, chunk := range chunks {
		sentences := SplitSentences(CleanChunkText(chunk.Text))
		for i, s := range sentences {
			position := 1 - float64(i)/float64(max(len(sentences), 1))*positionDecay
			length := 1.0
			if utf8.RuneCountInString(s) > longSpanLen {
				length = longSpanPenalty
			}
			all = append(all, ScoredSpan{
				Text:     s,
				SourceID: chunk.SourceID,
				Score:    (chunk.FinalScore*0.5 + SpanRelevance(s, terms)*0.5) * position * length,
			})
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })

	texts := make([]string, len(all))
	best := make(map[string]ScoredSpan, len(all))
	for i, s := range all {
		texts[i] = s.Text
		if _, ok := best[s.Text]; !ok {
			best[s.Text] = s
		}
	}

	var result []ScoredSpan
	for _, text := range DeduplicateSpans(texts) {
		if len(result) >= maxSpans {
			break
		}
		result = append(result, best[text])
	}
	return result
}
