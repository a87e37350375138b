// Package synthesis turns ranked chunks and a question into answer lines:
// noise filtering, intent detection, general span extraction or structured
// offer extraction, and a quality gate between the two.
package synthesis

import (
	"fmt"
	"strings"

	"github.com/user/knowledge-service/internal/entity"
)

const (
	DefaultMaxBullets   = 6
	DefaultMaxBulletLen = 160

	lowConfidenceScore = 0.3
	minAvgCleanLen     = 30
	maxCTALines        = 3

	NoisyAnswer       = "- Retrieved text is too noisy for confident synthesis. Try ingesting cleaner sources or narrowing filters."
	StructuredHeading = "Offer structure:"
	CTAHeading        = "CTA flow:"
	FallbackNote      = "  Note: Could not confidently extract structured offers. Showing general synthesis."
)

// Path names the branch that produced an answer.
type Path string

const (
	PathGeneral    Path = "general"
	PathStructured Path = "structured"
	PathFallback   Path = "fallback"
	PathNoisy      Path = "noisy"
)

// Result is the synthesized answer body.
type Result struct {
	Lines         []string
	Intent        Intent
	Path          Path
	Structured    bool
	LowConfidence bool
	Offers        []StructuredOffer
}

// Engine holds the immutable synthesis configuration.
type Engine struct {
	catalog      Catalog
	maxBullets   int
	maxBulletLen int
}

// Option configures the Engine.
type Option func(*Engine)

// WithCatalog replaces the default offer whitelist.
func WithCatalog(c Catalog) Option {
	return func(e *Engine) {
		if len(c) > 0 {
			e.catalog = c
		}
	}
}

func WithMaxBullets(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxBullets = n
		}
	}
}

func WithMaxBulletLen(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxBulletLen = n
		}
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		catalog:      DefaultCatalog(),
		maxBullets:   DefaultMaxBullets,
		maxBulletLen: DefaultMaxBulletLen,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Catalog() Catalog { return e.catalog }

// Synthesize answers question from chunks. cites numbers the sources behind chunks.
func (e *Engine) Synthesize(question string, chunks []entity.RankedChunk, cites *Citations) Result {
	intent := DetectIntent(question)

	working := FilterNoisyChunks(chunks)
	if len(working) == 0 {
		working = chunks
	}

	var scoreSum, lenSum float64
	for _, c := range working {
		scoreSum += c.FinalScore
		lenSum += float64(len([]rune(CleanChunkText(c.Text))))
	}
	n := float64(max(len(working), 1))
	lowConfidence := scoreSum/n < lowConfidenceScore

	if lenSum/n < minAvgCleanLen {
		return Result{
			Lines:         []string{NoisyAnswer},
			Intent:        intent,
			Path:          PathNoisy,
			LowConfidence: true,
		}
	}

	if intent == IntentOfferStructure {
		return e.structured(question, working, cites, lowConfidence)
	}
	res := e.general(question, working, cites, lowConfidence)
	res.Intent = intent
	return res
}

func (e *Engine) general(question string, chunks []entity.RankedChunk, cites *Citations, lowConfidence bool) Result {
	spans := ExtractKeySpans(chunks, question, e.maxBullets)
	single := cites.Len() == 1

	bullets := make([]string, 0, len(spans))
	for _, s := range spans {
		line := "- " + TruncateBullet(s.Text, e.maxBulletLen)
		if cite, ok := cites.Get(s.SourceID); ok && !single {
			line += fmt.Sprintf(" [%d]", cite.Index)
		}
		bullets = append(bullets, line)
	}
	if single && len(bullets) > 0 {
		bullets[len(bullets)-1] += fmt.Sprintf(" [%d]", cites.List()[0].Index)
	}

	return Result{
		Lines:         bullets,
		Intent:        IntentGeneral,
		Path:          PathGeneral,
		LowConfidence: lowConfidence,
	}
}

func (e *Engine) structured(question string, chunks []entity.RankedChunk, cites *Citations, lowConfidence bool) Result {
	offers := e.catalog.ExtractStructuredOffers(chunks)

	if !e.catalog.PassesQualityGate(offers) {
		res := e.general(question, chunks, cites, true)
		res.Lines = append(res.Lines, "", FallbackNote)
		res.Intent = IntentOfferStructure
		res.Path = PathFallback
		res.LowConfidence = true
		return res
	}

	lines := []string{StructuredHeading}
	for _, o := range offers {
		lines = append(lines, "- "+e.formatOffer(o))
	}

	var ctas []string
	for _, o := range offers {
		if o.CTA != "" {
			ctas = append(ctas, o.CTA)
		}
	}
	ctas = DeduplicateSpans(ctas)

	cleaned := make([]string, len(chunks))
	for i, c := range chunks {
		cleaned[i] = CleanChunkText(c.Text)
	}
	if extra, ok := ExtractCleanCTA(strings.Join(cleaned, " ")); ok && len(ctas) < maxCTALines {
		if len(DeduplicateSpans(append(append([]string(nil), ctas...), extra))) > len(ctas) {
			ctas = append(ctas, extra)
		}
	}

	if len(ctas) > 0 {
		lines = append(lines, "", CTAHeading)
		for _, c := range ctas[:min(len(ctas), maxCTALines)] {
			lines = append(lines, "- "+c)
		}
	}

	if cites.Len() == 1 {
		for i := len(lines) - 1; i >= 0; i-- {
			if strings.HasPrefix(lines[i], "- ") {
				lines[i] += fmt.Sprintf(" [%d]", cites.List()[0].Index)
				break
			}
		}
	}

	return Result{
		Lines:         lines,
		Intent:        IntentOfferStructure,
		Path:          PathStructured,
		Structured:    true,
		LowConfidence: lowConfidence,
		Offers:        offers,
	}
}

// formatOffer renders "name: best_for (price)", truncated to the bullet limit.
func (e *Engine) formatOffer(o StructuredOffer) string {
	line := o.Name
	if o.BestFor != "" {
		line += ": " + o.BestFor
	}
	if o.Price != "" {
		line += " (" + o.Price + ")"
	}
	return TruncateBullet(line, e.maxBulletLen)
}
