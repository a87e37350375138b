// Package ranking scores retrieved chunks by blending semantic similarity,
// recency and per-type source weight.
package ranking

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/user/knowledge-service/internal/entity"
)

const DefaultHalfLifeDays = 30.0

// Weights are the blend coefficients of the final score.
type Weights struct {
	Semantic float64 `json:"semantic"`
	Recency  float64 `json:"recency"`
	Source   float64 `json:"source"`
}

var DefaultWeights = Weights{Semantic: 0.65, Recency: 0.2, Source: 0.15}

func (w Weights) Sum() float64 {
	return w.Semantic + w.Recency + w.Source
}

// NormalizeWeights scales w to sum to one. A zero or non-finite sum falls back to DefaultWeights.
func NormalizeWeights(w Weights) Weights {
	sum := w.Sum()
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return DefaultWeights
	}
	return Weights{
		Semantic: w.Semantic / sum,
		Recency:  w.Recency / sum,
		Source:   w.Source / sum,
	}
}

// ParseWeights reads a partial JSON object; missing keys keep their default.
// Empty input yields DefaultWeights.
func ParseWeights(raw string) (Weights, error) {
	w := DefaultWeights
	if strings.TrimSpace(raw) == "" {
		return w, nil
	}
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return DefaultWeights, fmt.Errorf("invalid ranking weights: %w", err)
	}
	return w, nil
}

// Profile is a named table of per-type source weights.
type Profile struct {
	Name    string
	Weights map[entity.SourceType]float64
}

var profiles = map[string]Profile{
	"balanced": {
		Name: "balanced",
		Weights: map[entity.SourceType]float64{
			entity.SourceTypeArticle: 1,
			entity.SourceTypePDF:     1.1,
			entity.SourceTypeYouTube: 0.9,
			entity.SourceTypeTwitter: 0.85,
			entity.SourceTypeTikTok:  0.75,
			entity.SourceTypeUnknown: 1,
		},
	},
	"research": {
		Name: "research",
		Weights: map[entity.SourceType]float64{
			entity.SourceTypeArticle: 1.05,
			entity.SourceTypePDF:     1.2,
			entity.SourceTypeYouTube: 0.8,
			entity.SourceTypeTwitter: 0.7,
			entity.SourceTypeTikTok:  0.65,
			entity.SourceTypeUnknown: 1,
		},
	},
	"social": {
		Name: "social",
		Weights: map[entity.SourceType]float64{
			entity.SourceTypeArticle: 0.95,
			entity.SourceTypePDF:     1,
			entity.SourceTypeYouTube: 1,
			entity.SourceTypeTwitter: 1.05,
			entity.SourceTypeTikTok:  1.1,
			entity.SourceTypeUnknown: 1,
		},
	},
}

// LookupProfile resolves a profile by name; "default" and unknown names map to balanced.
func LookupProfile(name string) Profile {
	if p, ok := profiles[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return profiles["balanced"]
}

// ParseOverrides reads a JSON object of type -> weight.
func ParseOverrides(raw string) (map[string]float64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out map[string]float64
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("invalid source weight overrides: %w", err)
	}
	return out, nil
}

// Config is the ranking configuration validated once at startup.
type Config struct {
	Weights      Weights
	Profile      string
	Overrides    map[string]float64
	HalfLifeDays float64
}

// Ranker applies a fixed, normalized configuration.
type Ranker struct {
	weights      Weights
	profile      string
	sourceWeight map[entity.SourceType]float64
	halfLifeDays float64
	now          func() time.Time
}

// New normalizes cfg. Overrides apply only to known types with finite values;
// a non-positive or non-finite half-life falls back to DefaultHalfLifeDays.
func New(cfg Config) *Ranker {
	base := LookupProfile(cfg.Profile)
	merged := make(map[entity.SourceType]float64, len(base.Weights))
	for t, w := range base.Weights {
		merged[t] = w
	}
	for k, v := range cfg.Overrides {
		t := entity.SourceType(strings.ToLower(k))
		if _, known := merged[t]; !known || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		merged[t] = v
	}

	halfLife := cfg.HalfLifeDays
	if halfLife <= 0 || math.IsNaN(halfLife) || math.IsInf(halfLife, 0) {
		halfLife = DefaultHalfLifeDays
	}

	return &Ranker{
		weights:      NormalizeWeights(cfg.Weights),
		profile:      base.Name,
		sourceWeight: merged,
		halfLifeDays: halfLife,
		now:          time.Now,
	}
}

func (r *Ranker) Weights() Weights      { return r.weights }
func (r *Ranker) ProfileName() string   { return r.profile }
func (r *Ranker) HalfLifeDays() float64 { return r.halfLifeDays }

// Score blends the three signals with the normalized weights.
func (r *Ranker) Score(semantic, recency, sourceWeight float64) float64 {
	w := r.weights
	return semantic*w.Semantic + recency*w.Recency + sourceWeight*w.Source
}

// SourceWeightFor returns the multiplier for a source type, 1 when unset.
func (r *Ranker) SourceWeightFor(t entity.SourceType) float64 {
	if w, ok := r.sourceWeight[t]; ok {
		return w
	}
	return 1
}

// RecencyBoost decays with the age of ingestedAt relative to now.
func (r *Ranker) RecencyBoost(ingestedAt time.Time) float64 {
	ageDays := r.now().Sub(ingestedAt).Hours() / 24
	return RecencyBoost(ageDays, r.halfLifeDays)
}

// RecencyBoost is 0.5^(ageDays/halfLifeDays) with negative ages clamped to zero.
func RecencyBoost(ageDays, halfLifeDays float64) float64 {
	return math.Pow(0.5, math.Max(0, ageDays)/halfLifeDays)
}

// CosineSimilarity returns 0 for mismatched lengths or a zero denominator.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
