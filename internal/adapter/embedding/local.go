package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultDims is the vector length used when no dimension is configured.
const DefaultDims = 384

// LocalEmbedder is a deterministic bag-of-words embedding. Each lowercased
// token is hashed into one of dims buckets and the result is L2 normalized.
type LocalEmbedder struct {
	dims int
}

func NewLocalEmbedder(dims int) *LocalEmbedder {
	if dims <= 0 {
		dims = DefaultDims
	}
	return &LocalEmbedder{dims: dims}
}

func (e *LocalEmbedder) Dims() int { return e.dims }

func (e *LocalEmbedder) Embed(_ context.Context, text string) []float64 {
	vec := make([]float64, e.dims)
	for _, token := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[h.Sum32()%uint32(e.dims)]++
	}
	return normalize(vec)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(vec []float64) []float64 {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
