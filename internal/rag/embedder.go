package rag

import (
	"hash/fnv"
	"math"
	"strings"
)

// EmbeddingDims is fixed store-wide; cosine similarity is only defined
// between vectors of the same length.
const EmbeddingDims = 384

// maxEmbedTokens caps how much of a document contributes to its vector.
const maxEmbedTokens = 100

// Embed maps text to a deterministic 384-dim vector without a learned
// model: each of the first 100 lowercased whitespace tokens lights up one
// hash-addressed slot with a small positional bias, later collisions
// overwriting earlier ones. Non-empty input is L2-normalized; empty input
// returns the zero vector as-is.
func Embed(text string) []float64 {
	vec := make([]float64, EmbeddingDims)
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) > maxEmbedTokens {
		tokens = tokens[:maxEmbedTokens]
	}
	for i, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		slot := int(h.Sum32() % EmbeddingDims)
		vec[slot] = 1.0 + float64(i)*0.01
	}
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum > 0 {
		norm := math.Sqrt(sum)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// Cosine returns the cosine similarity of two vectors, 0 when either has
// zero magnitude or the lengths disagree.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
