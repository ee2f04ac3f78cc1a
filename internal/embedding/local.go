package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// LocalEmbedder is the reference, dependency-free embedder: it produces
// deterministic, content-dependent vectors by hashing n-grams of the
// input into a fixed-dimension bag-of-features vector, then
// L2-normalizing. It requires no network access, so the core is usable
// out of the box without any remote service.
type LocalEmbedder struct {
	dim int
}

// NewLocalEmbedder builds a LocalEmbedder producing vectors of the
// given dimension. dim must be positive.
func NewLocalEmbedder(dim int) (*LocalEmbedder, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("local embedder: dim must be positive (got %d)", dim)
	}
	return &LocalEmbedder{dim: dim}, nil
}

func (e *LocalEmbedder) EmbedText(_ context.Context, s string) ([]float64, error) {
	return e.embed(normalizeForEmbedding(s)), nil
}

func (e *LocalEmbedder) EmbedDiff(_ context.Context, s string) ([]float64, error) {
	return e.embed(normalizeForEmbedding(preprocessDiff(s))), nil
}

// normalizeForEmbedding lowercases and collapses whitespace so that
// trivially reformatted text hashes to similar vectors.
func normalizeForEmbedding(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// embed hashes every word and every character trigram of s into a
// fixed-dimension bag-of-features vector, then L2-normalizes it.
// Words carry whole-token semantics; trigrams let near-miss spellings
// and punctuation variants still land close together in cosine space.
func (e *LocalEmbedder) embed(s string) []float64 {
	vec := make([]float64, e.dim)
	if s == "" {
		// Empty input maps to a fixed unit vector, so it stays
		// L2-normalized and two empty inputs compare as identical.
		vec[hashToIndex("", e.dim)] = 1.0
		return vec
	}

	words := strings.Fields(s)
	for _, w := range words {
		vec[hashToIndex(w, e.dim)] += 1.0
	}

	runes := []rune(s)
	for i := 0; i+2 < len(runes); i++ {
		tri := string(runes[i : i+3])
		vec[hashToIndex(tri, e.dim)] += 0.5
	}

	normalize(vec)
	return vec
}

// hashToIndex is a deterministic FNV-1a style hash, matching the
// bloom filter's hash family in spirit: fixed constants, byte-by-byte,
// no Go runtime-randomized hashing.
func hashToIndex(s string, dim int) int {
	const prime = 1099511628211
	h := uint64(14695981039346656037)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	return int(h % uint64(dim))
}

func normalize(vec []float64) {
	var sumSq float64
	for _, x := range vec {
		sumSq += x * x
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i := range vec {
		vec[i] /= norm
	}
}
