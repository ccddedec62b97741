// Package musclememory retrieves and maintains the past case+action
// exemplars the classification pipeline uses to bias its reasoning
// (spec.md §4.7). Retrieval is a nearest-neighbor search over a fixed
// 1536-dim embedding space; persistence folds a new observation into an
// existing exemplar when one is already near-identical.
package musclememory

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"

	"github.com/svcdesk/caseintake/pkg/models"
)

// Embedder turns case/exemplar text into a fixed-dimension vector.
// Production and tests share the same interface; no pack dependency
// exposes a text-embeddings endpoint (anthropic-sdk-go's API surface here
// is chat completions only), so the default implementation is a
// deterministic hash-based embedding rather than a live model call.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HashEmbedder deterministically maps text to a point on the unit
// hypersphere in models.EmbeddingDims dimensions, seeded by a rolling
// SHA-256 of shingled tokens. Two embeddings are only ever compared within
// this process family, so determinism matters far more than topology
// quality — callers needing vendor-grade retrieval swap Embedder for a
// real provider at wiring time.
type HashEmbedder struct{}

func (HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		tokens = []string{""}
	}

	vec := make([]float32, models.EmbeddingDims)
	for _, tok := range tokens {
		block := expand(tok, models.EmbeddingDims)
		for i, b := range block {
			vec[i] += (float32(b)/255)*2 - 1
		}
	}
	normalize(vec)
	return vec, nil
}

// expand stretches a token's SHA-256 digest into n pseudo-random bytes by
// re-hashing a counter-appended seed, the way HKDF-expand derives more
// output than its underlying hash width.
func expand(token string, n int) []byte {
	out := make([]byte, 0, n)
	var counter uint32
	for len(out) < n {
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], counter)
		sum := sha256.Sum256(append([]byte(token), buf[:]...))
		out = append(out, sum[:]...)
		counter++
	}
	return out[:n]
}

func normalize(v []float32) {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
}

// CosineDistance returns 1 - cosine_similarity(a, b), in [0, 2]. Identical
// vectors distance 0; orthogonal vectors distance 1.
func CosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 2
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if cos > 1 {
		cos = 1
	}
	if cos < -1 {
		cos = -1
	}
	return 1 - cos
}
