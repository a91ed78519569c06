package ai

import (
	"math"

	"wiki-knowledge-platform/internal/apperr"
)

// CosineSimilarity computes dot(a,b) / (|a|*|b|) over two equal-length
// vectors. Mismatched lengths are a hard error, not a zero score.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, apperr.Newf(apperr.KindInvalidArgument,
			"vector length mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, apperr.New(apperr.KindInvalidArgument, "empty vectors")
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
