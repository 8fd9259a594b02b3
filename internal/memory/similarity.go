package memory

import (
	"errors"
	"math"
)

var (
	// ErrEmptyQuery is returned when the query vector has no elements.
	ErrEmptyQuery = errors.New("query vector is empty")
	// ErrNonFiniteQuery is returned when the query vector contains NaN or Inf.
	ErrNonFiniteQuery = errors.New("query vector contains non-finite values")
	// ErrInvalidTopK is returned when the result cap is not positive.
	ErrInvalidTopK = errors.New("top_k must be positive")
)

// CosineSimilarity returns dot(a,b)/(‖a‖·‖b‖) in the range [-1, 1].
// A length mismatch or a zero-norm operand yields 0, never an error:
// entries with missing or foreign-dimension embeddings simply rank last.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// validateQuery rejects structurally invalid query vectors up front, so a
// malformed query fails loudly instead of scoring 0 against every candidate.
func validateQuery(q []float32) error {
	if len(q) == 0 {
		return ErrEmptyQuery
	}
	for _, v := range q {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrNonFiniteQuery
		}
	}
	return nil
}
