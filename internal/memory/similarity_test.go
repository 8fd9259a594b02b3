package memory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{"identical unit vectors", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"identical non-unit vectors", []float32{2, 3, 4}, []float32{2, 3, 4}, 1},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1},
		{"zero left operand", []float32{0, 0, 0}, []float32{1, 2, 3}, 0},
		{"zero right operand", []float32{1, 2, 3}, []float32{0, 0, 0}, 0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0},
		{"length mismatch", []float32{1, 0, 0}, []float32{1, 0}, 0},
		{"both empty", nil, nil, 0},
		{"known angle", []float32{1, 1, 0}, []float32{1, 0, 0}, 1 / math.Sqrt2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.False(t, math.IsNaN(got), "similarity must never be NaN")
		})
	}
}

func TestCosineSimilarity_Symmetric(t *testing.T) {
	a := []float32{0.1, -0.2, 0.3, 0.4}
	b := []float32{-0.5, 0.6, 0.7, -0.8}
	assert.InDelta(t, CosineSimilarity(a, b), CosineSimilarity(b, a), 1e-12)
}

func TestValidateQuery(t *testing.T) {
	assert.NoError(t, validateQuery([]float32{0.5, -0.5}))
	assert.ErrorIs(t, validateQuery(nil), ErrEmptyQuery)
	assert.ErrorIs(t, validateQuery([]float32{}), ErrEmptyQuery)
	assert.ErrorIs(t, validateQuery([]float32{float32(math.NaN())}), ErrNonFiniteQuery)
	assert.ErrorIs(t, validateQuery([]float32{1, float32(math.Inf(1))}), ErrNonFiniteQuery)
}
