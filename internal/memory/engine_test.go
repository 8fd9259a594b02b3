package memory

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theaipetcompany/memory-management-sub000/internal/models"
)

type fakeSource struct {
	entries []models.Entry
	err     error
}

func (f *fakeSource) ListEntries(ctx context.Context) ([]models.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

func testEntry(id string, name string, category models.Category, embedding []float32) models.Entry {
	return models.Entry{
		ID:        uuid.MustParse(id),
		Name:      name,
		Embedding: embedding,
		Category:  category,
		FirstMet:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		LastSeen:  time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

const (
	idAlice = "00000000-0000-0000-0000-000000000001"
	idBob   = "00000000-0000-0000-0000-000000000002"
	idCarol = "00000000-0000-0000-0000-000000000003"
	idDan   = "00000000-0000-0000-0000-000000000004"
	idEve   = "00000000-0000-0000-0000-000000000005"
)

func TestFindSimilar_RanksByDescendingSimilarity(t *testing.T) {
	source := &fakeSource{entries: []models.Entry{
		testEntry(idAlice, "alice", models.CategoryFriend, []float32{1, 0, 0}),
		testEntry(idBob, "bob", models.CategoryFriend, []float32{0.7, float32(math.Sqrt(1 - 0.49)), 0}),
		testEntry(idCarol, "carol", models.CategoryFriend, []float32{0, 1, 0}),
	}}
	engine := NewEngine(source)

	results, err := engine.FindSimilar(context.Background(), []float32{1, 0, 0}, SearchOptions{Threshold: -1, TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "alice", results[0].Entry.Name)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
	assert.Equal(t, "bob", results[1].Entry.Name)
	assert.InDelta(t, 0.7, results[1].Similarity, 1e-9)
	assert.Equal(t, "carol", results[2].Entry.Name)
	assert.InDelta(t, 0.0, results[2].Similarity, 1e-9)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}
}

func TestFindSimilar_Deterministic(t *testing.T) {
	// Bob and Carol are exact ties; the id tie-break must hold across calls.
	source := &fakeSource{entries: []models.Entry{
		testEntry(idCarol, "carol", models.CategoryFriend, []float32{1, 0, 0}),
		testEntry(idBob, "bob", models.CategoryFriend, []float32{1, 0, 0}),
		testEntry(idAlice, "alice", models.CategoryFriend, []float32{0.9, 0.1, 0}),
	}}
	engine := NewEngine(source)

	first, err := engine.FindSimilar(context.Background(), []float32{1, 0, 0}, SearchOptions{Threshold: 0, TopK: 5})
	require.NoError(t, err)
	second, err := engine.FindSimilar(context.Background(), []float32{1, 0, 0}, SearchOptions{Threshold: 0, TopK: 5})
	require.NoError(t, err)

	require.Equal(t, first, second)
	assert.Equal(t, uuid.MustParse(idBob), first[0].ID)
	assert.Equal(t, uuid.MustParse(idCarol), first[1].ID)
}

func TestFindSimilar_ThresholdInvariant(t *testing.T) {
	source := &fakeSource{entries: []models.Entry{
		testEntry(idAlice, "alice", models.CategoryFriend, []float32{1, 0, 0}),
		testEntry(idBob, "bob", models.CategoryFriend, []float32{0.7, float32(math.Sqrt(1 - 0.49)), 0}),
		testEntry(idCarol, "carol", models.CategoryFriend, []float32{0, 1, 0}),
		testEntry(idDan, "dan", models.CategoryFriend, []float32{-1, 0, 0}),
	}}
	engine := NewEngine(source)

	const threshold = 0.5
	results, err := engine.FindSimilar(context.Background(), []float32{1, 0, 0}, SearchOptions{Threshold: threshold, TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Similarity, threshold-1e-9)
	}
}

func TestFindSimilar_TopKTruncation(t *testing.T) {
	entries := make([]models.Entry, 0, 5)
	ids := []string{idAlice, idBob, idCarol, idDan, idEve}
	// Five candidates with distinct scores, all above threshold.
	for i, id := range ids {
		x := float32(1 - 0.1*float64(i))
		y := float32(math.Sqrt(1 - float64(x)*float64(x)))
		entries = append(entries, testEntry(id, "p", models.CategoryFriend, []float32{x, y, 0}))
	}
	engine := NewEngine(&fakeSource{entries: entries})

	results, err := engine.FindSimilar(context.Background(), []float32{1, 0, 0}, SearchOptions{Threshold: 0.1, TopK: 3})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// The three highest-scoring candidates, best first.
	assert.Equal(t, uuid.MustParse(idAlice), results[0].ID)
	assert.Equal(t, uuid.MustParse(idBob), results[1].ID)
	assert.Equal(t, uuid.MustParse(idCarol), results[2].ID)
}

func TestFindSimilar_CategoryFilter(t *testing.T) {
	source := &fakeSource{entries: []models.Entry{
		testEntry(idAlice, "alice", models.CategoryFriend, []float32{1, 0, 0}),
		testEntry(idBob, "bob", models.CategoryFamily, []float32{1, 0, 0}),
		testEntry(idCarol, "carol", models.CategoryAcquaintance, []float32{1, 0, 0}),
	}}
	engine := NewEngine(source)

	results, err := engine.FindSimilar(context.Background(), []float32{1, 0, 0}, SearchOptions{
		Threshold:  0,
		TopK:       10,
		Categories: []models.Category{models.CategoryFriend},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	for _, r := range results {
		assert.Equal(t, models.CategoryFriend, r.Entry.Category)
	}
}

func TestFindSimilar_ExcludeIDs(t *testing.T) {
	source := &fakeSource{entries: []models.Entry{
		testEntry(idAlice, "alice", models.CategoryFriend, []float32{1, 0, 0}),
		testEntry(idBob, "bob", models.CategoryFriend, []float32{1, 0, 0}),
	}}
	engine := NewEngine(source)

	results, err := engine.FindSimilar(context.Background(), []float32{1, 0, 0}, SearchOptions{
		Threshold:  0,
		TopK:       10,
		ExcludeIDs: []uuid.UUID{uuid.MustParse(idAlice)},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uuid.MustParse(idBob), results[0].ID)
}

func TestFindSimilar_EmptyStore(t *testing.T) {
	engine := NewEngine(&fakeSource{})

	results, err := engine.FindSimilar(context.Background(), []float32{1, 0, 0}, SearchOptions{Threshold: 0, TopK: 3})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindSimilar_CandidateDimensionMismatchScoresZero(t *testing.T) {
	source := &fakeSource{entries: []models.Entry{
		testEntry(idAlice, "alice", models.CategoryFriend, []float32{1, 0}),
	}}
	engine := NewEngine(source)

	// Excluded by a positive threshold...
	results, err := engine.FindSimilar(context.Background(), []float32{1, 0, 0}, SearchOptions{Threshold: 0.1, TopK: 3})
	require.NoError(t, err)
	assert.Empty(t, results)

	// ...but present with score exactly 0 when everything is admitted.
	results, err = engine.FindSimilar(context.Background(), []float32{1, 0, 0}, SearchOptions{Threshold: -1, TopK: 3})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Similarity)
}

func TestFindSimilar_NegativeSimilarityNotClamped(t *testing.T) {
	source := &fakeSource{entries: []models.Entry{
		testEntry(idAlice, "alice", models.CategoryFriend, []float32{-1, 0, 0}),
	}}
	engine := NewEngine(source)

	results, err := engine.FindSimilar(context.Background(), []float32{1, 0, 0}, SearchOptions{Threshold: -1, TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, -1.0, results[0].Similarity, 1e-9)
}

func TestFindSimilar_QueryValidation(t *testing.T) {
	engine := NewEngine(&fakeSource{})

	tests := []struct {
		name    string
		query   []float32
		topK    int
		wantErr error
	}{
		{"empty query", nil, 3, ErrEmptyQuery},
		{"nan element", []float32{1, float32(math.NaN())}, 3, ErrNonFiniteQuery},
		{"positive inf", []float32{float32(math.Inf(1)), 0}, 3, ErrNonFiniteQuery},
		{"negative inf", []float32{float32(math.Inf(-1)), 0}, 3, ErrNonFiniteQuery},
		{"zero top_k", []float32{1, 0}, 0, ErrInvalidTopK},
		{"negative top_k", []float32{1, 0}, -2, ErrInvalidTopK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.FindSimilar(context.Background(), tt.query, SearchOptions{Threshold: 0, TopK: tt.topK})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFindSimilar_StoreErrorPropagates(t *testing.T) {
	storeErr := errors.New("connection refused")
	engine := NewEngine(&fakeSource{err: storeErr})

	_, err := engine.FindSimilar(context.Background(), []float32{1, 0, 0}, SearchOptions{Threshold: 0, TopK: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
}

func TestRecognize_ExactMatch(t *testing.T) {
	embedding := []float32{0.3, 0.4, 0.5}
	source := &fakeSource{entries: []models.Entry{
		testEntry(idAlice, "alice", models.CategoryFriend, embedding),
	}}
	engine := NewEngine(source)

	rec, err := engine.Recognize(context.Background(), embedding, 0.8)
	require.NoError(t, err)
	assert.True(t, rec.Recognized)
	assert.InDelta(t, 1.0, rec.Confidence, 1e-9)
	require.NotNil(t, rec.Match)
	assert.Equal(t, "alice", rec.Match.Entry.Name)
}

func TestRecognize_BelowThresholdReportsConfidence(t *testing.T) {
	source := &fakeSource{entries: []models.Entry{
		testEntry(idAlice, "alice", models.CategoryFriend, []float32{0.7, float32(math.Sqrt(1 - 0.49)), 0}),
	}}
	engine := NewEngine(source)

	rec, err := engine.Recognize(context.Background(), []float32{1, 0, 0}, 0.9)
	require.NoError(t, err)
	assert.False(t, rec.Recognized)
	assert.InDelta(t, 0.7, rec.Confidence, 1e-9)
	require.NotNil(t, rec.Match)
}

func TestRecognize_EmptyStore(t *testing.T) {
	engine := NewEngine(&fakeSource{})

	rec, err := engine.Recognize(context.Background(), []float32{1, 0, 0}, 0.5)
	require.NoError(t, err)
	assert.False(t, rec.Recognized)
	assert.Equal(t, 0.0, rec.Confidence)
	assert.Nil(t, rec.Match)
}
