package handlers

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/theaipetcompany/memory-management-sub000/internal/models"
)

func TestValidateEmbedding(t *testing.T) {
	tests := []struct {
		name      string
		embedding []float32
		dim       int
		wantErr   bool
	}{
		{name: "valid", embedding: []float32{0.1, 0.2, 0.3}, dim: 3, wantErr: false},
		{name: "wrong dimension", embedding: []float32{0.1, 0.2}, dim: 3, wantErr: true},
		{name: "empty", embedding: nil, dim: 3, wantErr: true},
		{name: "NaN element", embedding: []float32{0.1, float32(math.NaN()), 0.3}, dim: 3, wantErr: true},
		{name: "Inf element", embedding: []float32{0.1, float32(math.Inf(1)), 0.3}, dim: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateEmbedding(tt.embedding, tt.dim)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestToEntryResponse(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	entry := &models.Entry{
		ID:               uuid.New(),
		Name:             "Alice",
		Embedding:        []float32{0.1, 0.2},
		FirstMet:         now,
		LastSeen:         now.Add(time.Hour),
		InteractionCount: 7,
		Category:         models.CategoryFamily,
		Tags:             []string{"glasses"},
		Preferences:      []string{"belly rubs"},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	resp := toEntryResponse(entry)

	assert.Equal(t, entry.ID, resp.ID)
	assert.Equal(t, "Alice", resp.Name)
	assert.Equal(t, "2025-06-01T12:30:00Z", resp.FirstMet)
	assert.Equal(t, "2025-06-01T13:30:00Z", resp.LastSeen)
	assert.Equal(t, 7, resp.InteractionCount)
	assert.Equal(t, "family", resp.Category)
	assert.Equal(t, []string{"glasses"}, resp.Tags)
	assert.Equal(t, []string{"belly rubs"}, resp.Preferences)
}

func TestToInteractionResponse(t *testing.T) {
	now := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	in := &models.Interaction{
		ID:                uuid.New(),
		EntryID:           uuid.New(),
		Kind:              models.InteractionRecognition,
		Context:           "front door",
		GeneratedResponse: "tail wag",
		Emotion:           "happy",
		Actions:           []string{"wag", "spin"},
		CreatedAt:         now,
	}

	resp := toInteractionResponse(in)

	assert.Equal(t, in.ID, resp.ID)
	assert.Equal(t, in.EntryID, resp.EntryID)
	assert.Equal(t, "recognition", resp.Kind)
	assert.Equal(t, "front door", resp.Context)
	assert.Equal(t, []string{"wag", "spin"}, resp.Actions)
	assert.Equal(t, "2025-06-02T08:00:00Z", resp.CreatedAt)
}
