package dto

import "github.com/google/uuid"

type CreateEntryRequest struct {
	Name        string    `json:"name" binding:"required"`
	Embedding   []float32 `json:"embedding" binding:"required"`
	Category    string    `json:"category" binding:"omitempty,oneof=friend family acquaintance"`
	Tags        []string  `json:"tags"`
	Preferences []string  `json:"preferences"`
}

type UpdateEntryRequest struct {
	Name        *string   `json:"name,omitempty"`
	Category    *string   `json:"category,omitempty" binding:"omitempty,oneof=friend family acquaintance"`
	Tags        *[]string `json:"tags,omitempty"`
	Preferences *[]string `json:"preferences,omitempty"`
}

type EntryResponse struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	FirstMet         string    `json:"first_met"`
	LastSeen         string    `json:"last_seen"`
	InteractionCount int       `json:"interaction_count"`
	Category         string    `json:"category"`
	Tags             []string  `json:"tags"`
	Preferences      []string  `json:"preferences"`
	CreatedAt        string    `json:"created_at"`
	UpdatedAt        string    `json:"updated_at"`
}

type EntryListResponse struct {
	Entries []EntryResponse `json:"entries"`
	Total   int             `json:"total"`
}

type CreateInteractionRequest struct {
	Kind              string   `json:"kind" binding:"required,oneof=meeting recognition conversation"`
	Context           string   `json:"context"`
	GeneratedResponse string   `json:"generated_response"`
	Emotion           string   `json:"emotion"`
	Actions           []string `json:"actions"`
}

type InteractionResponse struct {
	ID                uuid.UUID `json:"id"`
	EntryID           uuid.UUID `json:"entry_id"`
	Kind              string    `json:"kind"`
	Context           string    `json:"context,omitempty"`
	GeneratedResponse string    `json:"generated_response,omitempty"`
	Emotion           string    `json:"emotion,omitempty"`
	Actions           []string  `json:"actions"`
	CreatedAt         string    `json:"created_at"`
}

type InteractionListResponse struct {
	Interactions []InteractionResponse `json:"interactions"`
	Total        int                   `json:"total"`
}

type InteractionQuery struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}
