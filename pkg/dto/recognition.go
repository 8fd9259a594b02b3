package dto

import "github.com/google/uuid"

// IdentifyResponse is the result of POST /v1/recognition/identify.
type IdentifyResponse struct {
	Recognized bool           `json:"recognized"`
	Confidence float64        `json:"confidence"`
	Entry      *EntryResponse `json:"entry,omitempty"`
}

// LearnResponse is the result of POST /v1/recognition/learn.
type LearnResponse struct {
	Entry    EntryResponse `json:"entry"`
	ImageKey string        `json:"image_key"`
}

// SearchRequest is the JSON body of POST /v1/recognition/search.
// Threshold defaults to the configured recognition threshold when omitted;
// -1 disables filtering.
type SearchRequest struct {
	Embedding  []float32   `json:"embedding" binding:"required"`
	Threshold  *float64    `json:"threshold,omitempty"`
	TopK       int         `json:"top_k"`
	Categories []string    `json:"categories,omitempty" binding:"omitempty,dive,oneof=friend family acquaintance"`
	ExcludeIDs []uuid.UUID `json:"exclude_ids,omitempty"`
}

// SearchResult is one ranked match.
type SearchResult struct {
	EntryID    uuid.UUID     `json:"entry_id"`
	Similarity float64       `json:"similarity"`
	Entry      EntryResponse `json:"entry"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
}
