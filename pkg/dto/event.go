package dto

import "github.com/google/uuid"

// WSEvent is a WebSocket message for real-time event delivery.
type WSEvent struct {
	Type       string     `json:"type"` // face_recognized, entry_learned, interaction_recorded, job_status
	EntryID    *uuid.UUID `json:"entry_id,omitempty"`
	EntryName  string     `json:"entry_name,omitempty"`
	Similarity float64    `json:"similarity,omitempty"`
	JobID      *uuid.UUID `json:"job_id,omitempty"`
	JobStatus  string     `json:"job_status,omitempty"`
	OccurredAt string     `json:"occurred_at"`
}
