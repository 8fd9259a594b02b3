package models

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventFaceRecognized      EventType = "face_recognized"
	EventEntryLearned        EventType = "entry_learned"
	EventInteractionRecorded EventType = "interaction_recorded"
	EventJobStatus           EventType = "job_status"
)

// MemoryEvent is the message published to NATS for every observable change:
// recognitions, newly learned entries, recorded interactions and fine-tune
// job transitions. The API service consumes these and fans them out over
// WebSocket.
type MemoryEvent struct {
	Type          EventType  `json:"type"`
	EntryID       *uuid.UUID `json:"entry_id,omitempty"`
	EntryName     string     `json:"entry_name,omitempty"`
	Similarity    float64    `json:"similarity,omitempty"`
	InteractionID *uuid.UUID `json:"interaction_id,omitempty"`
	JobID         *uuid.UUID `json:"job_id,omitempty"`
	JobStatus     JobStatus  `json:"job_status,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// FineTuneTask is the message published to NATS when a fine-tune job is
// requested. The worker picks it up and drives the job to completion.
type FineTuneTask struct {
	JobID       uuid.UUID `json:"job_id"`
	RequestedAt time.Time `json:"requested_at"`
}
