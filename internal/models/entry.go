package models

import (
	"time"

	"github.com/google/uuid"
)

// Category classifies the relationship between the pet and a remembered person.
type Category string

const (
	CategoryFriend       Category = "friend"
	CategoryFamily       Category = "family"
	CategoryAcquaintance Category = "acquaintance"
)

// ValidCategory reports whether c is one of the closed category set.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryFriend, CategoryFamily, CategoryAcquaintance:
		return true
	}
	return false
}

// Entry is one remembered person: a face embedding plus descriptive metadata.
// The embedding is stored on the row itself (vector column), so the entry is
// the single source of truth for the vector.
type Entry struct {
	ID               uuid.UUID `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	Embedding        []float32 `json:"-" db:"embedding"`
	FirstMet         time.Time `json:"first_met" db:"first_met"`
	LastSeen         time.Time `json:"last_seen" db:"last_seen"`
	InteractionCount int       `json:"interaction_count" db:"interaction_count"`
	Category         Category  `json:"category" db:"category"`
	Tags             []string  `json:"tags" db:"tags"`
	Preferences      []string  `json:"preferences" db:"preferences"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// InteractionKind is the closed set of interaction types recorded per entry.
type InteractionKind string

const (
	InteractionMeeting      InteractionKind = "meeting"
	InteractionRecognition  InteractionKind = "recognition"
	InteractionConversation InteractionKind = "conversation"
)

// ValidInteractionKind reports whether k is one of the closed kind set.
func ValidInteractionKind(k InteractionKind) bool {
	switch k {
	case InteractionMeeting, InteractionRecognition, InteractionConversation:
		return true
	}
	return false
}

// Interaction is one recorded exchange with a remembered person.
// Interactions are insert-only; they are listed newest first.
type Interaction struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	EntryID           uuid.UUID       `json:"entry_id" db:"entry_id"`
	Kind              InteractionKind `json:"kind" db:"kind"`
	Context           string          `json:"context,omitempty" db:"context"`
	GeneratedResponse string          `json:"generated_response,omitempty" db:"generated_response"`
	Emotion           string          `json:"emotion,omitempty" db:"emotion"`
	Actions           []string        `json:"actions" db:"actions"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}
