package models

import (
	"time"

	"github.com/google/uuid"
)

// DatasetImage is one curated training image plus its annotation text.
// The image bytes live in object storage under ObjectKey; only metadata is
// kept in the database.
type DatasetImage struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ObjectKey   string    `json:"object_key" db:"object_key"`
	Filename    string    `json:"filename" db:"filename"`
	ContentType string    `json:"content_type" db:"content_type"`
	SizeBytes   int64     `json:"size_bytes" db:"size_bytes"`
	Width       int       `json:"width" db:"width"`
	Height      int       `json:"height" db:"height"`
	Annotation  string    `json:"annotation" db:"annotation"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Annotated reports whether the image can contribute a training example.
func (d DatasetImage) Annotated() bool {
	return d.Annotation != ""
}
