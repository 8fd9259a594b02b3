package models

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusAssembling JobStatus = "assembling"
	JobStatusUploading  JobStatus = "uploading"
	JobStatusRunning    JobStatus = "running"
	JobStatusSucceeded  JobStatus = "succeeded"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status is final: such jobs are never polled
// or transitioned again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// FineTuneJob tracks one vision fine-tuning submission from dataset assembly
// through the provider-side job lifecycle.
type FineTuneJob struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Status          JobStatus `json:"status" db:"status"`
	BaseModel       string    `json:"base_model" db:"base_model"`
	ProviderFileID  string    `json:"provider_file_id,omitempty" db:"provider_file_id"`
	ProviderJobID   string    `json:"provider_job_id,omitempty" db:"provider_job_id"`
	ExampleCount    int       `json:"example_count" db:"example_count"`
	SkippedCount    int       `json:"skipped_count" db:"skipped_count"`
	TrainingFileKey string    `json:"training_file_key,omitempty" db:"training_file_key"`
	ErrorMessage    string    `json:"error_message,omitempty" db:"error_message"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
