package dto

import "github.com/google/uuid"

type CreateJobRequest struct {
	BaseModel string `json:"base_model"`
}

type JobResponse struct {
	ID              uuid.UUID `json:"id"`
	Status          string    `json:"status"`
	BaseModel       string    `json:"base_model"`
	ProviderFileID  string    `json:"provider_file_id,omitempty"`
	ProviderJobID   string    `json:"provider_job_id,omitempty"`
	ExampleCount    int       `json:"example_count"`
	SkippedCount    int       `json:"skipped_count"`
	TrainingFileKey string    `json:"training_file_key,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       string    `json:"created_at"`
	UpdatedAt       string    `json:"updated_at"`
}

type JobListResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Total int           `json:"total"`
}
