package dto

import "github.com/google/uuid"

type DatasetImageResponse struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Annotation  string    `json:"annotation"`
	ContentURL  string    `json:"content_url"`
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
}

type DatasetImageListResponse struct {
	Images []DatasetImageResponse `json:"images"`
	Total  int                    `json:"total"`
}

type UpdateAnnotationRequest struct {
	Annotation string `json:"annotation" binding:"required"`
}
