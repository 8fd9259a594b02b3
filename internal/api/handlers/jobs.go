package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/theaipetcompany/memory-management-sub000/internal/models"
	"github.com/theaipetcompany/memory-management-sub000/internal/provider"
	"github.com/theaipetcompany/memory-management-sub000/internal/queue"
	"github.com/theaipetcompany/memory-management-sub000/internal/storage"
	"github.com/theaipetcompany/memory-management-sub000/pkg/dto"
)

type JobHandler struct {
	db           *storage.PostgresStore
	producer     *queue.Producer
	provider     *provider.Client
	defaultModel string
}

func NewJobHandler(db *storage.PostgresStore, producer *queue.Producer, providerClient *provider.Client, defaultModel string) *JobHandler {
	return &JobHandler{
		db:           db,
		producer:     producer,
		provider:     providerClient,
		defaultModel: defaultModel,
	}
}

// Create records a pending fine-tune job and enqueues the task for the
// worker. The response is 202: assembly and submission happen out of band.
func (h *JobHandler) Create(c *gin.Context) {
	var req dto.CreateJobRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	model := req.BaseModel
	if model == "" {
		model = h.defaultModel
	}

	job := &models.FineTuneJob{BaseModel: model}
	if err := h.db.CreateFineTuneJob(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	task := models.FineTuneTask{JobID: job.ID, RequestedAt: time.Now().UTC()}
	if err := h.producer.PublishFineTuneTask(c.Request.Context(), task); err != nil {
		if uerr := h.db.UpdateFineTuneJobStatus(c.Request.Context(), job.ID, models.JobStatusFailed, "enqueue task: "+err.Error()); uerr != nil {
			slog.Warn("mark job failed after enqueue error", "job_id", job.ID, "error", uerr)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue fine-tune task: " + err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, toJobResponse(job))
}

func (h *JobHandler) List(c *gin.Context) {
	jobs, err := h.db.ListFineTuneJobs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := dto.JobListResponse{
		Jobs:  make([]dto.JobResponse, 0, len(jobs)),
		Total: len(jobs),
	}
	for i := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(&jobs[i]))
	}

	c.JSON(http.StatusOK, resp)
}

func (h *JobHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.db.GetFineTuneJob(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, toJobResponse(job))
}

// Cancel stops a job that has not reached a terminal state. When the
// provider already knows the job, the provider-side cancel runs first.
func (h *JobHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.db.GetFineTuneJob(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if job.Status.Terminal() {
		c.JSON(http.StatusConflict, gin.H{"error": "job already " + string(job.Status)})
		return
	}

	if job.ProviderJobID != "" {
		if _, err := h.provider.CancelFineTune(c.Request.Context(), job.ProviderJobID); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "cancel provider job: " + err.Error()})
			return
		}
	}

	if err := h.db.UpdateFineTuneJobStatus(c.Request.Context(), id, models.JobStatusCancelled, ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	event := models.MemoryEvent{
		Type:       models.EventJobStatus,
		JobID:      &id,
		JobStatus:  models.JobStatusCancelled,
		OccurredAt: time.Now().UTC(),
	}
	if err := h.producer.PublishEvent(c.Request.Context(), event); err != nil {
		slog.Warn("publish job status event", "job_id", id, "error", err)
	}

	job.Status = models.JobStatusCancelled
	job.ErrorMessage = ""
	c.JSON(http.StatusOK, toJobResponse(job))
}

func toJobResponse(job *models.FineTuneJob) dto.JobResponse {
	return dto.JobResponse{
		ID:              job.ID,
		Status:          string(job.Status),
		BaseModel:       job.BaseModel,
		ProviderFileID:  job.ProviderFileID,
		ProviderJobID:   job.ProviderJobID,
		ExampleCount:    job.ExampleCount,
		SkippedCount:    job.SkippedCount,
		TrainingFileKey: job.TrainingFileKey,
		ErrorMessage:    job.ErrorMessage,
		CreatedAt:       job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       job.UpdatedAt.Format(time.RFC3339),
	}
}
