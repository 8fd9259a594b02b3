// Package jobs drives fine-tune jobs from dataset assembly through the
// provider-side lifecycle: assemble → archive → upload → submit → poll.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/theaipetcompany/memory-management-sub000/internal/dataset"
	"github.com/theaipetcompany/memory-management-sub000/internal/models"
	"github.com/theaipetcompany/memory-management-sub000/internal/observability"
	"github.com/theaipetcompany/memory-management-sub000/internal/provider"
	"github.com/theaipetcompany/memory-management-sub000/internal/queue"
	"github.com/theaipetcompany/memory-management-sub000/internal/storage"
)

// Runner executes fine-tune tasks pulled off the queue and polls the
// provider for jobs in flight.
type Runner struct {
	db           *storage.PostgresStore
	minio        *storage.MinIOStore
	producer     *queue.Producer
	provider     *provider.Client
	systemPrompt string
}

func NewRunner(
	db *storage.PostgresStore,
	minio *storage.MinIOStore,
	producer *queue.Producer,
	providerClient *provider.Client,
	systemPrompt string,
) *Runner {
	return &Runner{
		db:           db,
		minio:        minio,
		producer:     producer,
		provider:     providerClient,
		systemPrompt: systemPrompt,
	}
}

// ProcessTask handles one queued fine-tune task. A returned error means the
// attempt can be retried; permanent failures mark the job failed and return
// nil so the message is not redelivered.
func (r *Runner) ProcessTask(ctx context.Context, task models.FineTuneTask) error {
	// 1. Load the job row
	job, err := r.db.GetFineTuneJob(ctx, task.JobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		slog.Warn("task references unknown job", "job_id", task.JobID)
		return nil
	}
	if job.Status.Terminal() {
		slog.Info("skipping finished job", "job_id", job.ID, "status", job.Status)
		return nil
	}

	slog.Info("assembling training file", "job_id", job.ID, "base_model", job.BaseModel)
	if err := r.transition(ctx, job, models.JobStatusAssembling); err != nil {
		return err
	}

	// 2. Build the JSONL from annotated images
	images, err := r.db.ListDatasetImages(ctx, true)
	if err != nil {
		return fmt.Errorf("list annotated images: %w", err)
	}

	builder := dataset.NewBuilder(r.systemPrompt)
	for _, img := range images {
		data, err := r.minio.GetObject(ctx, img.ObjectKey)
		if err != nil {
			slog.Warn("load dataset image", "image_id", img.ID, "key", img.ObjectKey, "error", err)
			continue
		}
		if err := builder.Add(data, img.Annotation); err != nil {
			if errors.Is(err, dataset.ErrTooManyExamples) {
				return r.failPermanently(ctx, job, err)
			}
			return fmt.Errorf("add training example: %w", err)
		}
	}

	report := builder.Report()
	job.ExampleCount = report.Built
	job.SkippedCount = len(report.Skipped)

	// 3. An empty file is not worth submitting
	if report.Built == 0 {
		return r.failPermanently(ctx, job,
			fmt.Errorf("no annotated images produced training records (%d skipped)", len(report.Skipped)))
	}

	slog.Info("training file assembled",
		"job_id", job.ID,
		"examples", report.Built,
		"skipped", len(report.Skipped),
	)

	// 4. Archive the JSONL alongside the dataset
	job.TrainingFileKey = storage.TrainingFileKey(job.ID)
	if err := r.minio.PutObject(ctx, job.TrainingFileKey, builder.Bytes(), "application/jsonl"); err != nil {
		return fmt.Errorf("archive training file: %w", err)
	}

	if err := r.transition(ctx, job, models.JobStatusUploading); err != nil {
		return err
	}

	// 5. Upload the archived artifact to the provider, so the submitted
	// bytes are exactly the audited ones
	obj, _, err := r.minio.GetObjectStream(ctx, job.TrainingFileKey)
	if err != nil {
		return fmt.Errorf("open archived training file: %w", err)
	}
	filename := fmt.Sprintf("facemem-%s.jsonl", job.ID)
	file, err := r.provider.UploadFile(ctx, filename, obj)
	_ = obj.Close()
	if err != nil {
		return fmt.Errorf("upload training file: %w", err)
	}
	job.ProviderFileID = file.ID

	// 6. Submit the fine-tune
	ft, err := r.provider.CreateFineTune(ctx, file.ID, job.BaseModel)
	if err != nil {
		return fmt.Errorf("create fine-tune: %w", err)
	}
	job.ProviderJobID = ft.ID

	slog.Info("fine-tune submitted",
		"job_id", job.ID,
		"provider_file_id", file.ID,
		"provider_job_id", ft.ID,
	)

	return r.transition(ctx, job, models.JobStatusRunning)
}

// FailJob marks a job failed after its task exhausted all deliveries.
func (r *Runner) FailJob(ctx context.Context, id uuid.UUID, cause error) {
	job, err := r.db.GetFineTuneJob(ctx, id)
	if err != nil || job == nil || job.Status.Terminal() {
		return
	}
	if err := r.failPermanently(ctx, job, cause); err != nil {
		slog.Error("mark job failed", "job_id", id, "error", err)
	}
}

// PollRunning advances every running job by one provider status check.
func (r *Runner) PollRunning(ctx context.Context) error {
	jobs, err := r.db.ListRunningFineTuneJobs(ctx)
	if err != nil {
		return fmt.Errorf("list running jobs: %w", err)
	}

	for i := range jobs {
		job := &jobs[i]
		if err := r.pollOne(ctx, job); err != nil {
			slog.Warn("poll job", "job_id", job.ID, "provider_job_id", job.ProviderJobID, "error", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// PollLoop runs PollRunning on a fixed interval until the context ends.
func (r *Runner) PollLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.PollRunning(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("poll running jobs", "error", err)
			}
		}
	}
}

func (r *Runner) pollOne(ctx context.Context, job *models.FineTuneJob) error {
	info, err := r.provider.GetFineTune(ctx, job.ProviderJobID)
	if err != nil {
		return err
	}
	if !info.Terminal() {
		return nil
	}

	switch info.Status {
	case "succeeded":
		job.Status = models.JobStatusSucceeded
		slog.Info("fine-tune succeeded",
			"job_id", job.ID,
			"provider_job_id", job.ProviderJobID,
			"fine_tuned_model", info.FineTunedModel,
		)
	case "cancelled":
		job.Status = models.JobStatusCancelled
		slog.Info("fine-tune cancelled by provider", "job_id", job.ID)
	default:
		job.Status = models.JobStatusFailed
		if info.Error != nil {
			job.ErrorMessage = info.Error.Message
		} else {
			job.ErrorMessage = "provider reported failure"
		}
		slog.Warn("fine-tune failed", "job_id", job.ID, "error", job.ErrorMessage)
	}

	if err := r.db.UpdateFineTuneJob(ctx, job); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	r.announce(ctx, job)
	return nil
}

// transition persists the job (including any fields set since the last
// write), publishes the status event and counts the transition.
func (r *Runner) transition(ctx context.Context, job *models.FineTuneJob, status models.JobStatus) error {
	job.Status = status
	if err := r.db.UpdateFineTuneJob(ctx, job); err != nil {
		return fmt.Errorf("update job to %s: %w", status, err)
	}
	r.announce(ctx, job)
	return nil
}

func (r *Runner) failPermanently(ctx context.Context, job *models.FineTuneJob, cause error) error {
	job.Status = models.JobStatusFailed
	job.ErrorMessage = cause.Error()
	if err := r.db.UpdateFineTuneJob(ctx, job); err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	r.announce(ctx, job)
	slog.Warn("fine-tune job failed", "job_id", job.ID, "error", cause)
	return nil
}

func (r *Runner) announce(ctx context.Context, job *models.FineTuneJob) {
	observability.JobTransitions.WithLabelValues(string(job.Status)).Inc()

	event := models.MemoryEvent{
		Type:       models.EventJobStatus,
		JobID:      &job.ID,
		JobStatus:  job.Status,
		OccurredAt: time.Now().UTC(),
	}
	if err := r.producer.PublishEvent(ctx, event); err != nil {
		slog.Warn("publish job status event", "job_id", job.ID, "status", job.Status, "error", err)
	}
}
