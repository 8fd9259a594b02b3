package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/theaipetcompany/memory-management-sub000/internal/config"
	"github.com/theaipetcompany/memory-management-sub000/internal/models"
)

// ErrNotFound is returned by update/delete operations that matched no row.
var ErrNotFound = errors.New("not found")

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the schema. embeddingDim fixes the vector column width;
// changing it after entries exist requires a manual migration.
func (s *PostgresStore) Migrate(ctx context.Context, embeddingDim int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS entries (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			first_met TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
			interaction_count INTEGER NOT NULL DEFAULT 0,
			category TEXT NOT NULL DEFAULT 'friend',
			tags TEXT[] NOT NULL DEFAULT '{}',
			preferences TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, embeddingDim),
		`CREATE TABLE IF NOT EXISTS interactions (
			id UUID PRIMARY KEY,
			entry_id UUID NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			context TEXT NOT NULL DEFAULT '',
			generated_response TEXT NOT NULL DEFAULT '',
			emotion TEXT NOT NULL DEFAULT '',
			actions TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_entry_created
			ON interactions (entry_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS dataset_images (
			id UUID PRIMARY KEY,
			object_key TEXT NOT NULL,
			filename TEXT NOT NULL,
			content_type TEXT NOT NULL,
			size_bytes BIGINT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			annotation TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS finetune_jobs (
			id UUID PRIMARY KEY,
			status TEXT NOT NULL,
			base_model TEXT NOT NULL,
			provider_file_id TEXT NOT NULL DEFAULT '',
			provider_job_id TEXT NOT NULL DEFAULT '',
			example_count INTEGER NOT NULL DEFAULT 0,
			skipped_count INTEGER NOT NULL DEFAULT 0,
			training_file_key TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// --- Entries ---

func (s *PostgresStore) CreateEntry(ctx context.Context, e *models.Entry) error {
	e.ID = uuid.New()
	if e.Category == "" {
		e.Category = models.CategoryFriend
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	if e.Preferences == nil {
		e.Preferences = []string{}
	}
	vec := pgvector.NewVector(e.Embedding)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO entries (id, name, embedding, category, tags, preferences)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING first_met, last_seen, interaction_count, created_at, updated_at`,
		e.ID, e.Name, vec, e.Category, e.Tags, e.Preferences,
	).Scan(&e.FirstMet, &e.LastSeen, &e.InteractionCount, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEntry(ctx context.Context, id uuid.UUID) (*models.Entry, error) {
	e := &models.Entry{}
	var vec pgvector.Vector
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, embedding, first_met, last_seen, interaction_count,
		        category, tags, preferences, created_at, updated_at
		 FROM entries WHERE id = $1`, id,
	).Scan(&e.ID, &e.Name, &vec, &e.FirstMet, &e.LastSeen, &e.InteractionCount,
		&e.Category, &e.Tags, &e.Preferences, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}
	e.Embedding = vec.Slice()
	return e, nil
}

// ListEntries returns every entry including its embedding. This is the
// similarity engine's candidate source; there is deliberately no pagination.
func (s *PostgresStore) ListEntries(ctx context.Context) ([]models.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, embedding, first_met, last_seen, interaction_count,
		        category, tags, preferences, created_at, updated_at
		 FROM entries ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		var e models.Entry
		var vec pgvector.Vector
		if err := rows.Scan(&e.ID, &e.Name, &vec, &e.FirstMet, &e.LastSeen, &e.InteractionCount,
			&e.Category, &e.Tags, &e.Preferences, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Embedding = vec.Slice()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpdateEntryParams carries the optional metadata fields of an entry update.
// Nil fields are left unchanged. The embedding is immutable through this path.
type UpdateEntryParams struct {
	Name        *string
	Category    *models.Category
	Tags        *[]string
	Preferences *[]string
}

func (s *PostgresStore) UpdateEntry(ctx context.Context, id uuid.UUID, p UpdateEntryParams) (*models.Entry, error) {
	set := "updated_at = now()"
	args := []interface{}{id}
	argIdx := 2

	if p.Name != nil {
		set += fmt.Sprintf(", name = $%d", argIdx)
		args = append(args, *p.Name)
		argIdx++
	}
	if p.Category != nil {
		set += fmt.Sprintf(", category = $%d", argIdx)
		args = append(args, *p.Category)
		argIdx++
	}
	if p.Tags != nil {
		set += fmt.Sprintf(", tags = $%d", argIdx)
		args = append(args, *p.Tags)
		argIdx++
	}
	if p.Preferences != nil {
		set += fmt.Sprintf(", preferences = $%d", argIdx)
		args = append(args, *p.Preferences)
		argIdx++
	}

	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`UPDATE entries SET %s WHERE id = $1`, set), args...)
	if err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return s.GetEntry(ctx, id)
}

// TouchInteraction bumps the interaction counter and advances last_seen.
// GREATEST keeps last_seen monotonically non-decreasing even under clock skew.
func (s *PostgresStore) TouchInteraction(ctx context.Context, id uuid.UUID) (*models.Entry, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE entries
		 SET interaction_count = interaction_count + 1,
		     last_seen = GREATEST(last_seen, now()),
		     updated_at = now()
		 WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("touch interaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return s.GetEntry(ctx, id)
}

func (s *PostgresStore) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Interactions ---

func (s *PostgresStore) CreateInteraction(ctx context.Context, in *models.Interaction) error {
	in.ID = uuid.New()
	if in.Actions == nil {
		in.Actions = []string{}
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO interactions (id, entry_id, kind, context, generated_response, emotion, actions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		in.ID, in.EntryID, in.Kind, in.Context, in.GeneratedResponse, in.Emotion, in.Actions,
	).Scan(&in.CreatedAt)
	if err != nil {
		return fmt.Errorf("create interaction: %w", err)
	}
	return nil
}

// ListInteractions returns an entry's interactions newest first.
func (s *PostgresStore) ListInteractions(ctx context.Context, entryID uuid.UUID, limit, offset int) ([]models.Interaction, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM interactions WHERE entry_id = $1`, entryID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count interactions: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, entry_id, kind, context, generated_response, emotion, actions, created_at
		 FROM interactions WHERE entry_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		entryID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	var interactions []models.Interaction
	for rows.Next() {
		var in models.Interaction
		if err := rows.Scan(&in.ID, &in.EntryID, &in.Kind, &in.Context,
			&in.GeneratedResponse, &in.Emotion, &in.Actions, &in.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan interaction: %w", err)
		}
		interactions = append(interactions, in)
	}
	return interactions, total, rows.Err()
}

// --- Dataset images ---

func (s *PostgresStore) CreateDatasetImage(ctx context.Context, img *models.DatasetImage) error {
	// Callers may pre-assign the id; the object key embeds it.
	if img.ID == uuid.Nil {
		img.ID = uuid.New()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO dataset_images (id, object_key, filename, content_type, size_bytes, width, height, annotation)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at, updated_at`,
		img.ID, img.ObjectKey, img.Filename, img.ContentType, img.SizeBytes, img.Width, img.Height, img.Annotation,
	).Scan(&img.CreatedAt, &img.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create dataset image: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDatasetImage(ctx context.Context, id uuid.UUID) (*models.DatasetImage, error) {
	img := &models.DatasetImage{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, object_key, filename, content_type, size_bytes, width, height, annotation, created_at, updated_at
		 FROM dataset_images WHERE id = $1`, id,
	).Scan(&img.ID, &img.ObjectKey, &img.Filename, &img.ContentType, &img.SizeBytes,
		&img.Width, &img.Height, &img.Annotation, &img.CreatedAt, &img.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get dataset image: %w", err)
	}
	return img, nil
}

func (s *PostgresStore) ListDatasetImages(ctx context.Context, annotatedOnly bool) ([]models.DatasetImage, error) {
	query := `SELECT id, object_key, filename, content_type, size_bytes, width, height, annotation, created_at, updated_at
	          FROM dataset_images`
	if annotatedOnly {
		query += ` WHERE annotation <> ''`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list dataset images: %w", err)
	}
	defer rows.Close()

	var images []models.DatasetImage
	for rows.Next() {
		var img models.DatasetImage
		if err := rows.Scan(&img.ID, &img.ObjectKey, &img.Filename, &img.ContentType, &img.SizeBytes,
			&img.Width, &img.Height, &img.Annotation, &img.CreatedAt, &img.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan dataset image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (s *PostgresStore) UpdateDatasetImageAnnotation(ctx context.Context, id uuid.UUID, annotation string) (*models.DatasetImage, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE dataset_images SET annotation = $2, updated_at = now() WHERE id = $1`,
		id, annotation)
	if err != nil {
		return nil, fmt.Errorf("update annotation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return s.GetDatasetImage(ctx, id)
}

func (s *PostgresStore) DeleteDatasetImage(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM dataset_images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete dataset image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Fine-tune jobs ---

func (s *PostgresStore) CreateFineTuneJob(ctx context.Context, job *models.FineTuneJob) error {
	job.ID = uuid.New()
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO finetune_jobs (id, status, base_model)
		 VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
		job.ID, job.Status, job.BaseModel,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create finetune job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFineTuneJob(ctx context.Context, id uuid.UUID) (*models.FineTuneJob, error) {
	job := &models.FineTuneJob{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, status, base_model, provider_file_id, provider_job_id,
		        example_count, skipped_count, training_file_key, error_message, created_at, updated_at
		 FROM finetune_jobs WHERE id = $1`, id,
	).Scan(&job.ID, &job.Status, &job.BaseModel, &job.ProviderFileID, &job.ProviderJobID,
		&job.ExampleCount, &job.SkippedCount, &job.TrainingFileKey, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get finetune job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) ListFineTuneJobs(ctx context.Context) ([]models.FineTuneJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, base_model, provider_file_id, provider_job_id,
		        example_count, skipped_count, training_file_key, error_message, created_at, updated_at
		 FROM finetune_jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list finetune jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.FineTuneJob
	for rows.Next() {
		var job models.FineTuneJob
		if err := rows.Scan(&job.ID, &job.Status, &job.BaseModel, &job.ProviderFileID, &job.ProviderJobID,
			&job.ExampleCount, &job.SkippedCount, &job.TrainingFileKey, &job.ErrorMessage,
			&job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan finetune job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ListRunningFineTuneJobs returns jobs awaiting a provider-side terminal state.
func (s *PostgresStore) ListRunningFineTuneJobs(ctx context.Context) ([]models.FineTuneJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, base_model, provider_file_id, provider_job_id,
		        example_count, skipped_count, training_file_key, error_message, created_at, updated_at
		 FROM finetune_jobs WHERE status = $1 ORDER BY created_at`, models.JobStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("list running finetune jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.FineTuneJob
	for rows.Next() {
		var job models.FineTuneJob
		if err := rows.Scan(&job.ID, &job.Status, &job.BaseModel, &job.ProviderFileID, &job.ProviderJobID,
			&job.ExampleCount, &job.SkippedCount, &job.TrainingFileKey, &job.ErrorMessage,
			&job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan finetune job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) UpdateFineTuneJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE finetune_jobs SET status = $2, error_message = $3, updated_at = now() WHERE id = $1`,
		id, status, errMsg)
	if err != nil {
		return fmt.Errorf("update finetune job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateFineTuneJob writes every worker-mutable field of the job row.
func (s *PostgresStore) UpdateFineTuneJob(ctx context.Context, job *models.FineTuneJob) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE finetune_jobs
		 SET status = $2, provider_file_id = $3, provider_job_id = $4,
		     example_count = $5, skipped_count = $6, training_file_key = $7,
		     error_message = $8, updated_at = now()
		 WHERE id = $1`,
		job.ID, job.Status, job.ProviderFileID, job.ProviderJobID,
		job.ExampleCount, job.SkippedCount, job.TrainingFileKey, job.ErrorMessage)
	if err != nil {
		return fmt.Errorf("update finetune job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
