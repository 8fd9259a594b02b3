package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/theaipetcompany/memory-management-sub000/internal/models"
	"github.com/theaipetcompany/memory-management-sub000/internal/queue"
	"github.com/theaipetcompany/memory-management-sub000/internal/storage"
	"github.com/theaipetcompany/memory-management-sub000/pkg/dto"
)

type EntryHandler struct {
	db           *storage.PostgresStore
	minio        *storage.MinIOStore
	producer     *queue.Producer
	embeddingDim int
}

func NewEntryHandler(db *storage.PostgresStore, minio *storage.MinIOStore, producer *queue.Producer, embeddingDim int) *EntryHandler {
	return &EntryHandler{db: db, minio: minio, producer: producer, embeddingDim: embeddingDim}
}

func (h *EntryHandler) Create(c *gin.Context) {
	var req dto.CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validateEmbedding(req.Embedding, h.embeddingDim); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry := &models.Entry{
		Name:        req.Name,
		Embedding:   req.Embedding,
		Category:    models.Category(req.Category),
		Tags:        req.Tags,
		Preferences: req.Preferences,
	}
	if err := h.db.CreateEntry(c.Request.Context(), entry); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, toEntryResponse(entry))
}

func (h *EntryHandler) List(c *gin.Context) {
	entries, err := h.db.ListEntries(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.EntryResponse, 0, len(entries))
	for i := range entries {
		resp = append(resp, toEntryResponse(&entries[i]))
	}

	c.JSON(http.StatusOK, dto.EntryListResponse{Entries: resp, Total: len(resp)})
}

func (h *EntryHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return
	}

	entry, err := h.db.GetEntry(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}

	c.JSON(http.StatusOK, toEntryResponse(entry))
}

func (h *EntryHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return
	}

	var req dto.UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := storage.UpdateEntryParams{
		Name:        req.Name,
		Tags:        req.Tags,
		Preferences: req.Preferences,
	}
	if req.Category != nil {
		cat := models.Category(*req.Category)
		params.Category = &cat
	}

	entry, err := h.db.UpdateEntry(c.Request.Context(), id, params)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toEntryResponse(entry))
}

func (h *EntryHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return
	}

	if err := h.db.DeleteEntry(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Best effort: the entry is gone even if its face images linger.
	go h.cleanupFaceImages(id)

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// cleanupFaceImages runs detached from the request context so the delete
// finishes even after the response is written.
func (h *EntryHandler) cleanupFaceImages(entryID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	keys, err := h.minio.ListObjects(ctx, "faces/"+entryID.String()+"/")
	if err != nil {
		slog.Warn("list face images for cleanup", "entry_id", entryID, "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := h.minio.DeleteObjects(ctx, keys); err != nil {
		slog.Warn("delete face images", "entry_id", entryID, "error", err)
	}
}

func (h *EntryHandler) CreateInteraction(c *gin.Context) {
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return
	}

	var req dto.CreateInteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.db.GetEntry(c.Request.Context(), entryID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}

	interaction := &models.Interaction{
		EntryID:           entryID,
		Kind:              models.InteractionKind(req.Kind),
		Context:           req.Context,
		GeneratedResponse: req.GeneratedResponse,
		Emotion:           req.Emotion,
		Actions:           req.Actions,
	}
	if err := h.db.CreateInteraction(c.Request.Context(), interaction); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.db.TouchInteraction(c.Request.Context(), entryID); err != nil {
		slog.Warn("touch entry after interaction", "entry_id", entryID, "error", err)
	}

	event := models.MemoryEvent{
		Type:          models.EventInteractionRecorded,
		EntryID:       &entryID,
		EntryName:     entry.Name,
		InteractionID: &interaction.ID,
		OccurredAt:    time.Now().UTC(),
	}
	if err := h.producer.PublishEvent(c.Request.Context(), event); err != nil {
		slog.Warn("publish interaction event", "entry_id", entryID, "error", err)
	}

	c.JSON(http.StatusCreated, toInteractionResponse(interaction))
}

func (h *EntryHandler) ListInteractions(c *gin.Context) {
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return
	}

	var query dto.InteractionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.db.GetEntry(c.Request.Context(), entryID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}

	interactions, total, err := h.db.ListInteractions(c.Request.Context(), entryID, query.Limit, query.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.InteractionResponse, 0, len(interactions))
	for i := range interactions {
		resp = append(resp, toInteractionResponse(&interactions[i]))
	}

	c.JSON(http.StatusOK, dto.InteractionListResponse{Interactions: resp, Total: total})
}

func validateEmbedding(embedding []float32, dim int) error {
	if len(embedding) != dim {
		return fmt.Errorf("embedding must have %d dimensions, got %d", dim, len(embedding))
	}
	for _, v := range embedding {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("embedding contains non-finite values")
		}
	}
	return nil
}

func toEntryResponse(e *models.Entry) dto.EntryResponse {
	return dto.EntryResponse{
		ID:               e.ID,
		Name:             e.Name,
		FirstMet:         e.FirstMet.Format(time.RFC3339),
		LastSeen:         e.LastSeen.Format(time.RFC3339),
		InteractionCount: e.InteractionCount,
		Category:         string(e.Category),
		Tags:             e.Tags,
		Preferences:      e.Preferences,
		CreatedAt:        e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        e.UpdatedAt.Format(time.RFC3339),
	}
}

func toInteractionResponse(in *models.Interaction) dto.InteractionResponse {
	return dto.InteractionResponse{
		ID:                in.ID,
		EntryID:           in.EntryID,
		Kind:              string(in.Kind),
		Context:           in.Context,
		GeneratedResponse: in.GeneratedResponse,
		Emotion:           in.Emotion,
		Actions:           in.Actions,
		CreatedAt:         in.CreatedAt.Format(time.RFC3339),
	}
}
