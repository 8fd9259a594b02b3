package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/theaipetcompany/memory-management-sub000/internal/embedding"
	"github.com/theaipetcompany/memory-management-sub000/internal/memory"
	"github.com/theaipetcompany/memory-management-sub000/internal/models"
	"github.com/theaipetcompany/memory-management-sub000/internal/observability"
	"github.com/theaipetcompany/memory-management-sub000/internal/queue"
	"github.com/theaipetcompany/memory-management-sub000/internal/storage"
	"github.com/theaipetcompany/memory-management-sub000/pkg/dto"
)

type RecognitionHandler struct {
	db        *storage.PostgresStore
	minio     *storage.MinIOStore
	producer  *queue.Producer
	engine    *memory.Engine
	embedder  embedding.Embedder
	threshold float64
	topK      int
}

func NewRecognitionHandler(db *storage.PostgresStore, minio *storage.MinIOStore, producer *queue.Producer,
	engine *memory.Engine, embedder embedding.Embedder, threshold float64, topK int) *RecognitionHandler {
	return &RecognitionHandler{
		db:        db,
		minio:     minio,
		producer:  producer,
		engine:    engine,
		embedder:  embedder,
		threshold: threshold,
		topK:      topK,
	}
}

// Identify matches an uploaded face against the remembered entries. A
// positive match records a recognition interaction and bumps the entry's
// counters.
func (h *RecognitionHandler) Identify(c *gin.Context) {
	imageData, ok := h.readImage(c)
	if !ok {
		return
	}

	query, err := h.embedder.Embed(c.Request.Context(), imageData)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "extract face embedding: " + err.Error()})
		return
	}

	start := time.Now()
	rec, err := h.engine.Recognize(c.Request.Context(), query, h.threshold)
	observability.SimilaritySearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		h.searchError(c, err)
		return
	}

	if !rec.Recognized {
		observability.RecognitionsTotal.WithLabelValues("unrecognized").Inc()
		c.JSON(http.StatusOK, dto.IdentifyResponse{
			Recognized: false,
			Confidence: rec.Confidence,
		})
		return
	}
	observability.RecognitionsTotal.WithLabelValues("recognized").Inc()

	matched := rec.Match.Entry
	entry, err := h.db.TouchInteraction(c.Request.Context(), matched.ID)
	if err != nil {
		slog.Warn("touch entry after recognition", "entry_id", matched.ID, "error", err)
		entry = &matched
	}

	interaction := &models.Interaction{
		EntryID: matched.ID,
		Kind:    models.InteractionRecognition,
	}
	if err := h.db.CreateInteraction(c.Request.Context(), interaction); err != nil {
		slog.Warn("record recognition interaction", "entry_id", matched.ID, "error", err)
	}

	event := models.MemoryEvent{
		Type:       models.EventFaceRecognized,
		EntryID:    &entry.ID,
		EntryName:  entry.Name,
		Similarity: rec.Confidence,
		OccurredAt: time.Now().UTC(),
	}
	if err := h.producer.PublishEvent(c.Request.Context(), event); err != nil {
		slog.Warn("publish recognition event", "entry_id", entry.ID, "error", err)
	}

	resp := toEntryResponse(entry)
	c.JSON(http.StatusOK, dto.IdentifyResponse{
		Recognized: true,
		Confidence: rec.Confidence,
		Entry:      &resp,
	})
}

// Learn creates a new entry from an uploaded face image and a name.
func (h *RecognitionHandler) Learn(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	category := models.CategoryFriend
	if v := c.PostForm("category"); v != "" {
		category = models.Category(v)
		if !models.ValidCategory(category) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category " + v})
			return
		}
	}

	embeddingVec, err := h.embedder.Embed(c.Request.Context(), imageData)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "extract face embedding: " + err.Error()})
		return
	}

	entry := &models.Entry{
		Name:        name,
		Embedding:   embeddingVec,
		Category:    category,
		Tags:        c.PostFormArray("tags"),
		Preferences: c.PostFormArray("preferences"),
	}
	if err := h.db.CreateEntry(c.Request.Context(), entry); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// The entry is learned once the row exists; archiving the source image
	// is best effort.
	imageKey := "faces/" + entry.ID.String() + "/" + uuid.New().String() + "_" + header.Filename
	if err := h.minio.PutObject(c.Request.Context(), imageKey, imageData, header.Header.Get("Content-Type")); err != nil {
		slog.Warn("store face image", "entry_id", entry.ID, "error", err)
		imageKey = ""
	}

	event := models.MemoryEvent{
		Type:       models.EventEntryLearned,
		EntryID:    &entry.ID,
		EntryName:  entry.Name,
		OccurredAt: time.Now().UTC(),
	}
	if err := h.producer.PublishEvent(c.Request.Context(), event); err != nil {
		slog.Warn("publish learn event", "entry_id", entry.ID, "error", err)
	}

	c.JSON(http.StatusCreated, dto.LearnResponse{
		Entry:    toEntryResponse(entry),
		ImageKey: imageKey,
	})
}

// Search ranks remembered entries against a query embedding. The query
// arrives either as a raw vector in a JSON body or as a multipart image.
func (h *RecognitionHandler) Search(c *gin.Context) {
	opts := memory.SearchOptions{Threshold: h.threshold, TopK: h.topK}
	var query []float32

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		imageData, ok := h.readImage(c)
		if !ok {
			return
		}
		embeddingVec, err := h.embedder.Embed(c.Request.Context(), imageData)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "extract face embedding: " + err.Error()})
			return
		}
		query = embeddingVec

		if v := c.PostForm("threshold"); v != "" {
			t, err := strconv.ParseFloat(v, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid threshold"})
				return
			}
			opts.Threshold = t
		}
		if v := c.PostForm("top_k"); v != "" {
			k, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid top_k"})
				return
			}
			opts.TopK = k
		}
	} else {
		var req dto.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		query = req.Embedding
		if req.Threshold != nil {
			opts.Threshold = *req.Threshold
		}
		if req.TopK > 0 {
			opts.TopK = req.TopK
		}
		for _, cat := range req.Categories {
			opts.Categories = append(opts.Categories, models.Category(cat))
		}
		opts.ExcludeIDs = req.ExcludeIDs
	}

	start := time.Now()
	results, err := h.engine.FindSimilar(c.Request.Context(), query, opts)
	observability.SimilaritySearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		h.searchError(c, err)
		return
	}

	resp := make([]dto.SearchResult, 0, len(results))
	for i := range results {
		resp = append(resp, dto.SearchResult{
			EntryID:    results[i].ID,
			Similarity: results[i].Similarity,
			Entry:      toEntryResponse(&results[i].Entry),
		})
	}

	c.JSON(http.StatusOK, dto.SearchResponse{Results: resp})
}

func (h *RecognitionHandler) readImage(c *gin.Context) ([]byte, bool) {
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return nil, false
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return nil, false
	}
	return imageData, true
}

func (h *RecognitionHandler) searchError(c *gin.Context, err error) {
	if errors.Is(err, memory.ErrEmptyQuery) || errors.Is(err, memory.ErrNonFiniteQuery) || errors.Is(err, memory.ErrInvalidTopK) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
