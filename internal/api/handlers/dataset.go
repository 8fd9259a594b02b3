package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/theaipetcompany/memory-management-sub000/internal/dataset"
	"github.com/theaipetcompany/memory-management-sub000/internal/models"
	"github.com/theaipetcompany/memory-management-sub000/internal/storage"
	"github.com/theaipetcompany/memory-management-sub000/pkg/dto"
)

type DatasetHandler struct {
	db    *storage.PostgresStore
	minio *storage.MinIOStore
}

func NewDatasetHandler(db *storage.PostgresStore, minio *storage.MinIOStore) *DatasetHandler {
	return &DatasetHandler{db: db, minio: minio}
}

// Upload validates an image against the training-data rules, stores the
// bytes in object storage and records the metadata row. An annotation may
// be supplied up front or added later via PATCH.
func (h *DatasetHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	info, err := dataset.ValidateImage(data)
	if err != nil {
		var verr *dataset.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message, "reason": string(verr.Reason)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	img := &models.DatasetImage{
		ID:          uuid.New(),
		Filename:    header.Filename,
		ContentType: info.ContentType,
		SizeBytes:   int64(len(data)),
		Width:       info.Width,
		Height:      info.Height,
		Annotation:  c.PostForm("annotation"),
	}
	img.ObjectKey = storage.DatasetImageKey(img.ID)

	if err := h.minio.PutObject(c.Request.Context(), img.ObjectKey, data, info.ContentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.db.CreateDatasetImage(c.Request.Context(), img); err != nil {
		// Roll back the object so a failed insert does not strand bytes.
		if derr := h.minio.DeleteObject(c.Request.Context(), img.ObjectKey); derr != nil {
			slog.Warn("remove dataset object after insert failure", "key", img.ObjectKey, "error", derr)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, toDatasetImageResponse(img))
}

func (h *DatasetHandler) List(c *gin.Context) {
	annotatedOnly := c.Query("annotated") == "true"

	images, err := h.db.ListDatasetImages(c.Request.Context(), annotatedOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := dto.DatasetImageListResponse{
		Images: make([]dto.DatasetImageResponse, 0, len(images)),
		Total:  len(images),
	}
	for i := range images {
		resp.Images = append(resp.Images, toDatasetImageResponse(&images[i]))
	}

	c.JSON(http.StatusOK, resp)
}

func (h *DatasetHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image id"})
		return
	}

	img, err := h.db.GetDatasetImage(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if img == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}

	c.JSON(http.StatusOK, toDatasetImageResponse(img))
}

// Content streams the raw image bytes with the stored content type.
func (h *DatasetHandler) Content(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image id"})
		return
	}

	img, err := h.db.GetDatasetImage(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if img == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}

	data, err := h.minio.GetObject(c.Request.Context(), img.ObjectKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, img.ContentType, data)
}

func (h *DatasetHandler) UpdateAnnotation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image id"})
		return
	}

	var req dto.UpdateAnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	img, err := h.db.UpdateDatasetImageAnnotation(c.Request.Context(), id, req.Annotation)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toDatasetImageResponse(img))
}

func (h *DatasetHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image id"})
		return
	}

	img, err := h.db.GetDatasetImage(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if img == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}

	if err := h.db.DeleteDatasetImage(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.minio.DeleteObject(c.Request.Context(), img.ObjectKey); err != nil {
		slog.Warn("delete dataset object", "key", img.ObjectKey, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func toDatasetImageResponse(img *models.DatasetImage) dto.DatasetImageResponse {
	return dto.DatasetImageResponse{
		ID:          img.ID,
		Filename:    img.Filename,
		ContentType: img.ContentType,
		SizeBytes:   img.SizeBytes,
		Width:       img.Width,
		Height:      img.Height,
		Annotation:  img.Annotation,
		ContentURL:  "/v1/dataset/images/" + img.ID.String() + "/content",
		CreatedAt:   img.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   img.UpdatedAt.Format(time.RFC3339),
	}
}
