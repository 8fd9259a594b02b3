package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/theaipetcompany/memory-management-sub000/internal/api/handlers"
	"github.com/theaipetcompany/memory-management-sub000/internal/api/ws"
	"github.com/theaipetcompany/memory-management-sub000/internal/auth"
	"github.com/theaipetcompany/memory-management-sub000/internal/config"
	"github.com/theaipetcompany/memory-management-sub000/internal/embedding"
	"github.com/theaipetcompany/memory-management-sub000/internal/memory"
	"github.com/theaipetcompany/memory-management-sub000/internal/provider"
	"github.com/theaipetcompany/memory-management-sub000/internal/queue"
	"github.com/theaipetcompany/memory-management-sub000/internal/storage"
)

type RouterConfig struct {
	APIKey        string
	DB            *storage.PostgresStore
	MinIO         *storage.MinIOStore
	Producer      *queue.Producer
	Hub           *ws.Hub
	Engine        *memory.Engine
	Embedder      embedding.Embedder
	Provider      *provider.Client
	Recognition   config.RecognitionConfig
	EmbeddingDim  int
	FineTuneModel string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Entries & Interactions
	entryH := handlers.NewEntryHandler(cfg.DB, cfg.MinIO, cfg.Producer, cfg.EmbeddingDim)
	v1.POST("/entries", entryH.Create)
	v1.GET("/entries", entryH.List)
	v1.GET("/entries/:id", entryH.Get)
	v1.PATCH("/entries/:id", entryH.Update)
	v1.DELETE("/entries/:id", entryH.Delete)
	v1.POST("/entries/:id/interactions", entryH.CreateInteraction)
	v1.GET("/entries/:id/interactions", entryH.ListInteractions)

	// Recognition
	recH := handlers.NewRecognitionHandler(cfg.DB, cfg.MinIO, cfg.Producer,
		cfg.Engine, cfg.Embedder, cfg.Recognition.Threshold, cfg.Recognition.TopK)
	v1.POST("/recognition/identify", recH.Identify)
	v1.POST("/recognition/learn", recH.Learn)
	v1.POST("/recognition/search", recH.Search)

	// Dataset curation
	datasetH := handlers.NewDatasetHandler(cfg.DB, cfg.MinIO)
	v1.POST("/dataset/images", datasetH.Upload)
	v1.GET("/dataset/images", datasetH.List)
	v1.GET("/dataset/images/:id", datasetH.Get)
	v1.GET("/dataset/images/:id/content", datasetH.Content)
	v1.PATCH("/dataset/images/:id", datasetH.UpdateAnnotation)
	v1.DELETE("/dataset/images/:id", datasetH.Delete)

	// Fine-tune jobs
	jobH := handlers.NewJobHandler(cfg.DB, cfg.Producer, cfg.Provider, cfg.FineTuneModel)
	v1.POST("/finetune/jobs", jobH.Create)
	v1.GET("/finetune/jobs", jobH.List)
	v1.GET("/finetune/jobs/:id", jobH.Get)
	v1.POST("/finetune/jobs/:id/cancel", jobH.Cancel)

	return r
}
