package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  api_key: "secret"
database:
  host: "db.local"
  name: "facemem"
  user: "app"
  password: "pw"
nats:
  url: "nats://broker:4222"
minio:
  endpoint: "minio:9000"
  bucket: "memory"
provider:
  api_key: "sk-test"
  base_url: "https://llm.local"
  fine_tune_model: "gpt-4o-mini"
embedding:
  provider: "openai"
  model: "clip-vit"
  dim: 512
recognition:
  threshold: 0.72
  top_k: 3
worker:
  concurrency: 4
  poll_interval: 15s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Server.APIKey)
	assert.Equal(t, "db.local", cfg.Database.Host)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
	assert.Equal(t, "memory", cfg.MinIO.Bucket)
	assert.Equal(t, "https://llm.local", cfg.Provider.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.Provider.FineTuneModel)
	assert.Equal(t, 512, cfg.Embedding.Dim)
	assert.Equal(t, 0.72, cfg.Recognition.Threshold)
	assert.Equal(t, 3, cfg.Recognition.TopK)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, 15*time.Second, cfg.Worker.PollInterval)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: "localhost"
  name: "facemem"
  user: "app"
  password: "pw"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 20, cfg.Database.MaxConns)
	assert.Equal(t, "https://api.openai.com", cfg.Provider.BaseURL)
	assert.Equal(t, "gpt-4o-2024-08-06", cfg.Provider.FineTuneModel)
	assert.Equal(t, 5*time.Minute, cfg.Provider.UploadTimeout)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 768, cfg.Embedding.Dim)
	assert.Equal(t, 0.6, cfg.Recognition.Threshold)
	assert.Equal(t, 5, cfg.Recognition.TopK)
	assert.NotEmpty(t, cfg.Dataset.SystemPrompt)
	assert.Equal(t, 2, cfg.Worker.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FACEMEM_API_KEY", "env-key")
	t.Setenv("FACEMEM_DB_HOST", "env-db")
	t.Setenv("FACEMEM_RECOGNITION_THRESHOLD", "0.75")

	path := writeConfig(t, `
server:
  api_key: "file-key"
database:
  host: "file-db"
  name: "facemem"
  user: "app"
  password: "pw"
recognition:
  threshold: 0.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Server.APIKey)
	assert.Equal(t, "env-db", cfg.Database.Host)
	assert.Equal(t, 0.75, cfg.Recognition.Threshold)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "unknown embedding provider",
			content: `
embedding:
  provider: "tensorflow"
`,
		},
		{
			name: "local provider without model path",
			content: `
embedding:
  provider: "local"
`,
		},
		{
			name: "threshold out of range",
			content: `
recognition:
  threshold: 1.5
`,
		},
		{
			name: "negative top_k",
			content: `
recognition:
  top_k: -1
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.local",
		Port:     5433,
		Name:     "facemem",
		User:     "app",
		Password: "pw",
	}
	assert.Equal(t, "postgres://app:pw@db.local:5433/facemem?sslmode=disable", cfg.DSN())
}
