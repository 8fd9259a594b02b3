package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	NATS        NATSConfig        `yaml:"nats"`
	MinIO       MinIOConfig       `yaml:"minio"`
	Provider    ProviderConfig    `yaml:"provider"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Dataset     DatasetConfig     `yaml:"dataset"`
	Worker      WorkerConfig      `yaml:"worker"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// ProviderConfig configures the OpenAI-compatible API used for image
// embeddings and vision fine-tuning.
type ProviderConfig struct {
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	FineTuneModel  string        `yaml:"fine_tune_model"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	UploadTimeout  time.Duration `yaml:"upload_timeout"`
	RatePerSecond  float64       `yaml:"rate_per_second"`
	RateBurst      int           `yaml:"rate_burst"`
}

type EmbeddingConfig struct {
	// Provider selects the embedding backend: "openai" or "local".
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Dim       int    `yaml:"dim"`
	ModelPath string `yaml:"model_path"`
}

type RecognitionConfig struct {
	Threshold float64 `yaml:"threshold"`
	TopK      int     `yaml:"top_k"`
}

type DatasetConfig struct {
	// SystemPrompt is the system message prepended to every training record.
	SystemPrompt string `yaml:"system_prompt"`
}

type WorkerConfig struct {
	Concurrency  int           `yaml:"concurrency"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "https://api.openai.com"
	}
	if cfg.Provider.FineTuneModel == "" {
		cfg.Provider.FineTuneModel = "gpt-4o-2024-08-06"
	}
	if cfg.Provider.RequestTimeout == 0 {
		cfg.Provider.RequestTimeout = 30 * time.Second
	}
	if cfg.Provider.UploadTimeout == 0 {
		cfg.Provider.UploadTimeout = 5 * time.Minute
	}
	if cfg.Provider.RatePerSecond == 0 {
		cfg.Provider.RatePerSecond = 5
	}
	if cfg.Provider.RateBurst == 0 {
		cfg.Provider.RateBurst = 10
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "vision-embedding-3"
	}
	if cfg.Embedding.Dim == 0 {
		cfg.Embedding.Dim = 768
	}
	if cfg.Recognition.Threshold == 0 {
		cfg.Recognition.Threshold = 0.6
	}
	if cfg.Recognition.TopK == 0 {
		cfg.Recognition.TopK = 5
	}
	if cfg.Dataset.SystemPrompt == "" {
		cfg.Dataset.SystemPrompt = "You are a vision assistant for an AI pet. Describe who and what you see."
	}
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = 2
	}
	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = 30 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	switch cfg.Embedding.Provider {
	case "openai", "local":
	default:
		return fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Provider == "local" && cfg.Embedding.ModelPath == "" {
		return fmt.Errorf("embedding.model_path is required for the local provider")
	}
	if cfg.Embedding.Dim <= 0 {
		return fmt.Errorf("embedding.dim must be positive, got %d", cfg.Embedding.Dim)
	}
	if cfg.Recognition.Threshold < -1 || cfg.Recognition.Threshold > 1 {
		return fmt.Errorf("recognition.threshold %v outside [-1, 1]", cfg.Recognition.Threshold)
	}
	if cfg.Recognition.TopK <= 0 {
		return fmt.Errorf("recognition.top_k must be positive, got %d", cfg.Recognition.TopK)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FACEMEM_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FACEMEM_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("FACEMEM_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FACEMEM_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FACEMEM_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FACEMEM_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FACEMEM_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FACEMEM_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("FACEMEM_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("FACEMEM_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("FACEMEM_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("FACEMEM_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("FACEMEM_PROVIDER_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("FACEMEM_PROVIDER_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("FACEMEM_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("FACEMEM_EMBEDDING_MODEL_PATH"); v != "" {
		cfg.Embedding.ModelPath = v
	}
	if v := os.Getenv("FACEMEM_EMBEDDING_DIM"); v != "" {
		if dim, err := strconv.Atoi(v); err == nil {
			cfg.Embedding.Dim = dim
		}
	}
	if v := os.Getenv("FACEMEM_RECOGNITION_THRESHOLD"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Recognition.Threshold = t
		}
	}
}
