// Package config provides configuration loading for vectord.
package config

import (
	"fmt"

	"github.com/plnlabs/vectord/internal/logging"
)

// Config is the root configuration for vectord.
type Config struct {
	Logging    logging.Config   `koanf:"logging"`
	Qdrant     QdrantConfig     `koanf:"qdrant"`
	MinIO      MinIOConfig      `koanf:"minio"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Chunking   ChunkingConfig   `koanf:"chunking"`
}

// QdrantConfig holds connection settings for the Qdrant vector index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string `koanf:"host"`

	// Port is the Qdrant gRPC port (6334), not the HTTP REST port (6333).
	Port int `koanf:"port"`

	// APIKey is optional; empty for local development.
	APIKey string `koanf:"api_key"`

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool `koanf:"use_tls"`

	// RequestTimeoutSeconds bounds each index call.
	RequestTimeoutSeconds int `koanf:"request_timeout_seconds"`

	// MaxRetries is the retry budget for transient failures.
	MaxRetries int `koanf:"max_retries"`
}

// MinIOConfig holds connection settings for the source-document blob store.
type MinIOConfig struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Bucket    string `koanf:"bucket"`
	UseSSL    bool   `koanf:"use_ssl"`
}

// ModelConfig describes one embedding model available to collections.
type ModelConfig struct {
	// Name is a human-readable label ("OpenAI Text Embedding").
	Name string `koanf:"name"`

	// Provider identifies the upstream API family ("openai", "gemini", "tei").
	Provider string `koanf:"provider"`

	// Model is the upstream model identifier sent on the wire.
	Model string `koanf:"model"`

	// Dimension is the declared vector length for this model. It is the
	// single source of truth the dimension reconciler checks collections
	// against.
	Dimension int `koanf:"dimension"`

	// BaseURL is the embedding endpoint base URL.
	BaseURL string `koanf:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `koanf:"api_key_env"`
}

// EmbeddingsConfig holds the embedding model registry.
type EmbeddingsConfig struct {
	// DefaultModel is the model id used when a caller does not name one.
	DefaultModel string `koanf:"default_model"`

	// Models maps model id -> model descriptor.
	Models map[string]ModelConfig `koanf:"models"`

	// RequestTimeoutSeconds bounds each embedding API call.
	RequestTimeoutSeconds int `koanf:"request_timeout_seconds"`
}

// ChunkingConfig controls document splitting before ingest.
type ChunkingConfig struct {
	Size    int `koanf:"size"`
	Overlap int `koanf:"overlap"`
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Qdrant.Host == "" {
		return fmt.Errorf("qdrant: host is required")
	}
	if c.Qdrant.Port <= 0 || c.Qdrant.Port > 65535 {
		return fmt.Errorf("qdrant: invalid port %d", c.Qdrant.Port)
	}
	if len(c.Embeddings.Models) == 0 {
		return fmt.Errorf("embeddings: at least one model must be configured")
	}
	if _, ok := c.Embeddings.Models[c.Embeddings.DefaultModel]; !ok {
		return fmt.Errorf("embeddings: default model %q not in registry", c.Embeddings.DefaultModel)
	}
	for id, m := range c.Embeddings.Models {
		if m.Provider == "" {
			return fmt.Errorf("embeddings: model %q has no provider", id)
		}
		if m.Dimension <= 0 {
			return fmt.Errorf("embeddings: model %q has invalid dimension %d", id, m.Dimension)
		}
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking: size must be positive")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking: overlap %d must be in [0, size)", c.Chunking.Overlap)
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}
	if cfg.Qdrant.RequestTimeoutSeconds == 0 {
		cfg.Qdrant.RequestTimeoutSeconds = 60
	}
	if cfg.Qdrant.MaxRetries == 0 {
		cfg.Qdrant.MaxRetries = 3
	}

	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = "localhost:9000"
	}
	if cfg.MinIO.AccessKey == "" {
		cfg.MinIO.AccessKey = "minioadmin"
	}
	if cfg.MinIO.SecretKey == "" {
		cfg.MinIO.SecretKey = "minioadmin"
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "documents"
	}

	if cfg.Embeddings.DefaultModel == "" {
		cfg.Embeddings.DefaultModel = "openai"
	}
	if cfg.Embeddings.RequestTimeoutSeconds == 0 {
		cfg.Embeddings.RequestTimeoutSeconds = 60
	}
	if len(cfg.Embeddings.Models) == 0 {
		cfg.Embeddings.Models = defaultModels()
	}

	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 1000
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 200
	}
}

// defaultModels returns the built-in embedding model registry.
func defaultModels() map[string]ModelConfig {
	return map[string]ModelConfig{
		"openai": {
			Name:      "OpenAI Text Embedding",
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			Dimension: 1536,
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		"gemini": {
			Name:      "Google Gemini Embedding",
			Provider:  "gemini",
			Model:     "gemini-embedding-001",
			Dimension: 3072,
			BaseURL:   "https://generativelanguage.googleapis.com/v1beta/openai",
			APIKeyEnv: "GEMINI_API_KEY",
		},
	}
}
