// ABOUTME: Centralized configuration for the archlogic pipeline and agent
// ABOUTME: Loads from environment variables with validation and defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all configuration for the pipeline, indexes and agent
type Config struct {
	// OpenAI settings
	OpenAIKey      string
	TextModel      string
	VisionModel    string
	EmbeddingModel string
	EmbeddingDim   int
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration

	// Qdrant settings
	QdrantURL    string
	QdrantAPIKey string
	Collection   string

	// Replicate settings (image embeddings)
	ReplicateToken string
	ReplicateModel string
	ImageWorkers   int

	// Dataset layout
	DataRoot string

	// Retrieval settings
	TopK int

	// Clustering settings
	ClusterMaxDepth int
	ClusterMinNodes int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		TextModel:      getEnv("ARCHLOGIC_TEXT_MODEL", "gpt-4o-mini"),
		VisionModel:    getEnv("ARCHLOGIC_VISION_MODEL", "gpt-4o"),
		EmbeddingModel: getEnv("ARCHLOGIC_EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDim:   getEnvInt("ARCHLOGIC_EMBEDDING_DIM", 512),
		Timeout:        getEnvDuration("OPENAI_TIMEOUT", 120*time.Second),
		MaxRetries:     getEnvInt("OPENAI_MAX_RETRIES", 3),
		RetryDelay:     getEnvDuration("OPENAI_RETRY_DELAY", 2*time.Second),

		QdrantURL:    getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey: os.Getenv("QDRANT_API_KEY"),
		Collection:   getEnv("ARCHLOGIC_COLLECTION", "archlogic"),

		ReplicateToken: os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateModel: getEnv("ARCHLOGIC_IMG_EMBED_MODEL",
			"krthr/clip-embeddings:1c0371070cb827ec3c7f2f28adcdde54b50dcd239aa6faea0bc98b174ef03fb4"),
		ImageWorkers: getEnvInt("ARCHLOGIC_IMG_WORKERS", 4),

		DataRoot: getEnv("ARCHLOGIC_DATA_ROOT", filepath.Join("data", "wikiarch")),

		TopK: getEnvInt("ARCHLOGIC_TOP_K", 10),

		ClusterMaxDepth: getEnvInt("ARCHLOGIC_CLUSTER_MAX_DEPTH", 2),
		ClusterMinNodes: getEnvInt("ARCHLOGIC_CLUSTER_MIN_NODES", 10),
	}

	return cfg, cfg.Validate()
}

// Validate checks bounds on the numeric settings. API keys are not checked
// here; operations that need a key call RequireOpenAI/RequireReplicate so the
// offline commands keep working without one.
func (c *Config) Validate() error {
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("OPENAI_MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("ARCHLOGIC_EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("ARCHLOGIC_TOP_K must be positive, got %d", c.TopK)
	}
	if c.ImageWorkers <= 0 {
		return fmt.Errorf("ARCHLOGIC_IMG_WORKERS must be positive, got %d", c.ImageWorkers)
	}
	return nil
}

// RequireOpenAI fails when no OpenAI key is configured
func (c *Config) RequireOpenAI() error {
	if c.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set")
	}
	return nil
}

// RequireReplicate fails when no Replicate token is configured
func (c *Config) RequireReplicate() error {
	if c.ReplicateToken == "" {
		return fmt.Errorf("REPLICATE_API_TOKEN is not set")
	}
	return nil
}

// Dataset layout helpers. Everything lives under DataRoot:
//
//	raw/<project>/...        images + description.txt
//	extraction/<project>.json
//	reference/*.json
//	img_index/
//	projects.db

func (c *Config) RawDir() string        { return filepath.Join(c.DataRoot, "raw") }
func (c *Config) ExtractionDir() string { return filepath.Join(c.DataRoot, "extraction") }
func (c *Config) ReferenceDir() string  { return filepath.Join(c.DataRoot, "reference") }
func (c *Config) ImgIndexDir() string   { return filepath.Join(c.DataRoot, "img_index") }
func (c *Config) ProjectDBPath() string { return filepath.Join(c.DataRoot, "projects.db") }

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
