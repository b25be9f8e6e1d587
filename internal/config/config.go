// Package config loads settings from built-in defaults, an optional YAML file and the
// environment, in that order of precedence (later wins). API keys are read from the
// environment only.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidConfig marks a setting that can never work, e.g. overlap >= chunk size.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMissingCredential marks an API key required by the requested operation.
	ErrMissingCredential = errors.New("missing credential")
)

// DefaultFile is read when present; a missing default file is not an error.
const DefaultFile = "prepme.yaml"

// Store backends.
const (
	BackendLocal  = "local"
	BackendQdrant = "qdrant"
)

// LLMConfig configures answer generation.
type LLMConfig struct {
	APIKey      string  `yaml:"-"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// EmbeddingConfig configures the embedding function. Indexing and retrieval must share it.
type EmbeddingConfig struct {
	APIKey     string `yaml:"-"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
}

// QdrantConfig contains connection details for a Qdrant server.
type QdrantConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig selects and configures the vector store.
type StoreConfig struct {
	Backend    string       `yaml:"backend"`
	Dir        string       `yaml:"dir"`
	Collection string       `yaml:"collection"`
	Qdrant     QdrantConfig `yaml:"qdrant"`
}

// ChunkingConfig configures the splitter. Sizes are in characters.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// Config is the root application configuration.
type Config struct {
	LLM         LLMConfig       `yaml:"llm"`
	Embedding   EmbeddingConfig `yaml:"embedding"`
	Store       StoreConfig     `yaml:"store"`
	Chunking    ChunkingConfig  `yaml:"chunking"`
	DataDir     string          `yaml:"data_dir"`
	TopK        int             `yaml:"top_k"`
	StrictDedup bool            `yaml:"strict_dedup"`
	History     int             `yaml:"history_messages"`
	GitHubToken string          `yaml:"-"`
	LogLevel    string          `yaml:"log_level"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:     "https://openrouter.ai/api/v1",
			Model:       "x-ai/grok-4.1-fast:free",
			Temperature: 0.2,
		},
		Embedding: EmbeddingConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			BatchSize:  500,
		},
		Store: StoreConfig{
			Backend:    BackendLocal,
			Dir:        "./rag_store",
			Collection: "rag_collection",
			Qdrant:     QdrantConfig{Host: "localhost", Port: 6334},
		},
		Chunking: ChunkingConfig{Size: 400, Overlap: 100},
		DataDir:  "./data",
		TopK:     4,
		History:  6,
		LogLevel: "info",
	}
}

// Load builds a Config from defaults, the YAML file at path and the environment.
// An empty path means DefaultFile, which may be absent; an explicit path must exist.
// Load does not validate; call Validate once flags have been applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.loadFile(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			err = nil
		}
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.LLM.APIKey = getEnv("OPENROUTER_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnv("OPENROUTER_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = getEnv("RAG_MODEL", c.LLM.Model)

	c.Embedding.APIKey = getEnv("EMBED_API_KEY", getEnv("OPENAI_API_KEY", c.Embedding.APIKey))
	c.Embedding.BaseURL = getEnv("EMBED_BASE_URL", c.Embedding.BaseURL)
	c.Embedding.Model = getEnv("EMBED_MODEL", c.Embedding.Model)

	c.Store.Backend = strings.ToLower(getEnv("STORE_BACKEND", c.Store.Backend))
	c.Store.Dir = getEnv("STORE_DIR", getEnv("CHROMA_DIR", c.Store.Dir))
	c.Store.Collection = getEnv("COLLECTION", c.Store.Collection)
	c.Store.Qdrant.Host = getEnv("QDRANT_HOST", c.Store.Qdrant.Host)

	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.GitHubToken = getEnv("GITHUB_TOKEN", c.GitHubToken)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	return errors.Join(
		getEnvFloat("RAG_TEMPERATURE", &c.LLM.Temperature),
		getEnvInt("EMBED_DIMENSIONS", &c.Embedding.Dimensions),
		getEnvInt("EMBED_BATCH_SIZE", &c.Embedding.BatchSize),
		getEnvInt("QDRANT_PORT", &c.Store.Qdrant.Port),
		getEnvInt("TOP_K", &c.TopK),
		getEnvInt("CHUNK_SIZE", &c.Chunking.Size),
		getEnvInt("CHUNK_OVERLAP", &c.Chunking.Overlap),
		getEnvInt("HISTORY_MESSAGES", &c.History),
		getEnvBool("DEDUP_STRICT", &c.StrictDedup),
	)
}

// Validate reports settings that can never work. It does not check credentials.
func (c *Config) Validate() error {
	var errs []error
	if c.Chunking.Size <= 0 {
		errs = append(errs, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.Chunking.Size))
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		errs = append(errs, fmt.Errorf("%w: chunk overlap must be in [0, chunk size), got %d", ErrInvalidConfig, c.Chunking.Overlap))
	}
	if c.TopK < 1 {
		errs = append(errs, fmt.Errorf("%w: top-k must be at least 1, got %d", ErrInvalidConfig, c.TopK))
	}
	if c.History < 0 {
		errs = append(errs, fmt.Errorf("%w: history window must not be negative, got %d", ErrInvalidConfig, c.History))
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("%w: embedding dimensions must be positive, got %d", ErrInvalidConfig, c.Embedding.Dimensions))
	}
	switch c.Store.Backend {
	case BackendLocal:
		if c.Store.Dir == "" {
			errs = append(errs, fmt.Errorf("%w: store directory is required for the local backend", ErrInvalidConfig))
		}
	case BackendQdrant:
		if c.Store.Qdrant.Port <= 0 {
			errs = append(errs, fmt.Errorf("%w: invalid qdrant port %d", ErrInvalidConfig, c.Store.Qdrant.Port))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.Store.Backend))
	}
	if c.Store.Collection == "" {
		errs = append(errs, fmt.Errorf("%w: collection name is required", ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

// RequireEmbedding reports a missing embedding API key.
func (c *Config) RequireEmbedding() error {
	if c.Embedding.APIKey == "" {
		return fmt.Errorf("%w: set EMBED_API_KEY or OPENAI_API_KEY", ErrMissingCredential)
	}
	return nil
}

// RequireGeneration reports a missing LLM API key.
func (c *Config) RequireGeneration() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("%w: set OPENROUTER_API_KEY", ErrMissingCredential)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
	}
	*dst = i
	return nil
}

func getEnvFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, key, v)
	}
	*dst = f
	return nil
}

func getEnvBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, key, v)
	}
	*dst = b
	return nil
}
