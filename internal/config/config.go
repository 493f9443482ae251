package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/models"
)

// Source describes one configured knowledge document. Protocol-tier sources
// carry the disorder category they cover; core sources do not.
type Source struct {
	ID       string `yaml:"id"`
	Path     string `yaml:"path"`
	Title    string `yaml:"title"`
	Tier     string `yaml:"tier"`
	Category string `yaml:"category,omitempty"`
}

// EmbedderConfig configures the OpenAI-compatible embedding endpoint.
type EmbedderConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	Model          string `yaml:"model"`
	RetryAttempts  int    `yaml:"retry_attempts"`
	RetryDelaySecs int    `yaml:"retry_delay_secs"`
}

// RetryDelay is the fixed pause between embedding attempts.
func (c EmbedderConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySecs) * time.Second
}

// RAGConfig controls chunking during ingestion.
type RAGConfig struct {
	ChunkSize     int `yaml:"chunk_size"`
	MinChunkChars int `yaml:"min_chunk_chars"`
}

// ServerConfig configures the retrieval HTTP server.
type ServerConfig struct {
	Addr               string `yaml:"addr"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs"`
}

// RequestTimeout is the per-request deadline applied around retrieval.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

type Config struct {
	StorePath string         `yaml:"store_path"`
	Server    ServerConfig   `yaml:"server"`
	Embedder  EmbedderConfig `yaml:"embedder"`
	RAG       RAGConfig      `yaml:"rag"`
	Sources   []Source       `yaml:"sources"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.StorePath == "" {
		cfg.StorePath = "data/knowledge.json"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RequestTimeoutSecs == 0 {
		cfg.Server.RequestTimeoutSecs = 15
	}
	if cfg.Embedder.BaseURL == "" {
		cfg.Embedder.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedder.APIKeyEnv == "" {
		cfg.Embedder.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = "text-embedding-3-small"
	}
	if cfg.Embedder.RetryAttempts == 0 {
		cfg.Embedder.RetryAttempts = 3
	}
	if cfg.Embedder.RetryDelaySecs == 0 {
		cfg.Embedder.RetryDelaySecs = 2
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 1000
	}
	if cfg.RAG.MinChunkChars == 0 {
		cfg.RAG.MinChunkChars = 100
	}
}

func (cfg *Config) validate() error {
	seen := make(map[string]bool, len(cfg.Sources))
	for _, src := range cfg.Sources {
		if src.ID == "" || src.Path == "" {
			return fmt.Errorf("source %q: id and path are required", src.ID)
		}
		if seen[src.ID] {
			return fmt.Errorf("duplicate source id %q", src.ID)
		}
		seen[src.ID] = true
		switch src.Tier {
		case models.TierCore:
			if src.Category != "" {
				return fmt.Errorf("source %q: category is only valid on protocol sources", src.ID)
			}
		case models.TierProtocol:
			if src.Category == "" {
				return fmt.Errorf("source %q: protocol sources require a category", src.ID)
			}
		default:
			return fmt.Errorf("source %q: unknown tier %q", src.ID, src.Tier)
		}
	}
	return nil
}

// APIKey resolves the embedding credential from the environment. The key is
// required at startup, not lazily on first request.
func (cfg *Config) APIKey() (string, error) {
	key := os.Getenv(cfg.Embedder.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("missing API key: set %s", cfg.Embedder.APIKeyEnv)
	}
	return key, nil
}
