package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP/websocket listener.
type ServerConfig struct {
	Addr          string `yaml:"addr"`
	Mode          string `yaml:"mode"` // dev | prod
	AdminTokenEnv string `yaml:"admin_token_env"`
}

// EmbedderConfig configures the OpenAI-compatible embeddings provider.
type EmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// ChunkerConfig bounds the splitter output.
type ChunkerConfig struct {
	MaxChunkChars int `yaml:"max_chunk_chars"`
	MinAlnumChars int `yaml:"min_alnum_chars"`
}

// VectorStoreConfig selects and configures the vector store backend.
type VectorStoreConfig struct {
	Type          string `yaml:"type"` // postgres | memory
	DatabaseURL   string `yaml:"database_url"`
	DatabaseEnv   string `yaml:"database_env"`
	VectorDim     int    `yaml:"vector_dim"`
	MaxConns      int    `yaml:"max_conns"`
	MigrateOnBoot bool   `yaml:"migrate_on_boot"`
}

// RetrievalConfig holds search parameters for typed and voice turns.
type RetrievalConfig struct {
	TopK          int     `yaml:"top_k"`
	MinSimilarity float64 `yaml:"min_similarity"`
	VoiceTopK     int     `yaml:"voice_top_k"`
	VoiceMinSim   float64 `yaml:"voice_min_similarity"`
}

// IngestConfig gates raw input.
type IngestConfig struct {
	MinRawChars int `yaml:"min_raw_chars"`
}

// SessionConfig bounds the conversational orchestrator.
type SessionConfig struct {
	PatienceSecs int `yaml:"patience_secs"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Session     SessionConfig     `yaml:"session"`
}

// Load reads a config from a specified path. If the file does not
// exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then
// ~/.config/opsvoice/config.yaml, falling back to defaults.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, "", err
	}
	userPath := filepath.Join(home, ".config", "opsvoice", "config.yaml")
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	return defaultConfig(), "", nil
}

// ResolveDatabaseURL resolves the store DSN, preferring the configured
// env variable over the inline value.
func (c *VectorStoreConfig) ResolveDatabaseURL() string {
	if c.DatabaseEnv != "" {
		if v := os.Getenv(c.DatabaseEnv); v != "" {
			return v
		}
	}
	return c.DatabaseURL
}

// AdminToken resolves the shared ingestion secret; empty disables the
// check.
func (c *ServerConfig) AdminToken() string {
	if c.AdminTokenEnv == "" {
		return ""
	}
	return os.Getenv(c.AdminTokenEnv)
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "dev"
	}
	if cfg.Server.AdminTokenEnv == "" {
		cfg.Server.AdminTokenEnv = "OPSVOICE_ADMIN_TOKEN"
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
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 30
	}
	if cfg.Embedder.MaxRetries == 0 {
		cfg.Embedder.MaxRetries = 5
	}
	if cfg.Chunker.MaxChunkChars == 0 {
		cfg.Chunker.MaxChunkChars = 1200
	}
	if cfg.Chunker.MinAlnumChars == 0 {
		cfg.Chunker.MinAlnumChars = 40
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.DatabaseEnv == "" {
		cfg.VectorStore.DatabaseEnv = "DATABASE_URL"
	}
	if cfg.VectorStore.VectorDim == 0 {
		cfg.VectorStore.VectorDim = 1536
	}
	if cfg.VectorStore.MaxConns == 0 {
		cfg.VectorStore.MaxConns = 8
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 6
	}
	if cfg.Retrieval.MinSimilarity == 0 {
		cfg.Retrieval.MinSimilarity = 0.6
	}
	if cfg.Retrieval.VoiceTopK == 0 {
		cfg.Retrieval.VoiceTopK = 8
	}
	if cfg.Retrieval.VoiceMinSim == 0 {
		cfg.Retrieval.VoiceMinSim = 0.35
	}
	if cfg.Ingest.MinRawChars == 0 {
		cfg.Ingest.MinRawChars = 50
	}
	if cfg.Session.PatienceSecs == 0 {
		cfg.Session.PatienceSecs = 8
	}
}
