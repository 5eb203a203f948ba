// Package config provides configuration loading and structs for the InsurePal server and client.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Provider    ProviderConfig    `yaml:"provider"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Client      ClientConfig      `yaml:"client"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// StorageConfig holds local paths. VectorSnapshotPath is only used by the memory vector store.
type StorageConfig struct {
	DatabasePath       string `yaml:"database_path"`
	BleveIndexPath     string `yaml:"bleve_index_path"`
	VectorSnapshotPath string `yaml:"vector_snapshot_path"`
	TempDir            string `yaml:"temp_dir"`
}

// ProviderConfig configures the embedding and generation provider.
// Type "openai" talks to an OpenAI-compatible API; "offline" uses deterministic local stand-ins.
type ProviderConfig struct {
	Type           string   `yaml:"type"`
	BaseURL        string   `yaml:"base_url"`
	APIKey         string   `yaml:"api_key"`
	EmbeddingModel string   `yaml:"embedding_model"`
	ChatModel      string   `yaml:"chat_model"`
	Temperature    *float32 `yaml:"temperature"`
	TimeoutSecs    int      `yaml:"timeout_secs"`
	CacheSize      int      `yaml:"cache_size"`
}

// VectorStoreConfig selects and configures the vector index.
type VectorStoreConfig struct {
	Type          string `yaml:"type"`
	IndexName     string `yaml:"index_name"`
	Dimension     int    `yaml:"dimension"`
	Metric        string `yaml:"metric"`
	Cloud         string `yaml:"cloud"`
	Region        string `yaml:"region"`
	APIKey        string `yaml:"api_key"`
	Environment   string `yaml:"environment"`
	ControllerURL string `yaml:"controller_url"`
	// Isolation is "shared" (a single global namespace, the default) or "session"
	// (one namespace per uploading client).
	Isolation string `yaml:"isolation"`
}

// RetrievalConfig holds chunking and query engine settings.
type RetrievalConfig struct {
	TopK           int     `yaml:"top_k"`
	ChunkSize      int     `yaml:"chunk_size"`
	ChunkOverlap   int     `yaml:"chunk_overlap"`
	Hybrid         bool    `yaml:"hybrid"`
	KeywordWeight  float64 `yaml:"keyword_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	// Fuzzy lets hybrid keyword matching tolerate Fuzziness edits per term.
	Fuzzy     bool `yaml:"fuzzy"`
	Fuzziness int  `yaml:"fuzziness"`
	// TitleBoost weights keyword hits in the file name. Values <= 1 disable it.
	TitleBoost float64 `yaml:"title_boost"`
}

// ClientConfig holds settings for the UI client.
type ClientConfig struct {
	BackendURL string `yaml:"backend_url"`
}

const (
	IsolationSession = "session"
	IsolationShared  = "shared"
)

// DefaultTemperature is the sampling temperature when none is configured.
const DefaultTemperature float32 = 0.1

// GenerationTemperature returns the configured temperature, which may be an
// explicit 0, or DefaultTemperature when unset.
func (p ProviderConfig) GenerationTemperature() float32 {
	if p.Temperature == nil {
		return DefaultTemperature
	}
	return *p.Temperature
}

// SharedNamespace reports whether every upload and query uses one global namespace.
func (v *VectorStoreConfig) SharedNamespace() bool {
	return v.Isolation == IsolationShared
}

// Load reads and parses the config file at path, applies defaults and environment
// overrides, and expands storage paths. A missing file is not an error: defaults
// plus environment are used.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.VectorSnapshotPath = expandPath(cfg.Storage.VectorSnapshotPath, configDir)
	if cfg.Storage.TempDir != "" {
		cfg.Storage.TempDir = expandPath(cfg.Storage.TempDir, configDir)
	}
	return &cfg, nil
}

// LoadDotEnv loads variables from the given .env files (default ".env") into the
// process environment without overriding variables that are already set.
// Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

// ApplyEnv overrides provider and vector store credentials from the environment.
// Unset variables leave the config unchanged; nothing is validated here.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("PINECONE_API_KEY"); v != "" {
		cfg.VectorStore.APIKey = v
	}
	if v := os.Getenv("PINECONE_ENVIRONMENT"); v != "" {
		cfg.VectorStore.Environment = v
	}
	if v := os.Getenv("INSUREPAL_BACKEND_URL"); v != "" {
		cfg.Client.BackendURL = strings.TrimRight(v, "/")
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
