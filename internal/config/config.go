// Package config loads the dishscan configuration with layered precedence:
// struct defaults, then an optional YAML file, then DISHSCAN_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where the config file is searched, in order.
var DefaultConfigPaths = []string{
	"dishscan.yaml",
	"dishscan.yml",
	"/etc/dishscan/config.yaml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "DISHSCAN_CONFIG"

// envPrefix is stripped from environment variables before mapping them onto
// koanf paths: DISHSCAN_CACHE_CAPACITY -> cache.capacity.
const envPrefix = "DISHSCAN_"

// Config is the resolved process configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Index      IndexConfig      `koanf:"index"`
	Cache      CacheConfig      `koanf:"cache"`
	Embedding  EmbeddingConfig  `koanf:"embedding"`
	Escalation EscalationConfig `koanf:"escalation"`
	Catalog    CatalogConfig    `koanf:"catalog"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxImageBytes   int64         `koanf:"max_image_bytes"`
}

// IndexConfig configures the visual index location and build.
type IndexConfig struct {
	Dir        string `koanf:"dir"`
	SourceDir  string `koanf:"source_dir"`
	MaxPerDish int    `koanf:"max_per_dish"`
	TopK       int    `koanf:"top_k"`
	// BuildRate caps embedding provider calls per second during a build.
	BuildRate float64 `koanf:"build_rate"`
}

// CacheConfig configures the identification result cache.
type CacheConfig struct {
	Capacity int           `koanf:"capacity"`
	TTL      time.Duration `koanf:"ttl"`
}

// EmbeddingConfig configures the embedding provider endpoint.
type EmbeddingConfig struct {
	BaseURL string        `koanf:"base_url"`
	Model   string        `koanf:"model"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
	// Dim, when non-zero, is validated against provider output.
	Dim int `koanf:"dim"`
}

// EscalationConfig configures the external recognition fallback.
type EscalationConfig struct {
	Enabled bool          `koanf:"enabled"`
	BaseURL string        `koanf:"base_url"`
	Model   string        `koanf:"model"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
	// Regions lists caller regions escalation is permitted for. Empty means
	// all regions when Enabled is true.
	Regions []string `koanf:"regions"`
}

// CatalogConfig locates the dish catalog and nutrition tables.
type CatalogConfig struct {
	Path          string `koanf:"path"`
	NutritionPath string `koanf:"nutrition_path"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxImageBytes:   10 << 20,
		},
		Index: IndexConfig{
			Dir:        "data/index",
			SourceDir:  "data/organized",
			MaxPerDish: 10,
			TopK:       5,
			BuildRate:  8,
		},
		Cache: CacheConfig{
			Capacity: 500,
			TTL:      time.Hour,
		},
		Embedding: EmbeddingConfig{
			BaseURL: "http://localhost:8090",
			Model:   "clip-vit-b-32",
			Timeout: 30 * time.Second,
		},
		Escalation: EscalationConfig{
			Enabled: false,
			Timeout: 15 * time.Second,
		},
		Catalog: CatalogConfig{
			Path:          "data/dishes.yaml",
			NutritionPath: "data/nutrition.yaml",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Default returns the built-in configuration, without file or environment
// overrides applied.
func Default() Config {
	return *defaultConfig()
}

// Load resolves configuration from defaults, the config file (if present),
// and environment variables, in increasing precedence.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("cannot load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("cannot load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("cannot load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envTransform maps DISHSCAN_CACHE_TTL to cache.ttl. Only the first
// underscore becomes a section separator so multi-word keys survive
// (DISHSCAN_INDEX_MAX_PER_DISH -> index.max_per_dish).
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if c.Index.TopK <= 0 {
		return fmt.Errorf("index.top_k must be positive, got %d", c.Index.TopK)
	}
	if c.Index.MaxPerDish <= 0 {
		return fmt.Errorf("index.max_per_dish must be positive, got %d", c.Index.MaxPerDish)
	}
	if c.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding.base_url is required")
	}
	if c.Escalation.Enabled && c.Escalation.BaseURL == "" {
		return fmt.Errorf("escalation.base_url is required when escalation is enabled")
	}
	return nil
}

// EscalationAllowed reports whether escalation is permitted for the caller's
// region under this configuration.
func (c *EscalationConfig) EscalationAllowed(region string) bool {
	if !c.Enabled {
		return false
	}
	if len(c.Regions) == 0 {
		return true
	}
	for _, r := range c.Regions {
		if strings.EqualFold(r, region) {
			return true
		}
	}
	return false
}
