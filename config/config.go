package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the retrieval service. It is loaded
// once and threaded explicitly into each component at construction.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Router    RouterConfig    `mapstructure:"router"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// EmbeddingConfig contains the Ollama embedding provider settings.
type EmbeddingConfig struct {
	Host       string         `mapstructure:"host"`
	Model      string         `mapstructure:"model"`
	Timeout    time.Duration  `mapstructure:"timeout"`
	MaxRetries int            `mapstructure:"max_retries"`
	Backoff    time.Duration  `mapstructure:"backoff"`
	Dimensions map[string]int `mapstructure:"dimensions"`
}

func (e EmbeddingConfig) Validate() error {
	if strings.TrimSpace(e.Host) == "" {
		return fmt.Errorf("embedding.host required")
	}
	if strings.TrimSpace(e.Model) == "" {
		return fmt.Errorf("embedding.model required")
	}
	return nil
}

// ExpectedDimensions resolves the vector dimension for the configured model
// from the model substring map. Unknown models fall back to 768.
func (e EmbeddingConfig) ExpectedDimensions() int {
	model := strings.ToLower(e.Model)
	for key, dims := range e.Dimensions {
		if strings.Contains(model, strings.ToLower(key)) {
			return dims
		}
	}
	return 768
}

// QdrantConfig contains vector store connection settings
type QdrantConfig struct {
	Host    string        `mapstructure:"host"`
	Port    string        `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (q QdrantConfig) Validate() error {
	if strings.TrimSpace(q.Host) == "" {
		return fmt.Errorf("qdrant.host required")
	}
	if strings.TrimSpace(q.Port) == "" {
		return fmt.Errorf("qdrant.port required")
	}
	return nil
}

// BaseURL returns the REST endpoint for the Qdrant server.
func (q QdrantConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%s", q.Host, q.Port)
}

// CacheConfig contains Redis query cache settings
type CacheConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
	TTL      time.Duration `mapstructure:"ttl"`
}

func (c CacheConfig) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("cache.host required")
	}
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("cache.port required")
	}
	return nil
}

// ChunkingConfig controls how fetched text is split before embedding.
type ChunkingConfig struct {
	MaxChars       int `mapstructure:"max_chars"`
	OverlapChars   int `mapstructure:"overlap_chars"`
	BoundaryWindow int `mapstructure:"boundary_window"`
}

func (c ChunkingConfig) Validate() error {
	if c.MaxChars <= 0 {
		return fmt.Errorf("chunking.max_chars must be > 0")
	}
	if c.OverlapChars < 0 || c.OverlapChars >= c.MaxChars {
		return fmt.Errorf("chunking.overlap_chars must be in [0, max_chars)")
	}
	if c.BoundaryWindow < 0 || c.BoundaryWindow > c.MaxChars {
		return fmt.Errorf("chunking.boundary_window must be in [0, max_chars]")
	}
	return nil
}

// ScraperConfig controls page fetching for ingestion.
type ScraperConfig struct {
	UserAgent      string        `mapstructure:"user_agent"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	MaxBulkLinks   int           `mapstructure:"max_bulk_links"`
	MaxParallel    int           `mapstructure:"max_parallel"`
	RenderFallback bool          `mapstructure:"render_fallback"`
	RenderMinChars int           `mapstructure:"render_min_chars"`
}

func (s ScraperConfig) Validate() error {
	if s.MaxBulkLinks <= 0 {
		return fmt.Errorf("scraper.max_bulk_links must be > 0")
	}
	if s.MaxParallel <= 0 {
		return fmt.Errorf("scraper.max_parallel must be > 0")
	}
	return nil
}

// RouterConfig controls query routing between documentation search and the
// general answer path.
type RouterConfig struct {
	Keywords          []string      `mapstructure:"keywords"`
	StrongMatchCount  int           `mapstructure:"strong_match_count"`
	ClassifierModel   string        `mapstructure:"classifier_model"`
	ClassifierTimeout time.Duration `mapstructure:"classifier_timeout"`
	DefaultCollection string        `mapstructure:"default_collection"`
	ResultCount       int           `mapstructure:"result_count"`
}

func (r RouterConfig) Validate() error {
	if strings.TrimSpace(r.DefaultCollection) == "" {
		return fmt.Errorf("router.default_collection required")
	}
	if r.ResultCount <= 0 {
		return fmt.Errorf("router.result_count must be > 0")
	}
	return nil
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "30s")
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("embedding.host", "http://localhost:11434")
	viper.SetDefault("embedding.model", "all-minilm")
	viper.SetDefault("embedding.timeout", "30s")
	viper.SetDefault("embedding.max_retries", 3)
	viper.SetDefault("embedding.backoff", "300ms")
	viper.SetDefault("embedding.dimensions", map[string]int{
		"all-minilm":       384,
		"nomic-embed-text": 768,
		"bge-base-en-v1.5": 768,
		"e5-base-v2":       768,
	})
	viper.SetDefault("qdrant.host", "localhost")
	viper.SetDefault("qdrant.port", "6333")
	viper.SetDefault("qdrant.timeout", "30s")
	viper.SetDefault("cache.host", "localhost")
	viper.SetDefault("cache.port", "6379")
	viper.SetDefault("cache.db", 0)
	viper.SetDefault("cache.timeout", "5s")
	viper.SetDefault("cache.ttl", "1h")
	viper.SetDefault("chunking.max_chars", 1000)
	viper.SetDefault("chunking.overlap_chars", 200)
	viper.SetDefault("chunking.boundary_window", 120)
	viper.SetDefault("scraper.user_agent", "AlfredAI/1.1 (+https://github.com/johnyohanyoon/alfred-ai)")
	viper.SetDefault("scraper.timeout", "30s")
	viper.SetDefault("scraper.max_body_bytes", 4<<20)
	viper.SetDefault("scraper.max_bulk_links", 50)
	viper.SetDefault("scraper.max_parallel", 4)
	viper.SetDefault("scraper.render_fallback", false)
	viper.SetDefault("scraper.render_min_chars", 200)
	viper.SetDefault("router.keywords", []string{
		"how do i", "how to", "configure", "install", "setup",
		"documentation", "docs", "api", "error", "usage", "example", "guide",
	})
	viper.SetDefault("router.strong_match_count", 1)
	viper.SetDefault("router.classifier_model", "llama3.2:1b")
	viper.SetDefault("router.classifier_timeout", "10s")
	viper.SetDefault("router.default_collection", "alfred_knowledge")
	viper.SetDefault("router.result_count", 5)

	if path == "" {
		viper.AddConfigPath("./config") // path to look for the config file in
		viper.AddConfigPath(".")        // optionally look for config in the working directory
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)                      // bin/
		viper.AddConfigPath(filepath.Join(exeDir, "..")) // repo root
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("ALFRED")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv() // read in environment variables that match (ALFRED_*)

	// A missing config file is fine: defaults plus env cover everything.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Embedding.Validate(); err != nil {
		panic(err)
	}
	if err := config.Qdrant.Validate(); err != nil {
		panic(err)
	}
	if err := config.Cache.Validate(); err != nil {
		panic(err)
	}
	if err := config.Chunking.Validate(); err != nil {
		panic(err)
	}
	if err := config.Scraper.Validate(); err != nil {
		panic(err)
	}
	if err := config.Router.Validate(); err != nil {
		panic(err)
	}
	return &config
}
