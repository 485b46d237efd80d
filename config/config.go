package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. A missing file is fine.
const DefaultPath = "quote-codex.yaml"

// Config holds every setting the pipeline stages read.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Logging   LoggingConfig   `yaml:"logging"`
	Secrets   SecretsConfig   `yaml:"secrets"`
	Collect   CollectConfig   `yaml:"collect"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Reduce    ReduceConfig    `yaml:"reduce"`
	Index     IndexConfig     `yaml:"index"`
	Export    ExportConfig    `yaml:"export"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SecretsConfig selects where API keys come from: "env" or "aws".
type SecretsConfig struct {
	Source string     `yaml:"source"`
	AWS    AWSSecrets `yaml:"aws"`
}

type AWSSecrets struct {
	Region           string `yaml:"region"`
	OpenAISecretID   string `yaml:"openai_secret_id"`
	PineconeSecretID string `yaml:"pinecone_secret_id"`
}

type CollectConfig struct {
	EbookPath      string        `yaml:"ebook_path"`
	FallbackAuthor string        `yaml:"fallback_author"`
	ListingURL     string        `yaml:"listing_url"` // printf template taking the page number
	Pages          int           `yaml:"pages"`
	PageDelay      time.Duration `yaml:"page_delay"`
	HTTPTimeout    time.Duration `yaml:"http_timeout"`
	Feeds          []string      `yaml:"feeds"`
}

type EmbeddingConfig struct {
	Model      string `yaml:"model"`
	APIKeyEnv  string `yaml:"api_key_env"`
	BaseURL    string `yaml:"base_url"`
	Dimensions int    `yaml:"dimensions"` // 0 keeps the model's native size
	BatchSize  int    `yaml:"batch_size"`
}

type ReduceConfig struct {
	Neighbors int     `yaml:"neighbors"`
	MinDist   float64 `yaml:"min_dist"`
	Spread    float64 `yaml:"spread"`
	Epochs    int     `yaml:"epochs"`
	Seed      int64   `yaml:"seed"`
}

type IndexConfig struct {
	Backend      string           `yaml:"backend"` // "pinecone" or "opensearch"
	Name         string           `yaml:"name"`
	Dimension    int              `yaml:"dimension"`
	Metric       string           `yaml:"metric"`
	Cloud        string           `yaml:"cloud"`
	Region       string           `yaml:"region"`
	BatchSize    int              `yaml:"batch_size"`
	PollInterval time.Duration    `yaml:"poll_interval"`
	ReadyTimeout time.Duration    `yaml:"ready_timeout"`
	APIKeyEnv    string           `yaml:"api_key_env"`
	OpenSearch   OpenSearchConfig `yaml:"opensearch"`
}

type OpenSearchConfig struct {
	Addresses    []string `yaml:"addresses"`
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password"`
	Insecure     bool     `yaml:"insecure"`
	SignRequests bool     `yaml:"sign_requests"`
}

type ExportConfig struct {
	Dir      string `yaml:"dir"`
	Quantize bool   `yaml:"quantize"`
}

// Default returns the settings used when no config file is given.
func Default() *Config {
	return &Config{
		DataDir: "data",
		Logging: LoggingConfig{Level: "info"},
		Secrets: SecretsConfig{
			Source: "env",
			AWS: AWSSecrets{
				Region:           "us-west-2",
				OpenAISecretID:   "openai-api-key",
				PineconeSecretID: "pinecone-api-key",
			},
		},
		Collect: CollectConfig{
			EbookPath:      "calendar of wisdom.epub",
			FallbackAuthor: "Leo Tolstoy",
			ListingURL:     "https://www.goodreads.com/quotes?page=%d",
			Pages:          100,
			HTTPTimeout:    30 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			BatchSize: 2000,
		},
		Reduce: ReduceConfig{
			Neighbors: 15,
			MinDist:   0.1,
			Spread:    1.0,
			Epochs:    200,
			Seed:      42,
		},
		Index: IndexConfig{
			Backend:      "pinecone",
			Name:         "codex",
			Dimension:    1536,
			Metric:       "dotproduct",
			Cloud:        "aws",
			Region:       "us-west-2",
			BatchSize:    100,
			PollInterval: time.Second,
			ReadyTimeout: 5 * time.Minute,
			APIKeyEnv:    "PINECONE_API_KEY",
			OpenSearch: OpenSearchConfig{
				Addresses: []string{"https://localhost:9200"},
			},
		},
		Export: ExportConfig{
			Dir:      "public",
			Quantize: true,
		},
	}
}

// Load reads a YAML config over the defaults. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects settings no stage can run with.
func (c *Config) Validate() error {
	switch {
	case c.DataDir == "":
		return errors.New("data_dir must not be empty")
	case c.Collect.Pages < 0:
		return errors.New("collect.pages must not be negative")
	case c.Embedding.BatchSize <= 0:
		return errors.New("embedding.batch_size must be positive")
	case c.Index.BatchSize <= 0:
		return errors.New("index.batch_size must be positive")
	case c.Index.Dimension <= 0:
		return errors.New("index.dimension must be positive")
	case c.Reduce.Neighbors < 2:
		return errors.New("reduce.neighbors must be at least 2")
	case c.Reduce.Epochs <= 0:
		return errors.New("reduce.epochs must be positive")
	}

	switch c.Index.Backend {
	case "pinecone", "opensearch":
	default:
		return fmt.Errorf("unknown index backend %q", c.Index.Backend)
	}
	switch c.Secrets.Source {
	case "env", "aws":
	default:
		return fmt.Errorf("unknown secrets source %q", c.Secrets.Source)
	}

	return nil
}

// Logger builds the text logger used by every stage.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
