// Package stage holds the wiring shared by the pipeline commands: config,
// logging, credentials and the external clients built from them.
package stage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"quote-codex/config"
	"quote-codex/embedding"
	"quote-codex/search"
)

// Env is what every command starts from.
type Env struct {
	Config *config.Config
	Logger *slog.Logger
}

// Load reads the config named by the global --config flag and applies the
// global overrides.
func Load(c *cli.Context) (*Env, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Env{Config: cfg, Logger: cfg.Logger()}, nil
}

// Path returns the location of a stage file in the data directory.
func (e *Env) Path(name string) string {
	return filepath.Join(e.Config.DataDir, name)
}

func (e *Env) NewEmbedder(ctx context.Context) (*embedding.OpenAI, error) {
	key, err := e.Config.EmbeddingKey(ctx)
	if err != nil {
		return nil, err
	}
	return embedding.NewOpenAI(embedding.OpenAIConfig{
		APIKey:     key,
		Model:      e.Config.Embedding.Model,
		BaseURL:    e.Config.Embedding.BaseURL,
		Dimensions: e.Config.Embedding.Dimensions,
	}), nil
}

// NewIndex builds the configured vector index backend. The returned func
// releases its connections.
func (e *Env) NewIndex(ctx context.Context) (search.Index, func() error, error) {
	cfg := e.Config.Index
	spec := search.IndexSpec{
		Name:         cfg.Name,
		Dimension:    cfg.Dimension,
		Metric:       cfg.Metric,
		Cloud:        cfg.Cloud,
		Region:       cfg.Region,
		PollInterval: cfg.PollInterval,
		ReadyTimeout: cfg.ReadyTimeout,
	}

	switch cfg.Backend {
	case "opensearch":
		idx, err := search.NewOpenSearch(ctx, search.OpenSearchConfig{
			Addresses:    cfg.OpenSearch.Addresses,
			Username:     cfg.OpenSearch.Username,
			Password:     cfg.OpenSearch.Password,
			Insecure:     cfg.OpenSearch.Insecure,
			SignRequests: cfg.OpenSearch.SignRequests,
			Region:       cfg.Region,
		}, spec)
		if err != nil {
			return nil, nil, err
		}
		return idx, func() error { return nil }, nil

	default:
		key, err := e.Config.IndexKey(ctx)
		if err != nil {
			return nil, nil, err
		}
		idx, err := search.NewPinecone(key, spec)
		if err != nil {
			return nil, nil, err
		}
		return idx, idx.Close, nil
	}
}

// Bar renders progress for a loop of total steps on stderr.
func Bar(total int, description string) *progressbar.ProgressBar {
	return progressbar.Default(int64(total), description)
}
