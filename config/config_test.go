package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Index.Name != "codex" {
		t.Errorf("expected index name codex, got %s", cfg.Index.Name)
	}
	if cfg.Index.Dimension != 1536 {
		t.Errorf("expected dimension 1536, got %d", cfg.Index.Dimension)
	}
	if cfg.Index.BatchSize != 100 {
		t.Errorf("expected index batch size 100, got %d", cfg.Index.BatchSize)
	}
	if cfg.Embedding.BatchSize != 2000 {
		t.Errorf("expected embedding batch size 2000, got %d", cfg.Embedding.BatchSize)
	}
	if cfg.Collect.Pages != 100 {
		t.Errorf("expected 100 pages, got %d", cfg.Collect.Pages)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/quote-codex.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "quote-codex.yaml")
	content := `
data_dir: out
collect:
  pages: 3
  page_delay: 250ms
index:
  backend: opensearch
  poll_interval: 2s
  opensearch:
    addresses: ["http://search:9200"]
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DataDir != "out" {
		t.Errorf("expected data_dir out, got %s", cfg.DataDir)
	}
	if cfg.Collect.Pages != 3 {
		t.Errorf("expected 3 pages, got %d", cfg.Collect.Pages)
	}
	if cfg.Collect.PageDelay != 250*time.Millisecond {
		t.Errorf("expected 250ms page delay, got %s", cfg.Collect.PageDelay)
	}
	if cfg.Index.PollInterval != 2*time.Second {
		t.Errorf("expected 2s poll interval, got %s", cfg.Index.PollInterval)
	}
	if cfg.Index.Backend != "opensearch" || cfg.Index.OpenSearch.Addresses[0] != "http://search:9200" {
		t.Errorf("unexpected index config %+v", cfg.Index)
	}
	// Untouched keys keep their defaults
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("expected default model, got %s", cfg.Embedding.Model)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad backend":    "index:\n  backend: redis\n",
		"zero batch":     "embedding:\n  batch_size: 0\n",
		"bad secrets":    "secrets:\n  source: vault\n",
		"not yaml":       "data_dir: [",
		"few neighbours": "reduce:\n  neighbors: 1\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "quote-codex.yaml")
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestEmbeddingKey_Env(t *testing.T) {
	cfg := Default()
	cfg.Embedding.APIKeyEnv = "QUOTE_CODEX_TEST_OPENAI_KEY"

	t.Setenv("QUOTE_CODEX_TEST_OPENAI_KEY", "")
	if _, err := cfg.EmbeddingKey(context.Background()); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("expected ErrMissingCredential, got %v", err)
	}

	t.Setenv("QUOTE_CODEX_TEST_OPENAI_KEY", "sk-test")
	key, err := cfg.EmbeddingKey(context.Background())
	if err != nil || key != "sk-test" {
		t.Errorf("expected sk-test, got %q (%v)", key, err)
	}
}

type fakeSecrets map[string]string

func (f fakeSecrets) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	value, ok := f[aws.ToString(params.SecretId)]
	if !ok {
		return nil, errors.New("secret not found")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(value)}, nil
}

func TestIndexKey_AWS(t *testing.T) {
	original := newSecretsClient
	t.Cleanup(func() { newSecretsClient = original })
	newSecretsClient = func(context.Context, string) (SecretsAPI, error) {
		return fakeSecrets{"pinecone-api-key": "pc-test", "openai-api-key": ""}, nil
	}

	cfg := Default()
	cfg.Secrets.Source = "aws"

	key, err := cfg.IndexKey(context.Background())
	if err != nil || key != "pc-test" {
		t.Errorf("expected pc-test, got %q (%v)", key, err)
	}
	if _, err := cfg.EmbeddingKey(context.Background()); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("expected ErrMissingCredential for an empty secret, got %v", err)
	}
}
