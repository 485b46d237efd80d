package embedding

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAI embeds texts with the OpenAI embeddings API.
type OpenAI struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string // optional, for compatible endpoints
	Dimensions int    // optional, 0 keeps the model default
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := openai.EmbeddingModel(cfg.Model)
	if model == "" {
		model = openai.SmallEmbedding3
	}

	return &OpenAI{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      model,
		dimensions: cfg.Dimensions,
	}
}

// Model reports the embedding model name.
func (o *OpenAI) Model() string {
	return string(o.model)
}

// Embed makes one API call for all texts. Results are placed by their
// reported index; a response that does not cover every input is an error.
func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	response, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input:      texts,
		Model:      o.model,
		Dimensions: o.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request failed: %w", err)
	}

	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("%w: sent %d texts, got %d embeddings", ErrCountMismatch, len(texts), len(response.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, data := range response.Data {
		if data.Index < 0 || data.Index >= len(vectors) || vectors[data.Index] != nil {
			return nil, fmt.Errorf("%w: unexpected embedding index %d", ErrCountMismatch, data.Index)
		}
		vectors[data.Index] = data.Embedding
	}

	return vectors, nil
}
