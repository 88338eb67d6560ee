package embedding

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder uses any OpenAI-compatible embedding API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dims   int
	// reduced is set when dims was requested explicitly and the model
	// supports shortening its output.
	reduced bool
}

// NewOpenAIEmbedder creates an embedder using an OpenAI-compatible API.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dims int) *OpenAIEmbedder {
	if model == "" {
		model = "text-embedding-3-small"
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	reduced := dims > 0 && strings.HasPrefix(model, "text-embedding-3")
	if dims == 0 {
		switch model {
		case "text-embedding-3-small", "text-embedding-ada-002":
			dims = 1536
		case "text-embedding-3-large":
			dims = 3072
		}
	}
	return &OpenAIEmbedder{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		dims:    dims,
		reduced: reduced,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	}
	if e.reduced {
		req.Dimensions = e.dims
	}
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai embed: no embedding returned")
	}
	return resp.Data[0].Embedding, nil
}

func (e *OpenAIEmbedder) Dims() int { return e.dims }
