package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// OllamaEmbedder uses a local Ollama instance for embeddings.
type OllamaEmbedder struct {
	client *ollama.Client
	model  string
	dims   int
}

// NewOllamaEmbedder creates an embedder using Ollama's API.
// Default model: nomic-embed-text (768 dims), all-minilm (384 dims).
func NewOllamaEmbedder(baseURL, model string, dims int, timeout time.Duration) (*OllamaEmbedder, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", baseURL, err)
	}
	if dims == 0 {
		switch model {
		case "nomic-embed-text":
			dims = 768
		case "all-minilm":
			dims = 384
		}
	}
	return &OllamaEmbedder{
		client: ollama.NewClient(u, &http.Client{Timeout: timeout}),
		model:  model,
		dims:   dims,
	}, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	resp, err := e.client.Embed(ctx, &ollama.EmbedRequest{
		Model: e.model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama embed: no embedding returned")
	}
	return resp.Embeddings[0], nil
}

func (e *OllamaEmbedder) Dims() int { return e.dims }
