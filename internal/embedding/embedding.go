// Package embedding provides a pluggable interface for text embedding providers.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rcliao/ripple-memory/internal/config"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	// Dims returns the vector length, or 0 if it is only known after the
	// first call.
	Dims() int
}

// ErrNoProvider is returned by New when no provider is configured.
var ErrNoProvider = errors.New("embedding: no provider configured")

// New creates an embedder from configuration, wrapping it in a cache when
// cfg.CacheSize is positive.
func New(cfg config.Embedding) (Embedder, error) {
	timeout := time.Duration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var e Embedder
	switch cfg.Provider {
	case "ollama":
		model := cfg.Model
		if model == "" {
			model = "nomic-embed-text"
		}
		oe, err := NewOllamaEmbedder(cfg.URL, model, cfg.Dimension, timeout)
		if err != nil {
			return nil, err
		}
		e = oe
	case "openai":
		e = NewOpenAIEmbedder(cfg.URL, cfg.APIKey, cfg.Model, cfg.Dimension)
	case "hash":
		dims := cfg.Dimension
		if dims == 0 {
			dims = 256
		}
		e = NewHashEmbedder(dims)
	case "":
		return nil, ErrNoProvider
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q (use ollama, openai or hash)", cfg.Provider)
	}

	if cfg.CacheSize > 0 {
		c, err := NewCached(e, cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return e, nil
}
