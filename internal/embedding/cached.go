package embedding

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"
)

// Cached memoises an Embedder. Providers are deterministic for a given
// model, so a text always maps to the same vector. Concurrent requests for
// the same text share one upstream call.
type Cached struct {
	inner Embedder
	cache *ristretto.Cache
	group singleflight.Group
}

// NewCached wraps inner with a cache holding roughly maxEntries vectors.
func NewCached(inner Embedder, maxEntries int64) (*Cached, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		// cost counts entries, not bytes
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Embed(ctx context.Context, text string) (Vector, error) {
	if v, ok := c.cache.Get(text); ok {
		return clone(v.(Vector)), nil
	}

	// the shared call outlives any one caller; each caller waits on its own ctx
	ch := c.group.DoChan(text, func() (interface{}, error) {
		vec, err := c.inner.Embed(context.WithoutCancel(ctx), text)
		if err != nil {
			return nil, err
		}
		c.cache.Set(text, clone(vec), 1)
		return vec, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.(Vector)), nil
	}
}

func (c *Cached) Dims() int { return c.inner.Dims() }

// Wait blocks until pending cache writes are visible.
func (c *Cached) Wait() { c.cache.Wait() }

// Close releases the cache.
func (c *Cached) Close() { c.cache.Close() }

func clone(v Vector) Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}
