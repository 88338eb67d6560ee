package embedding

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rcliao/ripple-memory/internal/config"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"words", "She likes RAIN!", []string{"she", "likes", "rain"}},
		{"han split per rune", "下雨了 rain", []string{"下", "雨", "了", "rain"}},
		{"empty", "  ,. ", nil},
		{"digits", "route 66", []string{"route", "66"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Tokenize(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestHashEmbedderDeterministicUnitVectors(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a, _ := e.Embed(ctx, "she likes rain")
	b, _ := e.Embed(ctx, "she likes rain")
	if len(a) != 64 {
		t.Fatalf("expected 64 dims, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at %d", i)
		}
	}

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("expected unit vector, norm^2 = %f", norm)
	}

	zero, _ := e.Embed(ctx, "")
	for _, v := range zero {
		if v != 0 {
			t.Fatal("expected zero vector for empty text")
		}
	}
}

func TestHashEmbedderSharedWordsAreCloser(t *testing.T) {
	e := NewHashEmbedder(256)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "rain")
	near, _ := e.Embed(ctx, "she likes rain")
	far, _ := e.Embed(ctx, "she fears storms")

	if l2(q, near) >= l2(q, far) {
		t.Errorf("expected shared word to be closer: near=%f far=%f", l2(q, near), l2(q, far))
	}
}

func l2(a, b Vector) float32 {
	var s float32
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

type countingEmbedder struct {
	calls atomic.Int32
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return Vector{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) Dims() int { return 2 }

func TestCachedReusesVectors(t *testing.T) {
	inner := &countingEmbedder{}
	c, err := NewCached(inner, 100)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	v1, err := c.Embed(ctx, "abc")
	if err != nil {
		t.Fatal(err)
	}
	c.Wait()
	v2, _ := c.Embed(ctx, "abc")
	if inner.calls.Load() != 1 {
		t.Errorf("expected 1 upstream call, got %d", inner.calls.Load())
	}
	if v2[0] != v1[0] {
		t.Errorf("cached vector differs: %v vs %v", v1, v2)
	}

	// callers must not be able to corrupt the cached copy
	v2[0] = 999
	v3, _ := c.Embed(ctx, "abc")
	if v3[0] != 3 {
		t.Errorf("cache entry mutated through returned slice: %v", v3)
	}
	if c.Dims() != 2 {
		t.Errorf("Dims = %d, want 2", c.Dims())
	}
}

func TestCachedDoesNotCacheErrors(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("boom")}
	c, err := NewCached(inner, 10)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	for i := 0; i < 2; i++ {
		if _, err := c.Embed(context.Background(), "x"); err == nil {
			t.Fatal("expected error")
		}
		c.Wait()
	}
	if inner.calls.Load() != 2 {
		t.Errorf("expected errors to bypass cache, got %d calls", inner.calls.Load())
	}
}

func TestCachedConcurrent(t *testing.T) {
	c, err := NewCached(NewHashEmbedder(32), 100)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Embed(context.Background(), "same text")
			if err != nil || len(v) != 32 {
				t.Errorf("embed: %v len=%d", err, len(v))
			}
		}()
	}
	wg.Wait()
}

// gatedEmbedder blocks until release is closed and records whether the
// context it saw was cancelled.
type gatedEmbedder struct {
	calls    atomic.Int32
	entered  chan struct{}
	release  chan struct{}
	canceled atomic.Bool
}

func (g *gatedEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
	}
	<-g.release
	if ctx.Err() != nil {
		g.canceled.Store(true)
		return nil, ctx.Err()
	}
	return Vector{float32(len(text)), 1}, nil
}

func (g *gatedEmbedder) Dims() int { return 2 }

func TestCachedCancelledCallerDoesNotFailOthers(t *testing.T) {
	inner := &gatedEmbedder{entered: make(chan struct{}), release: make(chan struct{})}
	c, err := NewCached(inner, 10)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.Embed(ctx, "rain")
		first <- err
	}()
	<-inner.entered

	second := make(chan error, 1)
	go func() {
		v, err := c.Embed(context.Background(), "rain")
		if err == nil && v[0] != 4 {
			err = errors.New("wrong vector")
		}
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-first:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("cancelled caller got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(inner.release)
	if err := <-second; err != nil {
		t.Errorf("waiting caller failed: %v", err)
	}
	if inner.canceled.Load() {
		t.Error("upstream call saw the first caller's cancellation")
	}
	if n := inner.calls.Load(); n != 1 {
		t.Errorf("expected 1 upstream call, got %d", n)
	}
}

func TestNewFromConfig(t *testing.T) {
	if _, err := New(config.Embedding{}); !errors.Is(err, ErrNoProvider) {
		t.Errorf("expected ErrNoProvider, got %v", err)
	}
	if _, err := New(config.Embedding{Provider: "word2vec"}); err == nil {
		t.Error("expected error for unknown provider")
	}

	e, err := New(config.Embedding{Provider: "hash", Dimension: 16})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*HashEmbedder); !ok {
		t.Errorf("expected *HashEmbedder without cache, got %T", e)
	}

	e, err = New(config.Embedding{Provider: "hash", CacheSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*Cached); !ok {
		t.Errorf("expected *Cached, got %T", e)
	}
	if e.Dims() != 256 {
		t.Errorf("expected default hash dims 256, got %d", e.Dims())
	}

	e, err = New(config.Embedding{Provider: "ollama"})
	if err != nil {
		t.Fatal(err)
	}
	if e.Dims() != 768 {
		t.Errorf("expected nomic-embed-text default dims 768, got %d", e.Dims())
	}

	e, err = New(config.Embedding{Provider: "openai", Model: "text-embedding-3-small", Dimension: 512})
	if err != nil {
		t.Fatal(err)
	}
	if e.Dims() != 512 {
		t.Errorf("expected configured dims 512, got %d", e.Dims())
	}
}
