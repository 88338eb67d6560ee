// Package store provides the semantic memory store: a flat L2 vector index
// paired with an insertion-aligned metadata sequence, persisted write-through
// to two artifacts on disk.
//
// Position i in the index and position i in the metadata always describe the
// same memory. Add is the only mutation.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rcliao/ripple-memory/internal/embedding"
	"github.com/rcliao/ripple-memory/internal/model"
	"github.com/rcliao/ripple-memory/internal/telemetry"
	"github.com/rcliao/ripple-memory/internal/vecindex"
)

// probeText is embedded once to learn the dimension when neither the
// configuration nor the provider reports it.
const probeText = "test"

// Options locates the store's artifacts.
type Options struct {
	IndexPath    string
	MetadataPath string
	// Dimension fixes the vector length. 0 defers to the embedder, then to
	// an existing index, then to a probe embedding.
	Dimension int
}

// Option configures optional collaborators.
type Option func(*MemoryStore)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *MemoryStore) { s.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *MemoryStore) { s.metrics = m }
}

// WithClock overrides time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) { s.now = now }
}

// MemoryStore owns the vector index, the metadata sequence and their
// persistence. It is safe for concurrent use.
type MemoryStore struct {
	indexPath    string
	metadataPath string
	dim          int

	embedder embedding.Embedder
	meta     *metadataDB
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	now      func() time.Time

	// addMu serialises Add end to end. mu guards index and records and is
	// held for writing only while mutating and persisting.
	addMu   sync.Mutex
	mu      sync.RWMutex
	index   *vecindex.Index
	records []model.Record
}

// Open loads the store from disk, or initialises both artifacts when neither
// exists. Exactly one artifact present, or artifacts that disagree, is an
// *IntegrityError; unreadable artifacts are a *PersistenceError.
func Open(ctx context.Context, opts Options, embedder embedding.Embedder, options ...Option) (*MemoryStore, error) {
	if opts.IndexPath == "" || opts.MetadataPath == "" {
		return nil, errors.New("store: index and metadata paths are required")
	}
	s := &MemoryStore{
		indexPath:    opts.IndexPath,
		metadataPath: opts.MetadataPath,
		embedder:     embedder,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, o := range options {
		o(s)
	}

	indexExists, err := fileExists(s.indexPath)
	if err != nil {
		return nil, &PersistenceError{Op: "stat", Path: s.indexPath, Err: err}
	}
	metaExists, err := fileExists(s.metadataPath)
	if err != nil {
		return nil, &PersistenceError{Op: "stat", Path: s.metadataPath, Err: err}
	}

	configured := opts.Dimension
	if configured == 0 && embedder != nil {
		configured = embedder.Dims()
	}

	switch {
	case indexExists && metaExists:
		err = s.load(ctx, configured)
	case !indexExists && !metaExists:
		err = s.initialize(ctx, configured)
	case indexExists:
		err = &IntegrityError{Reason: fmt.Sprintf("index %s exists but metadata %s is missing", s.indexPath, s.metadataPath)}
	default:
		err = &IntegrityError{Reason: fmt.Sprintf("metadata %s exists but index %s is missing", s.metadataPath, s.indexPath)}
	}
	if err != nil {
		if s.meta != nil {
			s.meta.close()
		}
		return nil, err
	}

	s.metrics.SetMemories(len(s.records))
	s.logger.Info("memory store opened",
		"index", s.indexPath, "metadata", s.metadataPath,
		"dimension", s.dim, "count", len(s.records))
	return s, nil
}

func (s *MemoryStore) initialize(ctx context.Context, dim int) error {
	if dim == 0 {
		if s.embedder == nil {
			return errors.New("store: cannot infer dimension without an embedder")
		}
		vec, err := s.embedder.Embed(ctx, probeText)
		if err != nil {
			return &EmbeddingError{Op: "probe", Err: err}
		}
		if len(vec) == 0 {
			return &EmbeddingError{Op: "probe", Err: errors.New("empty vector")}
		}
		dim = len(vec)
	}

	for _, p := range []string{s.indexPath, s.metadataPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return &PersistenceError{Op: "create dir", Path: filepath.Dir(p), Err: err}
		}
	}

	s.dim = dim
	s.index = vecindex.New(dim)
	s.records = nil

	if err := writeIndex(s.indexPath, s.index); err != nil {
		return &PersistenceError{Op: "write index", Path: s.indexPath, Err: err}
	}
	meta, err := openMetadata(s.metadataPath)
	if err != nil {
		os.Remove(s.indexPath)
		return &PersistenceError{Op: "create metadata", Path: s.metadataPath, Err: err}
	}
	s.meta = meta
	if err := meta.setDimension(ctx, dim); err != nil {
		return &PersistenceError{Op: "write metadata", Path: s.metadataPath, Err: err}
	}
	s.logger.Info("initialized empty memory store", "dimension", dim)
	return nil
}

func (s *MemoryStore) load(ctx context.Context, configured int) error {
	idx, err := readIndex(s.indexPath)
	if err != nil {
		return &PersistenceError{Op: "read index", Path: s.indexPath, Err: err}
	}
	meta, err := openMetadata(s.metadataPath)
	if err != nil {
		return &PersistenceError{Op: "open metadata", Path: s.metadataPath, Err: err}
	}
	s.meta = meta

	records, positions, err := meta.load(ctx)
	if err != nil {
		return &PersistenceError{Op: "read metadata", Path: s.metadataPath, Err: err}
	}
	if idx.Len() != len(records) {
		return &IntegrityError{Reason: fmt.Sprintf("index holds %d vectors but metadata holds %d records", idx.Len(), len(records))}
	}
	for i, p := range positions {
		if p != i {
			return &IntegrityError{Reason: fmt.Sprintf("metadata position %d found where %d expected", p, i)}
		}
	}
	if configured != 0 && configured != idx.Dim() {
		return &IntegrityError{Reason: fmt.Sprintf("index dimension %d does not match configured dimension %d", idx.Dim(), configured)}
	}
	if recorded, err := meta.dimension(ctx); err == nil && recorded != 0 && recorded != idx.Dim() {
		return &IntegrityError{Reason: fmt.Sprintf("index dimension %d does not match recorded dimension %d", idx.Dim(), recorded)}
	}

	s.dim = idx.Dim()
	s.index = idx
	s.records = records
	return nil
}

// Add embeds summary and appends it with its conversation. Both artifacts are
// written before Add returns. On *PersistenceError the append is rolled back
// in memory and on disk, so the caller may retry.
func (s *MemoryStore) Add(ctx context.Context, summary string, conversation []model.Turn) (*model.Record, error) {
	if strings.TrimSpace(summary) == "" {
		return nil, ErrEmptySummary
	}

	s.addMu.Lock()
	defer s.addMu.Unlock()

	vec, err := s.embed(ctx, "summary", summary)
	if err != nil {
		s.metrics.ObserveAdd("embed_error")
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	position := s.index.Len()
	now := s.now().UTC()
	rec := model.Record{
		ID:           s.meta.newID(now),
		Summary:      summary,
		Conversation: model.CloneTurns(conversation),
		Timestamp:    now,
	}
	if rec.Conversation == nil {
		rec.Conversation = []model.Turn{}
	}

	if err := s.index.Add(vec); err != nil {
		// embed already checked the length
		return nil, &EmbeddingError{Op: "summary", Err: err}
	}
	s.records = append(s.records, rec)

	if err := s.persist(ctx, position, rec); err != nil {
		s.index.Truncate(position)
		s.records = s.records[:position]
		s.metrics.ObserveAdd("persist_error")
		s.logger.Error("memory add rolled back", "position", position, "err", err)
		return nil, err
	}

	s.metrics.ObserveAdd("ok")
	s.metrics.SetMemories(len(s.records))
	s.logger.Info("memory added", "position", position, "id", rec.ID, "summary_len", len(summary))
	out := rec
	out.Conversation = model.CloneTurns(rec.Conversation)
	return &out, nil
}

// persist writes the metadata row and the full index. The metadata
// transaction commits only after the index file is in place; if the commit
// then fails the previous index is restored.
func (s *MemoryStore) persist(ctx context.Context, position int, rec model.Record) error {
	tx, err := s.meta.insert(ctx, position, rec)
	if err != nil {
		return &PersistenceError{Op: "write metadata", Path: s.metadataPath, Err: err}
	}
	if err := writeIndex(s.indexPath, s.index); err != nil {
		tx.Rollback()
		return &PersistenceError{Op: "write index", Path: s.indexPath, Err: err}
	}
	if err := tx.Commit(); err != nil {
		prev := vecindex.New(s.dim)
		for i := 0; i < position; i++ {
			prev.Add(s.index.Vector(i))
		}
		if rerr := writeIndex(s.indexPath, prev); rerr != nil {
			s.logger.Error("restore index after failed metadata commit; artifacts disagree on disk",
				"index", s.indexPath, "err", rerr)
		}
		return &PersistenceError{Op: "commit metadata", Path: s.metadataPath, Err: err}
	}
	return nil
}

// embed calls the provider and checks the vector length.
func (s *MemoryStore) embed(ctx context.Context, op, text string) ([]float32, error) {
	start := time.Now()
	vec, err := s.embedder.Embed(ctx, text)
	s.metrics.ObserveEmbed(time.Since(start))
	if err != nil {
		return nil, &EmbeddingError{Op: op, Err: err}
	}
	if len(vec) != s.dim {
		return nil, &EmbeddingError{Op: op, Err: fmt.Errorf("%w: got %d, want %d", ErrDimension, len(vec), s.dim)}
	}
	return vec, nil
}

// Count returns the number of stored memories.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}

// Dimension returns the vector dimension.
func (s *MemoryStore) Dimension() int { return s.dim }

// IndexPath returns the vector index artifact path.
func (s *MemoryStore) IndexPath() string { return s.indexPath }

// MetadataPath returns the metadata artifact path.
func (s *MemoryStore) MetadataPath() string { return s.metadataPath }

// Snapshot runs fn while no Add can be persisting, so fn observes a
// consistent pair of artifacts. It takes only addMu: waiting adds queue
// behind fn without holding mu, so searches and reads are not stalled.
func (s *MemoryStore) Snapshot(fn func(indexPath, metadataPath string) error) error {
	s.addMu.Lock()
	defer s.addMu.Unlock()
	return fn(s.indexPath, s.metadataPath)
}

// Verify checks the alignment invariant of the in-memory state.
func (s *MemoryStore) Verify() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index.Len() != len(s.records) {
		return &IntegrityError{Reason: fmt.Sprintf("index holds %d vectors but metadata holds %d records", s.index.Len(), len(s.records))}
	}
	return nil
}

// Close releases the metadata database.
func (s *MemoryStore) Close() error {
	return s.meta.close()
}
