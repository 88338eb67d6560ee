package store

import (
	"context"

	"github.com/rcliao/ripple-memory/internal/model"
)

// Search returns the k memories closest to query by squared L2 distance,
// nearest first. Ties keep insertion order. Fewer than k results are
// returned when the store holds fewer memories; an empty store returns an
// empty slice without calling the embedder.
func (s *MemoryStore) Search(ctx context.Context, query string, k int) ([]model.SearchResult, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if s.Count() == 0 {
		s.metrics.ObserveSearch("empty")
		return []model.SearchResult{}, nil
	}

	// embed without holding the state lock so adds are not blocked on it
	vec, err := s.embed(ctx, "query", query)
	if err != nil {
		s.metrics.ObserveSearch("embed_error")
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := s.index.Search(vec, k)
	if err != nil {
		s.metrics.ObserveSearch("error")
		return nil, &EmbeddingError{Op: "query", Err: err}
	}

	results := make([]model.SearchResult, 0, len(matches))
	for _, m := range matches {
		rec := s.records[m.Position]
		rec.Conversation = model.CloneTurns(rec.Conversation)
		results = append(results, model.SearchResult{
			Record:   rec,
			Position: m.Position,
			Distance: m.Distance,
		})
	}
	s.metrics.ObserveSearch("ok")
	s.logger.Debug("memory search", "k", k, "results", len(results))
	return results, nil
}
