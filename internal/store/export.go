package store

import (
	"context"
	"fmt"

	"github.com/rcliao/ripple-memory/internal/model"
)

// Records returns up to limit records starting at position offset, in
// insertion order. limit <= 0 returns everything from offset.
func (s *MemoryStore) Records(offset, limit int) []model.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(s.records) {
		return []model.Record{}
	}
	end := len(s.records)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]model.Record, 0, end-offset)
	for _, r := range s.records[offset:end] {
		r.Conversation = model.CloneTurns(r.Conversation)
		out = append(out, r)
	}
	return out
}

// Get returns the record at position.
func (s *MemoryStore) Get(position int) (model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if position < 0 || position >= len(s.records) {
		return model.Record{}, fmt.Errorf("position %d: %w", position, ErrNotFound)
	}
	r := s.records[position]
	r.Conversation = model.CloneTurns(r.Conversation)
	return r, nil
}

// Import appends records from an export, re-embedding each summary with the
// store's embedder. Exported ids and timestamps are not kept. It stops at the
// first failure and reports how many were imported.
func (s *MemoryStore) Import(ctx context.Context, records []model.Record) (int, error) {
	imported := 0
	for _, r := range records {
		if _, err := s.Add(ctx, r.Summary, r.Conversation); err != nil {
			return imported, fmt.Errorf("import record %d: %w", imported, err)
		}
		imported++
	}
	return imported, nil
}
