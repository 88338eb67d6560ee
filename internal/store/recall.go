package store

import (
	"context"
	"strings"
	"unicode/utf8"
)

// NoRecall is the memory block used when nothing relevant is stored.
const NoRecall = "暂无相关记忆"

// Recall assembles the memory block injected into an agent prompt: the
// summaries of the k nearest memories, one per line, nearest first. Whole
// summaries are packed greedily until budget characters are used; a summary
// that does not fit is cut short only if it is the first one. budget <= 0
// means unlimited.
func (s *MemoryStore) Recall(ctx context.Context, query string, k, budget int) (string, error) {
	results, err := s.Search(ctx, query, k)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return NoRecall, nil
	}

	var b strings.Builder
	used := 0
	for i, r := range results {
		line := r.Summary
		n := utf8.RuneCountInString(line)
		if i > 0 {
			n++ // newline
		}
		if budget > 0 && used+n > budget {
			if i == 0 {
				b.WriteString(truncateRunes(line, budget))
			}
			break
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		used += n
	}
	return b.String(), nil
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
