package store

import "os"

// Stats describes the store and its artifacts.
type Stats struct {
	IndexPath         string `json:"index_path"`
	IndexSizeBytes    int64  `json:"index_size_bytes"`
	MetadataPath      string `json:"metadata_path"`
	MetadataSizeBytes int64  `json:"metadata_size_bytes"`
	Dimension         int    `json:"dimension"`
	Memories          int    `json:"memories"`
	Conversations     int    `json:"conversation_turns"`
}

// Stats returns store statistics.
func (s *MemoryStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		IndexPath:    s.indexPath,
		MetadataPath: s.metadataPath,
		Dimension:    s.dim,
		Memories:     len(s.records),
	}
	for _, r := range s.records {
		st.Conversations += len(r.Conversation)
	}
	if info, err := os.Stat(s.indexPath); err == nil {
		st.IndexSizeBytes = info.Size()
	}
	if info, err := os.Stat(s.metadataPath); err == nil {
		st.MetadataSizeBytes = info.Size()
	}
	return st
}
