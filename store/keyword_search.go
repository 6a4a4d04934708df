package store

import (
	"sort"

	"github.com/itsneelabh/gomind-orchestrate/embedding"
)

// KeywordMatch implements embedding.KeywordSearcher, letting EmbeddingIndex
// fall back to the store's BM25 index when the vector backend is open or
// erroring (spec.md §4.4).
func (s *Store) KeywordMatch(query string, limit int) ([]embedding.KeywordHit, error) {
	if s.IsDegraded() {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	docIDs := s.index.matchedDocs(query)
	hits := make([]embedding.KeywordHit, 0, len(docIDs))
	for _, id := range docIDs {
		hits = append(hits, embedding.KeywordHit{ID: id, Score: s.index.score(id, query)})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
