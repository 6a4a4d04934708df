package store

import (
	"encoding/json"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/itsneelabh/gomind-orchestrate/core"
)

const defaultSearchLimit = 50

// Search returns OrchestrationSummary rows matching filters, BM25-ranked
// when filters.Query is non-empty. On a degraded store it returns an empty
// result rather than an error.
func (s *Store) Search(filters SearchFilters) ([]OrchestrationSummary, error) {
	if s.IsDegraded() {
		return nil, nil
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var out []OrchestrationSummary
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketOrchestrations))
		return b.ForEach(func(k, v []byte) error {
			var o core.Orchestration
			if err := json.Unmarshal(v, &o); err != nil {
				return nil
			}
			if !matchesFilters(o, filters) {
				return nil
			}

			score := 0.0
			if filters.Query != "" {
				score = s.index.score(o.ID, filters.Query)
				if score <= 0 {
					return nil // query given but no term overlap
				}
			}

			out = append(out, OrchestrationSummary{
				ID:            o.ID,
				Pattern:       o.Pattern,
				AgentIDs:      o.AgentIDs,
				TaskSnippet:   truncate(o.Task, 100),
				ResultSummary: truncate(o.ResultSummary, 150),
				Success:       o.Success,
				StartedAt:     o.StartedAt.Unix(),
				Score:         score,
			})
			return nil
		})
	})
	if err != nil {
		return nil, core.NewFrameworkError("store.Search", "store", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].StartedAt > out[j].StartedAt
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesFilters(o core.Orchestration, f SearchFilters) bool {
	if f.Pattern != "" && o.Pattern != f.Pattern {
		return false
	}
	if f.AgentID != "" {
		found := false
		for _, a := range o.AgentIDs {
			if a == f.AgentID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Success != nil && o.Success != *f.Success {
		return false
	}
	unix := o.StartedAt.Unix()
	if f.FromUnix != 0 && unix < f.FromUnix {
		return false
	}
	if f.ToUnix != 0 && unix > f.ToUnix {
		return false
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
