package contextmemory

import (
	"time"

	"github.com/itsneelabh/gomind-orchestrate/core"
	"github.com/itsneelabh/gomind-orchestrate/store"
)

func unixToTime(unix int64) time.Time {
	return time.Unix(unix, 0)
}

// StoreAdapter adapts *store.Store to the SearchSource contract, converting
// its BM25-ranked summaries into Layer1Items keyed off Score as relevance.
type StoreAdapter struct {
	Store *store.Store
}

// Search implements SearchSource.
func (a StoreAdapter) Search(filters SearchFilters) ([]Layer1Item, error) {
	var success *bool
	summaries, err := a.Store.Search(store.SearchFilters{
		Query:    filters.Query,
		Pattern:  filters.Pattern,
		AgentID:  filters.AgentID,
		Success:  success,
		FromUnix: filters.FromUnix,
		ToUnix:   filters.ToUnix,
		Limit:    filters.Limit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]Layer1Item, len(summaries))
	for i, s := range summaries {
		out[i] = Layer1Item{
			ID:            s.ID,
			Pattern:       s.Pattern,
			TaskSnippet:   s.TaskSnippet,
			ResultSummary: s.ResultSummary,
			Relevance:     s.Score,
			Timestamp:     unixToTime(s.StartedAt),
			Success:       s.Success,
		}
	}
	return out, nil
}

// GetByID implements SearchSource.
func (a StoreAdapter) GetByID(id string, includeObservations bool) (*core.Orchestration, []core.Observation, error) {
	return a.Store.GetByID(id, includeObservations)
}
