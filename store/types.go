package store

import "github.com/itsneelabh/gomind-orchestrate/core"

// OrchestrationSummary is one row of a Search result: enough to list and
// rank without paying for a full Orchestration + Observation fetch.
type OrchestrationSummary struct {
	ID            string        `json:"id"`
	Pattern       core.Pattern  `json:"pattern"`
	AgentIDs      []string      `json:"agent_ids"`
	TaskSnippet   string        `json:"task_snippet"`
	ResultSummary string        `json:"result_summary"`
	Success       bool          `json:"success"`
	StartedAt     int64         `json:"started_at_unix"`
	Score         float64       `json:"score"`
}

// SearchFilters narrows a Search call. A zero value matches everything.
type SearchFilters struct {
	Query     string
	Pattern   core.Pattern
	AgentID   string
	Success   *bool
	FromUnix  int64
	ToUnix    int64
	Limit     int
}

// PatternStat is a denormalised per-pattern counter row, updated atomically
// with every RecordOrchestration call involving that pattern.
type PatternStat struct {
	Pattern       core.Pattern `json:"pattern"`
	Count         int          `json:"count"`
	SuccessCount  int          `json:"success_count"`
	AvgDurationMs float64      `json:"avg_duration_ms"`
}

// SuccessRate returns successes/total, or 0 when total is 0 (undefined per
// spec.md §3, surfaced as 0 rather than NaN).
func (p PatternStat) SuccessRate() float64 {
	if p.Count == 0 {
		return 0
	}
	return float64(p.SuccessCount) / float64(p.Count)
}

// AgentStat is a denormalised per-agent counter row.
type AgentStat struct {
	AgentID       string  `json:"agent_id"`
	Count         int     `json:"count"`
	SuccessCount  int     `json:"success_count"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// SuccessRate returns successes/total, or 0 when total is 0.
func (a AgentStat) SuccessRate() float64 {
	if a.Count == 0 {
		return 0
	}
	return float64(a.SuccessCount) / float64(a.Count)
}

// Collaboration denormalises the multiset of agents appearing together in
// one orchestration, keyed by their sorted tuple.
type Collaboration struct {
	Key           string   `json:"key"`
	AgentIDs      []string `json:"agent_ids"`
	Count         int      `json:"count"`
	SuccessCount  int      `json:"success_count"`
	AvgDurationMs float64  `json:"avg_duration_ms"`
}

// SuccessRate returns successes/total, or 0 when total is 0.
func (c Collaboration) SuccessRate() float64 {
	if c.Count == 0 {
		return 0
	}
	return float64(c.SuccessCount) / float64(c.Count)
}

func rollingAvg(oldAvg float64, oldCount int, sample float64) float64 {
	newCount := oldCount + 1
	return oldAvg + (sample-oldAvg)/float64(newCount)
}
