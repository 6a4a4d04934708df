package core

import "time"

// Pattern identifies one of the five multi-agent interaction strategies.
type Pattern string

const (
	PatternParallel  Pattern = "parallel"
	PatternConsensus Pattern = "consensus"
	PatternDebate    Pattern = "debate"
	PatternReview    Pattern = "review"
	PatternEnsemble  Pattern = "ensemble"
)

// ValidPattern reports whether p is one of the closed set of patterns.
func ValidPattern(p Pattern) bool {
	switch p {
	case PatternParallel, PatternConsensus, PatternDebate, PatternReview, PatternEnsemble:
		return true
	}
	return false
}

// ObservationType identifies the closed set of things a Categorizer can
// extract from a completed Orchestration. Unknown values collapse to
// ObservationPatternUsage.
type ObservationType string

const (
	ObservationDecision      ObservationType = "decision"
	ObservationBugfix        ObservationType = "bugfix"
	ObservationFeature       ObservationType = "feature"
	ObservationPatternUsage  ObservationType = "pattern-usage"
	ObservationDiscovery     ObservationType = "discovery"
	ObservationRefactor      ObservationType = "refactor"
)

// ValidObservationType reports whether t is one of the closed set.
func ValidObservationType(t ObservationType) bool {
	switch t {
	case ObservationDecision, ObservationBugfix, ObservationFeature,
		ObservationPatternUsage, ObservationDiscovery, ObservationRefactor:
		return true
	}
	return false
}

// ObservationSource records whether an Observation came from the AI
// extraction path or the rule-based fallback.
type ObservationSource string

const (
	SourceAI   ObservationSource = "ai"
	SourceRule ObservationSource = "rule"
)

// Orchestration is one execution of a pattern (spec §3). The id is assigned
// once by the Orchestrator/Store and is immutable thereafter; the row is
// mutated only by the afterExecution hook's single write.
type Orchestration struct {
	ID             string    `json:"id"`
	Pattern        Pattern   `json:"pattern"`
	AgentIDs       []string  `json:"agent_ids"`
	Task           string    `json:"task"`
	ResultSummary  string    `json:"result_summary"`
	Success        bool      `json:"success"`
	Reason         string    `json:"reason,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	DurationMs     int64     `json:"duration_ms"`
	Tokens         TokenUsage `json:"tokens"`
	Model          string    `json:"model"`
	Warnings       []string  `json:"warnings,omitempty"`
}

// Observation is a learning extracted from an Orchestration (spec §3).
type Observation struct {
	ID              string            `json:"id"`
	OrchestrationID string            `json:"orchestration_id"`
	Type            ObservationType   `json:"type"`
	Text            string            `json:"text"`
	Concepts        []string          `json:"concepts"`
	Importance      int               `json:"importance"`
	PerAgentInsights map[string]string `json:"per_agent_insights,omitempty"`
	Source          ObservationSource `json:"source"`
	CreatedAt       time.Time         `json:"created_at"`
}

// ClampImportance clamps an importance value to the [1,10] contract.
func ClampImportance(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

// AgentPriority is the declarative registry's coarse priority band, used as
// a best-match tie-breaker (high > medium > low).
type AgentPriority string

const (
	PriorityLow    AgentPriority = "low"
	PriorityMedium AgentPriority = "medium"
	PriorityHigh   AgentPriority = "high"
)

func (p AgentPriority) rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// ComparePriority returns >0 if a outranks b, 0 if equal, <0 otherwise.
func ComparePriority(a, b AgentPriority) int {
	return a.rank() - b.rank()
}

// AgentDefinition is a declarative agent loaded from the AgentRegistry's
// metadata-preamble files (spec §3 "Agent (declarative)", §6).
type AgentDefinition struct {
	Name         string        `json:"name"`
	DisplayName  string        `json:"display_name"`
	ModelID      string        `json:"model"`
	Temperature  float64       `json:"temperature"`
	MaxTokens    int           `json:"max_tokens"`
	Capabilities []string      `json:"capabilities"`
	Category     string        `json:"category"`
	Phase        string        `json:"phase"`
	Priority     AgentPriority `json:"priority"`
	Tools        []string      `json:"tools"`
	Tags         []string      `json:"tags"`
	Instructions string        `json:"-"`
	SourcePath   string        `json:"source_path"`
}

// UsageRecord is one row per Orchestration for cost accounting (spec §3).
type UsageRecord struct {
	OrchestrationID string    `json:"orchestration_id"`
	Model           string    `json:"model"`
	Tokens          TokenUsage `json:"tokens"`
	ComputedCostUSD float64   `json:"computed_cost_usd"`
	CacheSavingsUSD float64   `json:"cache_savings_usd"`
	UnknownModel    bool      `json:"unknown_model,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// ContextCacheEntry is the in-memory-only value ContextRetriever's LRU
// cache stores (spec §3).
type ContextCacheEntry struct {
	Key          string
	Value        interface{}
	CreatedAt    time.Time
	LastHit      time.Time
	TTLExpiresAt time.Time
}
