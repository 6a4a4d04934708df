package patterns

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/itsneelabh/gomind-orchestrate/core"
)

// EnsembleStrategy is the closed set of aggregation strategies.
type EnsembleStrategy string

const (
	EnsembleBestOf EnsembleStrategy = "best-of"
	EnsembleMerge  EnsembleStrategy = "merge"
	EnsembleVote   EnsembleStrategy = "vote"
)

// Selector picks the winning result for best-of. The default picks the
// highest self-reported quality, tie-breaking on lowest latency
// (spec.md §4.9.5).
type Selector func(candidates []PerAgentResult) PerAgentResult

func defaultSelector(candidates []PerAgentResult) PerAgentResult {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Quality > best.Quality || (c.Quality == best.Quality && c.DurationMs < best.DurationMs) {
			best = c
		}
	}
	return best
}

// EnsembleData is Result.Data's shape for the Ensemble pattern.
type EnsembleData struct {
	Strategy EnsembleStrategy
	Winner   string   // best-of: chosen agent output; vote: winning label
	Merged   []string // merge: deduplicated outputs in input order
}

// Ensemble implements the best-of/merge/vote aggregation pattern
// (spec.md §4.9.5).
type Ensemble struct {
	Resolver AgentResolver
	Driver   core.AgentDriver
	Strategy EnsembleStrategy
	Selector Selector
}

func (e *Ensemble) selector() Selector {
	if e.Selector != nil {
		return e.Selector
	}
	return defaultSelector
}

// Execute implements Executor.
func (e *Ensemble) Execute(ctx context.Context, agentIDs []string, task interface{}, opts Options) Result {
	start := time.Now()

	agents, err := resolveAgents(e.Resolver, agentIDs)
	if err != nil {
		return Result{Success: false, Failures: []Failure{{Err: err.Error()}}}
	}

	perAgent := make([]PerAgentResult, len(agents))
	var wg sync.WaitGroup
	for i, agent := range agents {
		wg.Add(1)
		go func(i int, agent core.AgentDefinition) {
			defer wg.Done()
			perAgent[i] = invokeWithRetry(ctx, e.Driver, agent, task, opts.MemoryContext, opts.Retry)
		}(i, agent)
	}
	wg.Wait()

	var failures []Failure
	var ok []PerAgentResult
	for _, pa := range perAgent {
		if pa.Err != nil {
			failures = append(failures, Failure{AgentID: pa.AgentID, Err: pa.Err.Error()})
			continue
		}
		ok = append(ok, pa)
	}

	if len(ok) == 0 {
		return Result{
			Success:    false,
			PerAgent:   perAgent,
			DurationMs: time.Since(start).Milliseconds(),
			Tokens:     sumTokens(perAgent),
			Failures:   failures,
		}
	}

	var data EnsembleData
	data.Strategy = e.Strategy
	switch e.Strategy {
	case EnsembleMerge:
		data.Merged = dedupeOutputs(ok)
	case EnsembleVote:
		data.Winner = pluralityVote(ok)
	default: // best-of
		data.Winner = e.selector()(ok).Output
	}

	return Result{
		Success:    true,
		Data:       data,
		PerAgent:   perAgent,
		DurationMs: time.Since(start).Milliseconds(),
		Tokens:     sumTokens(perAgent),
		Failures:   failures,
	}
}

func dedupeOutputs(results []PerAgentResult) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(results))
	for _, r := range results {
		h := outputHash(r.Output)
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, r.Output)
	}
	return out
}

func outputHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// pluralityVote treats each agent's output as a classification label;
// the plurality label wins, lexicographic tie-break (spec.md §4.9.5).
func pluralityVote(results []PerAgentResult) string {
	tally := make(map[string]int)
	for _, r := range results {
		tally[r.Output]++
	}

	labels := make([]string, 0, len(tally))
	for l := range tally {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	best := labels[0]
	for _, l := range labels[1:] {
		if tally[l] > tally[best] {
			best = l
		}
	}
	return best
}
