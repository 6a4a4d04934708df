// Package patterns implements the coordination core's pattern executors
// (PatternExecutors, spec component C9): Parallel, Consensus, Debate,
// Review and Ensemble, sharing one retrying, timeout-bounded agent
// invocation path.
package patterns

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/itsneelabh/gomind-orchestrate/core"
)

const (
	defaultTimeout     = 60 * time.Second
	defaultRetries     = 3
	defaultBaseBackoff = 1 * time.Second
	defaultJitter      = 0.2
)

// RetryConfig tunes per-agent timeout and retry/backoff (spec.md §4.9:
// "configurable timeout (default 60s) and up to R retries (default 3) with
// exponential backoff (base 1s, jitter ±20%)").
type RetryConfig struct {
	Timeout     time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
	Jitter      float64
}

// DefaultRetryConfig returns the spec-default tuning.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Timeout: defaultTimeout, MaxRetries: defaultRetries, BaseBackoff: defaultBaseBackoff, Jitter: defaultJitter}
}

func (c RetryConfig) normalize() RetryConfig {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultRetries
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = defaultBaseBackoff
	}
	if c.Jitter <= 0 {
		c.Jitter = defaultJitter
	}
	return c
}

// AgentResolver looks up a declarative agent's definition by ID, the seam
// pattern executors use to go from an agent-id sequence to invocable
// instructions without importing the registry package directly.
type AgentResolver interface {
	GetByName(name string) (core.AgentDefinition, bool)
}

// PerAgentResult is one agent's outcome within a pattern invocation.
type PerAgentResult struct {
	AgentID    string
	Output     string
	Tokens     core.TokenUsage
	Model      string
	Quality    float64
	Err        error
	Attempts   int
	DurationMs int64
}

// Failure records one agent's terminal failure, tagged with whether that
// agent was indispensable to the pattern (spec.md §4.9 failure semantics).
type Failure struct {
	AgentID       string
	Err           string
	Indispensable bool
}

// Result is the common shape every pattern executor returns.
type Result struct {
	Success    bool
	Data       interface{}
	PerAgent   []PerAgentResult
	DurationMs int64
	Tokens     core.TokenUsage
	Failures   []Failure
}

// Executor is the shared contract all five pattern strategies implement.
type Executor interface {
	Execute(ctx context.Context, agentIDs []string, task interface{}, opts Options) Result
}

// Options carries per-invocation tuning plus the memoryContext the
// Orchestrator enriches the task with before dispatch (spec.md §4.9).
type Options struct {
	Retry         RetryConfig
	MemoryContext map[string]interface{}
	Extra         map[string]interface{} // pattern-specific parameters (strategy, rounds, threshold...)
}

// invokeWithRetry runs one agent through driver.Invoke with exponential
// backoff + jitter, bounded by cfg.MaxRetries retries after the first
// attempt and a per-attempt timeout; retrying stops once ctx is done.
func invokeWithRetry(ctx context.Context, driver core.AgentDriver, agent core.AgentDefinition, task interface{}, memCtx map[string]interface{}, cfg RetryConfig) PerAgentResult {
	cfg = cfg.normalize()
	start := time.Now()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BaseBackoff
	b.RandomizationFactor = cfg.Jitter
	b.Multiplier = 2
	b.MaxElapsedTime = 0 // bounded by MaxRetries, not elapsed time
	bounded := backoff.WithContext(backoff.WithMaxRetries(b, uint64(cfg.MaxRetries)), ctx)

	attempts := 0
	var result core.AgentResult

	err := backoff.Retry(func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		var invokeErr error
		result, invokeErr = driver.Invoke(attemptCtx, agent.Instructions, task, memCtx)
		if invokeErr != nil {
			return invokeErr
		}
		return nil
	}, bounded)

	out := PerAgentResult{
		AgentID:    agent.Name,
		Attempts:   attempts,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		out.Err = fmt.Errorf("agent %s: %w", agent.Name, err)
		return out
	}

	out.Output = result.Output
	out.Tokens = result.Tokens
	out.Model = result.Model
	out.Quality = result.Quality
	return out
}

// resolveAgents maps agentIDs to their AgentDefinitions via resolver,
// returning an error for any ID the resolver doesn't know.
func resolveAgents(resolver AgentResolver, agentIDs []string) ([]core.AgentDefinition, error) {
	agents := make([]core.AgentDefinition, 0, len(agentIDs))
	for _, id := range agentIDs {
		a, ok := resolver.GetByName(id)
		if !ok {
			return nil, fmt.Errorf("patterns: unknown agent %q", id)
		}
		agents = append(agents, a)
	}
	return agents, nil
}

func sumTokens(perAgent []PerAgentResult) core.TokenUsage {
	var total core.TokenUsage
	for _, p := range perAgent {
		total.Input += p.Tokens.Input
		total.Output += p.Tokens.Output
		total.CacheCreate += p.Tokens.CacheCreate
		total.CacheRead += p.Tokens.CacheRead
	}
	return total
}

// jaccard computes token-set Jaccard similarity between two texts, the
// fallback similarity measure Debate uses when no embedding similarity is
// wired (spec.md §4.9.3).
func jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	word := make([]rune, 0, 16)
	flush := func() {
		if len(word) > 0 {
			set[string(word)] = true
			word = word[:0]
		}
	}
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			word = append(word, r)
		} else {
			flush()
		}
	}
	flush()
	return set
}

// jitterDuration is exposed for pattern-internal scheduling that needs ad
// hoc jittered delays outside the retry path (e.g. staggered fan-out).
func jitterDuration(base time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return base
	}
	delta := float64(base) * fraction
	offset := (rand.Float64()*2 - 1) * delta
	return base + time.Duration(offset)
}
