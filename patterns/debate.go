package patterns

import (
	"context"
	"time"

	"github.com/itsneelabh/gomind-orchestrate/core"
)

const (
	defaultDebateRounds     = 3
	debateConvergenceCosine = 0.98
	debateConvergenceJaccard = 0.9
)

// SimilarityScorer optionally provides embedding-cosine similarity between
// two texts. When absent, Debate falls back to token-Jaccard (spec.md
// §4.9.3: "embedding cosine if available, else token-Jaccard ≥ 0.9").
type SimilarityScorer interface {
	Similarity(ctx context.Context, a, b string) (float64, bool)
}

// DebateRound is one round's full history entry.
type DebateRound struct {
	Round     int
	Proposal  string
	Critiques []PerAgentResult
}

// DebateData is Result.Data's shape for the Debate pattern.
type DebateData struct {
	FinalProposal string
	Rounds        []DebateRound
	Converged     bool
}

// Debate implements the iterative proposal/critique/revise pattern
// (spec.md §4.9.3). Agents[0] is the synthesiser unless Synthesiser is set
// explicitly to another agent ID.
type Debate struct {
	Resolver    AgentResolver
	Driver      core.AgentDriver
	Similarity  SimilarityScorer
	Rounds      int
	Synthesiser string // agent ID; defaults to the first entry in agentIDs
}

func (d *Debate) rounds() int {
	if d.Rounds > 0 {
		return d.Rounds
	}
	return defaultDebateRounds
}

func (d *Debate) converged(ctx context.Context, prev, cur string) bool {
	if prev == "" || cur == "" {
		return false
	}
	if d.Similarity != nil {
		if score, ok := d.Similarity.Similarity(ctx, prev, cur); ok {
			return score >= debateConvergenceCosine
		}
	}
	return jaccard(prev, cur) >= debateConvergenceJaccard
}

// Execute implements Executor.
func (d *Debate) Execute(ctx context.Context, agentIDs []string, task interface{}, opts Options) Result {
	start := time.Now()

	if len(agentIDs) == 0 {
		return Result{Success: false, Failures: []Failure{{Err: "debate requires at least one agent"}}}
	}

	synthID := d.Synthesiser
	if synthID == "" {
		synthID = agentIDs[0]
	}

	agents, err := resolveAgents(d.Resolver, agentIDs)
	if err != nil {
		return Result{Success: false, Failures: []Failure{{Err: err.Error()}}}
	}

	agentByID := make(map[string]core.AgentDefinition, len(agents))
	for _, a := range agents {
		agentByID[a.Name] = a
	}
	synth, ok := agentByID[synthID]
	if !ok {
		return Result{Success: false, Failures: []Failure{{AgentID: synthID, Err: "synthesiser not found among agents", Indispensable: true}}}
	}

	var critics []core.AgentDefinition
	for _, a := range agents {
		if a.Name != synthID {
			critics = append(critics, a)
		}
	}

	var allPerAgent []PerAgentResult
	var history []DebateRound
	var proposal, prevProposal string
	converged := false

	for round := 1; round <= d.rounds(); round++ {
		var task2 interface{}
		if round == 1 {
			task2 = task
		} else {
			task2 = map[string]interface{}{"task": task, "currentProposal": proposal, "round": round}
		}

		synthResult := invokeWithRetry(ctx, d.Driver, synth, task2, opts.MemoryContext, opts.Retry)
		allPerAgent = append(allPerAgent, synthResult)
		if synthResult.Err != nil {
			return Result{
				Success:    false,
				PerAgent:   allPerAgent,
				DurationMs: time.Since(start).Milliseconds(),
				Tokens:     sumTokens(allPerAgent),
				Failures:   []Failure{{AgentID: synthID, Err: synthResult.Err.Error(), Indispensable: true}},
			}
		}

		prevProposal = proposal
		proposal = synthResult.Output

		var critiques []PerAgentResult
		if round < d.rounds() && len(critics) > 0 {
			critiques = critiqueRound(ctx, d.Driver, critics, proposal, opts)
			allPerAgent = append(allPerAgent, critiques...)
		}

		history = append(history, DebateRound{Round: round, Proposal: proposal, Critiques: critiques})

		if round > 1 && d.converged(ctx, prevProposal, proposal) {
			converged = true
			break
		}
		if len(critiques) == 0 {
			break
		}
	}

	var failures []Failure
	for _, pa := range allPerAgent {
		if pa.Err != nil {
			failures = append(failures, Failure{AgentID: pa.AgentID, Err: pa.Err.Error()})
		}
	}

	return Result{
		Success:    true,
		Data:       DebateData{FinalProposal: proposal, Rounds: history, Converged: converged},
		PerAgent:   allPerAgent,
		DurationMs: time.Since(start).Milliseconds(),
		Tokens:     sumTokens(allPerAgent),
		Failures:   failures,
	}
}

func critiqueRound(ctx context.Context, driver core.AgentDriver, critics []core.AgentDefinition, proposal string, opts Options) []PerAgentResult {
	results := make([]PerAgentResult, len(critics))
	done := make(chan struct{}, len(critics))
	for i, agent := range critics {
		go func(i int, agent core.AgentDefinition) {
			defer func() { done <- struct{}{} }()
			results[i] = invokeWithRetry(ctx, driver, agent, map[string]interface{}{"proposal": proposal}, opts.MemoryContext, opts.Retry)
		}(i, agent)
	}
	for range critics {
		<-done
	}
	return results
}
