package patterns

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/itsneelabh/gomind-orchestrate/core"
)

// ConsensusStrategy is the closed set of vote-aggregation strategies.
type ConsensusStrategy string

const (
	ConsensusMajority  ConsensusStrategy = "majority"
	ConsensusWeighted  ConsensusStrategy = "weighted"
	ConsensusUnanimous ConsensusStrategy = "unanimous"
)

const defaultConsensusThreshold = 0.6

// vote is one agent's structured response, expected as the agent's JSON
// output: {"option": "...", "confidence": 0.0-1.0}.
type vote struct {
	Option     string  `json:"option"`
	Confidence float64 `json:"confidence"`
}

// Consensus implements the voting pattern (spec.md §4.9.2).
type Consensus struct {
	Resolver  AgentResolver
	Driver    core.AgentDriver
	Strategy  ConsensusStrategy
	Threshold float64            // [0.5, 1.0], default 0.6
	Weights   map[string]float64 // agentID -> weight, default 1
}

// ConsensusData is Result.Data's shape for the Consensus pattern.
type ConsensusData struct {
	Consensus bool
	Winner    string
	Votes     map[string]float64 // option -> total weighted vote
}

func (c *Consensus) threshold() float64 {
	if c.Threshold >= 0.5 && c.Threshold <= 1.0 {
		return c.Threshold
	}
	return defaultConsensusThreshold
}

func (c *Consensus) weight(agentID string) float64 {
	if w, ok := c.Weights[agentID]; ok {
		return w
	}
	return 1
}

// Execute implements Executor.
func (c *Consensus) Execute(ctx context.Context, agentIDs []string, task interface{}, opts Options) Result {
	start := time.Now()

	agents, err := resolveAgents(c.Resolver, agentIDs)
	if err != nil {
		return Result{Success: false, Failures: []Failure{{Err: err.Error()}}}
	}

	perAgent := make([]PerAgentResult, len(agents))
	votes := make([]vote, len(agents))
	voteOK := make([]bool, len(agents))
	var wg sync.WaitGroup
	for i, agent := range agents {
		wg.Add(1)
		go func(i int, agent core.AgentDefinition) {
			defer wg.Done()
			pr := invokeWithRetry(ctx, c.Driver, agent, task, opts.MemoryContext, opts.Retry)
			perAgent[i] = pr
			if pr.Err != nil {
				return
			}
			var v vote
			if err := json.Unmarshal([]byte(pr.Output), &v); err == nil && v.Option != "" {
				votes[i] = v
				voteOK[i] = true
			}
		}(i, agent)
	}
	wg.Wait()

	var failures []Failure
	totalWeight := 0.0
	tally := make(map[string]float64)
	for i, agent := range agents {
		if perAgent[i].Err != nil {
			failures = append(failures, Failure{AgentID: agent.Name, Err: perAgent[i].Err.Error()})
			continue
		}
		if !voteOK[i] {
			failures = append(failures, Failure{AgentID: agent.Name, Err: "agent did not return a parseable vote"})
			continue
		}
		w := c.weight(agent.Name)
		totalWeight += w
		tally[votes[i].Option] += w * clampConfidence(votes[i].Confidence)
	}

	winner, won := pickWinner(tally, totalWeight, c.threshold(), c.Strategy)

	data := ConsensusData{Consensus: won, Winner: winner, Votes: tally}
	return Result{
		Success:    won,
		Data:       data,
		PerAgent:   perAgent,
		DurationMs: time.Since(start).Milliseconds(),
		Tokens:     sumTokens(perAgent),
		Failures:   failures,
	}
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// pickWinner returns the option with the highest vote total, provided it
// clears threshold relative to totalWeight; ties break lexicographically by
// option id (spec.md §4.9.2).
func pickWinner(tally map[string]float64, totalWeight, threshold float64, strategy ConsensusStrategy) (string, bool) {
	if len(tally) == 0 || totalWeight == 0 {
		return "", false
	}

	options := make([]string, 0, len(tally))
	for o := range tally {
		options = append(options, o)
	}
	sort.Strings(options)

	best := options[0]
	for _, o := range options[1:] {
		if tally[o] > tally[best] {
			best = o
		}
	}

	required := threshold
	if strategy == ConsensusUnanimous {
		required = 1.0
	}

	if tally[best]/totalWeight < required {
		return "", false
	}
	return best, true
}
