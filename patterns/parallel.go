package patterns

import (
	"context"
	"sync"
	"time"

	"github.com/itsneelabh/gomind-orchestrate/core"
)

// Synthesiser combines Parallel's per-agent outputs into Result.Data. The
// default returns the ordered sequence of outputs unchanged.
type Synthesiser func(perAgent []PerAgentResult) interface{}

func defaultSynthesiser(perAgent []PerAgentResult) interface{} {
	outputs := make([]string, len(perAgent))
	for i, p := range perAgent {
		outputs[i] = p.Output
	}
	return outputs
}

// Parallel dispatches all agents concurrently and waits for all to return
// (spec.md §4.9.1).
type Parallel struct {
	Resolver    AgentResolver
	Driver      core.AgentDriver
	Synthesiser Synthesiser
	RequireAll  bool // success = all, instead of the default success = any
}

func (p *Parallel) synth() Synthesiser {
	if p.Synthesiser != nil {
		return p.Synthesiser
	}
	return defaultSynthesiser
}

// Execute implements Executor.
func (p *Parallel) Execute(ctx context.Context, agentIDs []string, task interface{}, opts Options) Result {
	start := time.Now()

	agents, err := resolveAgents(p.Resolver, agentIDs)
	if err != nil {
		return Result{Success: false, Failures: []Failure{{Err: err.Error()}}}
	}

	perAgent := make([]PerAgentResult, len(agents))
	var wg sync.WaitGroup
	for i, agent := range agents {
		wg.Add(1)
		go func(i int, agent core.AgentDefinition) {
			defer wg.Done()
			perAgent[i] = invokeWithRetry(ctx, p.Driver, agent, task, opts.MemoryContext, opts.Retry)
		}(i, agent)
	}
	wg.Wait()

	var failures []Failure
	succeeded := 0
	for _, pa := range perAgent {
		if pa.Err != nil {
			failures = append(failures, Failure{AgentID: pa.AgentID, Err: pa.Err.Error()})
			continue
		}
		succeeded++
	}

	success := succeeded > 0
	if p.RequireAll {
		success = succeeded == len(agents)
	}

	return Result{
		Success:    success,
		Data:       p.synth()(perAgent),
		PerAgent:   perAgent,
		DurationMs: time.Since(start).Milliseconds(),
		Tokens:     sumTokens(perAgent),
		Failures:   failures,
	}
}
