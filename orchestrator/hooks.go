package orchestrator

import (
	"context"
	"fmt"

	"github.com/itsneelabh/gomind-orchestrate/contextmemory"
	"github.com/itsneelabh/gomind-orchestrate/core"
	"github.com/itsneelabh/gomind-orchestrate/cost"
)

// loadMemoryHandler is the built-in beforeExecution step that enriches the
// execution context with retrieved history (spec.md §4.10 step 1).
func (o *Orchestrator) loadMemoryHandler(ctx context.Context, input interface{}) (interface{}, error) {
	ec, ok := input.(*executionContext)
	if !ok || o.retriever == nil {
		return input, nil
	}
	res := o.retriever.Retrieve(ctx, contextmemory.Request{
		Task:     fmt.Sprintf("%v", ec.Task),
		AgentIDs: ec.AgentIDs,
		Pattern:  ec.Pattern,
	})
	if res.Loaded {
		ec.MemoryContext = map[string]interface{}{
			"layer1": res.Layer1,
			"layer2": res.Layer2,
		}
	}
	return ec, nil
}

// checkBudgetHandler is the built-in beforeExecution step that annotates the
// execution context when the current spend has crossed an exceeded
// threshold. When the ledger is configured with cost.enforce=true, an
// exceeded daily or monthly budget returns core.ErrBudgetExceeded instead,
// which (being non-isolated) aborts the beforeExecution stage and fails the
// orchestration (spec.md §4.10 step 1, §6 "cost.enforce", §7).
func (o *Orchestrator) checkBudgetHandler(ctx context.Context, input interface{}) (interface{}, error) {
	ec, ok := input.(*executionContext)
	if !ok || o.ledger == nil {
		return input, nil
	}
	status := o.ledger.BudgetStatus()
	dailyExceeded := status.Daily.Status == cost.StatusExceeded
	monthlyExceeded := status.Monthly.Status == cost.StatusExceeded

	if o.ledger.Enforce() && (dailyExceeded || monthlyExceeded) {
		window := "daily"
		if monthlyExceeded {
			window = "monthly"
		}
		return input, fmt.Errorf("orchestrator: %s budget exceeded: %w", window, core.ErrBudgetExceeded)
	}

	if dailyExceeded {
		ec.BudgetWarnings = append(ec.BudgetWarnings, "daily budget exceeded")
	}
	if monthlyExceeded {
		ec.BudgetWarnings = append(ec.BudgetWarnings, "monthly budget exceeded")
	}
	return ec, nil
}

// publishStartingHandler is the built-in beforeExecution step that fires the
// orchestration:starting event (spec.md §4.10 step 1, §5 state machine).
func (o *Orchestrator) publishStartingHandler(ctx context.Context, input interface{}) (interface{}, error) {
	if ec, ok := input.(*executionContext); ok {
		o.publish(TopicOrchestrationStarting, map[string]interface{}{
			"orchestration_id": ec.OrchestrationID,
			"pattern":          ec.Pattern,
			"agent_ids":        ec.AgentIDs,
		})
	}
	return input, nil
}

// recordStoreHandler is the built-in afterExecution step that persists the
// finished orchestration (spec.md §4.10 step 3).
func (o *Orchestrator) recordStoreHandler(ctx context.Context, input interface{}) (interface{}, error) {
	in, ok := input.(*afterExecutionInput)
	if !ok || o.store == nil {
		return input, nil
	}
	if _, err := o.store.RecordOrchestration(in.Orchestration); err != nil {
		return input, fmt.Errorf("record orchestration: %w", err)
	}
	return input, nil
}

// recordCostHandler is the built-in afterExecution step that writes the
// run's token usage to the CostLedger (spec.md §4.10 step 3).
func (o *Orchestrator) recordCostHandler(ctx context.Context, input interface{}) (interface{}, error) {
	in, ok := input.(*afterExecutionInput)
	if !ok || o.ledger == nil {
		return input, nil
	}
	o.ledger.RecordUsage(in.Orchestration.ID, in.Orchestration.Model, in.Orchestration.Tokens)
	return input, nil
}

// onExecutionComplete is the async TopicExecutionComplete subscriber that
// fans out to EmbeddingIndex and Categorizer (spec.md §2 data-flow, §4.10
// step 4, §5: "async fan-out via EventBus happens after afterExecution; the
// caller does not wait on it").
func (o *Orchestrator) onExecutionComplete(ctx context.Context, topic string, payload interface{}) {
	summary, ok := payload.(completionSummary)
	if !ok {
		return
	}
	orch := summary.Orchestration

	if o.index != nil {
		if err := o.index.Add(ctx, orch.ID, orch.ResultSummary, map[string]interface{}{
			"pattern": string(orch.Pattern),
			"success": orch.Success,
		}); err != nil {
			o.logger.WarnWithContext(ctx, "orchestrator: embedding index add failed", map[string]interface{}{
				"orchestration_id": orch.ID,
				"error":            err.Error(),
			})
		}
	}

	if o.categorizer != nil {
		obs := o.categorizer.Categorize(ctx, orch)
		if o.store != nil {
			if err := o.store.AddObservations(orch.ID, []core.Observation{obs}); err != nil {
				o.logger.WarnWithContext(ctx, "orchestrator: recording observation failed", map[string]interface{}{
					"orchestration_id": orch.ID,
					"error":            err.Error(),
				})
			}
		}
	}
}
