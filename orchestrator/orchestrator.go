// Package orchestrator implements the coordination core's public façade
// (Orchestrator, spec component C10): it wires the EventBus, LifecycleHooks,
// PersistentStore, EmbeddingIndex, ContextRetriever, Categorizer, CostLedger
// and AgentRegistry behind a single Execute pipeline, and drives the pattern
// executors' retries, timeouts and cancellation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/itsneelabh/gomind-orchestrate/categorizer"
	"github.com/itsneelabh/gomind-orchestrate/contextmemory"
	"github.com/itsneelabh/gomind-orchestrate/core"
	"github.com/itsneelabh/gomind-orchestrate/cost"
	"github.com/itsneelabh/gomind-orchestrate/embedding"
	"github.com/itsneelabh/gomind-orchestrate/eventbus"
	"github.com/itsneelabh/gomind-orchestrate/lifecycle"
	"github.com/itsneelabh/gomind-orchestrate/patterns"
	"github.com/itsneelabh/gomind-orchestrate/registry"
	"github.com/itsneelabh/gomind-orchestrate/store"
)

// Lifecycle stage names (spec.md §4.10, §5).
const (
	StageBeforeExecution = "beforeExecution"
	StageAfterExecution  = "afterExecution"
)

// Event topics emitted by the Orchestrator (spec.md §6).
const (
	TopicOrchestrationStarting = "orchestration:starting"
	TopicOrchestrationRunning  = "orchestration:running"
	TopicOrchestrationDone     = "orchestration:done"
	TopicExecutionComplete     = "orchestrator:execution:complete"
)

const defaultPatternTimeout = 60 * time.Second

// Dependencies wires the nine components an Orchestrator coordinates. Every
// field is optional; a nil component is treated as absent and its pipeline
// step is skipped rather than failing the orchestration (memory, budget
// checks and persistence are enrichments, not hard requirements).
type Dependencies struct {
	Bus         *eventbus.Bus
	Hooks       *lifecycle.Hooks
	Store       *store.Store
	Index       *embedding.Index
	Retriever   *contextmemory.Retriever
	Categorizer *categorizer.Categorizer
	Ledger      *cost.Ledger
	Registry    *registry.Registry
	Driver      core.AgentDriver

	// Executors overrides the default pattern wiring (Parallel, Consensus,
	// Debate, Review, Ensemble, each backed by Registry+Driver). Supplying
	// an entry here replaces only that pattern's executor.
	Executors map[core.Pattern]patterns.Executor

	Logger core.Logger
	// Telemetry defaults to a no-op. Pass a *telemetry.OTelProvider (it
	// already implements core.Telemetry) to export orchestration spans and
	// the orchestrator.execution_duration_ms metric via OTLP/HTTP.
	Telemetry core.Telemetry
}

// Config tunes Orchestrator-level knobs beyond its wired components.
type Config struct {
	// DefaultTimeout is the whole-orchestration timeout applied when
	// ExecuteOptions.Timeout is zero. Debate multiplies it by its round
	// count. Zero uses the spec default of 60s.
	DefaultTimeout time.Duration
}

// PatternMetrics accumulates per-pattern orchestration counters
// (spec.md §4.10: "counters of {started, completed, failed, cancelled}").
type PatternMetrics struct {
	Started   int64
	Completed int64
	Failed    int64
	Cancelled int64
}

// Orchestrator is the concrete public façade (spec component C10).
type Orchestrator struct {
	bus         *eventbus.Bus
	hooks       *lifecycle.Hooks
	store       *store.Store
	index       *embedding.Index
	retriever   *contextmemory.Retriever
	categorizer *categorizer.Categorizer
	ledger      *cost.Ledger
	registry    *registry.Registry
	driver      core.AgentDriver
	executors   map[core.Pattern]patterns.Executor

	cfg       Config
	logger    core.Logger
	telemetry core.Telemetry

	metricsMu sync.Mutex
	metrics   map[core.Pattern]*PatternMetrics
}

// New constructs an Orchestrator and registers its built-in beforeExecution
// and afterExecution handlers on deps.Hooks (if supplied), plus an async
// subscriber on TopicExecutionComplete that fans out to EmbeddingIndex and
// Categorizer (spec.md §2 data-flow, §4.10 step 4).
func New(cfg Config, deps Dependencies) *Orchestrator {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = defaultPatternTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if caware, ok := logger.(core.ComponentAwareLogger); ok {
		logger = caware.WithComponent("framework/orchestrator")
	}
	telemetry := deps.Telemetry
	if telemetry == nil {
		telemetry = &core.NoOpTelemetry{}
	}

	o := &Orchestrator{
		bus:         deps.Bus,
		hooks:       deps.Hooks,
		store:       deps.Store,
		index:       deps.Index,
		retriever:   deps.Retriever,
		categorizer: deps.Categorizer,
		ledger:      deps.Ledger,
		registry:    deps.Registry,
		driver:      deps.Driver,
		cfg:         cfg,
		logger:      logger,
		telemetry:   telemetry,
		metrics:     make(map[core.Pattern]*PatternMetrics),
	}
	o.executors = o.buildExecutors(deps.Executors)

	if o.hooks != nil {
		o.hooks.Register(StageBeforeExecution, "load-memory", o.loadMemoryHandler, lifecycle.HandlerOptions{Priority: 10, Isolated: true})
		o.hooks.Register(StageBeforeExecution, "check-budget", o.checkBudgetHandler, lifecycle.HandlerOptions{Priority: 20, Isolated: false})
		o.hooks.Register(StageBeforeExecution, "publish-starting", o.publishStartingHandler, lifecycle.HandlerOptions{Priority: 30, Isolated: true})
		o.hooks.Register(StageAfterExecution, "record-store", o.recordStoreHandler, lifecycle.HandlerOptions{Priority: 10, Isolated: true})
		o.hooks.Register(StageAfterExecution, "record-cost", o.recordCostHandler, lifecycle.HandlerOptions{Priority: 20, Isolated: true})
	}
	if o.bus != nil {
		o.bus.Subscribe(TopicExecutionComplete, o.onExecutionComplete)
	}
	return o
}

// registryResolver adapts *registry.Registry to patterns.AgentResolver,
// tolerating a nil registry instead of panicking (mirrors
// contextmemory.StoreAdapter's role of keeping a consuming package ignorant
// of its collaborator's concrete nil-ness).
type registryResolver struct {
	r *registry.Registry
}

func (a registryResolver) GetByName(name string) (core.AgentDefinition, bool) {
	if a.r == nil {
		return core.AgentDefinition{}, false
	}
	return a.r.GetByName(name)
}

// buildExecutors constructs the default pattern wiring, then applies any
// caller-supplied overrides on top.
func (o *Orchestrator) buildExecutors(overrides map[core.Pattern]patterns.Executor) map[core.Pattern]patterns.Executor {
	resolver := registryResolver{o.registry}
	executors := map[core.Pattern]patterns.Executor{
		core.PatternParallel:  &patterns.Parallel{Resolver: resolver, Driver: o.driver},
		core.PatternConsensus: &patterns.Consensus{Resolver: resolver, Driver: o.driver},
		core.PatternDebate:    &patterns.Debate{Resolver: resolver, Driver: o.driver},
		core.PatternReview:    &patterns.Review{Resolver: resolver, Driver: o.driver},
		core.PatternEnsemble:  &patterns.Ensemble{Resolver: resolver, Driver: o.driver},
	}
	for p, e := range overrides {
		executors[p] = e
	}
	return executors
}

// Register adds or replaces a single declarative agent (façade over
// AgentRegistry.Register, spec.md §4.10).
func (o *Orchestrator) Register(agent core.AgentDefinition) {
	if o.registry != nil {
		o.registry.Register(agent)
	}
}

// Discover loads every declarative agent file under rootPath (façade over
// AgentRegistry.Discover, spec.md §4.10).
func (o *Orchestrator) Discover(rootPath string) ([]registry.LoadError, error) {
	if o.registry == nil {
		return nil, fmt.Errorf("orchestrator: no registry configured")
	}
	return o.registry.Discover(rootPath)
}

// Metrics returns a snapshot of pattern's accumulated started/completed/
// failed/cancelled counters.
func (o *Orchestrator) Metrics(pattern core.Pattern) PatternMetrics {
	o.metricsMu.Lock()
	defer o.metricsMu.Unlock()
	if m, ok := o.metrics[pattern]; ok {
		return *m
	}
	return PatternMetrics{}
}

// ExecuteOptions carries per-call pattern options and an optional timeout
// override.
type ExecuteOptions struct {
	Pattern patterns.Options
	Timeout time.Duration
}

// executionContext is threaded through the beforeExecution stage.
type executionContext struct {
	OrchestrationID string
	Pattern         core.Pattern
	AgentIDs        []string
	Task            interface{}
	MemoryContext   map[string]interface{}
	BudgetWarnings  []string
}

// afterExecutionInput is threaded through the afterExecution stage.
type afterExecutionInput struct {
	Orchestration *core.Orchestration
	Result        patterns.Result
}

// completionSummary is TopicExecutionComplete's payload.
type completionSummary struct {
	Orchestration core.Orchestration
	Result        patterns.Result
}

// Execute runs one orchestration end to end: beforeExecution hooks, the
// chosen pattern, afterExecution hooks, then an async completion fan-out
// (spec.md §4.10, §5).
func (o *Orchestrator) Execute(ctx context.Context, pattern core.Pattern, agentIDs []string, task interface{}, opts ExecuteOptions) (core.Orchestration, error) {
	if !core.ValidPattern(pattern) {
		return core.Orchestration{}, fmt.Errorf("orchestrator: unknown pattern %q", pattern)
	}
	executor, ok := o.executors[pattern]
	if !ok {
		return core.Orchestration{}, fmt.Errorf("orchestrator: no executor registered for pattern %q", pattern)
	}

	id := uuid.New().String()
	o.incMetric(pattern, func(m *PatternMetrics) { m.Started++ })

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = o.defaultTimeoutFor(pattern, executor)
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	spanCtx, span := o.telemetry.StartSpan(runCtx, "orchestrator.execute")
	defer span.End()
	span.SetAttribute("pattern", string(pattern))
	span.SetAttribute("orchestration_id", id)

	started := time.Now()

	ec := &executionContext{
		OrchestrationID: id,
		Pattern:         pattern,
		AgentIDs:        agentIDs,
		Task:            task,
	}
	patOpts := opts.Pattern
	if o.hooks != nil {
		out, err := o.hooks.Execute(spanCtx, StageBeforeExecution, ec)
		if err != nil {
			if errors.Is(err, core.ErrBudgetExceeded) {
				span.RecordError(err)
				orch := core.Orchestration{
					ID:         id,
					Pattern:    pattern,
					AgentIDs:   agentIDs,
					Task:       fmt.Sprintf("%v", task),
					Success:    false,
					Reason:     "budget_exceeded",
					StartedAt:  started,
					DurationMs: time.Since(started).Milliseconds(),
					Warnings:   []string{err.Error()},
				}
				o.publish(TopicOrchestrationDone, map[string]interface{}{"orchestration_id": id, "pattern": pattern, "success": false, "reason": orch.Reason})
				o.incMetric(pattern, func(m *PatternMetrics) { m.Failed++ })
				return orch, nil
			}
			o.logger.WarnWithContext(spanCtx, "orchestrator: beforeExecution stage failed", map[string]interface{}{
				"orchestration_id": id,
				"error":            err.Error(),
			})
		} else if enriched, ok := out.(*executionContext); ok {
			ec = enriched
		}
	}
	if ec.MemoryContext != nil {
		patOpts.MemoryContext = ec.MemoryContext
	}

	o.publish(TopicOrchestrationRunning, map[string]interface{}{"orchestration_id": id, "pattern": pattern})

	result := executor.Execute(spanCtx, agentIDs, task, patOpts)

	reason := ""
	success := result.Success
	if spanCtx.Err() != nil {
		success = false
		reason = "cancelled"
	} else if !success {
		reason = "failed"
	}

	orch := core.Orchestration{
		ID:            id,
		Pattern:       pattern,
		AgentIDs:      agentIDs,
		Task:          fmt.Sprintf("%v", task),
		ResultSummary: summarize(result),
		Success:       success,
		Reason:        reason,
		StartedAt:     started,
		DurationMs:    time.Since(started).Milliseconds(),
		Tokens:        result.Tokens,
		Model:         firstModel(result.PerAgent),
		Warnings:      warningsFrom(result.Failures),
	}

	if o.hooks != nil {
		afterIn := &afterExecutionInput{Orchestration: &orch, Result: result}
		if _, err := o.hooks.Execute(spanCtx, StageAfterExecution, afterIn); err != nil {
			o.logger.WarnWithContext(spanCtx, "orchestrator: afterExecution stage failed", map[string]interface{}{
				"orchestration_id": id,
				"error":            err.Error(),
			})
			span.RecordError(err)
		}
	}

	o.publish(TopicOrchestrationDone, map[string]interface{}{"orchestration_id": id, "pattern": pattern, "success": success, "reason": reason})
	o.publish(TopicExecutionComplete, completionSummary{Orchestration: orch, Result: result})

	switch {
	case success:
		o.incMetric(pattern, func(m *PatternMetrics) { m.Completed++ })
	case reason == "cancelled":
		o.incMetric(pattern, func(m *PatternMetrics) { m.Cancelled++ })
	default:
		o.incMetric(pattern, func(m *PatternMetrics) { m.Failed++ })
	}

	o.telemetry.RecordMetric("orchestrator.execution_duration_ms", float64(orch.DurationMs), map[string]string{
		"pattern": string(pattern),
		"success": fmt.Sprintf("%t", success),
	})

	return orch, nil
}

func (o *Orchestrator) publish(topic string, payload interface{}) {
	if o.bus != nil {
		o.bus.Publish(topic, payload)
	}
}

func (o *Orchestrator) incMetric(pattern core.Pattern, mutate func(*PatternMetrics)) {
	o.metricsMu.Lock()
	defer o.metricsMu.Unlock()
	m, ok := o.metrics[pattern]
	if !ok {
		m = &PatternMetrics{}
		o.metrics[pattern] = m
	}
	mutate(m)
}

// defaultTimeoutFor returns the spec's per-pattern default: 60s, or 60s ×
// round count for Debate (spec.md §4.10).
func (o *Orchestrator) defaultTimeoutFor(pattern core.Pattern, executor patterns.Executor) time.Duration {
	base := o.cfg.DefaultTimeout
	if pattern != core.PatternDebate {
		return base
	}
	d, ok := executor.(*patterns.Debate)
	if !ok || d.Rounds <= 0 {
		return base * 3
	}
	return base * time.Duration(d.Rounds)
}

func summarize(result patterns.Result) string {
	if result.Data == nil {
		return ""
	}
	return fmt.Sprintf("%v", result.Data)
}

func firstModel(perAgent []patterns.PerAgentResult) string {
	for _, pa := range perAgent {
		if pa.Model != "" {
			return pa.Model
		}
	}
	return ""
}

func warningsFrom(failures []patterns.Failure) []string {
	if len(failures) == 0 {
		return nil
	}
	warnings := make([]string, 0, len(failures))
	for _, f := range failures {
		warnings = append(warnings, fmt.Sprintf("%s: %s", f.AgentID, f.Err))
	}
	return warnings
}
