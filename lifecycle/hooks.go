// Package lifecycle implements the coordination core's named pipeline
// stages (LifecycleHooks, spec component C2): ordered handler chains keyed
// by stage name, with isolated/non-isolated failure semantics and
// per-stage metrics.
package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/itsneelabh/gomind-orchestrate/core"
)

// Handler transforms input into output for the next handler in a stage's
// pipeline. Stages used by the coordination core: beforeExecution,
// afterExecution, onError, beforeAgentExecution, afterAgentExecution,
// beforePatternSelection, afterPatternSelection.
type Handler func(ctx context.Context, input interface{}) (interface{}, error)

// HandlerOptions controls how a registered handler participates in its
// stage's pipeline.
type HandlerOptions struct {
	// Priority orders execution ascending; ties broken by insertion order.
	Priority int
	// Isolated handlers have their errors caught, logged, and swallowed —
	// the previous value is forwarded unchanged to the next handler.
	Isolated bool
}

// StageMetrics accumulates counters for one stage across all Execute calls.
type StageMetrics struct {
	Executions  int64
	Successes   int64
	Failures    int64
	TotalTimeMs int64
}

type registration struct {
	id       string
	handler  Handler
	opts     HandlerOptions
	ordinal  int
}

// Hooks is the concrete LifecycleHooks implementation.
type Hooks struct {
	mu      sync.RWMutex
	stages  map[string][]*registration
	ordinal int

	metricsMu sync.Mutex
	metrics   map[string]*StageMetrics

	logger core.Logger
}

// New constructs an empty Hooks registry.
func New(logger core.Logger) *Hooks {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if caware, ok := logger.(core.ComponentAwareLogger); ok {
		logger = caware.WithComponent("framework/lifecycle")
	}
	return &Hooks{
		stages:  make(map[string][]*registration),
		metrics: make(map[string]*StageMetrics),
		logger:  logger,
	}
}

// Register adds handler to stage's pipeline under id. Registering the same
// id twice in the same stage replaces the earlier registration in place
// (keeping its original ordinal, so relative priority order is preserved
// for equal-priority reinstallation).
func (h *Hooks) Register(stage, id string, handler Handler, opts HandlerOptions) {
	h.mu.Lock()
	defer h.mu.Unlock()

	regs := h.stages[stage]
	for i, r := range regs {
		if r.id == id {
			regs[i] = &registration{id: id, handler: handler, opts: opts, ordinal: r.ordinal}
			sortStage(regs)
			return
		}
	}

	h.ordinal++
	regs = append(regs, &registration{id: id, handler: handler, opts: opts, ordinal: h.ordinal})
	sortStage(regs)
	h.stages[stage] = regs
}

// Unregister removes id from stage, if present.
func (h *Hooks) Unregister(stage, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	regs := h.stages[stage]
	for i, r := range regs {
		if r.id == id {
			h.stages[stage] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

func sortStage(regs []*registration) {
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].opts.Priority != regs[j].opts.Priority {
			return regs[i].opts.Priority < regs[j].opts.Priority
		}
		return regs[i].ordinal < regs[j].ordinal
	})
}

// Execute runs stage's handlers in priority order, each receiving the
// previous handler's output. A non-isolated handler's error stops the
// pipeline and is returned to the caller; an isolated handler's error is
// logged and swallowed, forwarding the unchanged input to the next handler.
func (h *Hooks) Execute(ctx context.Context, stage string, input interface{}) (interface{}, error) {
	h.mu.RLock()
	regs := make([]*registration, len(h.stages[stage]))
	copy(regs, h.stages[stage])
	h.mu.RUnlock()

	value := input
	for _, r := range regs {
		start := time.Now()
		out, err := r.handler(ctx, value)
		elapsed := time.Since(start)

		h.recordMetric(stage, err == nil, elapsed)

		if err != nil {
			if r.opts.Isolated {
				h.logger.WarnWithContext(ctx, "lifecycle: isolated handler failed, continuing", map[string]interface{}{
					"stage":   stage,
					"handler": r.id,
					"error":   err.Error(),
				})
				continue
			}
			return value, fmt.Errorf("lifecycle stage %q handler %q: %w", stage, r.id, err)
		}
		value = out
	}
	return value, nil
}

func (h *Hooks) recordMetric(stage string, success bool, elapsed time.Duration) {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()

	m, ok := h.metrics[stage]
	if !ok {
		m = &StageMetrics{}
		h.metrics[stage] = m
	}
	m.Executions++
	if success {
		m.Successes++
	} else {
		m.Failures++
	}
	m.TotalTimeMs += elapsed.Milliseconds()
}

// Metrics returns a snapshot of stage's accumulated metrics.
func (h *Hooks) Metrics(stage string) StageMetrics {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()

	if m, ok := h.metrics[stage]; ok {
		return *m
	}
	return StageMetrics{}
}
