package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/gomind-orchestrate/core"
	"github.com/itsneelabh/gomind-orchestrate/cost"
	"github.com/itsneelabh/gomind-orchestrate/eventbus"
	"github.com/itsneelabh/gomind-orchestrate/lifecycle"
	"github.com/itsneelabh/gomind-orchestrate/patterns"
	"github.com/itsneelabh/gomind-orchestrate/registry"
	"github.com/itsneelabh/gomind-orchestrate/telemetry"
)

func fastRetryOptions() patterns.Options {
	return patterns.Options{Retry: patterns.RetryConfig{
		Timeout:     20 * time.Millisecond,
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
		Jitter:      0.1,
	}}
}

// scriptedDriver returns a fixed AgentResult/error for every invocation,
// optionally blocking until ctx is done (to exercise cancellation).
type scriptedDriver struct {
	result core.AgentResult
	err    error
	block  bool
}

func (d scriptedDriver) Invoke(ctx context.Context, instructions string, task interface{}, agentContext map[string]interface{}) (core.AgentResult, error) {
	if d.block {
		<-ctx.Done()
		return core.AgentResult{}, ctx.Err()
	}
	return d.result, d.err
}

func newTestRegistry(names ...string) *registry.Registry {
	r := registry.New(nil)
	for _, n := range names {
		r.Register(core.AgentDefinition{Name: n, ModelID: "gpt-test", Instructions: "do " + n})
	}
	return r
}

// topicRecorder captures every payload published to the topics it is
// subscribed to, preserving publish order.
type topicRecorder struct {
	mu     sync.Mutex
	topics []string
}

func (t *topicRecorder) record(topic string) eventbus.Handler {
	return func(ctx context.Context, gotTopic string, payload interface{}) {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.topics = append(t.topics, topic)
	}
}

func (t *topicRecorder) snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.topics...)
}

func TestExecuteParallelSuccessPublishesLifecycleEvents(t *testing.T) {
	bus := eventbus.New(eventbus.DefaultConfig(), nil, nil)
	rec := &topicRecorder{}
	for _, topic := range []string{TopicOrchestrationStarting, TopicOrchestrationRunning, TopicOrchestrationDone, TopicExecutionComplete} {
		bus.Subscribe(topic, rec.record(topic))
	}

	reg := newTestRegistry("a1", "a2")
	hooks := lifecycle.New(nil)

	o := New(Config{}, Dependencies{
		Bus:      bus,
		Hooks:    hooks,
		Registry: reg,
		Driver:   scriptedDriver{result: core.AgentResult{Output: "ok", Model: "gpt-test"}},
	})

	orch, err := o.Execute(context.Background(), core.PatternParallel, []string{"a1", "a2"}, "task", ExecuteOptions{})
	require.NoError(t, err)
	require.True(t, orch.Success)
	require.Equal(t, core.PatternParallel, orch.Pattern)
	require.Equal(t, "gpt-test", orch.Model)

	// Allow the bus's async dispatch goroutines to land before inspecting.
	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 4
	}, time.Second, time.Millisecond)

	m := o.Metrics(core.PatternParallel)
	require.Equal(t, int64(1), m.Started)
	require.Equal(t, int64(1), m.Completed)
}

func TestExecuteUnknownPatternReturnsError(t *testing.T) {
	o := New(Config{}, Dependencies{Registry: newTestRegistry("a1")})
	_, err := o.Execute(context.Background(), core.Pattern("bogus"), []string{"a1"}, "task", ExecuteOptions{})
	require.Error(t, err)
}

func TestExecuteWithoutRegisteredExecutorOverrideStillResolvesDefaults(t *testing.T) {
	reg := newTestRegistry("solo")
	o := New(Config{}, Dependencies{
		Registry: reg,
		Driver:   scriptedDriver{result: core.AgentResult{Output: "out"}},
	})
	orch, err := o.Execute(context.Background(), core.PatternEnsemble, []string{"solo"}, "task", ExecuteOptions{})
	require.NoError(t, err)
	require.True(t, orch.Success)
}

func TestExecuteCancellationRecordsCancelledReason(t *testing.T) {
	reg := newTestRegistry("slow")
	o := New(Config{}, Dependencies{
		Registry: reg,
		Driver:   scriptedDriver{block: true},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	orch, err := o.Execute(ctx, core.PatternParallel, []string{"slow"}, "task", ExecuteOptions{Pattern: fastRetryOptions()})
	require.NoError(t, err)
	require.False(t, orch.Success)
	require.Equal(t, "cancelled", orch.Reason)

	m := o.Metrics(core.PatternParallel)
	require.Equal(t, int64(1), m.Cancelled)
}

func TestExecuteFailureWithoutCancellationRecordsFailedReason(t *testing.T) {
	reg := newTestRegistry("broken")
	o := New(Config{}, Dependencies{
		Registry: reg,
		Driver:   scriptedDriver{err: errors.New("boom")},
	})

	orch, err := o.Execute(context.Background(), core.PatternParallel, []string{"broken"}, "task", ExecuteOptions{Pattern: fastRetryOptions()})
	require.NoError(t, err)
	require.False(t, orch.Success)
	require.Equal(t, "failed", orch.Reason)
}

func TestRegisterAndDiscoverDelegateToRegistry(t *testing.T) {
	reg := registry.New(nil)
	o := New(Config{}, Dependencies{Registry: reg})

	o.Register(core.AgentDefinition{Name: "late", ModelID: "gpt-test"})
	a, ok := reg.GetByName("late")
	require.True(t, ok)
	require.Equal(t, "late", a.Name)

	_, err := o.Discover("/nonexistent/path/for/test")
	require.NoError(t, err) // WalkDir on a missing root reports a LoadError, not a hard error
}

// recordingDriver tracks whether Invoke was ever called.
type recordingDriver struct {
	invoked *bool
}

func (d recordingDriver) Invoke(ctx context.Context, instructions string, task interface{}, agentContext map[string]interface{}) (core.AgentResult, error) {
	*d.invoked = true
	return core.AgentResult{Output: "ok"}, nil
}

func TestExecuteWithEnforcedExceededBudgetFailsFastAndSkipsPattern(t *testing.T) {
	reg := newTestRegistry("a1")
	hooks := lifecycle.New(nil)
	ledger := cost.New(map[string]cost.ModelPrice{"gpt-test": {InputPerMillion: 2_000_000}}, nil, nil, cost.Config{DailyLimitUSD: 1, Enforce: true})
	ledger.RecordUsage("prior", "gpt-test", core.TokenUsage{Input: 1}) // cost 2, exceeds the $1 daily limit

	invoked := false
	o := New(Config{}, Dependencies{
		Hooks:    hooks,
		Registry: reg,
		Ledger:   ledger,
		Driver:   recordingDriver{invoked: &invoked},
	})

	orch, err := o.Execute(context.Background(), core.PatternParallel, []string{"a1"}, "task", ExecuteOptions{})
	require.NoError(t, err)
	require.False(t, orch.Success)
	require.Equal(t, "budget_exceeded", orch.Reason)
	require.False(t, invoked, "pattern executor must not run once the budget hard-stop fires")

	m := o.Metrics(core.PatternParallel)
	require.Equal(t, int64(1), m.Failed)
}

func TestExecuteWithExceededBudgetButNoEnforceOnlyWarns(t *testing.T) {
	reg := newTestRegistry("a1")
	hooks := lifecycle.New(nil)
	ledger := cost.New(map[string]cost.ModelPrice{"gpt-test": {InputPerMillion: 2_000_000}}, nil, nil, cost.Config{DailyLimitUSD: 1})
	ledger.RecordUsage("prior", "gpt-test", core.TokenUsage{Input: 1})

	o := New(Config{}, Dependencies{
		Hooks:    hooks,
		Registry: reg,
		Ledger:   ledger,
		Driver:   scriptedDriver{result: core.AgentResult{Output: "ok"}},
	})

	orch, err := o.Execute(context.Background(), core.PatternParallel, []string{"a1"}, "task", ExecuteOptions{})
	require.NoError(t, err)
	require.True(t, orch.Success)
}

func TestExecuteExportsSpansAndMetricsThroughOTelProvider(t *testing.T) {
	provider, err := telemetry.NewOTelProvider("orchestrator-test", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_ = provider.Shutdown(ctx)
	}()

	reg := newTestRegistry("a1")
	o := New(Config{}, Dependencies{
		Registry:  reg,
		Driver:    scriptedDriver{result: core.AgentResult{Output: "ok", Model: "gpt-test"}},
		Telemetry: provider,
	})

	orch, err := o.Execute(context.Background(), core.PatternParallel, []string{"a1"}, "task", ExecuteOptions{})
	require.NoError(t, err)
	require.True(t, orch.Success)
}

func TestMetricsStartAtZeroForUnseenPattern(t *testing.T) {
	o := New(Config{}, Dependencies{})
	m := o.Metrics(core.PatternDebate)
	require.Equal(t, PatternMetrics{}, m)
}
