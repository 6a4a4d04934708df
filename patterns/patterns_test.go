package patterns

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/gomind-orchestrate/core"
)

type fakeResolver struct {
	agents map[string]core.AgentDefinition
}

func newFakeResolver(names ...string) *fakeResolver {
	r := &fakeResolver{agents: make(map[string]core.AgentDefinition)}
	for _, n := range names {
		r.agents[n] = core.AgentDefinition{Name: n, Instructions: "do " + n}
	}
	return r
}

func (r *fakeResolver) GetByName(name string) (core.AgentDefinition, bool) {
	a, ok := r.agents[name]
	return a, ok
}

// fakeDriver returns a scripted AgentResult or error per agentID, counting
// invocations so retry behavior can be asserted.
type fakeDriver struct {
	mu        sync.Mutex
	responses map[string]func(attempt int) (core.AgentResult, error)
	calls     map[string]int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{responses: make(map[string]func(attempt int) (core.AgentResult, error)), calls: make(map[string]int)}
}

func (d *fakeDriver) always(agent string, result core.AgentResult, err error) {
	d.responses[agent] = func(int) (core.AgentResult, error) { return result, err }
}

func (d *fakeDriver) failNThenSucceed(agent string, n int, result core.AgentResult) {
	d.responses[agent] = func(attempt int) (core.AgentResult, error) {
		if attempt <= n {
			return core.AgentResult{}, errors.New("transient failure")
		}
		return result, nil
	}
}

func (d *fakeDriver) Invoke(ctx context.Context, instructions string, task interface{}, agentContext map[string]interface{}) (core.AgentResult, error) {
	// instructions is "do <name>" per newFakeResolver; recover the name.
	name := instructions[len("do "):]
	d.mu.Lock()
	d.calls[name]++
	attempt := d.calls[name]
	fn := d.responses[name]
	d.mu.Unlock()
	if fn == nil {
		return core.AgentResult{Output: "default"}, nil
	}
	return fn(attempt)
}

func fastRetry() RetryConfig {
	return RetryConfig{Timeout: time.Second, MaxRetries: 3, BaseBackoff: time.Millisecond, Jitter: 0.1}
}

func TestParallelSuccessAnyByDefault(t *testing.T) {
	resolver := newFakeResolver("a1", "a2")
	driver := newFakeDriver()
	driver.always("a1", core.AgentResult{Output: "out1"}, nil)
	driver.always("a2", core.AgentResult{}, errors.New("boom"))

	p := &Parallel{Resolver: resolver, Driver: driver}
	res := p.Execute(context.Background(), []string{"a1", "a2"}, "task", Options{Retry: fastRetry()})

	require.True(t, res.Success)
	require.Len(t, res.Failures, 1)
	require.Equal(t, "a2", res.Failures[0].AgentID)
}

func TestParallelRequireAllFailsOnSingleFailure(t *testing.T) {
	resolver := newFakeResolver("a1", "a2")
	driver := newFakeDriver()
	driver.always("a1", core.AgentResult{Output: "out1"}, nil)
	driver.always("a2", core.AgentResult{}, errors.New("boom"))

	p := &Parallel{Resolver: resolver, Driver: driver, RequireAll: true}
	res := p.Execute(context.Background(), []string{"a1", "a2"}, "task", Options{Retry: fastRetry()})

	require.False(t, res.Success)
}

func TestParallelRetriesOnTransientFailure(t *testing.T) {
	resolver := newFakeResolver("a1")
	driver := newFakeDriver()
	driver.failNThenSucceed("a1", 2, core.AgentResult{Output: "recovered"})

	p := &Parallel{Resolver: resolver, Driver: driver}
	res := p.Execute(context.Background(), []string{"a1"}, "task", Options{Retry: fastRetry()})

	require.True(t, res.Success)
	require.Equal(t, 3, res.PerAgent[0].Attempts)
}

func TestConsensusMajorityPicksHighestVote(t *testing.T) {
	resolver := newFakeResolver("a1", "a2", "a3")
	driver := newFakeDriver()
	driver.always("a1", core.AgentResult{Output: `{"option":"yes","confidence":0.9}`}, nil)
	driver.always("a2", core.AgentResult{Output: `{"option":"yes","confidence":1.0}`}, nil)
	driver.always("a3", core.AgentResult{Output: `{"option":"no","confidence":0.7}`}, nil)

	c := &Consensus{Resolver: resolver, Driver: driver, Strategy: ConsensusMajority}
	res := c.Execute(context.Background(), []string{"a1", "a2", "a3"}, "task", Options{Retry: fastRetry()})

	data := res.Data.(ConsensusData)
	require.True(t, data.Consensus)
	require.Equal(t, "yes", data.Winner)
}

func TestConsensusBelowThresholdFails(t *testing.T) {
	resolver := newFakeResolver("a1", "a2")
	driver := newFakeDriver()
	driver.always("a1", core.AgentResult{Output: `{"option":"yes","confidence":0.6}`}, nil)
	driver.always("a2", core.AgentResult{Output: `{"option":"no","confidence":0.6}`}, nil)

	c := &Consensus{Resolver: resolver, Driver: driver, Threshold: 0.9}
	res := c.Execute(context.Background(), []string{"a1", "a2"}, "task", Options{Retry: fastRetry()})

	data := res.Data.(ConsensusData)
	require.False(t, data.Consensus)
	require.Equal(t, "", data.Winner)
	require.False(t, res.Success)
}

func TestConsensusTiedVoteLeavesWinnerEmpty(t *testing.T) {
	resolver := newFakeResolver("a1", "a2", "a3", "a4")
	driver := newFakeDriver()
	driver.always("a1", core.AgentResult{Output: `{"option":"A","confidence":1.0}`}, nil)
	driver.always("a2", core.AgentResult{Output: `{"option":"A","confidence":1.0}`}, nil)
	driver.always("a3", core.AgentResult{Output: `{"option":"B","confidence":1.0}`}, nil)
	driver.always("a4", core.AgentResult{Output: `{"option":"B","confidence":1.0}`}, nil)

	c := &Consensus{Resolver: resolver, Driver: driver, Threshold: 0.6}
	res := c.Execute(context.Background(), []string{"a1", "a2", "a3", "a4"}, "task", Options{Retry: fastRetry()})

	data := res.Data.(ConsensusData)
	require.False(t, data.Consensus)
	require.Equal(t, "", data.Winner)
	require.False(t, res.Success)
}

func TestDebateConvergesOnHighSimilarity(t *testing.T) {
	resolver := newFakeResolver("synth", "critic")
	driver := newFakeDriver()
	driver.always("synth", core.AgentResult{Output: "the quick brown fox jumps"}, nil)
	driver.always("critic", core.AgentResult{Output: "looks good"}, nil)

	d := &Debate{Resolver: resolver, Driver: driver, Rounds: 3}
	res := d.Execute(context.Background(), []string{"synth", "critic"}, "task", Options{Retry: fastRetry()})

	require.True(t, res.Success)
	data := res.Data.(DebateData)
	require.True(t, data.Converged)
	require.Equal(t, "the quick brown fox jumps", data.FinalProposal)
}

func TestDebateIndispensableSynthesiserFailureFailsPattern(t *testing.T) {
	resolver := newFakeResolver("synth", "critic")
	driver := newFakeDriver()
	driver.always("synth", core.AgentResult{}, errors.New("synth down"))

	d := &Debate{Resolver: resolver, Driver: driver}
	res := d.Execute(context.Background(), []string{"synth", "critic"}, "task", Options{Retry: fastRetry()})

	require.False(t, res.Success)
	require.Len(t, res.Failures, 1)
	require.True(t, res.Failures[0].Indispensable)
}

func TestReviewAcceptedMarkerStopsEarly(t *testing.T) {
	resolver := newFakeResolver("creator", "reviewer")
	driver := newFakeDriver()
	driver.always("creator", core.AgentResult{Output: "final artefact\nACCEPTED"}, nil)

	r := &Review{Resolver: resolver, Driver: driver, Rounds: 3}
	res := r.Execute(context.Background(), []string{"creator", "reviewer"}, "task", Options{Retry: fastRetry()})

	require.True(t, res.Success)
	data := res.Data.(ReviewData)
	require.True(t, data.Accepted)
}

func TestReviewIndispensableCreatorFailureFailsPattern(t *testing.T) {
	resolver := newFakeResolver("creator", "reviewer")
	driver := newFakeDriver()
	driver.always("creator", core.AgentResult{}, errors.New("creator down"))

	r := &Review{Resolver: resolver, Driver: driver}
	res := r.Execute(context.Background(), []string{"creator", "reviewer"}, "task", Options{Retry: fastRetry()})

	require.False(t, res.Success)
	require.True(t, res.Failures[0].Indispensable)
}

func TestEnsembleBestOfPicksHighestQuality(t *testing.T) {
	resolver := newFakeResolver("a1", "a2")
	driver := newFakeDriver()
	driver.always("a1", core.AgentResult{Output: "low", Quality: 0.5}, nil)
	driver.always("a2", core.AgentResult{Output: "high", Quality: 0.9}, nil)

	e := &Ensemble{Resolver: resolver, Driver: driver, Strategy: EnsembleBestOf}
	res := e.Execute(context.Background(), []string{"a1", "a2"}, "task", Options{Retry: fastRetry()})

	data := res.Data.(EnsembleData)
	require.Equal(t, "high", data.Winner)
}

func TestEnsembleMergeDedupesByOutputHash(t *testing.T) {
	resolver := newFakeResolver("a1", "a2", "a3")
	driver := newFakeDriver()
	driver.always("a1", core.AgentResult{Output: "same"}, nil)
	driver.always("a2", core.AgentResult{Output: "same"}, nil)
	driver.always("a3", core.AgentResult{Output: "different"}, nil)

	e := &Ensemble{Resolver: resolver, Driver: driver, Strategy: EnsembleMerge}
	res := e.Execute(context.Background(), []string{"a1", "a2", "a3"}, "task", Options{Retry: fastRetry()})

	data := res.Data.(EnsembleData)
	require.Len(t, data.Merged, 2)
}

func TestEnsembleVotePluralityWithTieBreak(t *testing.T) {
	resolver := newFakeResolver("a1", "a2")
	driver := newFakeDriver()
	driver.always("a1", core.AgentResult{Output: "cat"}, nil)
	driver.always("a2", core.AgentResult{Output: "dog"}, nil)

	e := &Ensemble{Resolver: resolver, Driver: driver, Strategy: EnsembleVote}
	res := e.Execute(context.Background(), []string{"a1", "a2"}, "task", Options{Retry: fastRetry()})

	data := res.Data.(EnsembleData)
	require.Equal(t, "cat", data.Winner) // tie, lexicographically first
}

func TestJaccardSimilarity(t *testing.T) {
	require.InDelta(t, 1.0, jaccard("the quick fox", "the quick fox"), 0.001)
	require.Less(t, jaccard("the quick fox", "a slow turtle"), 0.5)
}
