package contextmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/gomind-orchestrate/core"
)

type fakeSource struct {
	layer1    []Layer1Item
	orchs     map[string]*core.Orchestration
	obs       map[string][]core.Observation
	searchErr error
}

func (f *fakeSource) Search(filters SearchFilters) ([]Layer1Item, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.layer1, nil
}

func (f *fakeSource) GetByID(id string, includeObservations bool) (*core.Orchestration, []core.Observation, error) {
	o, ok := f.orchs[id]
	if !ok {
		return nil, nil, nil
	}
	return o, f.obs[id], nil
}

type charCounter struct{}

func (charCounter) Count(text string, model string) int { return len(text) }

func TestRetrieveSkipsLayer2WhenLayer1ExceedsBudget(t *testing.T) {
	source := &fakeSource{layer1: []Layer1Item{
		{ID: "a", TaskSnippet: "a very long task snippet that eats the whole budget up", Relevance: 1},
	}}
	r, err := New(source, charCounter{}, nil, DefaultConfig())
	require.NoError(t, err)

	res := r.Retrieve(context.Background(), Request{Task: "x", MaxTokens: 10})
	require.True(t, res.Loaded)
	require.False(t, res.Progressive)
	require.Empty(t, res.Layer2)
}

func TestRetrieveAssemblesLayer2WhenBudgetAllows(t *testing.T) {
	source := &fakeSource{
		layer1: []Layer1Item{{ID: "a", TaskSnippet: "s", ResultSummary: "r", Relevance: 1}},
		orchs:  map[string]*core.Orchestration{"a": {ID: "a", Task: "task", ResultSummary: "result"}},
		obs:    map[string][]core.Observation{"a": {{Text: "obs"}}},
	}
	r, err := New(source, charCounter{}, nil, DefaultConfig())
	require.NoError(t, err)

	res := r.Retrieve(context.Background(), Request{Task: "x", MaxTokens: 10000})
	require.True(t, res.Loaded)
	require.True(t, res.Progressive)
	require.Len(t, res.Layer2, 1)
	require.Equal(t, "a", res.Layer2[0].Orchestration.ID)
}

func TestRetrieveReturnsErrorResultOnSearchFailure(t *testing.T) {
	source := &fakeSource{searchErr: errors.New("store down")}
	r, err := New(source, charCounter{}, nil, DefaultConfig())
	require.NoError(t, err)

	res := r.Retrieve(context.Background(), Request{Task: "x", MaxTokens: 1000})
	require.False(t, res.Loaded)
	require.Error(t, res.Error)
}

func TestCacheHitAvoidsReassembly(t *testing.T) {
	source := &fakeSource{layer1: []Layer1Item{{ID: "a", Relevance: 1}}}
	r, err := New(source, charCounter{}, nil, DefaultConfig())
	require.NoError(t, err)

	req := Request{Task: "same task", AgentIDs: []string{"a1"}, MaxTokens: 1000}
	first := r.Retrieve(context.Background(), req)
	source.layer1 = nil // mutate backing source; cached result should be unaffected
	second := r.Retrieve(context.Background(), req)

	require.Equal(t, first.TokenCount, second.TokenCount)
	require.Len(t, second.Layer1, 1)
}

func TestCacheKeyIgnoresAgentOrder(t *testing.T) {
	a := Request{Task: "t", AgentIDs: []string{"x", "y"}, Pattern: core.PatternParallel}
	b := Request{Task: "t", AgentIDs: []string{"y", "x"}, Pattern: core.PatternParallel}
	require.Equal(t, CacheKey(a), CacheKey(b))
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	source := &fakeSource{layer1: []Layer1Item{{ID: "a", Relevance: 1}}}
	cfg := DefaultConfig()
	cfg.CacheTTL = time.Millisecond
	r, err := New(source, charCounter{}, nil, cfg)
	require.NoError(t, err)

	req := Request{Task: "t", MaxTokens: 1000}
	r.Retrieve(context.Background(), req)
	time.Sleep(5 * time.Millisecond)
	source.layer1 = nil

	res := r.Retrieve(context.Background(), req)
	require.Empty(t, res.Layer1)
}
