package categorizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/gomind-orchestrate/core"
)

type completeDriver struct {
	response string
	err      error
}

func (d *completeDriver) Complete(ctx context.Context, systemPrompt, userPrompt string, timeout time.Duration) (string, error) {
	return d.response, d.err
}

func TestCategorizeUsesAIPathWhenValidJSON(t *testing.T) {
	driver := &completeDriver{response: `{"type":"bugfix","observation":"fixed the race","concepts":["race","mutex"],"importance":8}`}
	c := New(driver, nil, DefaultConfig())

	obs := c.Categorize(context.Background(), core.Orchestration{ID: "o1", Task: "fix race"})
	require.Equal(t, core.ObservationBugfix, obs.Type)
	require.Equal(t, "fixed the race", obs.Text)
	require.Equal(t, core.SourceAI, obs.Source)
	require.Equal(t, 8, obs.Importance)
}

func TestCategorizeToleratesCodeFence(t *testing.T) {
	driver := &completeDriver{response: "```json\n{\"type\":\"feature\",\"observation\":\"added X\",\"concepts\":[]}\n```"}
	c := New(driver, nil, DefaultConfig())

	obs := c.Categorize(context.Background(), core.Orchestration{ID: "o1"})
	require.Equal(t, core.ObservationFeature, obs.Type)
	require.Equal(t, core.SourceAI, obs.Source)
}

func TestCategorizeFallsBackOnInvalidJSON(t *testing.T) {
	driver := &completeDriver{response: "not json at all"}
	c := New(driver, nil, DefaultConfig())

	obs := c.Categorize(context.Background(), core.Orchestration{ID: "o1", Task: "we fixed a bug"})
	require.Equal(t, core.SourceRule, obs.Source)
	require.Equal(t, core.ObservationBugfix, obs.Type)
}

func TestCategorizeFallsBackOnDriverError(t *testing.T) {
	driver := &completeDriver{err: errors.New("timeout")}
	c := New(driver, nil, DefaultConfig())

	obs := c.Categorize(context.Background(), core.Orchestration{ID: "o1", Task: "decided to use consensus"})
	require.Equal(t, core.SourceRule, obs.Source)
	require.Equal(t, core.ObservationDecision, obs.Type)
}

func TestCategorizeUnknownTypeDefaultsToPatternUsage(t *testing.T) {
	driver := &completeDriver{response: `{"type":"nonsense","observation":"something happened"}`}
	c := New(driver, nil, DefaultConfig())

	obs := c.Categorize(context.Background(), core.Orchestration{ID: "o1"})
	require.Equal(t, core.ObservationPatternUsage, obs.Type)
}

func TestRuleBasedImportanceDropsOnFailure(t *testing.T) {
	c := New(nil, nil, DefaultConfig())

	success := c.Categorize(context.Background(), core.Orchestration{Task: "fixed a bug", Success: true})
	failure := c.Categorize(context.Background(), core.Orchestration{Task: "fixed a bug", Success: false})

	require.True(t, failure.Importance < success.Importance)
	require.Contains(t, failure.Concepts, "failure-analysis")
}

func TestRuleBasedConceptsCappedAtFive(t *testing.T) {
	c := New(nil, nil, DefaultConfig())
	obs := c.Categorize(context.Background(), core.Orchestration{Pattern: core.PatternEnsemble, Success: false})
	require.LessOrEqual(t, len(obs.Concepts), 5)
}

func TestBatchProcessesAllItemsIndependently(t *testing.T) {
	c := New(nil, nil, DefaultConfig())
	items := []core.Orchestration{
		{ID: "1", Task: "fixed a bug"},
		{ID: "2", Task: "decided on approach"},
		{ID: "3", Task: "implemented new feature"},
	}

	results := c.Batch(context.Background(), items)
	require.Len(t, results, 3)
	for _, r := range results {
		require.NotEmpty(t, r.Observation.Text)
	}
}
