// Package categorizer implements the coordination core's observation
// extraction (Categorizer, spec component C6): an AI-driven structured-
// prompt extraction path with strict JSON validation, and an always-
// available rule-based fallback.
package categorizer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/itsneelabh/gomind-orchestrate/core"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultBatchConcurrency = 3
	maxConcepts           = 5
)

// fallbackOrder is the priority order the rule-based path checks keyword
// hits in, per spec.md §4.6.
var fallbackOrder = []struct {
	typ      core.ObservationType
	keywords []string
	base     int
}{
	{core.ObservationDecision, []string{"decided", "decision", "chose", "opted"}, 7},
	{core.ObservationDiscovery, []string{"discovered", "found that", "realized", "turns out"}, 6},
	{core.ObservationRefactor, []string{"refactor", "restructure", "reorganiz", "cleanup"}, 5},
	{core.ObservationFeature, []string{"implement", "add", "feature", "new capability"}, 5},
	{core.ObservationBugfix, []string{"bug", "fix", "error", "issue", "broken"}, 6},
}

var codeFenceRE = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// Config tunes batch concurrency and AI-path timeout.
type Config struct {
	BatchConcurrency int
	Timeout          time.Duration
}

// DefaultConfig returns spec-default tuning.
func DefaultConfig() Config {
	return Config{BatchConcurrency: defaultBatchConcurrency, Timeout: defaultTimeout}
}

// Categorizer is the concrete implementation.
type Categorizer struct {
	driver core.AICategorizationDriver // may be nil: rule-based only
	cfg    Config
	logger core.Logger
}

// New wires a Categorizer. driver may be nil, in which case only the
// rule-based fallback is ever used.
func New(driver core.AICategorizationDriver, logger core.Logger, cfg Config) *Categorizer {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if caware, ok := logger.(core.ComponentAwareLogger); ok {
		logger = caware.WithComponent("framework/categorizer")
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = defaultBatchConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Categorizer{driver: driver, cfg: cfg, logger: logger}
}

type aiResponse struct {
	Type            string            `json:"type"`
	Observation     string            `json:"observation"`
	Concepts        []string          `json:"concepts"`
	Importance      int               `json:"importance"`
	AgentInsights   map[string]string `json:"agentInsights"`
	Recommendations string            `json:"recommendations"`
}

// Categorize extracts one Observation from o. It tries the AI path first
// (when a driver is wired) and falls back to rule-based extraction on any
// failure — this method never returns an error.
func (c *Categorizer) Categorize(ctx context.Context, o core.Orchestration) core.Observation {
	if c.driver != nil {
		if obs, ok := c.categorizeAI(ctx, o); ok {
			return obs
		}
	}
	return c.categorizeRule(o)
}

func (c *Categorizer) categorizeAI(ctx context.Context, o core.Orchestration) (core.Observation, bool) {
	systemPrompt := "You are an observation extractor for a multi-agent orchestration system. " +
		"Respond with a single JSON object and nothing else."
	userPrompt := buildUserPrompt(o)

	raw, err := c.driver.Complete(ctx, systemPrompt, userPrompt, c.cfg.Timeout)
	if err != nil {
		c.logger.Warn("categorizer: AI path failed, falling back to rules", map[string]interface{}{"error": err.Error()})
		return core.Observation{}, false
	}

	parsed, err := parseResponse(raw)
	if err != nil {
		c.logger.Warn("categorizer: AI response invalid, falling back to rules", map[string]interface{}{"error": err.Error()})
		return core.Observation{}, false
	}
	if parsed.Observation == "" {
		c.logger.Warn("categorizer: AI response missing required field", nil)
		return core.Observation{}, false
	}

	typ := core.ObservationType(parsed.Type)
	if !core.ValidObservationType(typ) {
		c.logger.Warn("categorizer: AI returned unknown type, defaulting", map[string]interface{}{"type": parsed.Type})
		typ = core.ObservationPatternUsage
	}

	concepts := parsed.Concepts
	if len(concepts) > maxConcepts {
		concepts = concepts[:maxConcepts]
	}

	return core.Observation{
		OrchestrationID:  o.ID,
		Type:             typ,
		Text:             parsed.Observation,
		Concepts:         concepts,
		Importance:       core.ClampImportance(parsed.Importance),
		PerAgentInsights: parsed.AgentInsights,
		Source:           core.SourceAI,
		CreatedAt:        time.Now(),
	}, true
}

func buildUserPrompt(o core.Orchestration) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task: %s\n", o.Task)
	fmt.Fprintf(&sb, "Pattern: %s\n", o.Pattern)
	fmt.Fprintf(&sb, "Success: %v\n", o.Success)
	fmt.Fprintf(&sb, "Result: %s\n", o.ResultSummary)
	sb.WriteString("Respond with JSON: {\"type\":..., \"observation\":..., \"concepts\":[...], ")
	sb.WriteString("\"importance\":..., \"agentInsights\":{...}, \"recommendations\":...}")
	return sb.String()
}

// parseResponse tolerates a surrounding code fence around the JSON object.
func parseResponse(raw string) (aiResponse, error) {
	trimmed := strings.TrimSpace(raw)
	if m := codeFenceRE.FindStringSubmatch(trimmed); m != nil {
		trimmed = m[1]
	}

	var resp aiResponse
	if err := json.Unmarshal([]byte(trimmed), &resp); err != nil {
		return aiResponse{}, fmt.Errorf("categorizer: invalid JSON response: %w", err)
	}
	return resp, nil
}

// categorizeRule is the always-available keyword-driven fallback.
func (c *Categorizer) categorizeRule(o core.Orchestration) core.Observation {
	lower := strings.ToLower(o.Task + " " + o.ResultSummary)

	typ := core.ObservationPatternUsage
	base := 4
	for _, entry := range fallbackOrder {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				typ = entry.typ
				base = entry.base
				goto matched
			}
		}
	}
matched:
	importance := base
	if !o.Success {
		importance -= 2
	}
	importance = core.ClampImportance(importance)

	concepts := []string{string(o.Pattern)}
	if !o.Success {
		concepts = append(concepts, "failure-analysis")
	}
	if len(concepts) > maxConcepts {
		concepts = concepts[:maxConcepts]
	}

	text := o.ResultSummary
	if text == "" {
		text = o.Task
	}

	return core.Observation{
		OrchestrationID: o.ID,
		Type:            typ,
		Text:            text,
		Concepts:        concepts,
		Importance:      importance,
		Source:          core.SourceRule,
		CreatedAt:       time.Now(),
	}
}

// ItemResult is one Batch item's independent outcome.
type ItemResult struct {
	Orchestration core.Orchestration
	Observation   core.Observation
	Err           error
}

// Batch categorizes items with concurrency bounded by cfg.BatchConcurrency.
// A per-item failure (there are none currently, since Categorize never
// errors) would not abort the batch — outcomes are recorded independently.
func (c *Categorizer) Batch(ctx context.Context, items []core.Orchestration) []ItemResult {
	results := make([]ItemResult, len(items))
	sem := make(chan struct{}, c.cfg.BatchConcurrency)
	var wg sync.WaitGroup

	for i, o := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, o core.Orchestration) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = ItemResult{Orchestration: o, Observation: c.Categorize(ctx, o)}
		}(i, o)
	}
	wg.Wait()
	return results
}
