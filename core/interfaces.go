package core

import (
	"context"
	"sync"
	"time"
)

// Logger interface - minimal logging interface
type Logger interface {
	// Basic logging methods
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})

	// Context-aware methods for distributed tracing and request correlation
	InfoWithContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, fields map[string]interface{})
	DebugWithContext(ctx context.Context, msg string, fields map[string]interface{})
}

// ComponentAwareLogger extends Logger with component context support.
// This allows different parts of the coordination core to share one base
// configuration while tagging their own structured logs.
//
// Component naming convention:
//   - "framework/eventbus"     - EventBus
//   - "framework/store"        - PersistentStore
//   - "framework/embedding"    - EmbeddingIndex
//   - "framework/contextmemory" - ContextRetriever
//   - "framework/orchestrator" - Orchestrator
//   - "framework/patterns"     - PatternExecutors
type ComponentAwareLogger interface {
	Logger
	WithComponent(component string) Logger
}

// Telemetry interface - optional telemetry support
type Telemetry interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	RecordMetric(name string, value float64, labels map[string]string)
}

// Span represents a telemetry span
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	RecordError(err error)
}

// TokenUsage records the four token counters the data model tracks for an
// Orchestration: input, output, cache-create and cache-read.
type TokenUsage struct {
	Input       int
	Output      int
	CacheCreate int
	CacheRead   int
}

// Total returns the sum of all four token counters.
func (t TokenUsage) Total() int {
	return t.Input + t.Output + t.CacheCreate + t.CacheRead
}

// AgentDriver is the consumed contract for invoking a declarative agent
// (spec §6 "AgentDriver contract"). The concrete transport (HTTP call to an
// LLM API, a local model, a subprocess) is deliberately out of scope; the
// core only depends on this interface.
type AgentDriver interface {
	Invoke(ctx context.Context, agentInstructions string, task interface{}, agentContext map[string]interface{}) (AgentResult, error)
}

// AgentResult is the outcome of a single AgentDriver.Invoke call.
type AgentResult struct {
	Output  string
	Tokens  TokenUsage
	Model   string
	Quality float64 // self-reported quality in [0,1], used by Ensemble best-of
}

// EmbeddingBackend is the consumed contract for a vector store (spec §6
// "EmbeddingBackend contract"). Implementations may fail; EmbeddingIndex
// circuit-breaks on repeated failure.
type EmbeddingBackend interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Query(ctx context.Context, vector []float32, limit int, filter map[string]interface{}) ([]EmbeddingHit, error)
	Upsert(ctx context.Context, items []EmbeddingItem) error
	Delete(ctx context.Context, ids []string) error
}

// EmbeddingItem is a single vector record to upsert.
type EmbeddingItem struct {
	ID       string
	Vector   []float32
	Metadata map[string]interface{}
}

// EmbeddingHit is a single vector-search result.
type EmbeddingHit struct {
	ID         string
	Similarity float64
	Metadata   map[string]interface{}
	Timestamp  time.Time
}

// TokenCounter is the consumed contract for estimating token cost of a
// candidate payload (spec §6 "TokenCounter contract"). Must be a pure,
// deterministic function.
type TokenCounter interface {
	Count(text string, model string) int
}

// AICategorizationDriver is the consumed contract for the Categorizer's
// primary (AI) extraction path (spec §6 "AICategorizationDriver contract").
type AICategorizationDriver interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, timeout time.Duration) (string, error)
}

// Default no-op implementations

// NoOpLogger provides a no-op logger implementation
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Error(msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}

func (n *NoOpLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}

// WithComponent on NoOpLogger returns itself - components layered on top of
// a no-op logger stay no-op.
func (n *NoOpLogger) WithComponent(component string) Logger { return n }

// NoOpTelemetry provides a no-op telemetry implementation
type NoOpTelemetry struct{}

func (n *NoOpTelemetry) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &NoOpSpan{}
}

func (n *NoOpTelemetry) RecordMetric(name string, value float64, labels map[string]string) {}

// NoOpSpan provides a no-op span implementation
type NoOpSpan struct{}

func (n *NoOpSpan) End()                                       {}
func (n *NoOpSpan) SetAttribute(key string, value interface{}) {}
func (n *NoOpSpan) RecordError(err error)                      {}

// ============================================================================
// Global Registry Pattern for Telemetry Integration
// ============================================================================

// MetricsRegistry enables the telemetry module to register itself with core.
// This avoids circular dependencies while enabling metrics emission from
// coordination-core internals (store, cache, circuit breaker).
//
// The telemetry module implements this interface via FrameworkMetricsRegistry
// and registers itself using SetMetricsRegistry() during initialization.
type MetricsRegistry interface {
	// Counter increments a counter metric by 1
	Counter(name string, labels ...string)

	// EmitWithContext emits a metric with context for trace correlation
	EmitWithContext(ctx context.Context, name string, value float64, labels ...string)

	// GetBaggage returns baggage from context for correlation
	GetBaggage(ctx context.Context) map[string]string

	// Gauge sets a gauge metric to a specific value
	Gauge(name string, value float64, labels ...string)

	// Histogram records a value in a histogram distribution
	Histogram(name string, value float64, labels ...string)
}

// Global registry - set by telemetry module when it initializes
var globalMetricsRegistry MetricsRegistry

// SetMetricsRegistry allows the telemetry module to register itself
func SetMetricsRegistry(registry MetricsRegistry) {
	globalMetricsRegistry = registry
	enableMetricsOnExistingLoggers()
}

// GetGlobalMetricsRegistry returns the global metrics registry if available.
// Returns nil if the telemetry module has not registered one yet.
func GetGlobalMetricsRegistry() MetricsRegistry {
	return globalMetricsRegistry
}

// Track created loggers to enable metrics when telemetry becomes available
var createdLoggers []*ProductionLogger
var loggersMutex sync.RWMutex

func trackLogger(logger *ProductionLogger) {
	loggersMutex.Lock()
	defer loggersMutex.Unlock()

	createdLoggers = append(createdLoggers, logger)

	if globalMetricsRegistry != nil {
		logger.EnableMetrics()
	}
}

func enableMetricsOnExistingLoggers() {
	loggersMutex.Lock()
	defer loggersMutex.Unlock()

	for _, logger := range createdLoggers {
		logger.EnableMetrics()
	}
}
