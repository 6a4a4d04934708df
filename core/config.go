package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration options for the coordination core.
// It supports three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithDBPath(".memory/orchestrations.db"),
//	    WithDailyBudget(25.0),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	Memory       MemoryConfig       `json:"memory"`
	Embedding    EmbeddingConfig    `json:"embedding"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	Cost         CostConfig         `json:"cost"`
	Bus          BusConfig          `json:"bus"`
	Logging      LoggingConfig      `json:"logging"`
	Development  DevelopmentConfig  `json:"development"`

	// Logger instance for configuration operations (excluded from JSON)
	logger Logger `json:"-"`
}

// MemoryConfig controls PersistentStore location and ContextRetriever
// budgeting/caching behaviour (spec §6 "memory.*").
type MemoryConfig struct {
	DBPath             string        `json:"db_path" env:"GOMIND_MEMORY_DB_PATH" default:".memory/orchestrations.db"`
	EnableMemory       bool          `json:"enable_memory" env:"GOMIND_MEMORY_ENABLE" default:"true"`
	ContextTokenBudget int           `json:"context_token_budget" env:"GOMIND_MEMORY_TOKEN_BUDGET" default:"2000"`
	SafetyBuffer       float64       `json:"safety_buffer" env:"GOMIND_MEMORY_SAFETY_BUFFER" default:"0.2"`
	CacheSize          int           `json:"cache_size" env:"GOMIND_MEMORY_CACHE_SIZE" default:"100"`
	CacheTTL           time.Duration `json:"cache_ttl" env:"GOMIND_MEMORY_CACHE_TTL" default:"5m"`
	Layer1Limit        int           `json:"layer1_limit" env:"GOMIND_MEMORY_LAYER1_LIMIT" default:"10"`
	Layer2Limit        int           `json:"layer2_limit" env:"GOMIND_MEMORY_LAYER2_LIMIT" default:"5"`
}

// EmbeddingConfig controls the EmbeddingIndex circuit breaker and search mode
// (spec §6 "embedding.*").
type EmbeddingConfig struct {
	Enabled            bool          `json:"enabled" env:"GOMIND_EMBEDDING_ENABLED" default:"true"`
	CircuitThreshold   int           `json:"circuit_threshold" env:"GOMIND_EMBEDDING_CIRCUIT_THRESHOLD" default:"3"`
	CircuitCooldown    time.Duration `json:"circuit_cooldown" env:"GOMIND_EMBEDDING_CIRCUIT_COOLDOWN" default:"60s"`
	SearchMode         string        `json:"search_mode" env:"GOMIND_EMBEDDING_SEARCH_MODE" default:"hybrid"`
	HybridVectorWeight float64       `json:"hybrid_vector_weight" env:"GOMIND_EMBEDDING_HYBRID_VECTOR_WEIGHT" default:"0.7"`
}

// OrchestratorConfig controls pattern-executor retry/timeout defaults
// (spec §6 "orchestrator.*"). Cost enforcement is CostConfig.Enforce.
type OrchestratorConfig struct {
	Retries     int           `json:"retries" env:"GOMIND_ORCHESTRATOR_RETRIES" default:"3"`
	RetryBaseMs time.Duration `json:"retry_base_ms" env:"GOMIND_ORCHESTRATOR_RETRY_BASE_MS" default:"1s"`
	TimeoutMs   time.Duration `json:"timeout_ms" env:"GOMIND_ORCHESTRATOR_TIMEOUT_MS" default:"60s"`
}

// CostConfig controls CostLedger budgets and thresholds (spec §6 "cost.*").
type CostConfig struct {
	DailyBudgetUSD    float64 `json:"daily_budget_usd" env:"GOMIND_COST_DAILY_BUDGET_USD" default:"0"`
	MonthlyBudgetUSD  float64 `json:"monthly_budget_usd" env:"GOMIND_COST_MONTHLY_BUDGET_USD" default:"0"`
	WarnThreshold     float64 `json:"warn_threshold" env:"GOMIND_COST_WARN_THRESHOLD" default:"0.8"`
	CriticalThreshold float64 `json:"critical_threshold" env:"GOMIND_COST_CRITICAL_THRESHOLD" default:"0.95"`
	Enforce           bool    `json:"enforce" env:"GOMIND_COST_ENFORCE" default:"false"`
}

// BusConfig controls EventBus history/backpressure (spec §6 "bus.*").
type BusConfig struct {
	HistorySize     int           `json:"history_size" env:"GOMIND_BUS_HISTORY_SIZE" default:"1000"`
	HandlerBudgetMs time.Duration `json:"handler_budget_ms" env:"GOMIND_BUS_HANDLER_BUDGET_MS" default:"5s"`
	MaxQueue        int           `json:"max_queue" env:"GOMIND_BUS_MAX_QUEUE" default:"10000"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level      string `json:"level" env:"GOMIND_LOG_LEVEL" default:"info"`
	Format     string `json:"format" env:"GOMIND_LOG_FORMAT" default:"json"`
	Output     string `json:"output" env:"GOMIND_LOG_OUTPUT" default:"stdout"`
	TimeFormat string `json:"time_format" env:"GOMIND_LOG_TIME_FORMAT" default:"2006-01-02T15:04:05.999999999Z07:00"`
}

// DevelopmentConfig contains settings for local development and testing.
type DevelopmentConfig struct {
	Enabled      bool `json:"enabled" env:"GOMIND_DEV_MODE" default:"false"`
	DebugLogging bool `json:"debug_logging" env:"GOMIND_DEBUG" default:"false"`
	PrettyLogs   bool `json:"pretty_logs" env:"GOMIND_PRETTY_LOGS" default:"false"`
}

// Option is a functional option for configuring the coordination core.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults, adjusted for
// the detected environment (Kubernetes vs local).
func DefaultConfig() *Config {
	cfg := &Config{
		Memory: MemoryConfig{
			DBPath:             ".memory/orchestrations.db",
			EnableMemory:       true,
			ContextTokenBudget: 2000,
			SafetyBuffer:       0.2,
			CacheSize:          100,
			CacheTTL:           5 * time.Minute,
			Layer1Limit:        10,
			Layer2Limit:        5,
		},
		Embedding: EmbeddingConfig{
			Enabled:            true,
			CircuitThreshold:   3,
			CircuitCooldown:    60 * time.Second,
			SearchMode:         "hybrid",
			HybridVectorWeight: 0.7,
		},
		Orchestrator: OrchestratorConfig{
			Retries:     3,
			RetryBaseMs: 1 * time.Second,
			TimeoutMs:   60 * time.Second,
		},
		Cost: CostConfig{
			WarnThreshold:     0.8,
			CriticalThreshold: 0.95,
			Enforce:           false,
		},
		Bus: BusConfig{
			HistorySize:     1000,
			HandlerBudgetMs: 5 * time.Second,
			MaxQueue:        10000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			TimeFormat: time.RFC3339Nano,
		},
		Development: DevelopmentConfig{
			Enabled:      false,
			DebugLogging: false,
			PrettyLogs:   false,
		},
	}

	cfg.DetectEnvironment()
	return cfg
}

// DetectEnvironment adjusts logging/development defaults based on the
// detected execution environment.
func (c *Config) DetectEnvironment() {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		c.Logging.Format = "json"
		return
	}
	if os.Getenv("GOMIND_DEV_MODE") == "" {
		c.Development.Enabled = true
		c.Development.PrettyLogs = true
		c.Logging.Format = "text"
	}
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables take precedence over defaults but are overridden
// by functional options.
func (c *Config) LoadFromEnv() error {
	if c.logger != nil {
		c.logger.Info("Loading configuration from environment", map[string]interface{}{
			"config_source": "environment_variables",
		})
	}

	loadString(c.logger, "GOMIND_MEMORY_DB_PATH", &c.Memory.DBPath)
	loadBool(c.logger, "GOMIND_MEMORY_ENABLE", &c.Memory.EnableMemory)
	loadInt(c.logger, "GOMIND_MEMORY_TOKEN_BUDGET", &c.Memory.ContextTokenBudget)
	loadFloat(c.logger, "GOMIND_MEMORY_SAFETY_BUFFER", &c.Memory.SafetyBuffer)
	loadInt(c.logger, "GOMIND_MEMORY_CACHE_SIZE", &c.Memory.CacheSize)
	loadDuration(c.logger, "GOMIND_MEMORY_CACHE_TTL", &c.Memory.CacheTTL)
	loadInt(c.logger, "GOMIND_MEMORY_LAYER1_LIMIT", &c.Memory.Layer1Limit)
	loadInt(c.logger, "GOMIND_MEMORY_LAYER2_LIMIT", &c.Memory.Layer2Limit)

	loadBool(c.logger, "GOMIND_EMBEDDING_ENABLED", &c.Embedding.Enabled)
	loadInt(c.logger, "GOMIND_EMBEDDING_CIRCUIT_THRESHOLD", &c.Embedding.CircuitThreshold)
	loadDuration(c.logger, "GOMIND_EMBEDDING_CIRCUIT_COOLDOWN", &c.Embedding.CircuitCooldown)
	loadString(c.logger, "GOMIND_EMBEDDING_SEARCH_MODE", &c.Embedding.SearchMode)
	loadFloat(c.logger, "GOMIND_EMBEDDING_HYBRID_VECTOR_WEIGHT", &c.Embedding.HybridVectorWeight)

	loadInt(c.logger, "GOMIND_ORCHESTRATOR_RETRIES", &c.Orchestrator.Retries)
	loadDuration(c.logger, "GOMIND_ORCHESTRATOR_RETRY_BASE_MS", &c.Orchestrator.RetryBaseMs)
	loadDuration(c.logger, "GOMIND_ORCHESTRATOR_TIMEOUT_MS", &c.Orchestrator.TimeoutMs)

	loadFloat(c.logger, "GOMIND_COST_DAILY_BUDGET_USD", &c.Cost.DailyBudgetUSD)
	loadFloat(c.logger, "GOMIND_COST_MONTHLY_BUDGET_USD", &c.Cost.MonthlyBudgetUSD)
	loadFloat(c.logger, "GOMIND_COST_WARN_THRESHOLD", &c.Cost.WarnThreshold)
	loadFloat(c.logger, "GOMIND_COST_CRITICAL_THRESHOLD", &c.Cost.CriticalThreshold)
	loadBool(c.logger, "GOMIND_COST_ENFORCE", &c.Cost.Enforce)

	loadInt(c.logger, "GOMIND_BUS_HISTORY_SIZE", &c.Bus.HistorySize)
	loadDuration(c.logger, "GOMIND_BUS_HANDLER_BUDGET_MS", &c.Bus.HandlerBudgetMs)
	loadInt(c.logger, "GOMIND_BUS_MAX_QUEUE", &c.Bus.MaxQueue)

	loadString(c.logger, "GOMIND_LOG_LEVEL", &c.Logging.Level)
	loadString(c.logger, "GOMIND_LOG_FORMAT", &c.Logging.Format)
	loadString(c.logger, "GOMIND_LOG_OUTPUT", &c.Logging.Output)

	loadBool(c.logger, "GOMIND_DEV_MODE", &c.Development.Enabled)
	loadBool(c.logger, "GOMIND_DEBUG", &c.Development.DebugLogging)
	loadBool(c.logger, "GOMIND_PRETTY_LOGS", &c.Development.PrettyLogs)

	return nil
}

func loadString(logger Logger, env string, dst *string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
		if logger != nil {
			logger.Debug("configuration loaded", map[string]interface{}{"source": env})
		}
	}
}

func loadBool(logger Logger, env string, dst *bool) {
	if v := os.Getenv(env); v != "" {
		*dst = parseBool(v)
		if logger != nil {
			logger.Debug("configuration loaded", map[string]interface{}{"source": env})
		}
	}
}

func loadInt(logger Logger, env string, dst *int) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
			if logger != nil {
				logger.Debug("configuration loaded", map[string]interface{}{"source": env})
			}
		} else if logger != nil {
			logger.Warn("invalid integer in environment variable", map[string]interface{}{env: v, "error": err})
		}
	}
}

func loadFloat(logger Logger, env string, dst *float64) {
	if v := os.Getenv(env); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
			if logger != nil {
				logger.Debug("configuration loaded", map[string]interface{}{"source": env})
			}
		} else if logger != nil {
			logger.Warn("invalid float in environment variable", map[string]interface{}{env: v, "error": err})
		}
	}
}

func loadDuration(logger Logger, env string, dst *time.Duration) {
	if v := os.Getenv(env); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
			if logger != nil {
				logger.Debug("configuration loaded", map[string]interface{}{"source": env})
			}
		} else if logger != nil {
			logger.Warn("invalid duration in environment variable", map[string]interface{}{env: v, "error": err})
		}
	}
}

func parseBool(s string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return v
}

// Validate checks the configuration for internally consistent values.
func (c *Config) Validate() error {
	if c.Memory.SafetyBuffer < 0 || c.Memory.SafetyBuffer >= 1 {
		return fmt.Errorf("%w: memory.safetyBuffer must be in [0,1)", ErrInvalidConfiguration)
	}
	if c.Memory.ContextTokenBudget < 0 {
		return fmt.Errorf("%w: memory.contextTokenBudget must be >= 0", ErrInvalidConfiguration)
	}
	if c.Embedding.HybridVectorWeight < 0 || c.Embedding.HybridVectorWeight > 1 {
		return fmt.Errorf("%w: embedding.hybridVectorWeight must be in [0,1]", ErrInvalidConfiguration)
	}
	switch c.Embedding.SearchMode {
	case "vector", "keyword", "hybrid":
	default:
		return fmt.Errorf("%w: embedding.searchMode must be vector|keyword|hybrid", ErrInvalidConfiguration)
	}
	if c.Cost.WarnThreshold <= 0 || c.Cost.CriticalThreshold <= 0 || c.Cost.WarnThreshold > c.Cost.CriticalThreshold {
		return fmt.Errorf("%w: cost thresholds must be positive and warn <= critical", ErrInvalidConfiguration)
	}
	if c.Orchestrator.Retries < 0 {
		return fmt.Errorf("%w: orchestrator.retries must be >= 0", ErrInvalidConfiguration)
	}
	return nil
}

// NewConfig builds a Config from defaults, environment variables, and
// functional options, in that priority order, then validates the result.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if cfg.logger == nil {
		logger := NewProductionLogger(cfg.Logging, cfg.Development, "gomind-orchestrate")
		if prodLogger, ok := logger.(*ProductionLogger); ok {
			trackLogger(prodLogger)
		}
		cfg.logger = logger
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// WithDBPath overrides the PersistentStore file location.
func WithDBPath(path string) Option {
	return func(c *Config) error {
		if path == "" {
			return fmt.Errorf("%w: db path cannot be empty", ErrInvalidConfiguration)
		}
		c.Memory.DBPath = path
		return nil
	}
}

// WithMemory toggles memory (context retrieval) on or off.
func WithMemory(enabled bool) Option {
	return func(c *Config) error {
		c.Memory.EnableMemory = enabled
		return nil
	}
}

// WithContextBudget overrides the context token budget and safety buffer.
func WithContextBudget(tokens int, safetyBuffer float64) Option {
	return func(c *Config) error {
		if tokens < 0 {
			return fmt.Errorf("%w: tokens must be >= 0", ErrInvalidConfiguration)
		}
		if safetyBuffer < 0 || safetyBuffer >= 1 {
			return fmt.Errorf("%w: safetyBuffer must be in [0,1)", ErrInvalidConfiguration)
		}
		c.Memory.ContextTokenBudget = tokens
		c.Memory.SafetyBuffer = safetyBuffer
		return nil
	}
}

// WithEmbedding toggles the embedding index and sets its search mode.
func WithEmbedding(enabled bool, searchMode string) Option {
	return func(c *Config) error {
		c.Embedding.Enabled = enabled
		if searchMode != "" {
			c.Embedding.SearchMode = searchMode
		}
		return nil
	}
}

// WithDailyBudget sets the daily USD budget enforced by CostLedger.
func WithDailyBudget(usd float64) Option {
	return func(c *Config) error {
		if usd < 0 {
			return fmt.Errorf("%w: daily budget must be >= 0", ErrInvalidConfiguration)
		}
		c.Cost.DailyBudgetUSD = usd
		return nil
	}
}

// WithMonthlyBudget sets the monthly USD budget enforced by CostLedger.
func WithMonthlyBudget(usd float64) Option {
	return func(c *Config) error {
		if usd < 0 {
			return fmt.Errorf("%w: monthly budget must be >= 0", ErrInvalidConfiguration)
		}
		c.Cost.MonthlyBudgetUSD = usd
		return nil
	}
}

// WithCostEnforcement toggles hard-stop behaviour at beforeExecution.
func WithCostEnforcement(enforce bool) Option {
	return func(c *Config) error {
		c.Cost.Enforce = enforce
		return nil
	}
}

// WithOrchestratorRetries overrides the per-agent retry count and base delay.
func WithOrchestratorRetries(retries int, baseDelay time.Duration) Option {
	return func(c *Config) error {
		if retries < 0 {
			return fmt.Errorf("%w: retries must be >= 0", ErrInvalidConfiguration)
		}
		c.Orchestrator.Retries = retries
		c.Orchestrator.RetryBaseMs = baseDelay
		return nil
	}
}

// WithLogLevel overrides the logging level.
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogFormat overrides the logging format ("json" or "text").
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		if format != "json" && format != "text" {
			return fmt.Errorf("%w: log format must be json or text", ErrInvalidConfiguration)
		}
		c.Logging.Format = format
		return nil
	}
}

// WithDevelopmentMode toggles development defaults (pretty logs, debug).
func WithDevelopmentMode(enabled bool) Option {
	return func(c *Config) error {
		c.Development.Enabled = enabled
		if enabled {
			c.Development.PrettyLogs = true
			c.Logging.Format = "text"
		}
		return nil
	}
}

// WithLogger injects a caller-supplied logger instead of the default
// ProductionLogger.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.logger = logger
		return nil
	}
}

// ============================================================================
// ProductionLogger Implementation - Layered Observability Architecture
// ============================================================================

// ProductionLogger provides layered observability for coordination-core
// operations: console output always, metrics emission when telemetry is
// wired, trace correlation when context baggage is available.
type ProductionLogger struct {
	level       string
	debug       bool
	serviceName string
	component   string
	format      string
	output      io.Writer

	metricsEnabled bool
}

// NewProductionLogger creates a logger from LoggingConfig.
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	var output io.Writer = os.Stdout
	if logging.Output == "stderr" {
		output = os.Stderr
	}

	return &ProductionLogger{
		level:          strings.ToLower(logging.Level),
		debug:          dev.DebugLogging || logging.Level == "debug",
		serviceName:    serviceName,
		component:      "framework",
		format:         logging.Format,
		output:         output,
		metricsEnabled: false,
	}
}

// EnableMetrics is called by the telemetry module to enable the metrics layer.
func (p *ProductionLogger) EnableMetrics() {
	p.metricsEnabled = true
}

// WithComponent returns a logger tagged with the given component name,
// e.g. "framework/store", "framework/orchestrator".
func (p *ProductionLogger) WithComponent(component string) Logger {
	return &ProductionLogger{
		level:          p.level,
		debug:          p.debug,
		serviceName:    p.serviceName,
		component:      component,
		format:         p.format,
		output:         p.output,
		metricsEnabled: p.metricsEnabled,
	}
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, nil)
}

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, ctx)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, nil)
}

func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, ctx)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, nil)
}

func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, ctx)
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, nil)
	}
}

func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, ctx)
	}
}

// logEvent implements the layered observability: console + metrics + trace.
func (p *ProductionLogger) logEvent(level, msg string, fields map[string]interface{}, ctx context.Context) {
	timestamp := time.Now().Format(time.RFC3339)

	if p.format == "json" {
		logEntry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   p.serviceName,
			"component": p.component,
			"message":   msg,
		}

		if ctx != nil && p.metricsEnabled {
			if baggage := getContextBaggage(ctx); len(baggage) > 0 {
				for k, v := range baggage {
					logEntry["trace."+k] = v
				}
			}
		}

		for k, v := range fields {
			logEntry[k] = v
		}

		if data, err := json.Marshal(logEntry); err == nil {
			fmt.Fprintln(p.output, string(data))
		}
	} else {
		traceInfo := ""
		if ctx != nil && p.metricsEnabled {
			if baggage := getContextBaggage(ctx); baggage["request_id"] != "" {
				traceInfo = fmt.Sprintf("[req=%s] ", baggage["request_id"])
			}
		}

		var fieldStr strings.Builder
		if len(fields) > 0 {
			fieldStr.WriteString(" ")
			for k, v := range fields {
				fieldStr.WriteString(fmt.Sprintf("%s=%v ", k, v))
			}
		}

		fmt.Fprintf(p.output, "%s [%s] [%s:%s] %s%s%s\n",
			timestamp, level, p.serviceName, p.component, traceInfo, msg, fieldStr.String())
	}

	if p.metricsEnabled {
		p.emitFrameworkMetric(level, msg, fields, ctx)
	}
}

func (p *ProductionLogger) emitFrameworkMetric(level, msg string, fields map[string]interface{}, ctx context.Context) {
	labels := []string{
		"level", level,
		"service", p.serviceName,
		"component", p.component,
	}

	for k, v := range fields {
		switch k {
		case "operation", "status", "error_type", "pattern":
			labels = append(labels, k, fmt.Sprintf("%v", v))
		}
	}

	if ctx != nil {
		emitMetricWithContext(ctx, "gomind.framework.operations", 1.0, labels...)
	} else {
		emitMetric("gomind.framework.operations", 1.0, labels...)
	}
}

func emitMetric(name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.Counter(name, labels...)
	}
}

func emitMetricWithContext(ctx context.Context, name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.EmitWithContext(ctx, name, value, labels...)
	}
}

func getContextBaggage(ctx context.Context) map[string]string {
	if globalMetricsRegistry != nil {
		return globalMetricsRegistry.GetBaggage(ctx)
	}
	return make(map[string]string)
}
