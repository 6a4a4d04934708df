// Package cost implements the coordination core's token-pricing and
// budget-tracking ledger (CostLedger, spec component C7).
package cost

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/itsneelabh/gomind-orchestrate/core"
)

// BudgetStatusLevel is the closed set of budget health states.
type BudgetStatusLevel string

const (
	StatusOK       BudgetStatusLevel = "ok"       // <80%
	StatusWarning  BudgetStatusLevel = "warning"  // <95%
	StatusCritical BudgetStatusLevel = "critical" // <100%
	StatusExceeded BudgetStatusLevel = "exceeded" // >=100%
)

// Period is one budget window's figures.
type Period struct {
	Limit     float64
	Spent     float64
	Remaining float64
	Percent   float64
	Status    BudgetStatusLevel
	Projected float64 // linear projection to window end based on current rate
}

// BudgetStatus is the full budgetStatus() response.
type BudgetStatus struct {
	Daily   Period
	Monthly Period
}

// Publisher is the narrow eventbus.Bus surface the ledger publishes
// threshold-crossing events on.
type Publisher interface {
	Publish(topic string, payload interface{})
}

const (
	defaultWarnThreshold     = 0.8
	defaultCriticalThreshold = 0.95
)

// Config tunes daily/monthly budget limits and the warning/critical
// percentage thresholds levelFor reports against (spec.md §6
// "cost.warnThreshold", "cost.criticalThreshold", "cost.enforce").
// WarnThreshold and CriticalThreshold are fractions of the limit in
// [0,1]; zero falls back to 0.8/0.95. Enforce, when true, makes a
// StatusExceeded daily or monthly status fail beforeExecution instead of
// only annotating it.
type Config struct {
	DailyLimitUSD     float64
	MonthlyLimitUSD   float64
	WarnThreshold     float64
	CriticalThreshold float64
	Enforce           bool
}

// ConfigFromCore translates the ambient core.CostConfig (env-parsed,
// validated) into a Ledger Config.
func ConfigFromCore(c core.CostConfig) Config {
	return Config{
		DailyLimitUSD:     c.DailyBudgetUSD,
		MonthlyLimitUSD:   c.MonthlyBudgetUSD,
		WarnThreshold:     c.WarnThreshold,
		CriticalThreshold: c.CriticalThreshold,
		Enforce:           c.Enforce,
	}
}

// Ledger is the concrete CostLedger implementation.
type Ledger struct {
	mu      sync.RWMutex
	records []core.UsageRecord
	prices  map[string]ModelPrice
	cfg     Config
	bus     Publisher
	logger  core.Logger

	lastDailyStatus   BudgetStatusLevel
	lastMonthlyStatus BudgetStatusLevel
}

// ModelPrice is USD-per-million-tokens pricing for one model, mirroring
// the provider price tables third-party AI SDKs ship (input/output/cache
// create/cache read tiers).
type ModelPrice struct {
	InputPerMillion       float64
	OutputPerMillion      float64
	CacheCreatePerMillion float64
	CacheReadPerMillion   float64
}

// New wires a Ledger with the given per-model price table.
func New(prices map[string]ModelPrice, bus Publisher, logger core.Logger, cfg Config) *Ledger {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if caware, ok := logger.(core.ComponentAwareLogger); ok {
		logger = caware.WithComponent("framework/cost")
	}
	if prices == nil {
		prices = map[string]ModelPrice{}
	}
	if cfg.WarnThreshold <= 0 {
		cfg.WarnThreshold = defaultWarnThreshold
	}
	if cfg.CriticalThreshold <= 0 {
		cfg.CriticalThreshold = defaultCriticalThreshold
	}
	return &Ledger{
		prices:            prices,
		bus:               bus,
		logger:            logger,
		cfg:               cfg,
		lastDailyStatus:   StatusOK,
		lastMonthlyStatus: StatusOK,
	}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func (l *Ledger) computeCost(model string, tokens core.TokenUsage) (float64, bool) {
	price, ok := l.prices[model]
	if !ok {
		return 0, false
	}
	cost := float64(tokens.Input)*price.InputPerMillion/1e6 +
		float64(tokens.Output)*price.OutputPerMillion/1e6 +
		float64(tokens.CacheCreate)*price.CacheCreatePerMillion/1e6 +
		float64(tokens.CacheRead)*price.CacheReadPerMillion/1e6
	return round6(cost), true
}

// cacheSavings estimates what cacheRead tokens would have cost at the full
// input rate, minus what they actually cost at the cache-read rate.
func (l *Ledger) cacheSavings(model string, tokens core.TokenUsage) float64 {
	price, ok := l.prices[model]
	if !ok || tokens.CacheRead == 0 {
		return 0
	}
	fullRate := float64(tokens.CacheRead) * price.InputPerMillion / 1e6
	actualRate := float64(tokens.CacheRead) * price.CacheReadPerMillion / 1e6
	return round6(fullRate - actualRate)
}

// RecordUsage computes cost for tokens under model, appends a UsageRecord,
// and checks for threshold crossings.
func (l *Ledger) RecordUsage(orchestrationID, model string, tokens core.TokenUsage) core.UsageRecord {
	cost, known := l.computeCost(model, tokens)
	if !known {
		l.logger.Warn("cost: unknown model, recording zero cost", map[string]interface{}{"model": model})
	}

	record := core.UsageRecord{
		OrchestrationID: orchestrationID,
		Model:           model,
		Tokens:          tokens,
		ComputedCostUSD: cost,
		CacheSavingsUSD: l.cacheSavings(model, tokens),
		UnknownModel:    !known,
		Timestamp:       time.Now(),
	}

	l.mu.Lock()
	l.records = append(l.records, record)
	l.mu.Unlock()

	l.checkThresholds()
	return record
}

func (l *Ledger) checkThresholds() {
	status := l.BudgetStatus()

	l.mu.Lock()
	prevDaily, prevMonthly := l.lastDailyStatus, l.lastMonthlyStatus
	l.lastDailyStatus = status.Daily.Status
	l.lastMonthlyStatus = status.Monthly.Status
	l.mu.Unlock()

	if status.Daily.Status != prevDaily && status.Daily.Status != StatusOK {
		l.publish("usage:budget:"+string(status.Daily.Status), status.Daily)
	}
	if status.Monthly.Status != prevMonthly && status.Monthly.Status != StatusOK {
		l.publish("usage:budget:"+string(status.Monthly.Status), status.Monthly)
	}
}

func (l *Ledger) publish(topic string, payload interface{}) {
	if l.bus == nil {
		return
	}
	l.bus.Publish(topic, payload)
}

func (l *Ledger) levelFor(percent float64) BudgetStatusLevel {
	switch {
	case percent >= 100:
		return StatusExceeded
	case percent >= l.cfg.CriticalThreshold*100:
		return StatusCritical
	case percent >= l.cfg.WarnThreshold*100:
		return StatusWarning
	default:
		return StatusOK
	}
}

// Enforce reports whether the ledger is configured to hard-stop
// orchestration at beforeExecution once a budget is exceeded.
func (l *Ledger) Enforce() bool {
	return l.cfg.Enforce
}

func (l *Ledger) periodFor(limit float64, spent float64, windowStart, now time.Time, windowEnd time.Time) Period {
	remaining := limit - spent
	var percent float64
	if limit > 0 {
		percent = spent / limit * 100
	}

	var projected float64
	elapsed := now.Sub(windowStart)
	total := windowEnd.Sub(windowStart)
	if elapsed > 0 && total > 0 {
		projected = round6(spent * (total.Seconds() / elapsed.Seconds()))
	} else {
		projected = spent
	}

	return Period{
		Limit:     limit,
		Spent:     round6(spent),
		Remaining: round6(remaining),
		Percent:   round6(percent),
		Status:    l.levelFor(percent),
		Projected: projected,
	}
}

// BudgetStatus returns the current daily/monthly budget figures.
func (l *Ledger) BudgetStatus() BudgetStatus {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)

	var dailySpent, monthlySpent float64
	l.mu.RLock()
	for _, r := range l.records {
		if !r.Timestamp.Before(dayStart) {
			dailySpent += r.ComputedCostUSD
		}
		if !r.Timestamp.Before(monthStart) {
			monthlySpent += r.ComputedCostUSD
		}
	}
	l.mu.RUnlock()

	return BudgetStatus{
		Daily:   l.periodFor(l.cfg.DailyLimitUSD, dailySpent, dayStart, now, dayEnd),
		Monthly: l.periodFor(l.cfg.MonthlyLimitUSD, monthlySpent, monthStart, now, monthEnd),
	}
}

// AggregateFilters bounds AgentCosts/PatternCosts.
type AggregateFilters struct {
	From time.Time
	To   time.Time
}

func (f AggregateFilters) matches(t time.Time) bool {
	if !f.From.IsZero() && t.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.After(f.To) {
		return false
	}
	return true
}

// ModelCosts aggregates total cost per model within filters. The ledger
// does not retain agent/pattern attribution directly (that belongs to
// store.PatternStat/AgentStat); ModelCosts is this package's own
// aggregate axis, model being the one dimension UsageRecord carries.
func (l *Ledger) ModelCosts(filters AggregateFilters) map[string]float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]float64)
	for _, r := range l.records {
		if !filters.matches(r.Timestamp) {
			continue
		}
		out[r.Model] = round6(out[r.Model] + r.ComputedCostUSD)
	}
	return out
}

// Cleanup deletes UsageRecords older than olderThanDays and returns the
// count removed.
func (l *Ledger) Cleanup(olderThanDays int) int {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.records[:0]
	removed := 0
	for _, r := range l.records {
		if r.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	l.records = kept
	return removed
}

// Records returns a snapshot of all recorded UsageRecords, sorted by
// timestamp ascending. Intended for diagnostics/tests, not the hot path.
func (l *Ledger) Records() []core.UsageRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := append([]core.UsageRecord(nil), l.records...)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
