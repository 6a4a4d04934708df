// Package contextmemory implements the coordination core's token-budgeted
// context assembly (ContextRetriever, spec component C5): a two-layer
// (index/detail) view over PersistentStore search results, cached in an
// LRU keyed by a stable hash of the request shape.
package contextmemory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/itsneelabh/gomind-orchestrate/core"
)

const (
	defaultLayer1Limit   = 10
	defaultLayer2Limit   = 5
	defaultSafetyBuffer  = 0.2
	defaultCacheCapacity = 100
	defaultCacheTTL      = 5 * time.Minute
)

// SearchSource is the narrow slice of store.Store the retriever depends on.
type SearchSource interface {
	Search(filters SearchFilters) ([]Layer1Item, error)
	GetByID(id string, includeObservations bool) (*core.Orchestration, []core.Observation, error)
}

// SearchFilters mirrors store.SearchFilters without importing store,
// keeping contextmemory ignorant of the persistence layer's concrete type.
type SearchFilters struct {
	Query    string
	Pattern  core.Pattern
	AgentID  string
	FromUnix int64
	ToUnix   int64
	Limit    int
}

// Layer1Item is one index-layer hit.
type Layer1Item struct {
	ID            string
	Pattern       core.Pattern
	TaskSnippet   string
	ResultSummary string
	Relevance     float64
	Timestamp     time.Time
	Success       bool
}

// Layer2Item is a full orchestration plus its observations.
type Layer2Item struct {
	Orchestration core.Orchestration
	Observations  []core.Observation
	Truncated     bool
}

// Request describes one context-assembly call.
type Request struct {
	Task      string
	AgentIDs  []string
	Pattern   core.Pattern
	MaxTokens int
}

// Result is what Retrieve returns. On failure Loaded is false and Error is
// set; the Orchestrator proceeds without historical context either way.
type Result struct {
	Loaded      bool
	Progressive bool
	TokenCount  int
	Layer1      []Layer1Item
	Layer2      []Layer2Item
	Truncated   bool
	Error       error
}

// Config tunes budget and cache behaviour.
type Config struct {
	Layer1Limit   int
	Layer2Limit   int
	SafetyBuffer  float64
	CacheCapacity int
	CacheTTL      time.Duration
}

// DefaultConfig returns spec-default tuning.
func DefaultConfig() Config {
	return Config{
		Layer1Limit:   defaultLayer1Limit,
		Layer2Limit:   defaultLayer2Limit,
		SafetyBuffer:  defaultSafetyBuffer,
		CacheCapacity: defaultCacheCapacity,
		CacheTTL:      defaultCacheTTL,
	}
}

type cacheEntry struct {
	entry core.ContextCacheEntry
}

// Retriever is the concrete ContextRetriever implementation.
type Retriever struct {
	source  SearchSource
	counter core.TokenCounter
	cfg     Config
	logger  core.Logger
	cache   *lru.Cache[string, *cacheEntry]
}

// New wires a Retriever over source (typically store.Store) and counter
// (an external token-estimation function).
func New(source SearchSource, counter core.TokenCounter, logger core.Logger, cfg Config) (*Retriever, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if caware, ok := logger.(core.ComponentAwareLogger); ok {
		logger = caware.WithComponent("framework/contextmemory")
	}
	if cfg.Layer1Limit <= 0 {
		cfg.Layer1Limit = defaultLayer1Limit
	}
	if cfg.Layer2Limit <= 0 {
		cfg.Layer2Limit = defaultLayer2Limit
	}
	if cfg.SafetyBuffer <= 0 {
		cfg.SafetyBuffer = defaultSafetyBuffer
	}
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = defaultCacheCapacity
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}

	cache, err := lru.New[string, *cacheEntry](cfg.CacheCapacity)
	if err != nil {
		return nil, core.NewFrameworkError("contextmemory.New", "contextmemory", err)
	}

	return &Retriever{source: source, counter: counter, cfg: cfg, logger: logger, cache: cache}, nil
}

// CacheKey returns the stable hash used to key the LRU: normalised task
// text, sorted agent id set, and pattern.
func CacheKey(req Request) string {
	agents := append([]string(nil), req.AgentIDs...)
	sort.Strings(agents)

	normalized := struct {
		Task    string   `json:"task"`
		Agents  []string `json:"agents"`
		Pattern string   `json:"pattern"`
	}{
		Task:    strings.ToLower(strings.TrimSpace(req.Task)),
		Agents:  agents,
		Pattern: string(req.Pattern),
	}
	data, _ := json.Marshal(normalized)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Retrieve assembles context for req, consulting the cache first.
func (r *Retriever) Retrieve(ctx context.Context, req Request) Result {
	key := CacheKey(req)

	if cached, ok := r.cache.Get(key); ok {
		if time.Now().Before(cached.entry.TTLExpiresAt) {
			cached.entry.LastHit = time.Now()
			if res, ok := cached.entry.Value.(Result); ok {
				return res
			}
		}
		r.cache.Remove(key)
	}

	res := r.assemble(ctx, req)
	if res.Error == nil {
		now := time.Now()
		r.cache.Add(key, &cacheEntry{entry: core.ContextCacheEntry{
			Key:          key,
			Value:        res,
			CreatedAt:    now,
			LastHit:      now,
			TTLExpiresAt: now.Add(r.cfg.CacheTTL),
		}})
	}
	return res
}

func (r *Retriever) assemble(ctx context.Context, req Request) Result {
	if req.MaxTokens <= 0 {
		return Result{Loaded: true}
	}
	budget := int(float64(req.MaxTokens) * (1 - r.cfg.SafetyBuffer))

	filters := SearchFilters{Query: req.Task, Pattern: req.Pattern, Limit: r.cfg.Layer1Limit}
	layer1, err := r.source.Search(filters)
	if err != nil {
		return Result{Loaded: false, Error: err}
	}
	sortByRelevance(layer1)
	if len(layer1) > r.cfg.Layer1Limit {
		layer1 = layer1[:r.cfg.Layer1Limit]
	}

	layer1Cost := r.countLayer1(layer1)
	if layer1Cost >= budget {
		return Result{Loaded: true, Progressive: false, TokenCount: layer1Cost, Layer1: layer1}
	}

	layer2, truncated, layer2Cost := r.assembleLayer2(layer1, budget-layer1Cost)

	return Result{
		Loaded:      true,
		Progressive: true,
		TokenCount:  layer1Cost + layer2Cost,
		Layer1:      layer1,
		Layer2:      layer2,
		Truncated:   truncated,
	}
}

func sortByRelevance(items []Layer1Item) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Relevance > items[j].Relevance })
}

func (r *Retriever) countLayer1(items []Layer1Item) int {
	if r.counter == nil {
		return 0
	}
	var total int
	for _, item := range items {
		total += r.counter.Count(item.TaskSnippet+item.ResultSummary, "")
	}
	return total
}

func (r *Retriever) assembleLayer2(layer1 []Layer1Item, remaining int) ([]Layer2Item, bool, int) {
	var out []Layer2Item
	var truncatedAny bool
	var spent int

	limit := r.cfg.Layer2Limit
	for _, item := range layer1 {
		if limit <= 0 {
			break
		}
		orch, obs, err := r.source.GetByID(item.ID, true)
		if err != nil || orch == nil {
			continue
		}

		full := Layer2Item{Orchestration: *orch, Observations: obs}
		cost := r.cost(full)
		if spent+cost > remaining {
			truncated, truncCost, ok := r.smartTruncate(full, remaining-spent)
			if !ok {
				truncatedAny = true
				continue // doesn't fit even truncated, skip
			}
			truncated.Truncated = true
			out = append(out, truncated)
			spent += truncCost
			truncatedAny = true
			limit--
			continue
		}

		out = append(out, full)
		spent += cost
		limit--
	}
	return out, truncatedAny, spent
}

// smartTruncate drops fields in priority order (observations, then result
// summary, then metadata/warnings) until the item fits within budget, or
// reports it cannot fit at all.
func (r *Retriever) smartTruncate(item Layer2Item, budget int) (Layer2Item, int, bool) {
	if budget <= 0 {
		return Layer2Item{}, 0, false
	}

	// core fields only, no observations
	core := item
	core.Observations = nil
	cost := r.cost(core)
	if cost <= budget {
		return core, cost, true
	}

	// drop result summary too
	core.Orchestration.ResultSummary = ""
	cost = r.cost(core)
	if cost <= budget {
		return core, cost, true
	}

	// drop warnings/metadata as a last resort
	core.Orchestration.Warnings = nil
	cost = r.cost(core)
	if cost <= budget {
		return core, cost, true
	}
	return Layer2Item{}, 0, false
}

func (r *Retriever) cost(item Layer2Item) int {
	if r.counter == nil {
		return 0
	}
	var sb strings.Builder
	sb.WriteString(item.Orchestration.Task)
	sb.WriteString(item.Orchestration.ResultSummary)
	for _, o := range item.Observations {
		sb.WriteString(o.Text)
	}
	for _, w := range item.Orchestration.Warnings {
		sb.WriteString(w)
	}
	return r.counter.Count(sb.String(), item.Orchestration.Model)
}
