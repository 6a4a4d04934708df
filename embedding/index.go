// Package embedding implements the coordination core's semantic similarity
// store (EmbeddingIndex, spec component C4): an external vector backend
// fronted by a circuit breaker, with hybrid vector+keyword search and
// automatic fallback to keyword-only search when the backend is unhealthy.
package embedding

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/itsneelabh/gomind-orchestrate/core"
	"github.com/itsneelabh/gomind-orchestrate/resilience"
)

// SearchMode selects how searchSimilar blends vector and keyword scores.
type SearchMode string

const (
	ModeVector  SearchMode = "vector"
	ModeKeyword SearchMode = "keyword"
	ModeHybrid  SearchMode = "hybrid"
)

const (
	vectorWeight  = 0.7
	keywordWeight = 0.3
)

// KeywordSearcher is the fallback surface used when the vector backend is
// open or erroring. store.Store satisfies this with its Search method
// reduced to (id, score) pairs.
type KeywordSearcher interface {
	KeywordMatch(query string, limit int) ([]KeywordHit, error)
}

// KeywordHit is one keyword-fallback search result.
type KeywordHit struct {
	ID    string
	Score float64
}

// BatchResult is the outcome of AddBatch.
type BatchResult struct {
	Successful int
	Failed     int
	Errors     []error
}

// Config tunes EmbeddingIndex's circuit breaker and batching behaviour.
type Config struct {
	Threshold        int           // consecutive failures before opening (default 3)
	CooldownPeriod   time.Duration // time in open before probing half-open (default 60s)
	BatchChunkSize   int           // items per Upsert chunk (default 50)
	DefaultLimit     int           // searchSimilar default result count (default 10)
	MinSimilarity    float64       // default similarity floor (default 0)
}

// DefaultConfig returns spec-default tuning.
func DefaultConfig() Config {
	return Config{
		Threshold:      3,
		CooldownPeriod: 60 * time.Second,
		BatchChunkSize: 50,
		DefaultLimit:   10,
		MinSimilarity:  0,
	}
}

// Index is the concrete EmbeddingIndex implementation.
type Index struct {
	backend core.EmbeddingBackend
	keyword KeywordSearcher
	breaker *resilience.CircuitBreaker
	cfg     Config
	logger  core.Logger
}

// New wires an EmbeddingIndex over backend, with keyword as the fallback
// search surface (typically store.Store).
func New(backend core.EmbeddingBackend, keyword KeywordSearcher, logger core.Logger, cfg Config) (*Index, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if caware, ok := logger.(core.ComponentAwareLogger); ok {
		logger = caware.WithComponent("framework/embedding")
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	if cfg.CooldownPeriod <= 0 {
		cfg.CooldownPeriod = 60 * time.Second
	}
	if cfg.BatchChunkSize <= 0 {
		cfg.BatchChunkSize = 50
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}

	breaker, err := resilience.NewCircuitBreaker(&resilience.CircuitBreakerConfig{
		Name:             "embedding-backend",
		FailureThreshold: cfg.Threshold,
		SleepWindow:      cfg.CooldownPeriod,
		ErrorThreshold:   0, // legacy FailureThreshold path drives this breaker, not the rate-based one
		VolumeThreshold:  0,
		HalfOpenRequests: 1,
		SuccessThreshold: 0.01,
		WindowSize:       cfg.CooldownPeriod,
		BucketCount:      1,
		Logger:           logger,
	})
	if err != nil {
		return nil, core.NewFrameworkError("embedding.New", "embedding", err)
	}

	return &Index{backend: backend, keyword: keyword, breaker: breaker, cfg: cfg, logger: logger}, nil
}

// State returns the breaker's current state: "closed", "open", "half-open".
func (idx *Index) State() string {
	return idx.breaker.GetState()
}

// Add embeds and upserts a single orchestration's text. Silently skipped
// when the breaker is open.
func (idx *Index) Add(ctx context.Context, orchestrationID, text string, metadata map[string]interface{}) error {
	if idx.State() == "open" {
		idx.logger.Debug("embedding: add skipped, circuit open", map[string]interface{}{"id": orchestrationID})
		return nil
	}

	return idx.breaker.Execute(ctx, func() error {
		vectors, err := idx.backend.Embed(ctx, []string{text})
		if err != nil {
			return err
		}
		if len(vectors) == 0 {
			return core.NewFrameworkError("embedding.Add", "embedding", core.ErrEmbeddingUnavailable)
		}
		meta := metadata
		if meta == nil {
			meta = map[string]interface{}{}
		}
		meta["timestamp"] = time.Now().Unix()
		return idx.backend.Upsert(ctx, []core.EmbeddingItem{{ID: orchestrationID, Vector: vectors[0], Metadata: meta}})
	})
}

// AddItem is one input row for AddBatch.
type AddItem struct {
	OrchestrationID string
	Text            string
	Metadata        map[string]interface{}
}

// AddBatch embeds and upserts items in chunks of cfg.BatchChunkSize. A
// failed chunk does not prevent later chunks from being attempted; the
// return tallies successes, failures, and per-chunk errors.
func (idx *Index) AddBatch(ctx context.Context, items []AddItem) BatchResult {
	var result BatchResult
	if idx.State() == "open" {
		result.Failed = len(items)
		return result
	}

	for start := 0; start < len(items); start += idx.cfg.BatchChunkSize {
		end := start + idx.cfg.BatchChunkSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		err := idx.breaker.Execute(ctx, func() error {
			texts := make([]string, len(chunk))
			for i, it := range chunk {
				texts[i] = it.Text
			}
			vectors, err := idx.backend.Embed(ctx, texts)
			if err != nil {
				return err
			}
			upserts := make([]core.EmbeddingItem, len(chunk))
			for i, it := range chunk {
				meta := it.Metadata
				if meta == nil {
					meta = map[string]interface{}{}
				}
				meta["timestamp"] = time.Now().Unix()
				upserts[i] = core.EmbeddingItem{ID: it.OrchestrationID, Vector: vectors[i], Metadata: meta}
			}
			return idx.backend.Upsert(ctx, upserts)
		})

		if err != nil {
			result.Failed += len(chunk)
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Successful += len(chunk)
	}
	return result
}

// SearchOptions tunes SearchSimilar.
type SearchOptions struct {
	Limit         int
	MinSimilarity float64
	Mode          SearchMode
}

// Hit is one SearchSimilar result, mergeable across vector and keyword
// sources by ID.
type Hit struct {
	ID         string
	Similarity float64
	Metadata   map[string]interface{}
	Timestamp  time.Time
}

// SearchSimilar never returns an error to the caller: total failure yields
// an empty slice.
func (idx *Index) SearchSimilar(ctx context.Context, query string, opts SearchOptions) []Hit {
	if opts.Limit <= 0 {
		opts.Limit = idx.cfg.DefaultLimit
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModeHybrid
	}

	if mode == ModeKeyword || idx.State() == "open" {
		return idx.keywordOnly(query, opts)
	}

	var vectorHits []core.EmbeddingHit
	err := idx.breaker.Execute(ctx, func() error {
		vectors, err := idx.backend.Embed(ctx, []string{query})
		if err != nil {
			return err
		}
		if len(vectors) == 0 {
			return core.NewFrameworkError("embedding.SearchSimilar", "embedding", core.ErrEmbeddingUnavailable)
		}
		hits, err := idx.backend.Query(ctx, vectors[0], opts.Limit*2, nil)
		if err != nil {
			return err
		}
		vectorHits = hits
		return nil
	})
	if err != nil {
		idx.logger.Warn("embedding: vector search failed, falling back to keyword", map[string]interface{}{"error": err.Error()})
		return idx.keywordOnly(query, opts)
	}

	if mode == ModeVector {
		return rankAndLimit(toHits(vectorHits), opts)
	}

	keywordHits, _ := idx.keywordRaw(query, opts.Limit*2)
	return rankAndLimit(mergeHybrid(vectorHits, keywordHits), opts)
}

func (idx *Index) keywordOnly(query string, opts SearchOptions) []Hit {
	hits, err := idx.keywordRaw(query, opts.Limit)
	if err != nil {
		return nil
	}
	merged := make([]Hit, 0, len(hits))
	for _, h := range hits {
		merged = append(merged, Hit{ID: h.ID, Similarity: h.Score})
	}
	return rankAndLimit(merged, opts)
}

func (idx *Index) keywordRaw(query string, limit int) ([]KeywordHit, error) {
	if idx.keyword == nil {
		return nil, nil
	}
	return idx.keyword.KeywordMatch(query, limit)
}

func toHits(in []core.EmbeddingHit) []Hit {
	out := make([]Hit, len(in))
	for i, h := range in {
		out[i] = Hit{ID: h.ID, Similarity: h.Similarity, Metadata: h.Metadata, Timestamp: h.Timestamp}
	}
	return out
}

func mergeHybrid(vectorHits []core.EmbeddingHit, keywordHits []KeywordHit) []Hit {
	byID := make(map[string]*Hit)
	for _, h := range vectorHits {
		byID[h.ID] = &Hit{ID: h.ID, Similarity: vectorWeight * h.Similarity, Metadata: h.Metadata, Timestamp: h.Timestamp}
	}
	for _, h := range keywordHits {
		// normalise BM25-ish scores into [0,1] so they blend sanely with cosine similarity
		normalized := h.Score / (h.Score + 1)
		if existing, ok := byID[h.ID]; ok {
			existing.Similarity += keywordWeight * normalized
		} else {
			byID[h.ID] = &Hit{ID: h.ID, Similarity: keywordWeight * normalized}
		}
	}
	out := make([]Hit, 0, len(byID))
	for _, h := range byID {
		out = append(out, *h)
	}
	return out
}

func rankAndLimit(hits []Hit, opts SearchOptions) []Hit {
	filtered := hits[:0]
	for _, h := range hits {
		if h.Similarity >= opts.MinSimilarity {
			filtered = append(filtered, h)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if !floatsEqual(filtered[i].Similarity, filtered[j].Similarity) {
			return filtered[i].Similarity > filtered[j].Similarity
		}
		if !filtered[i].Timestamp.Equal(filtered[j].Timestamp) {
			return filtered[i].Timestamp.After(filtered[j].Timestamp)
		}
		return filtered[i].ID < filtered[j].ID
	})

	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}
	return filtered
}

func floatsEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// Delete removes orchestrationID's vector record. Best-effort: errors are
// logged, not surfaced, matching the fire-and-forget cleanup contract.
func (idx *Index) Delete(ctx context.Context, orchestrationID string) {
	if idx.State() == "open" {
		return
	}
	if err := idx.breaker.Execute(ctx, func() error {
		return idx.backend.Delete(ctx, []string{orchestrationID})
	}); err != nil {
		idx.logger.Warn("embedding: delete failed", map[string]interface{}{"id": orchestrationID, "error": err.Error()})
	}
}
