// Package eventbus implements the coordination core's intra-process
// publish/subscribe plane (EventBus, spec component C1): topic pub/sub with
// wildcard segments, request/reply correlation, rolling history, and
// backpressure with an exemption for critical topics.
package eventbus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/itsneelabh/gomind-orchestrate/core"
)

// Handler receives a published message. It must never panic across the bus
// boundary; panics are recovered and logged by the dispatcher.
type Handler func(ctx context.Context, topic string, payload interface{})

// Responder answers a Request call. Returning an error still produces a
// reply value of nil; the error is logged, not propagated to the requester.
type Responder func(ctx context.Context, payload interface{}) (interface{}, error)

// CancelFunc removes a subscription or responder registration.
type CancelFunc func()

// Topics starting with one of criticalPrefixes are never dropped under
// backpressure; Publish blocks the
// caller until a dispatch slot frees up instead.
var criticalPrefixes = []string{"orchestration:", "usage:budget:"}

func isCritical(topic string) bool {
	for _, p := range criticalPrefixes {
		if strings.HasPrefix(topic, p) {
			return true
		}
	}
	return false
}

// HistoryEntry is one retained past publication, for debugging.
type HistoryEntry struct {
	Topic     string
	Payload   interface{}
	Timestamp time.Time
}

type subscription struct {
	id      uint64
	pattern string
	handler Handler
}

// Bus is the concrete EventBus implementation.
type Bus struct {
	mu   sync.RWMutex
	subs map[uint64]*subscription
	seq  uint64

	history      []HistoryEntry
	historyHead  int
	historyCount int
	historySize  int
	historyMu    sync.Mutex

	handlerBudget time.Duration
	sem           chan struct{} // dispatch-slot semaphore, capacity = maxQueue

	pendingMu sync.Mutex
	pending   map[string]chan interface{}

	logger    core.Logger
	telemetry core.Telemetry
}

// Config controls EventBus tuning knobs (spec §6 "bus.*").
type Config struct {
	HistorySize     int
	HandlerBudgetMs time.Duration
	MaxQueue        int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		HistorySize:     1000,
		HandlerBudgetMs: 5 * time.Second,
		MaxQueue:        10000,
	}
}

// New constructs a Bus. A nil logger/telemetry defaults to no-ops.
func New(cfg Config, logger core.Logger, telemetry core.Telemetry) *Bus {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 1000
	}
	if cfg.HandlerBudgetMs <= 0 {
		cfg.HandlerBudgetMs = 5 * time.Second
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = 10000
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if telemetry == nil {
		telemetry = &core.NoOpTelemetry{}
	}
	if caware, ok := logger.(core.ComponentAwareLogger); ok {
		logger = caware.WithComponent("framework/eventbus")
	}
	return &Bus{
		subs:          make(map[uint64]*subscription),
		history:       make([]HistoryEntry, cfg.HistorySize),
		historySize:   cfg.HistorySize,
		handlerBudget: cfg.HandlerBudgetMs,
		sem:           make(chan struct{}, cfg.MaxQueue),
		pending:       make(map[string]chan interface{}),
		logger:        logger,
		telemetry:     telemetry,
	}
}

// Subscribe registers handler for topic, which may contain wildcard
// segments (e.g. "agent:*"). Each call to Publish on a matching topic
// delivers to this handler at most once.
func (b *Bus) Subscribe(topic string, h Handler) CancelFunc {
	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subs[id] = &subscription{id: id, pattern: topic, handler: h}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish fans out payload to every handler subscribed to a pattern
// matching topic. It never returns an error and never blocks the publisher
// for non-critical topics; it may block briefly for critical topics when
// the dispatch-slot semaphore is exhausted (backpressure).
func (b *Bus) Publish(topic string, payload interface{}) {
	b.recordHistory(topic, payload)

	b.mu.RLock()
	matched := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if topicMatches(s.pattern, topic) {
			matched = append(matched, s)
		}
	}
	b.mu.RUnlock()

	critical := isCritical(topic)
	for _, s := range matched {
		b.dispatch(s, topic, payload, critical)
	}
}

// dispatch runs handler on its own goroutine bounded by the handler budget,
// acquiring a slot from the backpressure semaphore first.
func (b *Bus) dispatch(s *subscription, topic string, payload interface{}, critical bool) {
	if critical {
		b.sem <- struct{}{}
	} else {
		select {
		case b.sem <- struct{}{}:
		default:
			b.logger.Warn("eventbus: dropping publish under backpressure", map[string]interface{}{
				"topic": topic,
			})
			return
		}
	}

	go func() {
		defer func() { <-b.sem }()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("eventbus: handler panicked", map[string]interface{}{
					"topic": topic,
					"panic": fmt.Sprintf("%v", r),
				})
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), b.handlerBudget)
		defer cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			s.handler(ctx, topic, payload)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			b.logger.Warn("eventbus: handler exceeded dispatch budget, abandoning", map[string]interface{}{
				"topic":  topic,
				"budget": b.handlerBudget.String(),
			})
		}
	}()
}

// requestEnvelope correlates a Request call with its Responder replies.
type requestEnvelope struct {
	id      string
	payload interface{}
}

// OnRequest registers r to answer Request calls on topic. Replies are
// routed only to the requesting Request call, never broadcast.
func (b *Bus) OnRequest(topic string, r Responder) CancelFunc {
	internalTopic := requestTopic(topic)
	return b.Subscribe(internalTopic, func(ctx context.Context, _ string, raw interface{}) {
		env, ok := raw.(requestEnvelope)
		if !ok {
			return
		}
		reply, err := r(ctx, env.payload)
		if err != nil {
			b.logger.Warn("eventbus: responder returned error", map[string]interface{}{
				"topic": topic,
				"error": err.Error(),
			})
		}
		b.deliverReply(env.id, reply)
	})
}

// Request publishes payload to topic and waits for up to expected reply
// payloads or until timeout elapses, whichever comes first. It never fails
// when fewer than expected replies arrive — it returns whatever it has.
func (b *Bus) Request(ctx context.Context, topic string, payload interface{}, timeout time.Duration, expected int) []interface{} {
	if expected <= 0 {
		expected = 1
	}
	reqID := uuid.New().String()
	replies := make(chan interface{}, expected)

	b.pendingMu.Lock()
	b.pending[reqID] = replies
	b.pendingMu.Unlock()

	defer func() {
		b.pendingMu.Lock()
		delete(b.pending, reqID)
		b.pendingMu.Unlock()
	}()

	b.Publish(requestTopic(topic), requestEnvelope{id: reqID, payload: payload})

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	results := make([]interface{}, 0, expected)
	for len(results) < expected {
		select {
		case v := <-replies:
			results = append(results, v)
		case <-deadline.C:
			return results
		case <-ctx.Done():
			return results
		}
	}
	return results
}

func (b *Bus) deliverReply(reqID string, value interface{}) {
	b.pendingMu.Lock()
	ch, ok := b.pending[reqID]
	b.pendingMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- value:
	default:
	}
}

func requestTopic(topic string) string {
	return "__request__:" + topic
}

// History returns the retained rolling history, optionally filtered to
// entries whose topic matches filter (empty filter returns everything).
// Entries are returned oldest-first.
func (b *Bus) History(filter string) []HistoryEntry {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()

	out := make([]HistoryEntry, 0, b.historyCount)
	start := b.historyHead - b.historyCount
	if start < 0 {
		start += b.historySize
	}
	for i := 0; i < b.historyCount; i++ {
		idx := (start + i) % b.historySize
		e := b.history[idx]
		if filter == "" || topicMatches(filter, e.Topic) {
			out = append(out, e)
		}
	}
	return out
}

func (b *Bus) recordHistory(topic string, payload interface{}) {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()

	b.history[b.historyHead] = HistoryEntry{Topic: topic, Payload: payload, Timestamp: time.Now()}
	b.historyHead = (b.historyHead + 1) % b.historySize
	if b.historyCount < b.historySize {
		b.historyCount++
	}
}

// QueueDepth reports the number of dispatch slots currently in use, for
// monitoring backpressure.
func (b *Bus) QueueDepth() int {
	return len(b.sem)
}
