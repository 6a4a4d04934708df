// Package store implements the coordination core's durable record of
// orchestrations, observations, and aggregate stats (PersistentStore, spec
// component C3), backed by a single-file bbolt transactional database with
// an in-memory BM25 keyword index.
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/itsneelabh/gomind-orchestrate/core"
)

const (
	bucketOrchestrations = "orchestrations"
	bucketObservations   = "observations"
	bucketObsDedup       = "observation_dedup"
	bucketPatternStats   = "pattern_stats"
	bucketAgentStats     = "agent_stats"
	bucketCollaborations = "collaborations"
)

var allBuckets = []string{
	bucketOrchestrations,
	bucketObservations,
	bucketObsDedup,
	bucketPatternStats,
	bucketAgentStats,
	bucketCollaborations,
}

// Store is the concrete PersistentStore implementation.
type Store struct {
	db       *bolt.DB
	path     string
	degraded int32 // atomic bool
	logger   core.Logger
	index    *keywordIndex
}

// Open creates or opens the bbolt file at path and rebuilds the in-memory
// keyword index from its contents. If the engine cannot be opened, Open
// returns a Store already in degraded mode rather than an error — callers
// that want a hard failure on startup should check IsDegraded() themselves.
func Open(path string, logger core.Logger) (*Store, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if caware, ok := logger.(core.ComponentAwareLogger); ok {
		logger = caware.WithComponent("framework/store")
	}

	s := &Store{path: path, logger: logger, index: newKeywordIndex()}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		s.setDegraded(true)
		logger.Error("store: failed to open database, entering degraded mode", map[string]interface{}{
			"path": path, "error": err.Error(),
		})
		return s, nil
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(b)); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	}); err != nil {
		s.setDegraded(true)
		logger.Error("store: failed to initialize buckets, entering degraded mode", map[string]interface{}{
			"error": err.Error(),
		})
		return s, nil
	}

	s.db = db
	s.rebuildIndex()
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// IsDegraded reports whether the store is operating without a functioning
// backing database (record* fail fast; search/get* return empty).
func (s *Store) IsDegraded() bool {
	return atomic.LoadInt32(&s.degraded) == 1
}

func (s *Store) setDegraded(v bool) {
	if v {
		atomic.StoreInt32(&s.degraded, 1)
	} else {
		atomic.StoreInt32(&s.degraded, 0)
	}
}

func (s *Store) rebuildIndex() {
	_ = s.db.View(func(tx *bolt.Tx) error {
		ob := tx.Bucket([]byte(bucketObservations))
		return ob.ForEach(func(k, v []byte) error {
			var o core.Observation
			if err := json.Unmarshal(v, &o); err != nil {
				return nil
			}
			s.index.addTerms(o.OrchestrationID, observationIndexText(o), nil)
			return nil
		})
	})
}

func observationIndexText(o core.Observation) string {
	return o.Text + " " + strings.Join(o.Concepts, " ")
}

// RecordOrchestration persists o (assigning an id if empty) and atomically
// updates pattern/agent/collaboration stats in the same transaction.
func (s *Store) RecordOrchestration(o *core.Orchestration) (string, error) {
	if s.IsDegraded() {
		return "", core.NewFrameworkError("store.RecordOrchestration", "store", core.ErrStoreUnavailable)
	}
	if len(o.AgentIDs) == 0 {
		return "", core.NewFrameworkError("store.RecordOrchestration", "store", core.ErrInvalidInput)
	}
	if o.ID == "" {
		o.ID = core.NewOrchestrationID()
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		ob := tx.Bucket([]byte(bucketOrchestrations))
		data, err := json.Marshal(o)
		if err != nil {
			return err
		}
		if err := ob.Put([]byte(o.ID), data); err != nil {
			return err
		}

		if err := updatePatternStat(tx, o.Pattern, o.Success, float64(o.DurationMs)); err != nil {
			return err
		}
		for _, agentID := range uniqueStrings(o.AgentIDs) {
			if err := updateAgentStat(tx, agentID, o.Success, float64(o.DurationMs)); err != nil {
				return err
			}
		}
		if len(o.AgentIDs) > 1 {
			if err := updateCollaboration(tx, o.AgentIDs, o.Success, float64(o.DurationMs)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", core.NewFrameworkError("store.RecordOrchestration", "store", err)
	}
	return o.ID, nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func updatePatternStat(tx *bolt.Tx, pattern core.Pattern, success bool, durationMs float64) error {
	b := tx.Bucket([]byte(bucketPatternStats))
	key := []byte(string(pattern))

	var stat PatternStat
	if data := b.Get(key); data != nil {
		if err := json.Unmarshal(data, &stat); err != nil {
			return err
		}
	} else {
		stat = PatternStat{Pattern: pattern}
	}

	stat.AvgDurationMs = rollingAvg(stat.AvgDurationMs, stat.Count, durationMs)
	stat.Count++
	if success {
		stat.SuccessCount++
	}

	data, err := json.Marshal(stat)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func updateAgentStat(tx *bolt.Tx, agentID string, success bool, durationMs float64) error {
	b := tx.Bucket([]byte(bucketAgentStats))
	key := []byte(agentID)

	var stat AgentStat
	if data := b.Get(key); data != nil {
		if err := json.Unmarshal(data, &stat); err != nil {
			return err
		}
	} else {
		stat = AgentStat{AgentID: agentID}
	}

	stat.AvgDurationMs = rollingAvg(stat.AvgDurationMs, stat.Count, durationMs)
	stat.Count++
	if success {
		stat.SuccessCount++
	}

	data, err := json.Marshal(stat)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func collaborationKey(agentIDs []string) string {
	sorted := append([]string(nil), agentIDs...)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}

func updateCollaboration(tx *bolt.Tx, agentIDs []string, success bool, durationMs float64) error {
	b := tx.Bucket([]byte(bucketCollaborations))
	key := collaborationKey(agentIDs)

	var collab Collaboration
	if data := b.Get([]byte(key)); data != nil {
		if err := json.Unmarshal(data, &collab); err != nil {
			return err
		}
	} else {
		collab = Collaboration{Key: key, AgentIDs: append([]string(nil), agentIDs...)}
		sort.Strings(collab.AgentIDs)
	}

	collab.AvgDurationMs = rollingAvg(collab.AvgDurationMs, collab.Count, durationMs)
	collab.Count++
	if success {
		collab.SuccessCount++
	}

	data, err := json.Marshal(collab)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

// GetByID returns the Orchestration with the given id, and (if
// includeObservations) its attached Observations. Returns (nil, nil, nil)
// when no orchestration has that id, and likewise on a degraded store.
func (s *Store) GetByID(id string, includeObservations bool) (*core.Orchestration, []core.Observation, error) {
	if s.IsDegraded() {
		return nil, nil, nil
	}

	var o core.Orchestration
	var obs []core.Observation

	err := s.db.View(func(tx *bolt.Tx) error {
		ob := tx.Bucket([]byte(bucketOrchestrations))
		data := ob.Get([]byte(id))
		if data == nil {
			return core.ErrNotFound
		}
		if err := json.Unmarshal(data, &o); err != nil {
			return err
		}

		if includeObservations {
			obsBucket := tx.Bucket([]byte(bucketObservations))
			return obsBucket.ForEach(func(k, v []byte) error {
				var ob2 core.Observation
				if err := json.Unmarshal(v, &ob2); err != nil {
					return nil
				}
				if ob2.OrchestrationID == id {
					obs = append(obs, ob2)
				}
				return nil
			})
		}
		return nil
	})
	if err != nil {
		if err == core.ErrNotFound {
			return nil, nil, nil
		}
		return nil, nil, core.NewFrameworkError("store.GetByID", "store", err)
	}
	return &o, obs, nil
}
