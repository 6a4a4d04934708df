package store

import (
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	"github.com/itsneelabh/gomind-orchestrate/core"
)

// AgentStats returns the stat row for agentID, or every agent's stats when
// agentID is empty.
func (s *Store) AgentStats(agentID string) ([]AgentStat, error) {
	if s.IsDegraded() {
		return nil, nil
	}

	var out []AgentStat
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketAgentStats))
		if agentID != "" {
			data := b.Get([]byte(agentID))
			if data == nil {
				return nil
			}
			var stat AgentStat
			if err := json.Unmarshal(data, &stat); err != nil {
				return err
			}
			out = append(out, stat)
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var stat AgentStat
			if err := json.Unmarshal(v, &stat); err != nil {
				return nil
			}
			out = append(out, stat)
			return nil
		})
	})
	if err != nil {
		return nil, core.NewFrameworkError("store.AgentStats", "store", err)
	}
	return out, nil
}

// PatternStats returns the stat row for pattern, or every pattern's stats
// when pattern is empty.
func (s *Store) PatternStats(pattern core.Pattern) ([]PatternStat, error) {
	if s.IsDegraded() {
		return nil, nil
	}

	var out []PatternStat
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketPatternStats))
		if pattern != "" {
			data := b.Get([]byte(pattern))
			if data == nil {
				return nil
			}
			var stat PatternStat
			if err := json.Unmarshal(data, &stat); err != nil {
				return err
			}
			out = append(out, stat)
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var stat PatternStat
			if err := json.Unmarshal(v, &stat); err != nil {
				return nil
			}
			out = append(out, stat)
			return nil
		})
	})
	if err != nil {
		return nil, core.NewFrameworkError("store.PatternStats", "store", err)
	}
	return out, nil
}

// CollaborationFilters narrows the Collaborations listing.
type CollaborationFilters struct {
	MinRate  float64
	MinCount int
}

// Collaborations returns every collaboration row satisfying filters.
func (s *Store) Collaborations(filters CollaborationFilters) ([]Collaboration, error) {
	if s.IsDegraded() {
		return nil, nil
	}

	var out []Collaboration
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketCollaborations))
		return b.ForEach(func(k, v []byte) error {
			var c Collaboration
			if err := json.Unmarshal(v, &c); err != nil {
				return nil
			}
			if c.Count < filters.MinCount {
				return nil
			}
			if c.SuccessRate() < filters.MinRate {
				return nil
			}
			out = append(out, c)
			return nil
		})
	})
	if err != nil {
		return nil, core.NewFrameworkError("store.Collaborations", "store", err)
	}
	return out, nil
}
