package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/itsneelabh/gomind-orchestrate/core"
)

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// AddObservations appends obs to orchestrationID, skipping any observation
// whose (orchestrationId, hash(text)) pair was already recorded — repeated
// calls with identical content are idempotent (spec.md R2).
func (s *Store) AddObservations(orchestrationID string, obs []core.Observation) error {
	if s.IsDegraded() {
		return core.NewFrameworkError("store.AddObservations", "store", core.ErrStoreUnavailable)
	}
	if len(obs) == 0 {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		dedup := tx.Bucket([]byte(bucketObsDedup))
		observations := tx.Bucket([]byte(bucketObservations))

		for i := range obs {
			o := obs[i]
			o.OrchestrationID = orchestrationID
			if !core.ValidObservationType(o.Type) {
				o.Type = core.ObservationPatternUsage
			}
			o.Importance = core.ClampImportance(o.Importance)
			if len(o.Concepts) > 5 {
				o.Concepts = o.Concepts[:5]
			}
			if o.CreatedAt.IsZero() {
				o.CreatedAt = time.Now()
			}

			dedupKey := []byte(orchestrationID + "|" + contentHash(o.Text))
			if dedup.Get(dedupKey) != nil {
				continue // already recorded, idempotent no-op
			}

			if o.ID == "" {
				o.ID = core.NewObservationID()
			}
			data, err := json.Marshal(o)
			if err != nil {
				return err
			}
			if err := observations.Put([]byte(o.ID), data); err != nil {
				return err
			}
			if err := dedup.Put(dedupKey, []byte(o.ID)); err != nil {
				return err
			}

			s.index.addTerms(orchestrationID, observationIndexText(o), o.Concepts)
		}
		return nil
	})
}
