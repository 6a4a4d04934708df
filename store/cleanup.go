package store

import (
	"encoding/json"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/itsneelabh/gomind-orchestrate/core"
)

// Cleanup deletes orchestrations strictly older than olderThan, while
// always retaining at least keepMinimum of the most recent rows regardless
// of age. It returns the number of orchestrations deleted.
func (s *Store) Cleanup(olderThan time.Time, keepMinimum int) (int, error) {
	if s.IsDegraded() {
		return 0, core.NewFrameworkError("store.Cleanup", "store", core.ErrStoreUnavailable)
	}

	type row struct {
		id        string
		startedAt time.Time
	}

	var deleted int
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketOrchestrations))

		var rows []row
		if err := b.ForEach(func(k, v []byte) error {
			var o core.Orchestration
			if err := json.Unmarshal(v, &o); err != nil {
				return nil
			}
			rows = append(rows, row{id: o.ID, startedAt: o.StartedAt})
			return nil
		}); err != nil {
			return err
		}

		sort.Slice(rows, func(i, j int) bool { return rows[i].startedAt.After(rows[j].startedAt) })

		for i, r := range rows {
			if i < keepMinimum {
				continue // always retained, regardless of age
			}
			if r.startedAt.Before(olderThan) {
				if err := b.Delete([]byte(r.id)); err != nil {
					return err
				}
				s.index.removeDoc(r.id)
				deleted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, core.NewFrameworkError("store.Cleanup", "store", err)
	}
	return deleted, nil
}
