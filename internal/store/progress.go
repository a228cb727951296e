package store

import (
	"time"

	"github.com/dgraph-io/badger/v4"
)

// The progress tracker is the durable set of game IDs with a completed
// analysis. A marker exists iff all move updates for the game committed in
// one unit of work (or the game legitimately produced zero findings), which
// is what makes re-runs idempotent: absent means retry, present means skip.
// Markers are never removed by this subsystem.

func analyzedKey(gameID string) []byte {
	return []byte("a/" + gameID)
}

// MarkAnalyzed records a completed analysis with a timestamp. Idempotent:
// re-marking an already-present game overwrites the timestamp and is not an
// error. Call only after the corresponding move updates committed.
func (s *Store) MarkAnalyzed(gameID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(analyzedKey(gameID), []byte(time.Now().UTC().Format(time.RFC3339)))
	})
}

// IsAnalyzed reports whether a game has a completed analysis.
func (s *Store) IsAnalyzed(gameID string) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(analyzedKey(gameID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// AnalyzedSet returns the full analyzed set for bulk page filtering. The
// dispatcher snapshots this once per run; staleness is tolerated because
// MarkAnalyzed is idempotent.
func (s *Store) AnalyzedSet() (map[string]bool, error) {
	set := make(map[string]bool)
	prefix := []byte("a/")
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			set[string(it.Item().Key()[len(prefix):])] = true
		}
		return nil
	})
	return set, err
}
