// Package store persists games, per-move records, and analyzed markers in a
// single embedded badger database.
//
// Key layout:
//
//	g/<source>/<seq>           game row (JSON), seq is a zero-padded counter
//	gi/<gameID>                import dedup marker
//	n/<source>                 next sequence number for a source
//	m/<gameID>/<move>/<color>  move record (JSON)
//	a/<gameID>                 analyzed marker (RFC3339 timestamp)
package store

import (
	"github.com/dgraph-io/badger/v4"
)

// Store wraps the badger database shared by the game source, the result
// writer, and the progress tracker. Methods are safe for concurrent use from
// multiple workers; per-game write batches are serialized by badger
// transactions.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the database directory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
