package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/freeeve/tactics/internal/tactics"
)

// Move record colors as stored in keys and JSON.
const (
	ColorWhite = "w"
	ColorBlack = "b"
)

// MoveRecord is one half-move of an imported game, keyed by
// (gameID, move number, color). Created at ingest time; the analysis fields
// stay nil until the result writer fills them in.
type MoveRecord struct {
	MoveNumber int    `json:"move_number"`
	Color      string `json:"color"`
	FENBefore  string `json:"fen_before"`
	SAN        string `json:"san"`
	UCI        string `json:"uci"`

	Tag        *tactics.Tag   `json:"tag,omitempty"`
	ScoreDiff  *int           `json:"score_diff,omitempty"`
	ErrorLabel *tactics.Label `json:"error_label,omitempty"`
}

// MoveUpdate is one analyzed move heading for its MoveRecord.
type MoveUpdate struct {
	MoveNumber int
	Color      string
	Tag        tactics.Tag
	ScoreDiff  int
	Label      tactics.Label
}

func moveKey(gameID string, moveNumber int, color string) []byte {
	return []byte(fmt.Sprintf("m/%s/%03d/%s", gameID, moveNumber, color))
}

// PutMoveRecords stores the move records of one game in a single
// transaction.
func (s *Store) PutMoveRecords(gameID string, recs []MoveRecord) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, rec := range recs {
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := txn.Set(moveKey(gameID, rec.MoveNumber, rec.Color), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplyMoveUpdates applies all updates for one game atomically: either every
// update commits or none do. An update whose move record does not exist is
// counted as unmatched and skipped, not an error.
//
// Concurrent calls for different games are safe; the dispatcher guarantees
// a single writer per game.
func (s *Store) ApplyMoveUpdates(gameID string, updates []MoveUpdate) (matched, unmatched int, err error) {
	err = s.db.Update(func(txn *badger.Txn) error {
		matched, unmatched = 0, 0
		for _, u := range updates {
			key := moveKey(gameID, u.MoveNumber, u.Color)
			item, err := txn.Get(key)
			if err == badger.ErrKeyNotFound {
				unmatched++
				continue
			}
			if err != nil {
				return err
			}
			var rec MoveRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			tag, diff, label := u.Tag, u.ScoreDiff, u.Label
			rec.Tag = &tag
			rec.ScoreDiff = &diff
			rec.ErrorLabel = &label
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := txn.Set(key, data); err != nil {
				return err
			}
			matched++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return matched, unmatched, nil
}

// GetMoveRecord fetches one move record; found is false when it does not
// exist.
func (s *Store) GetMoveRecord(gameID string, moveNumber int, color string) (MoveRecord, bool, error) {
	var rec MoveRecord
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(moveKey(gameID, moveNumber, color))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	return rec, found, err
}

// WalkMoveRecords visits every move record in key order (grouped by game).
// The walk stops on the first error from fn.
func (s *Store) WalkMoveRecords(fn func(gameID string, rec MoveRecord) error) error {
	prefix := []byte("m/")
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			parts := strings.SplitN(key, "/", 3)
			if len(parts) < 3 {
				continue
			}
			gameID := parts[1]
			var rec MoveRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if err := fn(gameID, rec); err != nil {
				return err
			}
		}
		return nil
	})
}
