package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
)

// GameRecord is one imported game. Immutable once created; the analysis
// pipeline only reads it.
type GameRecord struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	White  string `json:"white,omitempty"`
	Black  string `json:"black,omitempty"`
	Result string `json:"result,omitempty"`
	PGN    string `json:"pgn"`
	Plies  int    `json:"plies"`
}

// GameID derives a content hash from a game's headers and move sequence.
// Stable across re-imports of the same game.
func GameID(white, black, result string, sans []string) string {
	h := xxhash.New()
	h.WriteString(white)
	h.WriteString("|")
	h.WriteString(black)
	h.WriteString("|")
	h.WriteString(result)
	h.WriteString("|")
	h.WriteString(strings.Join(sans, " "))
	return fmt.Sprintf("%016x", h.Sum64())
}

func gameKey(source string, seq uint64) []byte {
	return []byte(fmt.Sprintf("g/%s/%016d", source, seq))
}

func gameImportKey(id string) []byte {
	return []byte("gi/" + id)
}

func seqKey(source string) []byte {
	return []byte("n/" + source)
}

// PutGame stores a game under the next sequence number for its source.
// Returns false without writing when the same content hash was already
// imported.
func (s *Store) PutGame(rec GameRecord) (bool, error) {
	stored := false
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(gameImportKey(rec.ID)); err == nil {
			return nil // duplicate import
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		var seq uint64
		item, err := txn.Get(seqKey(rec.Source))
		if err == nil {
			err = item.Value(func(val []byte) error {
				_, convErr := fmt.Sscanf(string(val), "%d", &seq)
				return convErr
			})
			if err != nil {
				return err
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := txn.Set(gameKey(rec.Source, seq), data); err != nil {
			return err
		}
		if err := txn.Set(gameImportKey(rec.ID), []byte{1}); err != nil {
			return err
		}
		if err := txn.Set(seqKey(rec.Source), []byte(fmt.Sprintf("%d", seq+1))); err != nil {
			return err
		}
		stored = true
		return nil
	})
	return stored, err
}

// UnanalyzedPage returns up to limit games not present in the analyzed
// snapshot, skipping the first offset filtered entries. Games are walked in
// import order. An empty page means the source is exhausted for this
// snapshot. source narrows the scan to one provenance bucket; empty scans
// all sources.
func (s *Store) UnanalyzedPage(analyzed map[string]bool, offset, limit int, source string) ([]GameRecord, error) {
	prefix := []byte("g/")
	if source != "" {
		prefix = []byte("g/" + source + "/")
	}

	var page []GameRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		skipped := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec GameRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			if analyzed[rec.ID] {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			page = append(page, rec)
			if len(page) >= limit {
				return nil
			}
		}
		return nil
	})
	return page, err
}

// CountGames returns the number of imported games for a source (all sources
// when source is empty).
func (s *Store) CountGames(source string) (int, error) {
	prefix := []byte("g/")
	if source != "" {
		prefix = []byte("g/" + source + "/")
	}
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}
