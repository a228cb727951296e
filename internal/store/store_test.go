package store

import (
	"fmt"
	"testing"

	"github.com/freeeve/tactics/internal/tactics"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testGame(id int, source string) GameRecord {
	return GameRecord{
		ID:     fmt.Sprintf("%016x", id),
		Source: source,
		White:  "White Player",
		Black:  "Black Player",
		Result: "1-0",
		PGN:    "1. e4 e5 2. Nf3 Nc6 1-0",
		Plies:  4,
	}
}

func TestPutGameDeduplicates(t *testing.T) {
	st := openTestStore(t)

	rec := testGame(1, "main")
	stored, err := st.PutGame(rec)
	if err != nil {
		t.Fatalf("PutGame: %v", err)
	}
	if !stored {
		t.Fatal("first PutGame not stored")
	}

	stored, err = st.PutGame(rec)
	if err != nil {
		t.Fatalf("PutGame (dup): %v", err)
	}
	if stored {
		t.Error("duplicate import was stored")
	}

	count, err := st.CountGames("main")
	if err != nil {
		t.Fatalf("CountGames: %v", err)
	}
	if count != 1 {
		t.Errorf("CountGames = %d, want 1", count)
	}
}

func TestGameIDStable(t *testing.T) {
	sans := []string{"e4", "e5", "Nf3", "Nc6"}
	a := GameID("A", "B", "1-0", sans)
	b := GameID("A", "B", "1-0", sans)
	if a != b {
		t.Errorf("GameID not stable: %s vs %s", a, b)
	}
	c := GameID("A", "B", "0-1", sans)
	if a == c {
		t.Error("GameID ignores result")
	}
}

func TestUnanalyzedPage(t *testing.T) {
	st := openTestStore(t)

	for i := 1; i <= 5; i++ {
		if _, err := st.PutGame(testGame(i, "main")); err != nil {
			t.Fatalf("PutGame %d: %v", i, err)
		}
	}
	if _, err := st.PutGame(testGame(6, "elite")); err != nil {
		t.Fatalf("PutGame elite: %v", err)
	}

	// No filter: page walks import order.
	page, err := st.UnanalyzedPage(nil, 0, 3, "main")
	if err != nil {
		t.Fatalf("UnanalyzedPage: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("page length = %d, want 3", len(page))
	}
	if page[0].ID != testGame(1, "main").ID {
		t.Errorf("first game = %s, want %s", page[0].ID, testGame(1, "main").ID)
	}

	// Offset applies to the filtered stream.
	page, err = st.UnanalyzedPage(nil, 3, 3, "main")
	if err != nil {
		t.Fatalf("UnanalyzedPage offset: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("offset page length = %d, want 2", len(page))
	}

	// Analyzed games are excluded before offset counting.
	analyzed := map[string]bool{
		testGame(1, "main").ID: true,
		testGame(2, "main").ID: true,
	}
	page, err = st.UnanalyzedPage(analyzed, 0, 10, "main")
	if err != nil {
		t.Fatalf("UnanalyzedPage filtered: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("filtered page length = %d, want 3", len(page))
	}
	if page[0].ID != testGame(3, "main").ID {
		t.Errorf("filtered first game = %s, want %s", page[0].ID, testGame(3, "main").ID)
	}

	// Source filter isolates provenance buckets.
	page, err = st.UnanalyzedPage(nil, 0, 10, "elite")
	if err != nil {
		t.Fatalf("UnanalyzedPage elite: %v", err)
	}
	if len(page) != 1 || page[0].Source != "elite" {
		t.Errorf("elite page = %v, want single elite game", page)
	}

	// Exhausted source yields an empty page.
	page, err = st.UnanalyzedPage(nil, 100, 10, "main")
	if err != nil {
		t.Fatalf("UnanalyzedPage exhausted: %v", err)
	}
	if len(page) != 0 {
		t.Errorf("exhausted page length = %d, want 0", len(page))
	}
}

func TestMarkAnalyzedIdempotent(t *testing.T) {
	st := openTestStore(t)

	id := "deadbeef00000001"
	analyzed, err := st.IsAnalyzed(id)
	if err != nil {
		t.Fatalf("IsAnalyzed: %v", err)
	}
	if analyzed {
		t.Fatal("fresh game reported analyzed")
	}

	for i := 0; i < 3; i++ {
		if err := st.MarkAnalyzed(id); err != nil {
			t.Fatalf("MarkAnalyzed #%d: %v", i, err)
		}
	}

	analyzed, err = st.IsAnalyzed(id)
	if err != nil {
		t.Fatalf("IsAnalyzed: %v", err)
	}
	if !analyzed {
		t.Fatal("marked game not reported analyzed")
	}

	set, err := st.AnalyzedSet()
	if err != nil {
		t.Fatalf("AnalyzedSet: %v", err)
	}
	if len(set) != 1 || !set[id] {
		t.Errorf("AnalyzedSet = %v, want {%s}", set, id)
	}
}

func TestApplyMoveUpdates(t *testing.T) {
	st := openTestStore(t)

	gameID := "cafe000000000001"
	recs := []MoveRecord{
		{MoveNumber: 1, Color: ColorWhite, FENBefore: "fen1", SAN: "e4", UCI: "e2e4"},
		{MoveNumber: 1, Color: ColorBlack, FENBefore: "fen2", SAN: "e5", UCI: "e7e5"},
	}
	if err := st.PutMoveRecords(gameID, recs); err != nil {
		t.Fatalf("PutMoveRecords: %v", err)
	}

	updates := []MoveUpdate{
		{MoveNumber: 1, Color: ColorWhite, Tag: tactics.TagNone, ScoreDiff: -10, Label: tactics.LabelAcceptable},
		{MoveNumber: 1, Color: ColorBlack, Tag: tactics.TagBlunder, ScoreDiff: -320, Label: tactics.LabelBlunder},
		{MoveNumber: 2, Color: ColorWhite, Tag: tactics.TagFork, ScoreDiff: 200, Label: tactics.LabelExcellent},
	}
	matched, unmatched, err := st.ApplyMoveUpdates(gameID, updates)
	if err != nil {
		t.Fatalf("ApplyMoveUpdates: %v", err)
	}
	if matched != 2 {
		t.Errorf("matched = %d, want 2", matched)
	}
	if unmatched != 1 {
		t.Errorf("unmatched = %d, want 1", unmatched)
	}

	rec, found, err := st.GetMoveRecord(gameID, 1, ColorBlack)
	if err != nil {
		t.Fatalf("GetMoveRecord: %v", err)
	}
	if !found {
		t.Fatal("move record not found after update")
	}
	if rec.Tag == nil || *rec.Tag != tactics.TagBlunder {
		t.Errorf("tag = %v, want blunder", rec.Tag)
	}
	if rec.ScoreDiff == nil || *rec.ScoreDiff != -320 {
		t.Errorf("score_diff = %v, want -320", rec.ScoreDiff)
	}
	if rec.ErrorLabel == nil || *rec.ErrorLabel != tactics.LabelBlunder {
		t.Errorf("error_label = %v, want blunder", rec.ErrorLabel)
	}
	if rec.SAN != "e5" || rec.FENBefore != "fen2" {
		t.Errorf("ingest fields clobbered: %+v", rec)
	}

	// Re-applying is an upsert, not an error.
	matched, unmatched, err = st.ApplyMoveUpdates(gameID, updates)
	if err != nil {
		t.Fatalf("ApplyMoveUpdates (again): %v", err)
	}
	if matched != 2 || unmatched != 1 {
		t.Errorf("second apply = (%d, %d), want (2, 1)", matched, unmatched)
	}
}

func TestWalkMoveRecords(t *testing.T) {
	st := openTestStore(t)

	if err := st.PutMoveRecords("aaaa000000000001", []MoveRecord{
		{MoveNumber: 1, Color: ColorWhite, SAN: "e4"},
		{MoveNumber: 1, Color: ColorBlack, SAN: "e5"},
	}); err != nil {
		t.Fatalf("PutMoveRecords: %v", err)
	}
	if err := st.PutMoveRecords("bbbb000000000001", []MoveRecord{
		{MoveNumber: 1, Color: ColorWhite, SAN: "d4"},
	}); err != nil {
		t.Fatalf("PutMoveRecords: %v", err)
	}

	byGame := map[string]int{}
	err := st.WalkMoveRecords(func(gameID string, rec MoveRecord) error {
		byGame[gameID]++
		return nil
	})
	if err != nil {
		t.Fatalf("WalkMoveRecords: %v", err)
	}
	if byGame["aaaa000000000001"] != 2 || byGame["bbbb000000000001"] != 1 {
		t.Errorf("walk counts = %v", byGame)
	}
}
