package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/freeeve/uci"
	"github.com/rs/zerolog"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// writeStallScript fakes an engine that answers the handshake but never
// completes a search, so every GoDepth call stalls until the process is
// killed. Each start appends a line to the marker file.
func writeStallScript(t *testing.T) (script, marker string) {
	t.Helper()
	dir := t.TempDir()
	marker = filepath.Join(dir, "starts")
	script = filepath.Join(dir, "fakeengine.sh")
	body := fmt.Sprintf(`#!/bin/sh
echo started >> %s
while IFS= read -r line; do
  case "$line" in
  uci) echo "id name stallengine"; echo "uciok" ;;
  isready) echo "readyok" ;;
  quit) exit 0 ;;
  esac
done
`, marker)
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write fake engine: %v", err)
	}
	return script, marker
}

func waitForStarts(t *testing.T, marker string, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		data, _ := os.ReadFile(marker)
		got := strings.Count(string(data), "started")
		if got >= want {
			if got > want {
				t.Fatalf("engine starts = %d, want %d", got, want)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("engine starts = %d, want %d", got, want)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestEvaluateTimeoutRestartsEngine(t *testing.T) {
	script, marker := writeStallScript(t)
	c, err := New(Config{
		Path:        script,
		Logger:      zerolog.Nop(),
		MoveTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()
	waitForStarts(t, marker, 1)

	start := time.Now()
	_, err = c.Evaluate(context.Background(), startFEN)
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("err = %v, want ErrEngineUnavailable", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("stalled search returned after %s, want close to the 100ms cap", elapsed)
	}

	// The next call restarts the killed process before searching.
	if _, err := c.Evaluate(context.Background(), startFEN); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("err after restart = %v, want ErrEngineUnavailable", err)
	}
	waitForStarts(t, marker, 2)
}

func TestEvaluateCancelledContext(t *testing.T) {
	script, marker := writeStallScript(t)
	c, err := New(Config{
		Path:        script,
		Logger:      zerolog.Nop(),
		MoveTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()
	waitForStarts(t, marker, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Evaluate(ctx, startFEN); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// The abandoned process must not poison the client: a fresh call gets a
	// fresh process and fails only on its own timeout.
	if _, err := c.Evaluate(context.Background(), startFEN); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("err after cancel = %v, want ErrEngineUnavailable", err)
	}
	waitForStarts(t, marker, 2)
}

func TestLineCentipawns(t *testing.T) {
	tests := []struct {
		name string
		line Line
		want int
	}{
		{"centipawn positive", Line{Kind: KindCentipawn, Value: 35}, 35},
		{"centipawn negative", Line{Kind: KindCentipawn, Value: -180}, -180},
		{"centipawn zero", Line{Kind: KindCentipawn, Value: 0}, 0},
		{"mate in one", Line{Kind: KindMate, Value: 1}, MateValueCP - 10},
		{"mate in three", Line{Kind: KindMate, Value: 3}, MateValueCP - 30},
		{"mated in two", Line{Kind: KindMate, Value: -2}, -MateValueCP + 20},
		{"mate now", Line{Kind: KindMate, Value: 0}, MateValueCP},
		{"no score", Line{Kind: KindNone, Value: 99}, 0},
	}

	for _, tt := range tests {
		if got := tt.line.Centipawns(); got != tt.want {
			t.Errorf("%s: Centipawns() = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestMateOutranksAnyCentipawnScore(t *testing.T) {
	mate := Line{Kind: KindMate, Value: 40}
	cp := Line{Kind: KindCentipawn, Value: 9500}
	if mate.Centipawns() <= cp.Centipawns() {
		t.Errorf("mate in 40 (%d) should outrank +9500cp (%d)", mate.Centipawns(), cp.Centipawns())
	}
}

func TestLinesFromResults(t *testing.T) {
	if got := linesFromResults(nil); got != nil {
		t.Errorf("linesFromResults(nil) = %v, want nil", got)
	}

	res := &uci.Results{Results: []uci.ScoreResult{
		{Score: 42, BestMoves: []string{"e2e4", "e7e5"}},
		{Score: -3, Mate: true, BestMoves: []string{"d8h4"}},
	}}
	lines := linesFromResults(res)
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[0].Kind != KindCentipawn || lines[0].Value != 42 {
		t.Errorf("line 0 = %+v, want centipawn 42", lines[0])
	}
	if lines[0].PV[0] != "e2e4" {
		t.Errorf("line 0 pv = %v", lines[0].PV)
	}
	if lines[1].Kind != KindMate || lines[1].Value != -3 {
		t.Errorf("line 1 = %+v, want mate -3", lines[1])
	}
}

func TestEvaluateRejectsInvalidFEN(t *testing.T) {
	// No engine process needed: FEN validation happens before any engine
	// interaction.
	c := &Client{broken: true}
	_, err := c.Evaluate(context.Background(), "not a fen")
	if !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("err = %v, want ErrInvalidPosition", err)
	}
}

func TestNewRequiresPath(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty engine path")
	}
}
