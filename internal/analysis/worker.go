package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/notnil/chess"
	"github.com/rs/zerolog"

	"github.com/freeeve/tactics/internal/engine"
	"github.com/freeeve/tactics/internal/store"
	"github.com/freeeve/tactics/internal/tactics"
)

// gameResult is what a worker hands back to the collector. err non-nil means
// the game produced no durable writes and stays pending.
type gameResult struct {
	gameID   string
	updates  []store.MoveUpdate
	findings int
	err      error
}

// worker processes one game at a time, start to finish, with its own
// evaluator. Moves within a game are evaluated strictly sequentially; each
// position depends on the one before it.
type worker struct {
	id        int
	log       zerolog.Logger
	eval      Evaluator
	skipPlies int
	preset    tactics.Preset
}

func (w *worker) analyzeGame(ctx context.Context, g store.GameRecord) gameResult {
	pgnOpt, err := chess.PGN(strings.NewReader(g.PGN))
	if err != nil {
		return gameResult{gameID: g.ID, err: fmt.Errorf("parse pgn: %w", err)}
	}
	game := chess.NewGame(pgnOpt)
	moves := game.Moves()
	positions := game.Positions()
	if len(positions) != len(moves)+1 {
		return gameResult{gameID: g.ID, err: fmt.Errorf("inconsistent game: %d positions for %d moves", len(positions), len(moves))}
	}

	var updates []store.MoveUpdate
	findings := 0

	// Each position is evaluated once: the "after" eval of move i is reused
	// as the "before" eval of move i+1.
	var nextBefore []engine.Line
	haveNext := false

	for i := w.skipPlies; i < len(moves); i++ {
		select {
		case <-ctx.Done():
			return gameResult{gameID: g.ID, err: ctx.Err()}
		default:
		}

		before := nextBefore
		if !haveNext {
			before, err = w.eval.Evaluate(ctx, positions[i].String())
			if err != nil {
				return gameResult{gameID: g.ID, err: fmt.Errorf("eval ply %d: %w", i, err)}
			}
		}
		if len(before) == 0 {
			return gameResult{gameID: g.ID, err: fmt.Errorf("eval ply %d: engine returned no lines", i)}
		}
		moverCP := before[0].Centipawns()

		// Score after the move, flipped back to the mover's perspective.
		// Terminal positions need no engine call.
		var afterMoverCP int
		haveNext = false
		switch positions[i+1].Status() {
		case chess.Checkmate:
			afterMoverCP = engine.MateValueCP
		case chess.Stalemate:
			afterMoverCP = 0
		default:
			after, err := w.eval.Evaluate(ctx, positions[i+1].String())
			if err != nil {
				return gameResult{gameID: g.ID, err: fmt.Errorf("eval ply %d: %w", i+1, err)}
			}
			if len(after) == 0 {
				return gameResult{gameID: g.ID, err: fmt.Errorf("eval ply %d: engine returned no lines", i+1)}
			}
			afterMoverCP = -after[0].Centipawns()
			nextBefore = after
			haveNext = true
		}

		scoreDiff := afterMoverCP - moverCP

		tag := tactics.ClassifyPattern(positions[i], moves[i], scoreDiff)
		label := w.preset.ClassifySeverity(scoreDiff)
		if tag != tactics.TagNone {
			findings++
		}

		color := store.ColorWhite
		if positions[i].Turn() == chess.Black {
			color = store.ColorBlack
		}

		updates = append(updates, store.MoveUpdate{
			MoveNumber: i/2 + 1,
			Color:      color,
			Tag:        tag,
			ScoreDiff:  scoreDiff,
			Label:      label,
		})
	}

	return gameResult{gameID: g.ID, updates: updates, findings: findings}
}
