// Package tactics classifies chess moves into tactical categories and
// severity labels. All functions are pure: same position, move, and score
// delta always produce the same tag.
package tactics

import "github.com/notnil/chess"

// scoreFallbackCP is the centipawn swing (1.5 pawns) beyond which a move with
// no structural pattern is still tagged as a blunder or an opportunity.
const scoreFallbackCP = 150

// ClassifyPattern returns the tactical tag for a move played from the given
// position. scoreDiff is the centipawn delta from the mover's perspective.
//
// Evaluation order: terminal and check conditions first, then geometric
// patterns on the position after the move, then the score-based fallback.
// Structural patterns always win over the fallback. The caller's position is
// never mutated; the move is applied to a copy.
func ClassifyPattern(before *chess.Position, move *chess.Move, scoreDiff int) Tag {
	mover := before.Turn()
	after := before.Update(move)

	if after.Status() == chess.Checkmate {
		return TagMate
	}
	if inCheck(after.Board(), mover.Other()) {
		return TagCheck
	}

	board := after.Board()

	if isKnightFork(board, move.S2(), mover) {
		return TagFork
	}
	if pinnedToKing(board, mover.Other()) {
		return TagPin
	}
	if isDiscoveredAttack(before.Board(), board, move, mover) {
		return TagDiscoveredAttack
	}

	if scoreDiff <= -scoreFallbackCP {
		return TagBlunder
	}
	if scoreDiff >= scoreFallbackCP {
		return TagOpportunity
	}
	return TagNone
}

// isKnightFork reports whether the piece that landed on sq is a knight of the
// mover's color simultaneously attacking two or more opposing queens/rooks.
func isKnightFork(b *chess.Board, sq chess.Square, mover chess.Color) bool {
	piece := b.Piece(sq)
	if piece.Type() != chess.Knight || piece.Color() != mover {
		return false
	}
	majors := 0
	for _, t := range attacksFrom(b, sq) {
		target := b.Piece(t)
		if target == chess.NoPiece || target.Color() != mover.Other() {
			continue
		}
		if target.Type() == chess.Queen || target.Type() == chess.Rook {
			majors++
		}
	}
	return majors >= 2
}

// isDiscoveredAttack reports whether the move uncovered an attack on an
// opposing piece: the target was not attacked before the move, and after the
// move it is attacked by a piece other than the one that moved, along a line
// that passes through the vacated from-square.
func isDiscoveredAttack(beforeBoard, afterBoard *chess.Board, move *chess.Move, mover chess.Color) bool {
	attackedBefore := attackedBy(beforeBoard, mover)

	for target, piece := range afterBoard.SquareMap() {
		if piece.Color() != mover.Other() || piece.Type() == chess.King {
			continue
		}
		if attackedBefore[target] {
			continue
		}
		for _, attacker := range attackersOf(afterBoard, mover, target) {
			if attacker == move.S2() {
				continue // direct attack by the moved piece, not discovered
			}
			if rayBetween(attacker, move.S1(), target) {
				return true
			}
		}
	}
	return false
}
