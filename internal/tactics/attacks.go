package tactics

import "github.com/notnil/chess"

// Board-geometry helpers for pattern detection. These work directly on a
// *chess.Board snapshot; the classifier never mutates a caller's position.

type delta struct{ df, dr int }

var (
	knightDeltas = []delta{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingDeltas   = []delta{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	rookDeltas   = []delta{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	bishopDeltas = []delta{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

func squareAt(file, rank int) (chess.Square, bool) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return 0, false
	}
	return chess.Square(rank*8 + file), true
}

func fileRank(sq chess.Square) (int, int) {
	return int(sq) % 8, int(sq) / 8
}

// attacksFrom returns every square attacked by the piece on from, respecting
// occupancy (sliding attacks stop at, and include, the first occupied square).
func attacksFrom(b *chess.Board, from chess.Square) []chess.Square {
	piece := b.Piece(from)
	if piece == chess.NoPiece {
		return nil
	}
	f, r := fileRank(from)

	switch piece.Type() {
	case chess.Pawn:
		dir := 1
		if piece.Color() == chess.Black {
			dir = -1
		}
		var out []chess.Square
		for _, df := range []int{-1, 1} {
			if sq, ok := squareAt(f+df, r+dir); ok {
				out = append(out, sq)
			}
		}
		return out
	case chess.Knight:
		return stepAttacks(f, r, knightDeltas)
	case chess.King:
		return stepAttacks(f, r, kingDeltas)
	case chess.Rook:
		return slideAttacks(b, f, r, rookDeltas)
	case chess.Bishop:
		return slideAttacks(b, f, r, bishopDeltas)
	case chess.Queen:
		out := slideAttacks(b, f, r, rookDeltas)
		return append(out, slideAttacks(b, f, r, bishopDeltas)...)
	}
	return nil
}

func stepAttacks(f, r int, deltas []delta) []chess.Square {
	out := make([]chess.Square, 0, len(deltas))
	for _, d := range deltas {
		if sq, ok := squareAt(f+d.df, r+d.dr); ok {
			out = append(out, sq)
		}
	}
	return out
}

func slideAttacks(b *chess.Board, f, r int, deltas []delta) []chess.Square {
	var out []chess.Square
	for _, d := range deltas {
		for step := 1; ; step++ {
			sq, ok := squareAt(f+d.df*step, r+d.dr*step)
			if !ok {
				break
			}
			out = append(out, sq)
			if b.Piece(sq) != chess.NoPiece {
				break
			}
		}
	}
	return out
}

// attackedBy returns the set of squares attacked by any piece of color c.
func attackedBy(b *chess.Board, c chess.Color) map[chess.Square]bool {
	attacked := make(map[chess.Square]bool)
	for sq, piece := range b.SquareMap() {
		if piece.Color() != c {
			continue
		}
		for _, t := range attacksFrom(b, sq) {
			attacked[t] = true
		}
	}
	return attacked
}

// attackersOf returns the squares of pieces of color c that attack target.
func attackersOf(b *chess.Board, c chess.Color, target chess.Square) []chess.Square {
	var out []chess.Square
	for sq, piece := range b.SquareMap() {
		if piece.Color() != c {
			continue
		}
		for _, t := range attacksFrom(b, sq) {
			if t == target {
				out = append(out, sq)
				break
			}
		}
	}
	return out
}

// kingSquare finds the king of color c; returns false on malformed boards.
func kingSquare(b *chess.Board, c chess.Color) (chess.Square, bool) {
	for sq, piece := range b.SquareMap() {
		if piece.Type() == chess.King && piece.Color() == c {
			return sq, true
		}
	}
	return 0, false
}

// inCheck reports whether the king of color c is attacked on b.
func inCheck(b *chess.Board, c chess.Color) bool {
	ksq, ok := kingSquare(b, c)
	if !ok {
		return false
	}
	return len(attackersOf(b, c.Other(), ksq)) > 0
}

// rayBetween reports whether mid lies strictly between a and b on a shared
// rank, file, or diagonal.
func rayBetween(a, mid, b chess.Square) bool {
	af, ar := fileRank(a)
	bf, br := fileRank(b)
	mf, mr := fileRank(mid)

	df := sign(bf - af)
	dr := sign(br - ar)
	if df == 0 && dr == 0 {
		return false
	}
	// a->b must be a straight or diagonal ray
	if df != 0 && dr != 0 && abs(bf-af) != abs(br-ar) {
		return false
	}
	f, r := af+df, ar+dr
	for f != bf || r != br {
		if f == mf && r == mr {
			return true
		}
		f += df
		r += dr
	}
	return false
}

// pinnedToKing reports whether any piece of color victim is pinned against
// its own king by a sliding piece of the opposing color.
func pinnedToKing(b *chess.Board, victim chess.Color) bool {
	ksq, ok := kingSquare(b, victim)
	if !ok {
		return false
	}
	kf, kr := fileRank(ksq)

	check := func(deltas []delta, want1, want2 chess.PieceType) bool {
		for _, d := range deltas {
			haveBlocker := false
			for step := 1; ; step++ {
				sq, ok := squareAt(kf+d.df*step, kr+d.dr*step)
				if !ok {
					break
				}
				piece := b.Piece(sq)
				if piece == chess.NoPiece {
					continue
				}
				if piece.Color() == victim {
					if piece.Type() == chess.King {
						break
					}
					if haveBlocker {
						break // two own pieces shield the king on this ray
					}
					haveBlocker = true
					continue
				}
				// Opposing piece: a pin needs exactly one own piece between
				// it and the king, and the right slider type for the ray.
				if haveBlocker && (piece.Type() == want1 || piece.Type() == want2) {
					return true
				}
				break
			}
		}
		return false
	}

	if check(rookDeltas, chess.Rook, chess.Queen) {
		return true
	}
	return check(bishopDeltas, chess.Bishop, chess.Queen)
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
