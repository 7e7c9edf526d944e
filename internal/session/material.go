package session

import (
	nchess "github.com/corentings/chess/v2"
)

// CountedPieces are the non-king piece types in display order.
var CountedPieces = []nchess.PieceType{nchess.Queen, nchess.Rook, nchess.Bishop, nchess.Knight, nchess.Pawn}

var initialPieceCounts = map[nchess.PieceType]int{
	nchess.Queen:  1,
	nchess.Rook:   2,
	nchess.Bishop: 2,
	nchess.Knight: 2,
	nchess.Pawn:   8,
}

var pieceValues = map[nchess.PieceType]int{
	nchess.Queen:  9,
	nchess.Rook:   5,
	nchess.Bishop: 3,
	nchess.Knight: 3,
	nchess.Pawn:   1,
}

const initialMaterial = 39

// Material is the on-board material per side (P1 N3 B3 R5 Q9).
type Material struct {
	White int
	Black int
}

func (m Material) Diff() int { return m.White - m.Black }

// Captured counts the pieces each side has taken: White holds black pieces
// missing from the board and Black holds white ones.
//
// Counts are initial minus current per type, clamped at zero. A promoted pawn
// therefore shows up as its promoted type, so captured pawns are under-counted
// after a promotion.
type Captured struct {
	White map[nchess.PieceType]int
	Black map[nchess.PieceType]int
}

func (c Captured) By(color nchess.Color) map[nchess.PieceType]int {
	if color == nchess.Black {
		return c.Black
	}
	return c.White
}

func (c Captured) Empty() bool {
	for _, n := range c.White {
		if n > 0 {
			return false
		}
	}
	for _, n := range c.Black {
		if n > 0 {
			return false
		}
	}
	return true
}

func computeMaterial(board *nchess.Board) (Material, Captured) {
	captured := Captured{
		White: map[nchess.PieceType]int{},
		Black: map[nchess.PieceType]int{},
	}
	if board == nil {
		return Material{White: initialMaterial, Black: initialMaterial}, captured
	}

	counts := map[nchess.Color]map[nchess.PieceType]int{
		nchess.White: {},
		nchess.Black: {},
	}
	var score Material
	for _, piece := range board.SquareMap() {
		value, ok := pieceValues[piece.Type()]
		if !ok {
			continue
		}
		counts[piece.Color()][piece.Type()]++
		if piece.Color() == nchess.White {
			score.White += value
		} else {
			score.Black += value
		}
	}

	for pt, initial := range initialPieceCounts {
		captured.White[pt] = lost(initial, counts[nchess.Black][pt])
		captured.Black[pt] = lost(initial, counts[nchess.White][pt])
	}
	return score, captured
}

func lost(initial, current int) int {
	if current >= initial {
		return 0
	}
	return initial - current
}
