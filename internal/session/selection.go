package session

import (
	"context"

	nchess "github.com/corentings/chess/v2"
)

// MoveSubmitter is the side of the controller the selector talks to.
type MoveSubmitter interface {
	// CanSelect reports whether sq holds a human piece that may be picked up now.
	CanSelect(sq nchess.Square) bool
	PieceAt(sq nchess.Square) nchess.Piece
	AttemptMove(ctx context.Context, m Move) (bool, error)
}

type ClickResult int

const (
	ClickIgnored ClickResult = iota
	ClickSelected
	ClickDeselected
	ClickMoved
	ClickRejected
)

func (r ClickResult) String() string {
	switch r {
	case ClickSelected:
		return "selected"
	case ClickDeselected:
		return "deselected"
	case ClickMoved:
		return "moved"
	case ClickRejected:
		return "rejected"
	default:
		return "ignored"
	}
}

// Selector turns square clicks into selections and move attempts.
// The zero value is Idle.
type Selector struct {
	held    nchess.Square
	holding bool
}

func (s *Selector) Held() (nchess.Square, bool) { return s.held, s.holding }

func (s *Selector) Reset() {
	s.held = nchess.NoSquare
	s.holding = false
}

// Click advances the selector. A click on the held square deselects. Any other
// click while holding submits a move and returns to Idle whatever the outcome;
// the clicked square is not re-selected after a rejected attempt.
func (s *Selector) Click(ctx context.Context, sq nchess.Square, sub MoveSubmitter) (ClickResult, error) {
	if !s.holding {
		if !sub.CanSelect(sq) {
			return ClickIgnored, nil
		}
		s.held = sq
		s.holding = true
		return ClickSelected, nil
	}

	from := s.held
	s.Reset()
	if sq == from {
		return ClickDeselected, nil
	}

	m := Move{From: from, To: sq, Promotion: PromotionFor(sub.PieceAt(from), sq)}
	ok, err := sub.AttemptMove(ctx, m)
	if !ok {
		return ClickRejected, err
	}
	return ClickMoved, err
}

// PromotionFor forces a queen when piece is a pawn arriving on its last rank.
func PromotionFor(piece nchess.Piece, to nchess.Square) nchess.PieceType {
	if piece == nchess.NoPiece || piece.Type() != nchess.Pawn {
		return nchess.NoPieceType
	}
	switch {
	case piece.Color() == nchess.White && to.Rank() == nchess.Rank8:
		return nchess.Queen
	case piece.Color() == nchess.Black && to.Rank() == nchess.Rank1:
		return nchess.Queen
	default:
		return nchess.NoPieceType
	}
}
