package session

import (
	nchess "github.com/corentings/chess/v2"
)

type ResultKind int

const (
	ResultOngoing ResultKind = iota
	ResultHumanWon
	ResultOpponentWon
	ResultDraw
	ResultResigned
)

func (k ResultKind) String() string {
	switch k {
	case ResultHumanWon:
		return "human_won"
	case ResultOpponentWon:
		return "opponent_won"
	case ResultDraw:
		return "draw"
	case ResultResigned:
		return "resigned"
	default:
		return "ongoing"
	}
}

type DrawReason int

const (
	DrawNone DrawReason = iota
	DrawStalemate
	DrawInsufficientMaterial
	DrawSeventyFiveMove
	DrawFivefoldRepetition
	DrawOther
)

func (r DrawReason) String() string {
	switch r {
	case DrawStalemate:
		return "stalemate"
	case DrawInsufficientMaterial:
		return "insufficient_material"
	case DrawSeventyFiveMove:
		return "seventy_five_move_rule"
	case DrawFivefoldRepetition:
		return "fivefold_repetition"
	case DrawOther:
		return "other"
	default:
		return ""
	}
}

// Result classifies the state of a game from the human's point of view.
// Winner is NoColor unless the game is decisive.
type Result struct {
	Kind   ResultKind
	Draw   DrawReason
	Winner nchess.Color
}

func (r Result) Terminal() bool { return r.Kind != ResultOngoing }

// Key names the message catalog entry describing the result.
func (r Result) Key() string {
	switch r.Kind {
	case ResultHumanWon:
		return "result.human_won"
	case ResultOpponentWon:
		return "result.opponent_won"
	case ResultResigned:
		return "result.resigned"
	case ResultDraw:
		switch r.Draw {
		case DrawStalemate:
			return "result.draw_stalemate"
		case DrawInsufficientMaterial:
			return "result.draw_insufficient_material"
		case DrawSeventyFiveMove:
			return "result.draw_seventy_five"
		case DrawFivefoldRepetition:
			return "result.draw_repetition"
		default:
			return "result.draw"
		}
	default:
		return "result.ongoing"
	}
}

func (r Result) String() string {
	if r.Kind == ResultDraw {
		return r.Kind.String() + "/" + r.Draw.String()
	}
	return r.Kind.String()
}

// Resignation is the fixed result of the human resigning.
func Resignation(human nchess.Color) Result {
	return Result{Kind: ResultResigned, Winner: human.Other()}
}

// Classify reads the outcome the rules library recorded after the last move.
func Classify(game *nchess.Game, human nchess.Color) Result {
	if game == nil {
		return Result{}
	}
	switch game.Outcome() {
	case nchess.WhiteWon:
		return decisive(nchess.White, human)
	case nchess.BlackWon:
		return decisive(nchess.Black, human)
	case nchess.Draw:
		return Result{Kind: ResultDraw, Draw: drawReason(game.Method())}
	default:
		return Result{}
	}
}

func decisive(winner, human nchess.Color) Result {
	if winner == human {
		return Result{Kind: ResultHumanWon, Winner: winner}
	}
	return Result{Kind: ResultOpponentWon, Winner: winner}
}

func drawReason(m nchess.Method) DrawReason {
	switch m {
	case nchess.Stalemate:
		return DrawStalemate
	case nchess.InsufficientMaterial:
		return DrawInsufficientMaterial
	case nchess.SeventyFiveMoveRule:
		return DrawSeventyFiveMove
	case nchess.FivefoldRepetition:
		return DrawFivefoldRepetition
	default:
		return DrawOther
	}
}
