package session

import (
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
)

// Phase is the controller state visible to the presentation layer.
type Phase int

const (
	AwaitingHuman Phase = iota
	OpponentThinking
	Terminal
)

func (p Phase) String() string {
	switch p {
	case AwaitingHuman:
		return "awaiting_human"
	case OpponentThinking:
		return "opponent_thinking"
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Move is a candidate move in board coordinates. Promotion is NoPieceType unless
// a pawn reaches its last rank.
type Move struct {
	From      nchess.Square
	To        nchess.Square
	Promotion nchess.PieceType
}

func (m Move) UCI() string {
	var b strings.Builder
	b.WriteString(m.From.String())
	b.WriteString(m.To.String())
	switch m.Promotion {
	case nchess.Queen:
		b.WriteByte('q')
	case nchess.Rook:
		b.WriteByte('r')
	case nchess.Bishop:
		b.WriteByte('b')
	case nchess.Knight:
		b.WriteByte('n')
	}
	return b.String()
}

// MoveTag classifies the last applied move for feedback.
type MoveTag int

const (
	TagNone MoveTag = iota
	TagQuiet
	TagCapture
	TagCheck
)

func (t MoveTag) String() string {
	switch t {
	case TagQuiet:
		return "move"
	case TagCapture:
		return "capture"
	case TagCheck:
		return "check"
	default:
		return "none"
	}
}

type HistoryEntry struct {
	Number int
	Color  nchess.Color
	SAN    string
	UCI    string
}

type Opening struct {
	Code  string
	Title string
}

// SettingsView is a copy of the settings taken when a snapshot is published.
type SettingsView struct {
	Strength   int
	ThinkTime  time.Duration
	HumanColor nchess.Color
	Flipped    bool
	PieceSet   string
}

// Snapshot is everything the presentation layer needs after a transition.
// It owns its maps and slices.
type Snapshot struct {
	SessionID string
	Phase     Phase
	FEN       string
	Board     map[nchess.Square]nchess.Piece
	Turn      nchess.Color
	Started   bool
	Result    Result

	Selected  nchess.Square
	Holding   bool
	Targets   []nchess.Square
	LastMove  *Move
	LastTag   MoveTag
	GameEnded bool

	History  []HistoryEntry
	Captured Captured
	Material Material
	Opening  Opening

	Settings  SettingsView
	EngineErr error
}

func (s Snapshot) Terminal() bool { return s.Phase == Terminal }

func (s Snapshot) HumanToMove() bool {
	return s.Phase == AwaitingHuman && s.Turn == s.Settings.HumanColor
}

// IsTarget reports whether sq is a legal destination of the held piece.
func (s Snapshot) IsTarget(sq nchess.Square) bool {
	for _, t := range s.Targets {
		if t == sq {
			return true
		}
	}
	return false
}
