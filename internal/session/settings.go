package session

import (
	"strings"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-solo-chess/internal/chess"
)

const DefaultPieceSet = "classic"

// Settings holds the mutable session settings. The controller writes them and the
// presentation layer reads them from its own goroutine.
type Settings struct {
	mu         sync.RWMutex
	strength   int
	thinkTime  time.Duration
	humanColor nchess.Color
	flipped    bool
	pieceSet   string
}

// NewSettings returns settings oriented so the human's colour faces the viewer.
// Invalid values fall back to the defaults.
func NewSettings(strength int, thinkTime time.Duration, human nchess.Color, pieceSet string) *Settings {
	if chess.ValidateStrength(strength) != nil {
		strength = chess.DefaultStrength
	}
	if chess.ValidateThinkTime(thinkTime) != nil {
		thinkTime = chess.DefaultThinkTime
	}
	if human != nchess.Black {
		human = nchess.White
	}
	pieceSet = strings.TrimSpace(pieceSet)
	if pieceSet == "" {
		pieceSet = DefaultPieceSet
	}
	return &Settings{
		strength:   strength,
		thinkTime:  thinkTime,
		humanColor: human,
		flipped:    human == nchess.Black,
		pieceSet:   pieceSet,
	}
}

func (s *Settings) Strength() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.strength
}

func (s *Settings) ThinkTime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thinkTime
}

func (s *Settings) HumanColor() nchess.Color {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.humanColor
}

func (s *Settings) Flipped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flipped
}

func (s *Settings) PieceSet() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pieceSet
}

func (s *Settings) View() SettingsView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SettingsView{
		Strength:   s.strength,
		ThinkTime:  s.thinkTime,
		HumanColor: s.humanColor,
		Flipped:    s.flipped,
		PieceSet:   s.pieceSet,
	}
}

func (s *Settings) setStrength(v int) {
	s.mu.Lock()
	s.strength = v
	s.mu.Unlock()
}

func (s *Settings) setThinkTime(v time.Duration) {
	s.mu.Lock()
	s.thinkTime = v
	s.mu.Unlock()
}

// setHumanColor also resets the orientation so the human's side is at the bottom.
func (s *Settings) setHumanColor(c nchess.Color) {
	s.mu.Lock()
	s.humanColor = c
	s.flipped = c == nchess.Black
	s.mu.Unlock()
}

func (s *Settings) toggleFlipped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flipped = !s.flipped
	return s.flipped
}

func (s *Settings) setPieceSet(name string) {
	s.mu.Lock()
	s.pieceSet = name
	s.mu.Unlock()
}

// ParseColor accepts "white"/"w" and "black"/"b" in any case.
func ParseColor(raw string) (nchess.Color, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "white", "w":
		return nchess.White, nil
	case "black", "b":
		return nchess.Black, nil
	default:
		return nchess.NoColor, ErrInvalidColor
	}
}
