package archive

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var ErrDuplicateGame = errors.New("game already archived")

const defaultRecentLimit = 10

// Record is a finished game. Records are written once and never reloaded into play.
type Record struct {
	ID         string        `json:"id"`
	HumanColor string        `json:"human_color"`
	Strength   int           `json:"strength"`
	ThinkTime  time.Duration `json:"think_time"`
	Result     string        `json:"result"`
	Method     string        `json:"method"`
	Text       string        `json:"text"`
	MovesUCI   []string      `json:"moves_uci"`
	MovesSAN   []string      `json:"moves_san"`
	PGN        string        `json:"pgn"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    time.Time     `json:"ended_at"`
}

func (r Record) Duration() time.Duration {
	if r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

type Store interface {
	Save(ctx context.Context, rec Record) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// MemoryStore keeps records for the lifetime of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]int
	games []Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]int)}
}

func (m *MemoryStore) Save(ctx context.Context, rec Record) error {
	key := strings.TrimSpace(rec.ID)
	if key == "" {
		return errors.New("archive record without id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[key]; exists {
		return ErrDuplicateGame
	}
	m.byID[key] = len(m.games)
	m.games = append(m.games, cloneRecord(rec))
	return nil
}

func (m *MemoryStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	m.mu.RLock()
	items := make([]Record, 0, len(m.games))
	for i := range m.games {
		items = append(items, cloneRecord(m.games[i]))
	}
	m.mu.RUnlock()

	// EndedAt desc, insertion order breaks ties
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].EndedAt.After(items[j].EndedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func cloneRecord(r Record) Record {
	r.MovesUCI = append([]string(nil), r.MovesUCI...)
	r.MovesSAN = append([]string(nil), r.MovesSAN...)
	return r
}
