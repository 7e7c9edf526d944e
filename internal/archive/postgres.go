package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const schema = `
	CREATE TABLE IF NOT EXISTS solo_chess_games (
		id              BIGSERIAL PRIMARY KEY,
		game_uuid       TEXT NOT NULL UNIQUE,
		human_color     TEXT NOT NULL,
		strength        INTEGER NOT NULL,
		think_time_ms   BIGINT NOT NULL,
		result          TEXT NOT NULL,
		result_method   TEXT NOT NULL,
		result_text     TEXT NOT NULL,
		moves_uci       JSONB NOT NULL,
		moves_san       JSONB NOT NULL,
		pgn             TEXT NOT NULL,
		started_at      TIMESTAMPTZ NOT NULL,
		ended_at        TIMESTAMPTZ NOT NULL,
		duration_ms     BIGINT NOT NULL
	)`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens and pings the database at databaseURL.
func OpenPostgres(ctx context.Context, databaseURL string) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (r *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create solo_chess_games: %w", err)
	}
	return nil
}

func (r *PostgresStore) Save(ctx context.Context, rec Record) error {
	movesUCI, err := json.Marshal(nonNil(rec.MovesUCI))
	if err != nil {
		return fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := json.Marshal(nonNil(rec.MovesSAN))
	if err != nil {
		return fmt.Errorf("marshal moves_san: %w", err)
	}

	const query = `
		INSERT INTO solo_chess_games (
			game_uuid,
			human_color,
			strength,
			think_time_ms,
			result,
			result_method,
			result_text,
			moves_uci,
			moves_san,
			pgn,
			started_at,
			ended_at,
			duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9::jsonb, $10, $11, $12, $13)
		ON CONFLICT (game_uuid) DO NOTHING`

	res, err := r.db.ExecContext(
		ctx,
		query,
		rec.ID,
		rec.HumanColor,
		rec.Strength,
		rec.ThinkTime.Milliseconds(),
		rec.Result,
		rec.Method,
		rec.Text,
		movesUCI,
		movesSAN,
		rec.PGN,
		rec.StartedAt,
		rec.EndedAt,
		rec.Duration().Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert solo chess game: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicateGame
	}
	return nil
}

func (r *PostgresStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	const query = `
		SELECT
			game_uuid,
			human_color,
			strength,
			think_time_ms,
			result,
			result_method,
			result_text,
			moves_uci,
			moves_san,
			pgn,
			started_at,
			ended_at
		FROM solo_chess_games
		ORDER BY ended_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select solo chess games: %w", err)
	}
	defer rows.Close()

	games := make([]Record, 0, limit)
	for rows.Next() {
		var (
			rec          Record
			thinkMS      int64
			movesUCIJSON []byte
			movesSANJSON []byte
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.HumanColor,
			&rec.Strength,
			&thinkMS,
			&rec.Result,
			&rec.Method,
			&rec.Text,
			&movesUCIJSON,
			&movesSANJSON,
			&rec.PGN,
			&rec.StartedAt,
			&rec.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("scan solo chess game: %w", err)
		}
		rec.ThinkTime = time.Duration(thinkMS) * time.Millisecond
		if err := json.Unmarshal(movesUCIJSON, &rec.MovesUCI); err != nil {
			return nil, fmt.Errorf("unmarshal moves_uci: %w", err)
		}
		if err := json.Unmarshal(movesSANJSON, &rec.MovesSAN); err != nil {
			return nil, fmt.Errorf("unmarshal moves_san: %w", err)
		}
		games = append(games, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate solo chess games: %w", err)
	}
	return games, nil
}

func nonNil(moves []string) []string {
	if moves == nil {
		return []string{}
	}
	return moves
}
