package pvpxiangqi

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/park285/Cheese-Xiangqi/internal/domain"

	_ "github.com/lib/pq"
)

// ResultStore persists finished games.
type ResultStore interface {
	SaveResult(ctx context.Context, g *domain.XiangqiGame) error
	RecentGames(ctx context.Context, userID string, limit int) ([]*domain.XiangqiGame, error)
}

const schema = `CREATE TABLE IF NOT EXISTS xiangqi_games (
    game_id       TEXT PRIMARY KEY,
    red_id        TEXT NOT NULL,
    red_name      TEXT NOT NULL,
    black_id      TEXT NOT NULL,
    black_name    TEXT NOT NULL,
    room          TEXT NOT NULL DEFAULT '',
    result        TEXT NOT NULL,
    result_method TEXT NOT NULL,
    moves         JSONB NOT NULL,
    final_pos     TEXT NOT NULL,
    started_at    TIMESTAMPTZ NOT NULL,
    ended_at      TIMESTAMPTZ NOT NULL,
    duration_ms   BIGINT NOT NULL
)`

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	r := &Repository{db: db}
	if err := r.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// NewRepositoryFromDB wraps an already opened handle.
func NewRepositoryFromDB(db *sql.DB) *Repository { return &Repository{db: db} }

func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts a final game result.
func (r *Repository) SaveResult(ctx context.Context, g *domain.XiangqiGame) error {
	if r == nil || r.db == nil || g == nil {
		return nil
	}
	moves, err := json.Marshal(g.Moves)
	if err != nil {
		return fmt.Errorf("marshal moves: %w", err)
	}
	const q = `INSERT INTO xiangqi_games (
        game_id, red_id, red_name, black_id, black_name, room,
        result, result_method, moves, final_pos,
        started_at, ended_at, duration_ms
      ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::jsonb,$10,$11,$12,$13)
      ON CONFLICT (game_id) DO UPDATE SET
        result=EXCLUDED.result,
        result_method=EXCLUDED.result_method,
        moves=EXCLUDED.moves,
        final_pos=EXCLUDED.final_pos,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`
	_, err = r.db.ExecContext(ctx, q,
		g.GameID, g.RedID, g.RedName, g.BlackID, g.BlackName, g.Room,
		g.Result, g.ResultMethod, string(moves), g.FinalPos,
		g.StartedAt, g.EndedAt, g.Duration.Milliseconds(),
	)
	return err
}

func (r *Repository) RecentGames(ctx context.Context, userID string, limit int) ([]*domain.XiangqiGame, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `SELECT game_id, red_id, red_name, black_id, black_name, room,
        result, result_method, moves, final_pos, started_at, ended_at, duration_ms
      FROM xiangqi_games
      WHERE red_id = $1 OR black_id = $1
      ORDER BY ended_at DESC
      LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.XiangqiGame
	for rows.Next() {
		var (
			g     domain.XiangqiGame
			moves []byte
			ms    int64
		)
		if err := rows.Scan(&g.GameID, &g.RedID, &g.RedName, &g.BlackID, &g.BlackName, &g.Room,
			&g.Result, &g.ResultMethod, &moves, &g.FinalPos, &g.StartedAt, &g.EndedAt, &ms); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(moves, &g.Moves); err != nil {
			return nil, fmt.Errorf("decode moves of %s: %w", g.GameID, err)
		}
		g.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, &g)
	}
	return out, rows.Err()
}

// MemoryRepository keeps results in process; used when no database is configured.
type MemoryRepository struct {
	mu    sync.RWMutex
	games map[string]*domain.XiangqiGame
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{games: make(map[string]*domain.XiangqiGame)}
}

func (m *MemoryRepository) SaveResult(_ context.Context, g *domain.XiangqiGame) error {
	if g == nil {
		return nil
	}
	c := *g
	c.Moves = append([]string(nil), g.Moves...)
	m.mu.Lock()
	m.games[g.GameID] = &c
	m.mu.Unlock()
	return nil
}

func (m *MemoryRepository) RecentGames(_ context.Context, userID string, limit int) ([]*domain.XiangqiGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var items []*domain.XiangqiGame
	for _, g := range m.games {
		if g.RedID == userID || g.BlackID == userID {
			c := *g
			items = append(items, &c)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].GameID > items[j].GameID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *MemoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.games)
}
