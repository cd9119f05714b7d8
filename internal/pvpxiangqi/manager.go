package pvpxiangqi

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/park285/Cheese-Xiangqi/internal/obslog"
	"github.com/park285/Cheese-Xiangqi/internal/render"
	"github.com/park285/Cheese-Xiangqi/internal/session"
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultTTL = 24 * time.Hour

type Manager struct {
	rdb      *redis.Client
	renderer render.BoardRenderer
	repo     ResultStore
	ttl      time.Duration
}

type Option func(*Manager)

func WithTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

func WithRenderer(r render.BoardRenderer) Option {
	return func(m *Manager) {
		if r != nil {
			m.renderer = r
		}
	}
}

func NewManager(redisURL string, opts ...Option) (*Manager, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for PvP manager")
	}
	ropts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(ropts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	m := &Manager{rdb: rdb, renderer: render.NewPNGRenderer(), ttl: defaultTTL}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

func (m *Manager) Close() error {
	if m == nil || m.rdb == nil {
		return nil
	}
	return m.rdb.Close()
}

// AttachRepository wires a store for finished games.
func (m *Manager) AttachRepository(r ResultStore) {
	if m != nil {
		m.repo = r
	}
}

// CreateGame starts a match. colorChoice is the challenger's wish: red, black or
// anything else for a coin flip.
func (m *Manager) CreateGame(ctx context.Context, challengerID, challengerName, targetID, targetName, colorChoice, room string) (*Game, error) {
	if m == nil || m.rdb == nil {
		return nil, ErrNotInitialized
	}
	challengerID, targetID = strings.TrimSpace(challengerID), strings.TrimSpace(targetID)
	if challengerID == "" || targetID == "" || challengerID == targetID {
		return nil, fmt.Errorf("invalid participants")
	}

	redID, redName := challengerID, challengerName
	blackID, blackName := targetID, targetName
	switch strings.ToLower(strings.TrimSpace(colorChoice)) {
	case "red", "r":
	case "black", "b":
		redID, redName, blackID, blackName = targetID, targetName, challengerID, challengerName
	default:
		if n, _ := rand.Int(rand.Reader, big.NewInt(2)); n != nil && n.Int64() == 0 {
			redID, redName, blackID, blackName = targetID, targetName, challengerID, challengerName
		}
	}

	now := time.Now()
	g := &Game{
		ID:        "xq-" + uuid.NewString(),
		Moves:     []string{},
		Position:  xiangqi.Encode(xiangqi.StandardBoard(xiangqi.Red), xiangqi.Red),
		Turn:      xiangqi.Red,
		Status:    StatusActive,
		RedID:     redID,
		RedName:   strings.TrimSpace(redName),
		BlackID:   blackID,
		BlackName: strings.TrimSpace(blackName),
		Room:      strings.TrimSpace(room),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.save(ctx, g); err != nil {
		return nil, err
	}
	if err := m.indexParticipants(ctx, g.ID, g.RedID, g.BlackID); err != nil {
		return nil, err
	}
	obslog.L().Info("pvp_game_create",
		zap.String("game_id", g.ID),
		zap.String("room", g.Room),
		zap.String("red_id", g.RedID),
		zap.String("black_id", g.BlackID),
	)
	return g, nil
}

// GetActiveGameByUser returns the most recently updated active game of userID, or nil.
func (m *Manager) GetActiveGameByUser(ctx context.Context, userID string) (*Game, error) {
	if m == nil || m.rdb == nil {
		return nil, ErrNotInitialized
	}
	if strings.TrimSpace(userID) == "" {
		return nil, nil
	}
	ids, err := m.rdb.SMembers(ctx, idxUserKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	var list []*Game
	for _, id := range ids {
		g, gerr := m.get(ctx, id)
		if gerr == nil && g != nil && g.Active() {
			list = append(list, g)
		}
	}
	if len(list) == 0 {
		return nil, nil
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return list[0], nil
}

// LoadGame returns the game by id, nil when it does not exist or expired.
func (m *Manager) LoadGame(ctx context.Context, id string) (*Game, error) {
	if m == nil || m.rdb == nil {
		return nil, ErrNotInitialized
	}
	return m.get(ctx, id)
}

// PlayMove applies moveStr ("h7e7") for userID in their active game.
func (m *Manager) PlayMove(ctx context.Context, userID, moveStr string) (*Game, error) {
	g, err := m.GetActiveGameByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGameNotFound
	}
	mv, err := xiangqi.ParseMove(strings.ToLower(strings.TrimSpace(moveStr)))
	if err != nil {
		return g, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	out, err := m.apply(ctx, g.ID, mv, func(cur *Game) (xiangqi.Side, error) {
		side, ok := cur.SideOf(userID)
		if !ok {
			return side, ErrNotParticipant
		}
		return side, nil
	})
	if err != nil {
		return g, err
	}
	obslog.L().Info("pvp_move",
		zap.String("game_id", out.ID),
		zap.String("user_id", strings.TrimSpace(userID)),
		zap.String("move", mv.String()),
		zap.String("turn", out.Turn.String()),
		zap.String("status", string(out.Status)),
	)
	return out, nil
}

// RecordMove applies a move on behalf of side. The relay uses it to keep the
// authoritative record of games played between two peers.
func (m *Manager) RecordMove(ctx context.Context, gameID string, side xiangqi.Side, mv xiangqi.Move) (*Game, error) {
	out, err := m.apply(ctx, gameID, mv, func(*Game) (xiangqi.Side, error) { return side, nil })
	if err != nil {
		return nil, err
	}
	obslog.L().Debug("pvp_record_move",
		zap.String("game_id", out.ID),
		zap.String("side", side.String()),
		zap.String("move", mv.String()),
	)
	return out, nil
}

// Resign ends userID's active game in favour of the opponent.
func (m *Manager) Resign(ctx context.Context, userID string) (*Game, error) {
	g, err := m.GetActiveGameByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGameNotFound
	}
	side, ok := g.SideOf(userID)
	if !ok {
		return nil, ErrNotParticipant
	}
	return m.Forfeit(ctx, g.ID, side, session.ReasonResignation)
}

// Forfeit ends gameID with loser losing by method (resignation, disconnect).
func (m *Manager) Forfeit(ctx context.Context, gameID string, loser xiangqi.Side, method string) (*Game, error) {
	if m == nil || m.rdb == nil {
		return nil, ErrNotInitialized
	}
	var out *Game
	gameK := gameKey(gameID)
	err := m.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := m.getTx(ctx, tx, gameK)
		if err != nil {
			return err
		}
		if !cur.Active() {
			return ErrNotActive
		}
		winner := loser.Opponent()
		cur.Status = StatusResigned
		if method != session.ReasonResignation {
			cur.Status = StatusAborted
		}
		cur.Outcome = winner.String()
		cur.Winner = cur.participant(winner)
		cur.Method = method
		cur.UpdatedAt = time.Now()
		if err := m.setTx(ctx, tx, gameK, cur); err != nil {
			return err
		}
		out = cur
		return nil
	}, gameK)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return nil, ErrConcurrentUpdate
		}
		return nil, err
	}
	obslog.L().Info("pvp_forfeit",
		zap.String("game_id", out.ID),
		zap.String("loser", loser.String()),
		zap.String("method", method),
		zap.String("winner", out.Winner),
	)
	_ = m.persistIfFinal(ctx, out)
	return out, nil
}

// History returns recent finished games of userID from the attached store.
func (m *Manager) History(ctx context.Context, userID string, limit int) ([]*Game, error) {
	if m == nil || m.repo == nil {
		return nil, nil
	}
	recs, err := m.repo.RecentGames(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*Game, 0, len(recs))
	for _, r := range recs {
		out = append(out, &Game{
			ID: r.GameID, Moves: r.Moves, Position: r.FinalPos, Status: StatusFinished,
			RedID: r.RedID, RedName: r.RedName, BlackID: r.BlackID, BlackName: r.BlackName,
			Room: r.Room, CreatedAt: r.StartedAt, UpdatedAt: r.EndedAt,
			Winner: r.WinnerID(), Outcome: r.Result, Method: r.ResultMethod,
		})
	}
	return out, nil
}

// apply runs one validated move under WATCH. sideOf picks the mover.
func (m *Manager) apply(ctx context.Context, gameID string, mv xiangqi.Move, sideOf func(*Game) (xiangqi.Side, error)) (*Game, error) {
	if m == nil || m.rdb == nil {
		return nil, ErrNotInitialized
	}
	var out *Game
	gameK := gameKey(gameID)
	err := m.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := m.getTx(ctx, tx, gameK)
		if err != nil {
			return err
		}
		if !cur.Active() {
			return ErrNotActive
		}
		side, err := sideOf(cur)
		if err != nil {
			return err
		}
		if cur.Turn != side {
			return ErrNotYourTurn
		}

		s, err := replay(cur.Moves)
		if err != nil {
			return err
		}
		piece, ok := s.Snapshot().Board.Get(mv.From)
		if !ok || piece.Side != side {
			return fmt.Errorf("%w: no %s piece on %s", ErrIllegalMove, side, mv.From)
		}
		if err := s.SubmitMove(mv.From, mv.To); err != nil {
			return fmt.Errorf("%w: %v", ErrIllegalMove, err)
		}
		snap := s.Snapshot()

		cur.Moves = append(cur.Moves, mv.String())
		cur.Turn = snap.TurnSide()
		cur.Position = xiangqi.Encode(snap.Board, cur.Turn)
		cur.UpdatedAt = time.Now()
		if snap.Winner != nil {
			cur.Status = StatusFinished
			cur.Outcome = snap.Winner.String()
			cur.Winner = cur.participant(*snap.Winner)
			cur.Method = session.ReasonGeneralCaptured
		}
		if err := m.setTx(ctx, tx, gameK, cur); err != nil {
			return err
		}
		out = cur
		return nil
	}, gameK)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return nil, ErrConcurrentUpdate
		}
		return nil, err
	}
	if out.Status == StatusFinished {
		_ = m.persistIfFinal(ctx, out)
	}
	return out, nil
}

// replay rebuilds the game from the start position, Red at the bottom.
func replay(moves []string) (*session.Session, error) {
	s := session.New(session.WithLogger(zap.NewNop()))
	s.Start(xiangqi.Red, false)
	for i, raw := range moves {
		mv, err := xiangqi.ParseMove(raw)
		if err != nil {
			return nil, fmt.Errorf("replay ply %d: %w", i+1, err)
		}
		if err := s.SubmitMove(mv.From, mv.To); err != nil {
			return nil, fmt.Errorf("replay ply %d %s: %w", i+1, raw, err)
		}
	}
	return s, nil
}

func (m *Manager) getTx(ctx context.Context, tx *redis.Tx, key string) (*Game, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	var g Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (m *Manager) setTx(ctx context.Context, tx *redis.Tx, key string, g *Game) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, raw, m.ttl)
		return nil
	})
	return err
}

func (m *Manager) save(ctx context.Context, g *Game) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	return m.rdb.Set(ctx, gameKey(g.ID), raw, m.ttl).Err()
}

func (m *Manager) get(ctx context.Context, id string) (*Game, error) {
	raw, err := m.rdb.Get(ctx, gameKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var g Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (m *Manager) indexParticipants(ctx context.Context, id string, users ...string) error {
	for _, u := range users {
		if strings.TrimSpace(u) == "" {
			continue
		}
		key := idxUserKey(u)
		if err := m.rdb.SAdd(ctx, key, id).Err(); err != nil {
			return err
		}
		// 인덱스 키 TTL도 게임 TTL과 동일하게 갱신
		_ = m.rdb.Expire(ctx, key, m.ttl).Err()
	}
	return nil
}

// persistIfFinal saves a finished game to the attached store, once.
func (m *Manager) persistIfFinal(ctx context.Context, g *Game) error {
	if m == nil || m.repo == nil || g == nil || g.Active() {
		return nil
	}
	if err := m.repo.SaveResult(ctx, g.Record()); err != nil {
		obslog.L().Error("pvp_result_persist_error", zap.String("game_id", g.ID), zap.String("outcome", g.Outcome), zap.Error(err))
		return err
	}
	obslog.L().Info("pvp_result_persist", zap.String("game_id", g.ID), zap.String("outcome", g.Outcome), zap.String("method", g.Method))
	return nil
}

func gameKey(id string) string        { return "pvp:game:" + strings.TrimSpace(id) }
func idxUserKey(userID string) string { return "pvp:index:user:" + strings.TrimSpace(userID) }

// ParseRedisURL turns redis://[:password@]host:port[/db] into client options.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
