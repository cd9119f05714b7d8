package lobby

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/park285/Cheese-Xiangqi/internal/obslog"
	"github.com/park285/Cheese-Xiangqi/internal/pvpxiangqi"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Manager struct {
	rdb   *redis.Client
	store *Store
	pvp   *pvpxiangqi.Manager
}

func NewManager(rdb *redis.Client, pvp *pvpxiangqi.Manager) *Manager {
	return &Manager{rdb: rdb, store: NewStore(rdb), pvp: pvp}
}

// Make opens a waiting lobby for userID and returns its code.
func (m *Manager) Make(ctx context.Context, room, userID, userName string, color ColorChoice) (*MakeResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidArgs
	}
	if g, _ := m.pvp.GetActiveGameByUser(ctx, userID); g != nil {
		return nil, ErrPlayerBusy
	}
	if m.hasWaitingLobby(ctx, userID) {
		return nil, ErrCreatorHasLobby
	}
	switch color {
	case ColorRed, ColorBlack:
	default:
		color = ColorRandom
	}

	for i := 0; i < 5; i++ {
		c, err := codeGen()
		if err != nil {
			return nil, err
		}
		ok, err := m.rdb.SetNX(ctx, m.store.keyMeta(c), []byte("{}"), ttlLobby).Result()
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		meta := &Meta{
			Code:        c,
			State:       StateWaiting,
			CreatedAt:   time.Now(),
			CreatorID:   userID,
			CreatorName: userName,
			CreatorRoom: room,
			Color:       color,
		}
		if err := m.store.SaveMeta(ctx, c, meta); err != nil {
			return nil, err
		}
		if err := m.store.AddRoom(ctx, c, room); err != nil {
			return nil, err
		}
		if err := m.store.AddParticipant(ctx, c, userID, userName); err != nil {
			return nil, err
		}
		if err := m.store.AddWaiting(ctx, c); err != nil {
			return nil, err
		}
		obslog.L().Info("lobby_make", zap.String("code", c), zap.String("room", room), zap.String("creator_id", userID))
		return &MakeResult{Code: c, Meta: meta}, nil
	}
	return nil, fmt.Errorf("failed to allocate lobby code")
}

// Join adds userID to the lobby. The second participant starts the game.
func (m *Manager) Join(ctx context.Context, room, code, userID, userName string) (*JoinResult, error) {
	code = strings.TrimSpace(code)
	if code == "" || strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidArgs
	}
	meta, err := m.store.LoadMeta(ctx, code)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ErrGone
	}
	if meta.State != StateWaiting {
		return nil, ErrAlreadyActive
	}
	if meta.CreatorID == userID {
		return nil, ErrAlreadyJoined
	}
	if busy, _ := m.pvp.GetActiveGameByUser(ctx, userID); busy != nil {
		return nil, ErrPlayerBusy
	}

	// WATCH participants so two racing joins cannot both get in
	partKey := m.store.keyParticipants(code)
	err = m.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cnt, err := tx.SCard(ctx, partKey).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if cnt >= 2 {
			return ErrFull
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SAdd(ctx, partKey, userID)
			pipe.Expire(ctx, partKey, ttlLobby)
			pipe.HSet(ctx, m.store.keyNames(code), userID, userName)
			pipe.SAdd(ctx, m.store.keyUserIdx(userID), code)
			pipe.Expire(ctx, m.store.keyUserIdx(userID), ttlLobby)
			return nil
		})
		return err
	}, partKey)
	if err != nil {
		obslog.L().Warn("lobby_join_error", zap.String("code", code), zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	if err := m.store.AddRoom(ctx, code, room); err != nil {
		return nil, err
	}

	names, err := m.store.Names(ctx, code)
	if err != nil {
		return nil, err
	}
	choice := string(meta.Color)
	g, err := m.pvp.CreateGame(ctx, meta.CreatorID, meta.CreatorName, userID, names[userID], choice, meta.CreatorRoom)
	if err != nil {
		return nil, err
	}

	meta.RedID, meta.RedName = g.RedID, g.RedName
	meta.BlackID, meta.BlackName = g.BlackID, g.BlackName
	meta.State = StateActive
	meta.GameID = g.ID
	if err := m.store.SaveMeta(ctx, code, meta); err != nil {
		return nil, err
	}
	_ = m.store.RemoveWaiting(ctx, code)
	obslog.L().Info("lobby_start_game",
		zap.String("code", code),
		zap.String("game_id", g.ID),
		zap.String("red_id", g.RedID),
		zap.String("black_id", g.BlackID),
	)
	return &JoinResult{Started: true, GameID: g.ID, Meta: meta}, nil
}

func (m *Manager) Rooms(ctx context.Context, code string) ([]string, error) {
	rooms, err := m.store.Rooms(ctx, code)
	if err != nil {
		return nil, err
	}
	sort.Strings(rooms)
	return rooms, nil
}

// ListLobby returns the lobbies still waiting for a second player, oldest first.
func (m *Manager) ListLobby(ctx context.Context) ([]*Meta, error) {
	list, err := m.store.ListWaiting(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (m *Manager) hasWaitingLobby(ctx context.Context, userID string) bool {
	codes, err := m.store.CodesByUser(ctx, userID)
	if err != nil {
		return false
	}
	for _, c := range codes {
		meta, _ := m.store.LoadMeta(ctx, c)
		if meta != nil && meta.State == StateWaiting && meta.CreatorID == userID {
			return true
		}
	}
	return false
}
