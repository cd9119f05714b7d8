package lobby

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const ttlLobby = 24 * time.Hour

type Store struct{ rdb *redis.Client }

func NewStore(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

func (s *Store) keyMeta(code string) string         { return "lobby:" + strings.TrimSpace(code) }
func (s *Store) keyRooms(code string) string        { return s.keyMeta(code) + ":rooms" }
func (s *Store) keyParticipants(code string) string { return s.keyMeta(code) + ":participants" }
func (s *Store) keyNames(code string) string        { return s.keyMeta(code) + ":names" }
func (s *Store) keyUserIdx(user string) string      { return "lobby:index:user:" + strings.TrimSpace(user) }
func (s *Store) keyWaiting() string                 { return "lobby:waiting" }

func (s *Store) SaveMeta(ctx context.Context, code string, meta *Meta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.keyMeta(code), raw, ttlLobby).Err(); err != nil {
		return err
	}
	_ = s.rdb.Expire(ctx, s.keyRooms(code), ttlLobby).Err()
	_ = s.rdb.Expire(ctx, s.keyParticipants(code), ttlLobby).Err()
	_ = s.rdb.Expire(ctx, s.keyNames(code), ttlLobby).Err()
	return nil
}

func (s *Store) LoadMeta(ctx context.Context, code string) (*Meta, error) {
	raw, err := s.rdb.Get(ctx, s.keyMeta(code)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m Meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) AddRoom(ctx context.Context, code, room string) error {
	if strings.TrimSpace(room) == "" {
		return nil
	}
	if err := s.rdb.SAdd(ctx, s.keyRooms(code), room).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, s.keyRooms(code), ttlLobby).Err()
}

func (s *Store) Rooms(ctx context.Context, code string) ([]string, error) {
	return s.rdb.SMembers(ctx, s.keyRooms(code)).Result()
}

func (s *Store) AddParticipant(ctx context.Context, code, userID, userName string) error {
	if strings.TrimSpace(userID) == "" {
		return nil
	}
	if err := s.rdb.SAdd(ctx, s.keyParticipants(code), userID).Err(); err != nil {
		return err
	}
	_ = s.rdb.Expire(ctx, s.keyParticipants(code), ttlLobby).Err()
	if err := s.rdb.HSet(ctx, s.keyNames(code), userID, userName).Err(); err != nil {
		return err
	}
	if err := s.rdb.SAdd(ctx, s.keyUserIdx(userID), code).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, s.keyUserIdx(userID), ttlLobby).Err()
}

func (s *Store) Names(ctx context.Context, code string) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, s.keyNames(code)).Result()
}

func (s *Store) CodesByUser(ctx context.Context, userID string) ([]string, error) {
	return s.rdb.SMembers(ctx, s.keyUserIdx(userID)).Result()
}

// codeGen returns "XQ-" + 6 upper alnum.
func codeGen() (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return fmt.Sprintf("XQ-%s", string(b)), nil
}

func (s *Store) AddWaiting(ctx context.Context, code string) error {
	if err := s.rdb.SAdd(ctx, s.keyWaiting(), code).Err(); err != nil {
		return err
	}
	_ = s.rdb.Expire(ctx, s.keyWaiting(), ttlLobby).Err()
	return nil
}

func (s *Store) RemoveWaiting(ctx context.Context, code string) error {
	return s.rdb.SRem(ctx, s.keyWaiting(), code).Err()
}

func (s *Store) ListWaiting(ctx context.Context) ([]*Meta, error) {
	codes, err := s.rdb.SMembers(ctx, s.keyWaiting()).Result()
	if err != nil {
		return nil, err
	}
	var out []*Meta
	for _, c := range codes {
		m, _ := s.LoadMeta(ctx, c)
		if m == nil || m.State != StateWaiting {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
