package lobby

import (
	"context"
	"errors"
	"fmt"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/Cheese-Xiangqi/internal/pvpxiangqi"
	"github.com/redis/go-redis/v9"
)

func newTestManagers(t *testing.T) (*Manager, *pvpxiangqi.Manager) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })

	pvp, err := pvpxiangqi.NewManager(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("pvpxiangqi.NewManager: %v", err)
	}
	t.Cleanup(func() { _ = pvp.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewManager(rdb, pvp), pvp
}

func TestMakeJoinStartsGame(t *testing.T) {
	m, pvp := newTestManagers(t)
	ctx := context.Background()

	made, err := m.Make(ctx, "roomA", "u1", "Alice", ColorBlack)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if made.Code == "" {
		t.Fatalf("expected non-empty code")
	}
	waiting, err := m.ListLobby(ctx)
	if err != nil || len(waiting) != 1 {
		t.Fatalf("ListLobby: %v %d", err, len(waiting))
	}

	jr, err := m.Join(ctx, "roomB", made.Code, "u2", "Bob")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !jr.Started || jr.GameID == "" {
		t.Fatalf("expected game to start: %+v", jr)
	}
	if jr.Meta.BlackID != "u1" || jr.Meta.RedName != "Bob" {
		t.Fatalf("creator asked for black: %+v", jr.Meta)
	}

	g, err := pvp.GetActiveGameByUser(ctx, "u1")
	if err != nil || g == nil || g.ID != jr.GameID {
		t.Fatalf("GetActiveGameByUser: %v %+v", err, g)
	}
	rooms, err := m.Rooms(ctx, made.Code)
	if err != nil || len(rooms) != 2 {
		t.Fatalf("Rooms: %v %v", err, rooms)
	}
	if waiting, _ := m.ListLobby(ctx); len(waiting) != 0 {
		t.Fatalf("started lobby still listed")
	}
}

func TestThirdJoinRejected(t *testing.T) {
	m, _ := newTestManagers(t)
	ctx := context.Background()
	made, err := m.Make(ctx, "roomA", "u1", "A", ColorRandom)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if _, err := m.Join(ctx, "roomB", made.Code, "u2", "B"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if _, err := m.Join(ctx, "roomC", made.Code, "u3", "C"); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
}

func TestMakeGuards(t *testing.T) {
	m, _ := newTestManagers(t)
	ctx := context.Background()
	made, err := m.Make(ctx, "", "u1", "A", ColorRed)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if _, err := m.Make(ctx, "", "u1", "A", ColorRed); !errors.Is(err, ErrCreatorHasLobby) {
		t.Fatalf("expected ErrCreatorHasLobby, got %v", err)
	}
	if _, err := m.Join(ctx, "", made.Code, "u1", "A"); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("expected ErrAlreadyJoined, got %v", err)
	}
	if _, err := m.Join(ctx, "", "XQ-NOPE00", "u2", "B"); !errors.Is(err, ErrGone) {
		t.Fatalf("expected ErrGone, got %v", err)
	}
	if _, err := m.Join(ctx, "", made.Code, "u2", "B"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if _, err := m.Make(ctx, "", "u2", "B", ColorRed); !errors.Is(err, ErrPlayerBusy) {
		t.Fatalf("expected ErrPlayerBusy, got %v", err)
	}
}
