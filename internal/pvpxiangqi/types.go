package pvpxiangqi

import (
	"errors"
	"strings"
	"time"

	"github.com/park285/Cheese-Xiangqi/internal/domain"
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
)

var (
	ErrNotInitialized   = errors.New("pvp manager not initialized")
	ErrGameNotFound     = errors.New("game not found")
	ErrNotActive        = errors.New("game no longer active")
	ErrNotParticipant   = errors.New("user not in game")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrIllegalMove      = errors.New("illegal move")
	ErrConcurrentUpdate = errors.New("concurrent update")
)

// Status represents a PvP game lifecycle state.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusFinished Status = "FINISHED"
	StatusResigned Status = "RESIGNED"
	StatusAborted  Status = "ABORTED"
)

// Game is the persisted state of a PvP match. Moves are kept in Red-bottom
// coordinates regardless of who played them.
type Game struct {
	ID        string       `json:"id"`
	Moves     []string     `json:"moves"`
	Position  string       `json:"position"`
	Turn      xiangqi.Side `json:"turn"`
	Status    Status       `json:"status"`
	RedID     string       `json:"red_id"`
	RedName   string       `json:"red_name"`
	BlackID   string       `json:"black_id"`
	BlackName string       `json:"black_name"`
	Room      string       `json:"room,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Winner    string       `json:"winner,omitempty"`
	Outcome   string       `json:"outcome,omitempty"`
	Method    string       `json:"method,omitempty"`
}

// SideOf returns the colour userID plays in g.
func (g *Game) SideOf(userID string) (xiangqi.Side, bool) {
	userID = strings.TrimSpace(userID)
	switch {
	case userID == "":
		return xiangqi.Red, false
	case g.RedID == userID:
		return xiangqi.Red, true
	case g.BlackID == userID:
		return xiangqi.Black, true
	}
	return xiangqi.Red, false
}

func (g *Game) participant(side xiangqi.Side) string {
	if side == xiangqi.Red {
		return g.RedID
	}
	return g.BlackID
}

func (g *Game) Active() bool { return g.Status == StatusActive }

// Record converts a finished game into its persisted form.
func (g *Game) Record() *domain.XiangqiGame {
	d := g.UpdatedAt.Sub(g.CreatedAt)
	if d < 0 {
		d = 0
	}
	return &domain.XiangqiGame{
		GameID:       g.ID,
		RedID:        g.RedID,
		RedName:      g.RedName,
		BlackID:      g.BlackID,
		BlackName:    g.BlackName,
		Room:         g.Room,
		Result:       g.Outcome,
		ResultMethod: g.Method,
		Moves:        append([]string(nil), g.Moves...),
		FinalPos:     g.Position,
		StartedAt:    g.CreatedAt,
		EndedAt:      g.UpdatedAt,
		Duration:     d,
	}
}
