package lobby

import "time"

// State represents the lifecycle of a lobby.
type State string

const (
	StateWaiting  State = "WAITING"
	StateActive   State = "ACTIVE"
	StateFinished State = "FINISHED"
)

// ColorChoice is the creator's colour preference.
type ColorChoice string

const (
	ColorRed    ColorChoice = "red"
	ColorBlack  ColorChoice = "black"
	ColorRandom ColorChoice = "random"
)

// Meta is stored as JSON in Redis under lobby:<code>.
type Meta struct {
	Code        string      `json:"code"`
	State       State       `json:"state"`
	CreatedAt   time.Time   `json:"created_at"`
	CreatorID   string      `json:"creator_id"`
	CreatorName string      `json:"creator_name"`
	CreatorRoom string      `json:"creator_room"`
	Color       ColorChoice `json:"color"`

	RedID     string `json:"red_id,omitempty"`
	RedName   string `json:"red_name,omitempty"`
	BlackID   string `json:"black_id,omitempty"`
	BlackName string `json:"black_name,omitempty"`

	GameID string `json:"game_id,omitempty"`
}

type MakeResult struct {
	Code string
	Meta *Meta
}

type JoinResult struct {
	Started bool
	GameID  string
	Meta    *Meta
}

var (
	ErrInvalidArgs   = errf("invalid arguments")
	ErrGone          = errf("lobby not found or expired")
	ErrAlreadyActive = errf("lobby already active")
	ErrFull          = errf("lobby already has two participants")
	ErrAlreadyJoined = errf("user already in this lobby")
	ErrPlayerBusy    = errf("player has an active game")
	// 동일 사용자가 동시에 2개 이상 대기방 생성 불가
	ErrCreatorHasLobby = errf("user already has a lobby")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
