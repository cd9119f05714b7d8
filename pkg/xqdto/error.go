package xqdto

type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "xiangqi service error"
}

// Error codes shared by the API and its client.
const (
	CodeBadRequest       = "bad_request"
	CodeNotFound         = "session_not_found"
	CodeNotStarted       = "not_started"
	CodeGameOver         = "game_over"
	CodeNoPiece          = "no_piece"
	CodeNotYourTurn      = "not_your_turn"
	CodeIllegalMove      = "illegal_move"
	CodeTooManySessions  = "too_many_sessions"
	CodeConcurrentUpdate = "concurrent_update"
	CodeLobbyGone        = "lobby_gone"
	CodeLobbyFull        = "lobby_full"
	CodePlayerBusy       = "player_busy"
	CodeNotParticipant   = "not_participant"
	CodeInternal         = "internal"
)
