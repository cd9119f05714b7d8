package xqdto

import "time"

type LobbyRequest struct {
	Room     string `json:"room"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	// Color is red, black or random; only used when creating.
	Color string `json:"color,omitempty"`
}

type LobbyView struct {
	Code        string    `json:"code"`
	State       string    `json:"state"`
	CreatorID   string    `json:"creator_id"`
	CreatorName string    `json:"creator_name"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"created_at"`
	GameID      string    `json:"game_id,omitempty"`
	Message     string    `json:"message,omitempty"`
}

type LobbyListResponse struct {
	Lobbies []LobbyView `json:"lobbies"`
}

type PvPMoveRequest struct {
	Move string `json:"move"`
}

type GameSummary struct {
	ID        string    `json:"id"`
	RedID     string    `json:"red_id"`
	RedName   string    `json:"red_name"`
	BlackID   string    `json:"black_id"`
	BlackName string    `json:"black_name"`
	Status    string    `json:"status"`
	Winner    string    `json:"winner,omitempty"`
	Method    string    `json:"method,omitempty"`
	Moves     int       `json:"moves"`
	EndedAt   time.Time `json:"ended_at"`
}

type HistoryResponse struct {
	Games []GameSummary `json:"games"`
}
