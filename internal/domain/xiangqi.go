package domain

import "time"

// XiangqiGame is the persisted record of a finished match.
type XiangqiGame struct {
	GameID       string
	RedID        string
	RedName      string
	BlackID      string
	BlackName    string
	Room         string
	Result       string // red | black
	ResultMethod string // general_captured | resignation
	Moves        []string
	FinalPos     string
	StartedAt    time.Time
	EndedAt      time.Time
	Duration     time.Duration
}

// WinnerID returns the participant id of the winner, empty when unknown.
func (g *XiangqiGame) WinnerID() string {
	switch g.Result {
	case "red":
		return g.RedID
	case "black":
		return g.BlackID
	}
	return ""
}
