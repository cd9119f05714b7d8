package xqdto

// PieceView is one occupied cell. X is the file, Y the rank, in the session's orientation.
type PieceView struct {
	ID       int    `json:"id"`
	Kind     string `json:"kind"`
	Side     string `json:"side"`
	Role     string `json:"role"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Glyph    string `json:"glyph"`
	Selected bool   `json:"selected,omitempty"`
}

type SessionState struct {
	SessionID string      `json:"session_id"`
	State     string      `json:"state"`
	LocalSide string      `json:"local_side"`
	Networked bool        `json:"networked"`
	Turn      string      `json:"turn"`
	Selected  int         `json:"selected,omitempty"`
	Winner    string      `json:"winner,omitempty"`
	Outcome   string      `json:"outcome,omitempty"`
	Moves     []string    `json:"moves"`
	MoveCount int         `json:"move_count"`
	Position  string      `json:"position"`
	Pieces    []PieceView `json:"pieces,omitempty"`
	// Hints lists the legal destinations of the selected piece.
	Hints      []string `json:"hints,omitempty"`
	BoardImage []byte   `json:"board_image,omitempty"`
}
