package xiangqi

import (
	"fmt"
	"strings"
)

const (
	Files = 9
	Ranks = 10
)

// Side is the colour a piece plays for.
type Side int8

const (
	Red Side = iota
	Black
)

func (s Side) Opponent() Side {
	if s == Red {
		return Black
	}
	return Red
}

func (s Side) String() string {
	switch s {
	case Red:
		return "red"
	case Black:
		return "black"
	default:
		return fmt.Sprintf("side(%d)", int8(s))
	}
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSide accepts "red"/"r" and "black"/"b".
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red", "r":
		return Red, nil
	case "black", "b":
		return Black, nil
	}
	return Red, fmt.Errorf("unknown side %q", s)
}

// Role is relative to the local player: Self sits on ranks 5-9, Opponent on ranks 0-4.
type Role int8

const (
	Self Role = iota
	Opponent
)

func (r Role) Other() Role {
	if r == Self {
		return Opponent
	}
	return Self
}

func (r Role) String() string {
	if r == Self {
		return "self"
	}
	return "opponent"
}

// RoleOf returns the board role of side when localSide is the player at the bottom.
func RoleOf(side, localSide Side) Role {
	if side == localSide {
		return Self
	}
	return Opponent
}

// PieceKind selects the glyph and the legality rule of a piece.
type PieceKind int8

const (
	General PieceKind = iota + 1
	Advisor
	Elephant
	Chariot
	Horse
	Cannon
	Soldier
)

func (k PieceKind) Valid() bool { return k >= General && k <= Soldier }

func (k PieceKind) String() string {
	switch k {
	case General:
		return "general"
	case Advisor:
		return "advisor"
	case Elephant:
		return "elephant"
	case Chariot:
		return "chariot"
	case Horse:
		return "horse"
	case Cannon:
		return "cannon"
	case Soldier:
		return "soldier"
	}
	return fmt.Sprintf("kind(%d)", int8(k))
}

// Position is a board cell. Rank 0 is the top (opponent's back rank) in the local orientation.
type Position struct {
	File int `json:"x"`
	Rank int `json:"y"`
}

func Pos(file, rank int) Position { return Position{File: file, Rank: rank} }

func (p Position) InBounds() bool {
	return p.File >= 0 && p.File < Files && p.Rank >= 0 && p.Rank < Ranks
}

// Mirror rotates the position by 180 degrees; peers see the board from opposite ends.
func (p Position) Mirror() Position {
	return Position{File: Files - 1 - p.File, Rank: Ranks - 1 - p.Rank}
}

// String renders the square as file letter + rank digit, e.g. (4,9) -> "e9".
func (p Position) String() string {
	if !p.InBounds() {
		return fmt.Sprintf("(%d,%d)", p.File, p.Rank)
	}
	return string([]byte{byte('a' + p.File), byte('0' + p.Rank)})
}

func ParsePosition(s string) (Position, error) {
	if len(s) != 2 {
		return Position{}, fmt.Errorf("invalid square %q", s)
	}
	p := Position{File: int(s[0] - 'a'), Rank: int(s[1] - '0')}
	if !p.InBounds() {
		return Position{}, fmt.Errorf("invalid square %q", s)
	}
	return p, nil
}

// Move is a from/to pair in board coordinates.
type Move struct {
	From Position `json:"from"`
	To   Position `json:"to"`
}

func (m Move) String() string { return m.From.String() + m.To.String() }

func (m Move) Mirror() Move { return Move{From: m.From.Mirror(), To: m.To.Mirror()} }

// ParseMove reads the four-character form produced by Move.String, e.g. "e9e8".
func ParseMove(s string) (Move, error) {
	if len(s) != 4 {
		return Move{}, fmt.Errorf("invalid move %q", s)
	}
	from, err := ParsePosition(s[:2])
	if err != nil {
		return Move{}, fmt.Errorf("invalid move %q: %w", s, err)
	}
	to, err := ParsePosition(s[2:])
	if err != nil {
		return Move{}, fmt.Errorf("invalid move %q: %w", s, err)
	}
	return Move{From: from, To: to}, nil
}
