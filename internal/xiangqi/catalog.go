package xiangqi

import (
	"errors"
	"fmt"
	"unicode"
)

var ErrUnknownKind = errors.New("unknown piece kind")

// Piece is a single man on the board. Only Position and Selected change after setup.
type Piece struct {
	ID       int       `json:"id"`
	Kind     PieceKind `json:"kind"`
	Side     Side      `json:"side"`
	Role     Role      `json:"role"`
	Position Position  `json:"position"`
	Selected bool      `json:"selected"`
}

// NewPiece refuses to build a piece with an unknown kind or an off-board position.
func NewPiece(id int, kind PieceKind, side Side, role Role, pos Position) (Piece, error) {
	if !kind.Valid() {
		return Piece{}, fmt.Errorf("%w: %d", ErrUnknownKind, int8(kind))
	}
	if side != Red && side != Black {
		return Piece{}, fmt.Errorf("invalid side %d", int8(side))
	}
	if !pos.InBounds() {
		return Piece{}, fmt.Errorf("piece %d off board at %v", id, pos)
	}
	return Piece{ID: id, Kind: kind, Side: side, Role: role, Position: pos}, nil
}

// MustPiece is NewPiece for fixed tables; an inconsistent piece is a programmer error.
func MustPiece(id int, kind PieceKind, side Side, role Role, pos Position) Piece {
	p, err := NewPiece(id, kind, side, role, pos)
	if err != nil {
		panic(err)
	}
	return p
}

// 전통 표기: 붉은 편과 검은 편은 같은 말이라도 글자가 다르다.
var glyphs = map[PieceKind][2]string{
	General:  {"帥", "將"},
	Advisor:  {"仕", "士"},
	Elephant: {"相", "象"},
	Chariot:  {"俥", "車"},
	Horse:    {"傌", "馬"},
	Cannon:   {"炮", "砲"},
	Soldier:  {"兵", "卒"},
}

var kindLetters = map[PieceKind]rune{
	General:  'k',
	Advisor:  'a',
	Elephant: 'e',
	Chariot:  'r',
	Horse:    'h',
	Cannon:   'c',
	Soldier:  'p',
}

var letterKinds = func() map[rune]PieceKind {
	m := make(map[rune]PieceKind, len(kindLetters))
	for k, r := range kindLetters {
		m[r] = k
	}
	return m
}()

// Glyph returns the display character for kind and side.
func Glyph(kind PieceKind, side Side) string {
	g, ok := glyphs[kind]
	if !ok {
		panic(fmt.Sprintf("%v: %d", ErrUnknownKind, int8(kind)))
	}
	return g[side]
}

func (p Piece) Glyph() string { return Glyph(p.Kind, p.Side) }

// Letter is the ASCII form used by the board encoding: upper case Red, lower case Black.
func (p Piece) Letter() rune {
	r := kindLetters[p.Kind]
	if p.Side == Red {
		return unicode.ToUpper(r)
	}
	return r
}

// KindFromLetter maps an encoding letter back to its kind and side.
func KindFromLetter(r rune) (PieceKind, Side, error) {
	side := Black
	if unicode.IsUpper(r) {
		side = Red
	}
	k, ok := letterKinds[unicode.ToLower(r)]
	if !ok {
		return 0, side, fmt.Errorf("%w: letter %q", ErrUnknownKind, r)
	}
	return k, side, nil
}

func (p Piece) String() string {
	return fmt.Sprintf("%s %s#%d@%s", p.Side, p.Kind, p.ID, p.Position)
}
