package xiangqi

import (
	"errors"
	"strings"
)

var ErrInvalidEncoding = errors.New("invalid board encoding")

// Encode writes the board as ten rows (rank 0 first) joined by '/', digits for runs of
// empty cells, then the side to move ("w" for Red, "b" for Black).
func Encode(b *Board, toMove Side) string {
	var sb strings.Builder
	for r := 0; r < Ranks; r++ {
		if r > 0 {
			sb.WriteByte('/')
		}
		empty := 0
		for f := 0; f < Files; f++ {
			p, ok := b.Get(Pos(f, r))
			if !ok {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteRune(p.Letter())
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
	}
	sb.WriteByte(' ')
	if toMove == Red {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}
	return sb.String()
}

// Decode parses Encode's output. Roles are derived from localSide; ids are assigned in
// reading order starting at 1. A side may have at most one general.
func Decode(s string, localSide Side) (*Board, Side, error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return nil, Red, ErrInvalidEncoding
	}
	rows := strings.Split(parts[0], "/")
	if len(rows) != Ranks {
		return nil, Red, ErrInvalidEncoding
	}
	b := NewBoard()
	id := 1
	generals := map[Side]int{}
	for r, row := range rows {
		f := 0
		for _, ch := range row {
			if f >= Files {
				return nil, Red, ErrInvalidEncoding
			}
			if ch >= '1' && ch <= '9' {
				f += int(ch - '0')
				continue
			}
			kind, side, err := KindFromLetter(ch)
			if err != nil {
				return nil, Red, ErrInvalidEncoding
			}
			if kind == General {
				if generals[side]++; generals[side] > 1 {
					return nil, Red, ErrInvalidEncoding
				}
			}
			b.Place(MustPiece(id, kind, side, RoleOf(side, localSide), Pos(f, r)), Pos(f, r))
			id++
			f++
		}
		if f != Files {
			return nil, Red, ErrInvalidEncoding
		}
	}
	var toMove Side
	switch parts[1] {
	case "w":
		toMove = Red
	case "b":
		toMove = Black
	default:
		return nil, Red, ErrInvalidEncoding
	}
	return b, toMove, nil
}
