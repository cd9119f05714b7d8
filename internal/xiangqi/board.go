package xiangqi

import (
	"fmt"
	"sort"
)

// Board is a sparse 9x10 grid; a cell holds at most one piece and that piece's
// Position always equals the cell key.
type Board struct {
	cells map[Position]*Piece
}

func NewBoard() *Board {
	return &Board{cells: make(map[Position]*Piece, 32)}
}

func mustInBounds(op string, pos Position) {
	if !pos.InBounds() {
		panic(fmt.Sprintf("xiangqi: board %s out of bounds at (%d,%d)", op, pos.File, pos.Rank))
	}
}

// Get returns a copy of the occupant of pos.
func (b *Board) Get(pos Position) (Piece, bool) {
	mustInBounds("get", pos)
	p, ok := b.cells[pos]
	if !ok {
		return Piece{}, false
	}
	return *p, true
}

// Occupied reports whether pos holds a piece.
func (b *Board) Occupied(pos Position) bool {
	mustInBounds("get", pos)
	_, ok := b.cells[pos]
	return ok
}

// Place puts piece on pos, overwriting any occupant. Setup only.
func (b *Board) Place(piece Piece, pos Position) {
	mustInBounds("place", pos)
	piece.Position = pos
	b.cells[pos] = &piece
}

// Remove detaches and returns the occupant of pos.
func (b *Board) Remove(pos Position) (Piece, bool) {
	mustInBounds("remove", pos)
	p, ok := b.cells[pos]
	if !ok {
		return Piece{}, false
	}
	delete(b.cells, pos)
	return *p, true
}

// Relocate moves the occupant of from onto to, discarding whatever stood on to.
// The captured piece (if any) is returned.
func (b *Board) Relocate(from, to Position) (moved Piece, captured *Piece, err error) {
	mustInBounds("relocate", from)
	mustInBounds("relocate", to)
	if from == to {
		return Piece{}, nil, fmt.Errorf("relocate onto itself at %s", from)
	}
	src, ok := b.cells[from]
	if !ok {
		return Piece{}, nil, fmt.Errorf("relocate from empty cell %s", from)
	}
	if dst, ok := b.cells[to]; ok {
		c := *dst
		c.Selected = false
		captured = &c
	}
	delete(b.cells, from)
	src.Position = to
	b.cells[to] = src
	return *src, captured, nil
}

// SetSelected flips the selection flag of the piece on pos.
func (b *Board) SetSelected(pos Position, selected bool) {
	mustInBounds("select", pos)
	if p, ok := b.cells[pos]; ok {
		p.Selected = selected
	}
}

// Find returns the piece with the given id.
func (b *Board) Find(id int) (Piece, bool) {
	for _, p := range b.cells {
		if p.ID == id {
			return *p, true
		}
	}
	return Piece{}, false
}

// General returns side's general, if still on the board.
func (b *Board) General(side Side) (Piece, bool) {
	for _, p := range b.cells {
		if p.Kind == General && p.Side == side {
			return *p, true
		}
	}
	return Piece{}, false
}

func (b *Board) Len() int { return len(b.cells) }

// Pieces lists every piece ordered by rank then file.
func (b *Board) Pieces() []Piece {
	out := make([]Piece, 0, len(b.cells))
	for _, p := range b.cells {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position.Rank != out[j].Position.Rank {
			return out[i].Position.Rank < out[j].Position.Rank
		}
		return out[i].Position.File < out[j].Position.File
	})
	return out
}

func (b *Board) Clone() *Board {
	nb := &Board{cells: make(map[Position]*Piece, len(b.cells))}
	for pos, p := range b.cells {
		c := *p
		nb.cells[pos] = &c
	}
	return nb
}

// countBetween counts occupants strictly between two squares sharing a file or rank.
func (b *Board) countBetween(from, to Position) int {
	n := 0
	switch {
	case from.File == to.File:
		lo, hi := minmax(from.Rank, to.Rank)
		for r := lo + 1; r < hi; r++ {
			if _, ok := b.cells[Position{File: from.File, Rank: r}]; ok {
				n++
			}
		}
	case from.Rank == to.Rank:
		lo, hi := minmax(from.File, to.File)
		for f := lo + 1; f < hi; f++ {
			if _, ok := b.cells[Position{File: f, Rank: from.Rank}]; ok {
				n++
			}
		}
	}
	return n
}

func minmax(a, b int) (int, int) {
	if a < b {
		return a, b
	}
	return b, a
}
