package xiangqi

import "testing"

type placement struct {
	kind PieceKind
	side Side
	pos  Position
}

// boardWith builds a board oriented for Red at the bottom.
func boardWith(t *testing.T, ps ...placement) *Board {
	t.Helper()
	b := NewBoard()
	for i, p := range ps {
		piece, err := NewPiece(i+1, p.kind, p.side, RoleOf(p.side, Red), p.pos)
		if err != nil {
			t.Fatalf("NewPiece: %v", err)
		}
		b.Place(piece, p.pos)
	}
	return b
}

func pieceAt(t *testing.T, b *Board, pos Position) Piece {
	t.Helper()
	p, ok := b.Get(pos)
	if !ok {
		t.Fatalf("no piece at %v", pos)
	}
	return p
}

func TestBaselineRejections(t *testing.T) {
	b := StandardBoard(Red)
	ch := pieceAt(t, b, Pos(0, 9))
	if IsLegal(ch, Pos(0, 9), b) {
		t.Fatalf("null move must be illegal")
	}
	if IsLegal(ch, Pos(0, 10), b) || IsLegal(ch, Pos(-1, 9), b) {
		t.Fatalf("off-board destination must be illegal")
	}
	if IsLegal(ch, Pos(1, 9), b) {
		t.Fatalf("capturing own horse must be illegal")
	}
	if IsLegal(ch, Pos(0, 8), nil) {
		t.Fatalf("nil board must be illegal")
	}
}

func TestGeneralStepsInsidePalace(t *testing.T) {
	b := StandardBoard(Red)
	g := pieceAt(t, b, Pos(4, 9))
	if !IsLegal(g, Pos(4, 8), b) {
		t.Fatalf("one step forward should be legal")
	}
	if IsLegal(g, Pos(4, 7), b) {
		t.Fatalf("two steps must be illegal")
	}

	b = boardWith(t, placement{General, Red, Pos(3, 7)}, placement{General, Black, Pos(5, 0)})
	g = pieceAt(t, b, Pos(3, 7))
	if IsLegal(g, Pos(3, 6), b) || IsLegal(g, Pos(2, 7), b) {
		t.Fatalf("general must not leave the palace")
	}
	if IsLegal(g, Pos(4, 8), b) {
		t.Fatalf("general must not move diagonally")
	}
}

func TestFlyingGeneral(t *testing.T) {
	b := boardWith(t, placement{General, Red, Pos(4, 9)}, placement{General, Black, Pos(4, 0)})
	g := pieceAt(t, b, Pos(4, 9))
	if !IsLegal(g, Pos(4, 0), b) {
		t.Fatalf("facing generals on an open file should allow the capture")
	}
	b.Place(MustPiece(9, Soldier, Black, Opponent, Pos(4, 5)), Pos(4, 5))
	if IsLegal(g, Pos(4, 0), b) {
		t.Fatalf("a piece between the generals must block the capture")
	}
}

func TestAdvisor(t *testing.T) {
	b := boardWith(t, placement{Advisor, Red, Pos(3, 9)})
	a := pieceAt(t, b, Pos(3, 9))
	if !IsLegal(a, Pos(4, 8), b) {
		t.Fatalf("diagonal step to palace centre should be legal")
	}
	if IsLegal(a, Pos(2, 8), b) {
		t.Fatalf("advisor must not leave the palace")
	}
	if IsLegal(a, Pos(3, 8), b) {
		t.Fatalf("advisor must not move orthogonally")
	}
}

func TestElephant(t *testing.T) {
	b := boardWith(t, placement{Elephant, Red, Pos(2, 5)}, placement{Elephant, Black, Pos(2, 4)})
	e := pieceAt(t, b, Pos(2, 5))
	if !IsLegal(e, Pos(4, 7), b) {
		t.Fatalf("two diagonal steps in own half should be legal")
	}
	if IsLegal(e, Pos(0, 3), b) {
		t.Fatalf("elephant must not cross the river")
	}
	b.Place(MustPiece(9, Soldier, Red, Self, Pos(3, 6)), Pos(3, 6))
	if IsLegal(e, Pos(4, 7), b) {
		t.Fatalf("blocked elephant eye must make the move illegal")
	}

	be := pieceAt(t, b, Pos(2, 4))
	if !IsLegal(be, Pos(0, 2), b) || IsLegal(be, Pos(4, 6), b) {
		t.Fatalf("black elephant half is ranks 0-4")
	}
}

func TestChariotBlocking(t *testing.T) {
	b := boardWith(t, placement{Chariot, Red, Pos(0, 9)})
	c := pieceAt(t, b, Pos(0, 9))
	if !IsLegal(c, Pos(0, 0), b) || !IsLegal(c, Pos(8, 9), b) {
		t.Fatalf("open lines should be legal")
	}
	if IsLegal(c, Pos(1, 8), b) {
		t.Fatalf("chariot must not move diagonally")
	}
	for r := 1; r < 9; r++ {
		blocked := boardWith(t, placement{Chariot, Red, Pos(0, 9)}, placement{Soldier, Black, Pos(0, r)})
		if IsLegal(pieceAt(t, blocked, Pos(0, 9)), Pos(0, 0), blocked) {
			t.Fatalf("interior piece at rank %d should block", r)
		}
	}
}

func TestHorseLeg(t *testing.T) {
	b := boardWith(t, placement{Horse, Red, Pos(4, 5)})
	h := pieceAt(t, b, Pos(4, 5))
	want := []Position{Pos(3, 3), Pos(5, 3), Pos(2, 4), Pos(6, 4), Pos(2, 6), Pos(6, 6), Pos(3, 7), Pos(5, 7)}
	got := LegalDestinations(h, b)
	if len(got) != len(want) {
		t.Fatalf("open horse destinations = %v", got)
	}
	for _, p := range want {
		if !IsLegal(h, p, b) {
			t.Fatalf("expected %v legal", p)
		}
	}

	b.Place(MustPiece(9, Soldier, Black, Opponent, Pos(4, 4)), Pos(4, 4))
	if IsLegal(h, Pos(3, 3), b) || IsLegal(h, Pos(5, 3), b) {
		t.Fatalf("leg at (4,4) should block the forward jumps")
	}
	if !IsLegal(h, Pos(2, 4), b) {
		t.Fatalf("leg at (4,4) must not block the sideways jump")
	}
}

func TestCannonScreens(t *testing.T) {
	b := boardWith(t,
		placement{Cannon, Red, Pos(1, 7)},
		placement{Horse, Black, Pos(1, 0)},
	)
	c := pieceAt(t, b, Pos(1, 7))
	if IsLegal(c, Pos(1, 0), b) {
		t.Fatalf("capture with zero screens must be illegal")
	}
	if !IsLegal(c, Pos(1, 1), b) {
		t.Fatalf("quiet move with a clear path should be legal")
	}

	b.Place(MustPiece(10, Soldier, Black, Opponent, Pos(1, 3)), Pos(1, 3))
	if !IsLegal(c, Pos(1, 0), b) {
		t.Fatalf("capture over one screen should be legal")
	}
	if IsLegal(c, Pos(1, 2), b) {
		t.Fatalf("quiet move over a screen must be illegal")
	}

	b.Place(MustPiece(11, Soldier, Red, Self, Pos(1, 5)), Pos(1, 5))
	if IsLegal(c, Pos(1, 0), b) {
		t.Fatalf("capture over two screens must be illegal")
	}
}

func TestCannonCapturesWhereChariotCannot(t *testing.T) {
	b := boardWith(t,
		placement{Chariot, Red, Pos(4, 9)},
		placement{Cannon, Red, Pos(4, 8)},
		placement{Soldier, Black, Pos(4, 4)},
		placement{Chariot, Black, Pos(4, 0)},
	)
	chariot := pieceAt(t, b, Pos(4, 9))
	cannon := pieceAt(t, b, Pos(4, 8))
	if !IsLegal(cannon, Pos(4, 0), b) {
		t.Fatalf("cannon should capture over the single screen")
	}
	if IsLegal(chariot, Pos(4, 0), b) {
		t.Fatalf("chariot path is blocked")
	}
}

func TestSoldierDirection(t *testing.T) {
	b := boardWith(t,
		placement{Soldier, Red, Pos(2, 6)},
		placement{Soldier, Red, Pos(6, 3)},
		placement{Soldier, Black, Pos(2, 3)},
		placement{Soldier, Black, Pos(6, 6)},
	)
	home := pieceAt(t, b, Pos(2, 6))
	if !IsLegal(home, Pos(2, 5), b) {
		t.Fatalf("red soldier should step toward rank 0")
	}
	if IsLegal(home, Pos(1, 6), b) || IsLegal(home, Pos(2, 7), b) {
		t.Fatalf("uncrossed soldier may only go forward")
	}

	crossed := pieceAt(t, b, Pos(6, 3))
	for _, p := range []Position{Pos(6, 2), Pos(5, 3), Pos(7, 3)} {
		if !IsLegal(crossed, p, b) {
			t.Fatalf("crossed red soldier should reach %v", p)
		}
	}
	if IsLegal(crossed, Pos(6, 4), b) || IsLegal(crossed, Pos(7, 2), b) {
		t.Fatalf("crossed soldier must not retreat or move diagonally")
	}

	bHome := pieceAt(t, b, Pos(2, 3))
	if !IsLegal(bHome, Pos(2, 4), b) || IsLegal(bHome, Pos(2, 2), b) {
		t.Fatalf("black soldier advances toward rank 9")
	}
	bCrossed := pieceAt(t, b, Pos(6, 6))
	if !IsLegal(bCrossed, Pos(5, 6), b) || IsLegal(bCrossed, Pos(6, 5), b) {
		t.Fatalf("crossed black soldier moves sideways but never back")
	}
}

func TestSoldierNeverRetreats(t *testing.T) {
	for _, side := range []Side{Red, Black} {
		for r := 0; r < Ranks; r++ {
			for f := 0; f < Files; f++ {
				b := boardWith(t, placement{Soldier, side, Pos(f, r)})
				s := pieceAt(t, b, Pos(f, r))
				back := Pos(f, r-forward(s.Role))
				if back.InBounds() && IsLegal(s, back, b) {
					t.Fatalf("%v soldier at %v retreated", side, s.Position)
				}
			}
		}
	}
}

func TestIsLegalIsPure(t *testing.T) {
	b := StandardBoard(Red)
	before := Encode(b, Red)
	for _, p := range b.Pieces() {
		for r := 0; r < Ranks; r++ {
			for f := 0; f < Files; f++ {
				dst := Pos(f, r)
				first := IsLegal(p, dst, b)
				if second := IsLegal(p, dst, b); first != second {
					t.Fatalf("IsLegal(%v,%v) not stable", p, dst)
				}
			}
		}
	}
	if after := Encode(b, Red); after != before {
		t.Fatalf("board mutated: %q -> %q", before, after)
	}
}

func TestRelocateConservesMass(t *testing.T) {
	b := StandardBoard(Red)
	for _, p := range b.Pieces() {
		for _, dst := range LegalDestinations(p, b) {
			nb := b.Clone()
			captures := nb.Occupied(dst)
			if _, _, err := nb.Relocate(p.Position, dst); err != nil {
				t.Fatalf("Relocate: %v", err)
			}
			want := b.Len()
			if captures {
				want--
			}
			if nb.Len() != want {
				t.Fatalf("%v -> %v: len %d want %d", p, dst, nb.Len(), want)
			}
		}
	}
}
