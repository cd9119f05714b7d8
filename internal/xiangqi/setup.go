package xiangqi

// back rank, left to right from the local player's view
var backRank = [Files]PieceKind{Chariot, Horse, Elephant, Advisor, General, Advisor, Elephant, Horse, Chariot}

// StandardBoard returns the 32-piece opening with localSide on ranks 6-9.
// Ids are fixed per side (Red 1-16, Black 17-32) and the opponent's layout is the
// mirror image of ours, so both peers agree on every id after mirroring.
func StandardBoard(localSide Side) *Board {
	b := NewBoard()
	for _, side := range []Side{Red, Black} {
		role := RoleOf(side, localSide)
		id := 1
		if side == Black {
			id = 17
		}
		place := func(kind PieceKind, file, rank int) {
			pos := Pos(file, rank)
			if role == Opponent {
				pos = pos.Mirror()
			}
			b.Place(MustPiece(id, kind, side, role, pos), pos)
			id++
		}
		for f, kind := range backRank {
			place(kind, f, 9)
		}
		place(Cannon, 1, 7)
		place(Cannon, 7, 7)
		for _, f := range []int{0, 2, 4, 6, 8} {
			place(Soldier, f, 6)
		}
	}
	return b
}
