package xiangqi

// rule decides whether piece may go to dst on b. Baseline checks already passed.
type rule func(b *Board, piece Piece, dst Position) bool

var rules = map[PieceKind]rule{
	General:  generalRule,
	Advisor:  advisorRule,
	Elephant: elephantRule,
	Chariot:  chariotRule,
	Horse:    horseRule,
	Cannon:   cannonRule,
	Soldier:  soldierRule,
}

// IsLegal reports whether piece may move to dst on b. It never mutates b or piece.
func IsLegal(piece Piece, dst Position, b *Board) bool {
	if b == nil || !dst.InBounds() || !piece.Position.InBounds() {
		return false
	}
	if dst == piece.Position {
		return false
	}
	if occ, ok := b.Get(dst); ok && occ.Side == piece.Side {
		return false
	}
	r, ok := rules[piece.Kind]
	if !ok {
		return false
	}
	return r(b, piece, dst)
}

// LegalDestinations lists every square piece may move to, ordered by rank then file.
func LegalDestinations(piece Piece, b *Board) []Position {
	var out []Position
	for r := 0; r < Ranks; r++ {
		for f := 0; f < Files; f++ {
			dst := Position{File: f, Rank: r}
			if IsLegal(piece, dst, b) {
				out = append(out, dst)
			}
		}
	}
	return out
}

// Board geometry is relative to the role: Self's palace is ranks 7-9, Opponent's 0-2.
func inPalace(role Role, pos Position) bool {
	if pos.File < 3 || pos.File > 5 {
		return false
	}
	if role == Self {
		return pos.Rank >= 7 && pos.Rank <= 9
	}
	return pos.Rank >= 0 && pos.Rank <= 2
}

func inOwnHalf(role Role, pos Position) bool {
	if role == Self {
		return pos.Rank >= 5
	}
	return pos.Rank <= 4
}

// forward is the rank delta of one step toward the enemy.
func forward(role Role) int {
	if role == Self {
		return -1
	}
	return 1
}

func crossedRiver(role Role, pos Position) bool {
	return !inOwnHalf(role, pos)
}

func deltas(from, to Position) (df, dr int) {
	return to.File - from.File, to.Rank - from.Rank
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}

func generalRule(b *Board, piece Piece, dst Position) bool {
	// flying general: same file, nothing in between, target is the enemy general
	if target, ok := b.Get(dst); ok && target.Kind == General && dst.File == piece.Position.File {
		if b.countBetween(piece.Position, dst) == 0 {
			return true
		}
	}
	if !inPalace(piece.Role, dst) {
		return false
	}
	df, dr := deltas(piece.Position, dst)
	return abs(df)+abs(dr) == 1
}

func advisorRule(_ *Board, piece Piece, dst Position) bool {
	if !inPalace(piece.Role, dst) {
		return false
	}
	df, dr := deltas(piece.Position, dst)
	return abs(df) == 1 && abs(dr) == 1
}

func elephantRule(b *Board, piece Piece, dst Position) bool {
	df, dr := deltas(piece.Position, dst)
	if abs(df) != 2 || abs(dr) != 2 {
		return false
	}
	if !inOwnHalf(piece.Role, dst) {
		return false
	}
	eye := Position{File: piece.Position.File + df/2, Rank: piece.Position.Rank + dr/2}
	return !b.Occupied(eye)
}

func chariotRule(b *Board, piece Piece, dst Position) bool {
	if dst.File != piece.Position.File && dst.Rank != piece.Position.Rank {
		return false
	}
	return b.countBetween(piece.Position, dst) == 0
}

func horseRule(b *Board, piece Piece, dst Position) bool {
	df, dr := deltas(piece.Position, dst)
	if df == 0 || dr == 0 || abs(df)+abs(dr) != 3 {
		return false
	}
	leg := piece.Position
	if abs(df) > abs(dr) {
		leg.File += sign(df)
	} else {
		leg.Rank += sign(dr)
	}
	return !b.Occupied(leg)
}

func cannonRule(b *Board, piece Piece, dst Position) bool {
	if dst.File != piece.Position.File && dst.Rank != piece.Position.Rank {
		return false
	}
	screens := b.countBetween(piece.Position, dst)
	if b.Occupied(dst) {
		return screens == 1
	}
	return screens == 0
}

func soldierRule(_ *Board, piece Piece, dst Position) bool {
	df, dr := deltas(piece.Position, dst)
	if abs(df)+abs(dr) != 1 {
		return false
	}
	if dr == forward(piece.Role) {
		return true
	}
	// sideways only once across the river; never backward
	return dr == 0 && crossedRiver(piece.Role, piece.Position)
}
