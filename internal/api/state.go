package api

import (
	"github.com/park285/Cheese-Xiangqi/internal/session"
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
	"github.com/park285/Cheese-Xiangqi/pkg/xqdto"
)

func stateOf(id string, snap session.Snapshot) *xqdto.SessionState {
	out := &xqdto.SessionState{
		SessionID: id,
		State:     snap.State.String(),
		LocalSide: snap.LocalSide.String(),
		Networked: snap.Networked,
		Turn:      snap.TurnSide().String(),
		Selected:  snap.Selected,
		Moves:     make([]string, 0, len(snap.Moves)),
		MoveCount: len(snap.Moves),
		Position:  xiangqi.Encode(snap.Board, snap.TurnSide()),
	}
	if snap.Winner != nil {
		out.Winner = snap.Winner.String()
	}
	for _, m := range snap.Moves {
		out.Moves = append(out.Moves, m.String())
	}
	for _, p := range snap.Board.Pieces() {
		out.Pieces = append(out.Pieces, xqdto.PieceView{
			ID:       p.ID,
			Kind:     p.Kind.String(),
			Side:     p.Side.String(),
			Role:     p.Role.String(),
			X:        p.Position.File,
			Y:        p.Position.Rank,
			Glyph:    p.Glyph(),
			Selected: p.ID == snap.Selected,
		})
	}
	if sel, ok := selectedPiece(snap); ok {
		for _, d := range xiangqi.LegalDestinations(sel, snap.Board) {
			out.Hints = append(out.Hints, d.String())
		}
	}
	return out
}

func selectedPiece(snap session.Snapshot) (xiangqi.Piece, bool) {
	if snap.Selected == 0 {
		return xiangqi.Piece{}, false
	}
	return snap.Board.Find(snap.Selected)
}
