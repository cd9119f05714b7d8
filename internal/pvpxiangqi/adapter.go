package pvpxiangqi

import (
	"context"
	"fmt"
	"strings"

	"github.com/park285/Cheese-Xiangqi/internal/render"
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
	"github.com/park285/Cheese-Xiangqi/pkg/xqdto"
)

// ToDTO renders the board for the red player's point of view.
func (m *Manager) ToDTO(ctx context.Context, g *Game) (*xqdto.SessionState, error) {
	return m.ToDTOForViewer(ctx, g, g.RedID)
}

// ToDTOForViewer renders the board with viewerID's pieces at the bottom.
func (m *Manager) ToDTOForViewer(ctx context.Context, g *Game, viewerID string) (*xqdto.SessionState, error) {
	if m == nil || g == nil {
		return nil, nil
	}
	s, err := replay(g.Moves)
	if err != nil {
		return nil, fmt.Errorf("reconstruct %s: %w", g.ID, err)
	}
	snap := s.Snapshot()
	viewer, ok := g.SideOf(viewerID)
	if !ok {
		viewer = xiangqi.Red
	}

	opts := render.Options{
		Header: fmt.Sprintf("%s (red) vs %s (black)", g.RedName, g.BlackName),
		Turn:   hudTurn(g),
		Flip:   viewer == xiangqi.Black,
	}
	if n := len(snap.Moves); n > 0 {
		last := snap.Moves[n-1]
		opts.Highlight = &last
	}
	png, err := m.renderer.RenderPNG(ctx, snap.Board, opts)
	if err != nil {
		return nil, err
	}
	return &xqdto.SessionState{
		SessionID:  g.ID,
		State:      strings.ToLower(string(g.Status)),
		LocalSide:  viewer.String(),
		Networked:  true,
		Turn:       g.Turn.String(),
		Winner:     g.Outcome,
		Outcome:    g.Method,
		Moves:      append([]string(nil), g.Moves...),
		MoveCount:  len(g.Moves),
		Position:   g.Position,
		BoardImage: png,
	}, nil
}

func hudTurn(g *Game) string {
	if !g.Active() {
		if g.Outcome != "" {
			return fmt.Sprintf("%s wins", g.Outcome)
		}
		return "game over"
	}
	return fmt.Sprintf("%s to move, ply %d", g.Turn, len(g.Moves)+1)
}
