package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/park285/Cheese-Xiangqi/internal/msgcat"
	"github.com/park285/Cheese-Xiangqi/internal/peer"
	"github.com/park285/Cheese-Xiangqi/internal/render"
	"github.com/park285/Cheese-Xiangqi/internal/session"
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
)

// console prints session events and turns typed commands into session calls.
type console struct {
	mu     sync.Mutex
	out    io.Writer
	sess   *session.Session
	msgs   *msgcat.Catalog
	glyphs bool
}

func newConsole(out io.Writer, sess *session.Session, msgs *msgcat.Catalog, glyphs bool) *console {
	return &console{out: out, sess: sess, msgs: msgs, glyphs: glyphs}
}

func (c *console) say(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

func (c *console) prompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, "> ")
}

// command handles one input line and reports whether to keep reading.
func (c *console) command(line string) bool {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return true
	}
	switch fields[0] {
	case "quit", "exit":
		return false
	case "help":
		c.say(c.msgs.Text("peer.help", nil))
	case "board":
		c.board()
	case "resign":
		if _, err := c.sess.Resign(); err != nil {
			c.say(c.errText(err, ""))
		}
	case "select":
		if len(fields) < 2 {
			c.say(c.msgs.Text("error.bad_input", map[string]any{"Input": line}))
			return true
		}
		pos, err := xiangqi.ParsePosition(fields[1])
		if err != nil {
			c.say(c.msgs.Text("error.bad_input", map[string]any{"Input": fields[1]}))
			return true
		}
		switch tr := c.sess.Select(pos); tr {
		case session.TransitionSelected, session.TransitionReselected:
			c.board()
		case session.TransitionNone, session.TransitionCleared:
			c.say(tr.String())
		}
	default:
		mv, err := xiangqi.ParseMove(fields[0])
		if err != nil {
			c.say(c.msgs.Text("error.bad_input", map[string]any{"Input": fields[0]}))
			return true
		}
		if err := c.sess.SubmitMove(mv.From, mv.To); err != nil {
			c.say(c.errText(err, mv.String()))
		}
	}
	return true
}

func (c *console) errText(err error, move string) string {
	switch {
	case errors.Is(err, session.ErrNotStarted):
		return c.msgs.Text("error.not_started", nil)
	case errors.Is(err, session.ErrGameOver):
		return c.msgs.Text("error.game_over", nil)
	case errors.Is(err, session.ErrNoPiece):
		sq := move
		if len(sq) > 2 {
			sq = sq[:2]
		}
		return c.msgs.Text("error.no_piece", map[string]any{"Square": sq})
	case errors.Is(err, session.ErrNotYourTurn):
		return c.msgs.Text("error.not_your_turn", nil)
	case errors.Is(err, session.ErrIllegalMove):
		return c.msgs.Text("error.illegal_move", map[string]any{"Move": move})
	}
	return err.Error()
}

func (c *console) board() {
	snap := c.sess.Snapshot()
	opts := render.TextOptions{Glyphs: c.glyphs}
	if p, ok := snap.Board.Find(snap.Selected); ok && snap.Selected != 0 {
		pos := p.Position
		opts.Selected = &pos
	}
	c.say(render.Text(snap.Board, opts))
}

func (c *console) started() {
	snap := c.sess.Snapshot()
	c.say(c.msgs.Text("session.started", map[string]any{
		"Side":     snap.LocalSide.String(),
		"YourTurn": snap.Turn == xiangqi.Self,
		"Opponent": snap.LocalSide.Opponent().String(),
	}))
	c.board()
}

func (c *console) onMove(ev session.MoveEvent) {
	data := map[string]any{
		"Side":     ev.Piece.Side.String(),
		"Piece":    ev.Piece.Kind.String(),
		"Move":     ev.Move().String(),
		"Captured": "",
	}
	if ev.Captured != nil {
		data["Captured"] = ev.Captured.Kind.String()
	}
	c.say(c.msgs.Text("session.moved", data))
	c.board()
	snap := c.sess.Snapshot()
	if snap.State == session.StateTerminal {
		return
	}
	if !snap.Networked || snap.Turn == xiangqi.Self {
		c.say(c.msgs.Text("session.your_turn", map[string]any{"Side": snap.TurnSide().String()}))
	} else {
		c.say(c.msgs.Text("session.waiting", map[string]any{"Side": snap.TurnSide().String()}))
	}
}

func (c *console) onEnd(ev session.EndEvent) {
	c.say(c.msgs.Text("session.ended", map[string]any{"Winner": ev.Winner.String(), "Reason": ev.Reason}))
}

func (c *console) onFrame(msg peer.Message) {
	switch msg.Type {
	case peer.TypeMatchSuccess:
		c.say(c.msgs.Text("peer.matched", nil))
	case peer.TypeGameStart:
		c.started()
	}
}
