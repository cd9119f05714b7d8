package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/park285/Cheese-Xiangqi/internal/msgcat"
	"github.com/park285/Cheese-Xiangqi/internal/session"
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
	"go.uber.org/zap"
)

func newTestConsole(t *testing.T) (*console, *bytes.Buffer, *session.Session) {
	t.Helper()
	msgs, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat.New: %v", err)
	}
	var buf bytes.Buffer
	sess := session.New(session.WithLogger(zap.NewNop()))
	c := newConsole(&buf, sess, msgs, false)
	sess.OnMoveApplied(c.onMove)
	sess.OnGameEnded(c.onEnd)
	sess.Start(xiangqi.Red, false)
	return c, &buf, sess
}

func TestConsoleMoveAndErrors(t *testing.T) {
	c, buf, sess := newTestConsole(t)

	if !c.command("h7e7") {
		t.Fatalf("command stopped")
	}
	if !strings.Contains(buf.String(), "red cannon h7e7") {
		t.Fatalf("move not announced: %q", buf.String())
	}
	buf.Reset()
	c.command("h7e7")
	if !strings.Contains(buf.String(), "There is no piece on h7") {
		t.Fatalf("missing no-piece text: %q", buf.String())
	}
	buf.Reset()
	c.command("e9e7")
	if !strings.Contains(buf.String(), "It is not your turn") {
		t.Fatalf("missing turn text: %q", buf.String())
	}
	if n := len(sess.Snapshot().Moves); n != 1 {
		t.Fatalf("moves = %d", n)
	}
}

func TestConsoleResignAndQuit(t *testing.T) {
	c, buf, sess := newTestConsole(t)
	c.command("resign")
	if w := sess.Snapshot().Winner; w == nil || *w != xiangqi.Black {
		t.Fatalf("winner = %v", w)
	}
	if !strings.Contains(buf.String(), "black wins (resignation)") {
		t.Fatalf("end not announced: %q", buf.String())
	}
	if c.command("quit") {
		t.Fatalf("quit should stop the loop")
	}
}
