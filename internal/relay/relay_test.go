package relay

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/Cheese-Xiangqi/internal/peer"
	"github.com/park285/Cheese-Xiangqi/internal/pvpxiangqi"
	"github.com/park285/Cheese-Xiangqi/internal/session"
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func newRecorder(t *testing.T) *pvpxiangqi.Manager {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	m, err := pvpxiangqi.NewManager(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func newServer(t *testing.T, opts ...Option) (*Relay, string) {
	t.Helper()
	r := New(opts...)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return r, "ws" + strings.TrimPrefix(srv.URL, "http")
}

type rawPeer struct {
	conn *websocket.Conn
	side xiangqi.Side
}

func dialRaw(t *testing.T, url, id string) *rawPeer {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: http.Header{HeaderPlayerID: []string{id}}})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(websocket.StatusNormalClosure, "") })
	p := &rawPeer{conn: c}
	p.send(t, peer.TypeHello, nil)
	return p
}

func (p *rawPeer) send(t *testing.T, typ peer.MessageType, data any) {
	t.Helper()
	msg, err := peer.NewMessage(typ, data)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, p.conn, msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func (p *rawPeer) read(t *testing.T) peer.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var msg peer.Message
	if err := wsjson.Read(ctx, p.conn, &msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

// handshake consumes match_success and game_start.
func (p *rawPeer) handshake(t *testing.T) {
	t.Helper()
	if m := p.read(t); m.Type != peer.TypeMatchSuccess {
		t.Fatalf("got %s, want match_success", m.Type)
	}
	m := p.read(t)
	var gs peer.GameStart
	if m.Type != peer.TypeGameStart || m.Decode(&gs) != nil {
		t.Fatalf("got %s, want game_start", m.Type)
	}
	p.side = gs.Color
}

func pairRaw(t *testing.T, url string) (red, black *rawPeer) {
	t.Helper()
	a := dialRaw(t, url, "alice")
	b := dialRaw(t, url, "bob")
	a.handshake(t)
	b.handshake(t)
	if a.side == b.side {
		t.Fatalf("both peers got %s", a.side)
	}
	if a.side == xiangqi.Red {
		return a, b
	}
	return b, a
}

func pos(t *testing.T, s string) xiangqi.Position {
	t.Helper()
	p, err := xiangqi.ParsePosition(s)
	if err != nil {
		t.Fatalf("ParsePosition: %v", err)
	}
	return p
}

func TestRelayRecordsCanonicalMoves(t *testing.T) {
	rec := newRecorder(t)
	_, url := newServer(t, WithRecorder(rec))
	red, black := pairRaw(t, url)

	red.send(t, peer.TypeMove, peer.MovePayload{From: pos(t, "h7"), To: pos(t, "e7")})
	if m := black.read(t); m.Type != peer.TypeMove {
		t.Fatalf("black got %s", m.Type)
	}
	// black's own view: soldier e6e5, which is e3e4 from red's side
	black.send(t, peer.TypeMove, peer.MovePayload{From: pos(t, "e6"), To: pos(t, "e5")})
	if m := red.read(t); m.Type != peer.TypeMove {
		t.Fatalf("red got %s", m.Type)
	}

	g, err := rec.GetActiveGameByUser(context.Background(), "alice")
	if err != nil || g == nil {
		t.Fatalf("GetActiveGameByUser: %v %v", g, err)
	}
	if got := strings.Join(g.Moves, " "); got != "h7e7 e3e4" {
		t.Fatalf("recorded moves %q", got)
	}
}

func TestRelayRejectsIllegalMove(t *testing.T) {
	rec := newRecorder(t)
	_, url := newServer(t, WithRecorder(rec))
	red, black := pairRaw(t, url)

	red.send(t, peer.TypeMove, peer.MovePayload{From: pos(t, "e9"), To: pos(t, "e7")})
	m := red.read(t)
	var ep peer.ErrorPayload
	if m.Type != peer.TypeError || m.Decode(&ep) != nil || ep.Code != peer.CodeIllegalMove {
		t.Fatalf("got %s %+v", m.Type, ep)
	}
	// out of turn
	black.send(t, peer.TypeMove, peer.MovePayload{From: pos(t, "e6"), To: pos(t, "e5")})
	if m := black.read(t); m.Type != peer.TypeError {
		t.Fatalf("black got %s, want error", m.Type)
	}
}

func TestRelayDisconnectForfeits(t *testing.T) {
	rec := newRecorder(t)
	r, url := newServer(t, WithRecorder(rec))
	red, black := pairRaw(t, url)
	if r.Active() != 1 {
		t.Fatalf("Active = %d", r.Active())
	}

	_ = red.conn.Close(websocket.StatusNormalClosure, "leaving")
	m := black.read(t)
	var ge peer.GameEnd
	if m.Type != peer.TypeGameEnd || m.Decode(&ge) != nil {
		t.Fatalf("got %s", m.Type)
	}
	if ge.Winner != xiangqi.Black || ge.Reason != "disconnect" {
		t.Fatalf("game_end %+v", ge)
	}
	deadline := time.Now().Add(3 * time.Second)
	for r.Active() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if r.Active() != 0 {
		t.Fatalf("match still active")
	}
	if g, _ := rec.GetActiveGameByUser(context.Background(), "bob"); g != nil {
		t.Fatalf("forfeited game still active: %+v", g)
	}
}

func TestRelayMoveBeforeMatch(t *testing.T) {
	r, url := newServer(t)
	p := dialRaw(t, url, "solo")
	deadline := time.Now().Add(3 * time.Second)
	for !r.Waiting() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	p.send(t, peer.TypeMove, peer.MovePayload{From: pos(t, "h7"), To: pos(t, "e7")})
	m := p.read(t)
	var ep peer.ErrorPayload
	if m.Type != peer.TypeError || m.Decode(&ep) != nil || ep.Code != peer.CodeNotMatched {
		t.Fatalf("got %s %+v", m.Type, ep)
	}
}

// Two real links play through the relay without a recorder.
func TestRelayWithLinks(t *testing.T) {
	_, url := newServer(t)
	sa, sb := session.New(), session.New()
	la := peer.NewLink(url, sa)
	lb := peer.NewLink(url, sb)
	for _, l := range []*peer.Link{la, lb} {
		if err := l.Connect(context.Background()); err != nil {
			t.Fatalf("Connect: %v", err)
		}
		l := l
		t.Cleanup(func() { _ = l.Close(context.Background()) })
	}
	deadline := time.Now().Add(3 * time.Second)
	for (sa.State() == session.StateIdle || sb.State() == session.StateIdle) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	redS, blackS := sa, sb
	if sa.Snapshot().LocalSide == xiangqi.Black {
		redS, blackS = sb, sa
	}
	if blackS.Snapshot().LocalSide != xiangqi.Black {
		t.Fatalf("both sessions are red")
	}
	if err := redS.SubmitMove(pos(t, "h7"), pos(t, "e7")); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	for len(blackS.Snapshot().Moves) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	p, ok := blackS.Snapshot().Board.Get(pos(t, "e2"))
	if !ok || p.Kind != xiangqi.Cannon || p.Side != xiangqi.Red {
		t.Fatalf("black did not see the cannon move: %+v %v", p, ok)
	}
}

func TestRelayRejectsClaimedWin(t *testing.T) {
	rec := newRecorder(t)
	_, url := newServer(t, WithRecorder(rec))
	red, black := pairRaw(t, url)
	g, err := rec.GetActiveGameByUser(context.Background(), "alice")
	if err != nil || g == nil {
		t.Fatalf("GetActiveGameByUser: %v %v", g, err)
	}

	for _, ge := range []peer.GameEnd{
		{Winner: xiangqi.Black, Reason: session.ReasonGeneralCaptured},
		{Winner: xiangqi.Black, Reason: session.ReasonResignation},
	} {
		black.send(t, peer.TypeGameEnd, ge)
		m := black.read(t)
		var ep peer.ErrorPayload
		if m.Type != peer.TypeError || m.Decode(&ep) != nil || ep.Code != peer.CodeInvalidResult {
			t.Fatalf("claim %+v: got %s %+v", ge, m.Type, ep)
		}
	}
	got, err := rec.LoadGame(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("LoadGame: %v", err)
	}
	if !got.Active() || got.Winner != "" {
		t.Fatalf("claimed win was recorded: status=%s winner=%q method=%q", got.Status, got.Winner, got.Method)
	}

	// the match is still playable
	red.send(t, peer.TypeMove, peer.MovePayload{From: pos(t, "h7"), To: pos(t, "e7")})
	if m := black.read(t); m.Type != peer.TypeMove {
		t.Fatalf("black got %s, want move", m.Type)
	}
}

func TestRelayRecordsConcession(t *testing.T) {
	rec := newRecorder(t)
	_, url := newServer(t, WithRecorder(rec))
	red, black := pairRaw(t, url)
	g, err := rec.GetActiveGameByUser(context.Background(), "alice")
	if err != nil || g == nil {
		t.Fatalf("GetActiveGameByUser: %v %v", g, err)
	}

	black.send(t, peer.TypeGameEnd, peer.GameEnd{Winner: xiangqi.Red, Reason: session.ReasonResignation})
	m := red.read(t)
	var ge peer.GameEnd
	if m.Type != peer.TypeGameEnd || m.Decode(&ge) != nil || ge.Winner != xiangqi.Red {
		t.Fatalf("red got %s %+v", m.Type, ge)
	}
	got, err := rec.LoadGame(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("LoadGame: %v", err)
	}
	if got.Status != pvpxiangqi.StatusResigned || got.Outcome != "red" || got.Method != session.ReasonResignation {
		t.Fatalf("record: status=%s outcome=%s method=%s", got.Status, got.Outcome, got.Method)
	}
}

func TestCheckResult(t *testing.T) {
	red, black := xiangqi.Red, xiangqi.Black
	cases := []struct {
		name    string
		ge      peer.GameEnd
		sender  xiangqi.Side
		over    bool
		decided *xiangqi.Side
		code    string
	}{
		{"concession", peer.GameEnd{Winner: red, Reason: "resignation"}, black, false, nil, ""},
		{"self win", peer.GameEnd{Winner: black, Reason: "resignation"}, black, false, nil, peer.CodeInvalidResult},
		{"capture on record", peer.GameEnd{Winner: red, Reason: "general_captured"}, red, true, &red, ""},
		{"capture not on record", peer.GameEnd{Winner: red, Reason: "general_captured"}, red, false, nil, peer.CodeInvalidResult},
		{"capture wrong winner", peer.GameEnd{Winner: black, Reason: "general_captured"}, black, true, &red, peer.CodeInvalidResult},
		{"concession after end", peer.GameEnd{Winner: red, Reason: "resignation"}, black, true, &red, peer.CodeGameOver},
	}
	for _, tc := range cases {
		if code, _ := checkResult(tc.ge, tc.sender, tc.over, tc.decided); code != tc.code {
			t.Fatalf("%s: code %q, want %q", tc.name, code, tc.code)
		}
	}
}
