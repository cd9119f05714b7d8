package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/Cheese-Xiangqi/internal/lobby"
	"github.com/park285/Cheese-Xiangqi/internal/msgcat"
	"github.com/park285/Cheese-Xiangqi/internal/pvpxiangqi"
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
	"github.com/park285/Cheese-Xiangqi/pkg/xqdto"
	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"go.uber.org/zap"
)

type testClient struct {
	t *testing.T
	c *fasthttp.Client
}

func newTestServer(t *testing.T, d Deps) *testClient {
	t.Helper()
	if d.Messages == nil {
		cat, err := msgcat.New("")
		if err != nil {
			t.Fatalf("msgcat.New: %v", err)
		}
		d.Messages = cat
	}
	d.Logger = zap.NewNop()
	srv := New(d)
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		_ = ln.Close()
	})
	return &testClient{t: t, c: &fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return ln.Dial() },
	}}
}

func (tc *testClient) do(method, path string, in, out any) int {
	tc.t.Helper()
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)
	req.Header.SetMethod(method)
	req.SetRequestURI("http://xiangqi.test" + path)
	if in != nil {
		raw, _ := json.Marshal(in)
		req.Header.SetContentType("application/json")
		req.SetBody(raw)
	}
	if err := tc.c.DoTimeout(req, resp, 5*time.Second); err != nil {
		tc.t.Fatalf("%s %s: %v", method, path, err)
	}
	if out != nil {
		if b, ok := out.(*[]byte); ok {
			*b = append([]byte(nil), resp.Body()...)
		} else if err := json.Unmarshal(resp.Body(), out); err != nil {
			tc.t.Fatalf("decode %s %s: %v (%s)", method, path, err, resp.Body())
		}
	}
	return resp.StatusCode()
}

func startGame(t *testing.T, tc *testClient, side string) *xqdto.SessionState {
	t.Helper()
	var sr xqdto.StartResponse
	if code := tc.do("POST", "/api/games", xqdto.StartRequest{Side: side}, &sr); code != fasthttp.StatusCreated {
		t.Fatalf("start status %d", code)
	}
	return sr.State
}

func TestStartSelectMove(t *testing.T) {
	tc := newTestServer(t, Deps{Store: NewStore(10, time.Hour)})
	st := startGame(t, tc, "red")
	if st.State != "awaiting_selection" || st.Turn != "red" || len(st.Pieces) != 32 {
		t.Fatalf("unexpected start state: %+v", st)
	}
	if st.Position != "rheakaehr/9/1c5c1/p1p1p1p1p/9/9/P1P1P1P1P/1C5C1/9/RHEAKAEHR w" {
		t.Fatalf("position = %s", st.Position)
	}

	var sel xqdto.SelectResponse
	tc.do("POST", "/api/games/"+st.SessionID+"/select", xqdto.SelectRequest{Square: "h7"}, &sel)
	if sel.Transition != "selected" || sel.State.State != "piece_selected" || len(sel.State.Hints) == 0 {
		t.Fatalf("select: %+v", sel)
	}
	tc.do("POST", "/api/games/"+st.SessionID+"/select", xqdto.SelectRequest{Square: "e7"}, &sel)
	if sel.Transition != "moved" || sel.State.Turn != "black" {
		t.Fatalf("select move: %+v", sel)
	}

	var mr xqdto.MoveResponse
	if code := tc.do("POST", "/api/games/"+st.SessionID+"/move", xqdto.MoveRequest{Move: "b2e2"}, &mr); code != fasthttp.StatusOK {
		t.Fatalf("move status %d", code)
	}
	if mr.State.MoveCount != 2 || mr.Finished {
		t.Fatalf("move response %+v", mr)
	}

	var got xqdto.SessionState
	tc.do("GET", "/api/games/"+st.SessionID, nil, &got)
	if len(got.Moves) != 2 || got.Moves[0] != "h7e7" {
		t.Fatalf("moves %v", got.Moves)
	}
}

func TestMoveErrors(t *testing.T) {
	tc := newTestServer(t, Deps{Store: NewStore(10, time.Hour)})
	st := startGame(t, tc, "")
	path := "/api/games/" + st.SessionID + "/move"

	cases := []struct {
		move   string
		status int
		code   string
	}{
		{"e9e7", fasthttp.StatusUnprocessableEntity, xqdto.CodeIllegalMove},
		{"e5e4", fasthttp.StatusUnprocessableEntity, xqdto.CodeNoPiece},
		{"e3e4", fasthttp.StatusConflict, xqdto.CodeNotYourTurn},
		{"zz", fasthttp.StatusBadRequest, xqdto.CodeBadRequest},
	}
	for _, c := range cases {
		var er xqdto.ErrorResponse
		if code := tc.do("POST", path, xqdto.MoveRequest{Move: c.move}, &er); code != c.status || er.Error.Code != c.code {
			t.Fatalf("%s: status %d code %q, want %d %q", c.move, code, er.Error.Code, c.status, c.code)
		}
		if er.Error.Message == "" {
			t.Fatalf("%s: empty message", c.move)
		}
	}

	var er xqdto.ErrorResponse
	if code := tc.do("GET", "/api/games/nope", nil, &er); code != fasthttp.StatusNotFound || er.Error.Code != xqdto.CodeNotFound {
		t.Fatalf("unknown session: %d %+v", code, er)
	}
	if code := tc.do("POST", "/api/games/"+st.SessionID+"/remote", xqdto.MoveRequest{Move: "e0e1"}, &er); code != fasthttp.StatusUnprocessableEntity {
		t.Fatalf("remote move on hot-seat session: %d", code)
	}
}

func TestResignAndBoard(t *testing.T) {
	tc := newTestServer(t, Deps{Store: NewStore(10, time.Hour)})
	st := startGame(t, tc, "black")

	var png []byte
	if code := tc.do("GET", "/api/games/"+st.SessionID+"/board.png", nil, &png); code != fasthttp.StatusOK {
		t.Fatalf("board status %d", code)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("not a png")
	}

	var got xqdto.SessionState
	tc.do("POST", "/api/games/"+st.SessionID+"/resign", nil, &got)
	if got.State != "terminal" || got.Winner != "black" || got.Outcome != "resignation" {
		t.Fatalf("resign: %+v", got)
	}
	var er xqdto.ErrorResponse
	if code := tc.do("POST", "/api/games/"+st.SessionID+"/move", xqdto.MoveRequest{Move: "h2e2"}, &er); code != fasthttp.StatusConflict || er.Error.Code != xqdto.CodeGameOver {
		t.Fatalf("move after resign: %d %+v", code, er)
	}
	if code := tc.do("DELETE", "/api/games/"+st.SessionID, nil, nil); code != fasthttp.StatusNoContent {
		t.Fatalf("delete status %d", code)
	}
}

func TestSessionCapAndHealth(t *testing.T) {
	tc := newTestServer(t, Deps{Store: NewStore(1, time.Hour)})
	startGame(t, tc, "red")
	var er xqdto.ErrorResponse
	if code := tc.do("POST", "/api/games", xqdto.StartRequest{}, &er); code != fasthttp.StatusServiceUnavailable || !er.Error.Retryable {
		t.Fatalf("cap: %d %+v", code, er)
	}
	var h xqdto.HealthResponse
	tc.do("GET", "/healthz", nil, &h)
	if h.Status != "ok" || h.Sessions != 1 {
		t.Fatalf("health %+v", h)
	}
}

func TestStoreExpiry(t *testing.T) {
	s := NewStore(0, time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }
	e, err := s.Create(xiangqi.Red, false, zap.NewNop())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, ok := s.Get(e.id); ok {
		t.Fatalf("expired session still returned")
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestLobbyAndPvPRoutes(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	pvp, err := pvpxiangqi.NewManager(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("pvpxiangqi.NewManager: %v", err)
	}
	t.Cleanup(func() { _ = pvp.Close() })
	repo := pvpxiangqi.NewMemoryRepository()
	pvp.AttachRepository(repo)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tc := newTestServer(t, Deps{Store: NewStore(10, time.Hour), PvP: pvp, Lobby: lobby.NewManager(rdb, pvp)})

	var made xqdto.LobbyView
	if code := tc.do("POST", "/api/lobbies", xqdto.LobbyRequest{UserID: "u1", UserName: "Alice", Color: "red"}, &made); code != fasthttp.StatusCreated {
		t.Fatalf("make status %d", code)
	}
	var list xqdto.LobbyListResponse
	tc.do("GET", "/api/lobbies", nil, &list)
	if len(list.Lobbies) != 1 || list.Lobbies[0].Code != made.Code {
		t.Fatalf("list %+v", list)
	}
	var joined xqdto.LobbyView
	tc.do("POST", "/api/lobbies/"+made.Code+"/join", xqdto.LobbyRequest{UserID: "u2", UserName: "Bob"}, &joined)
	if joined.GameID == "" || joined.State != string(lobby.StateActive) {
		t.Fatalf("join %+v", joined)
	}

	var st xqdto.SessionState
	if code := tc.do("POST", "/api/players/u1/move", xqdto.PvPMoveRequest{Move: "h7e7"}, &st); code != fasthttp.StatusOK {
		t.Fatalf("pvp move status %d", code)
	}
	if st.MoveCount != 1 || st.Turn != "black" || len(st.BoardImage) == 0 {
		t.Fatalf("pvp state %+v", st.Moves)
	}
	var er xqdto.ErrorResponse
	if code := tc.do("POST", "/api/players/u1/move", xqdto.PvPMoveRequest{Move: "e6e5"}, &er); code != fasthttp.StatusConflict {
		t.Fatalf("out of turn: %d %+v", code, er)
	}
	tc.do("GET", "/api/pvp/games/"+joined.GameID+"?viewer=u2", nil, &st)
	if st.LocalSide != "black" {
		t.Fatalf("viewer side %s", st.LocalSide)
	}

	tc.do("POST", "/api/players/u2/resign", nil, &st)
	if st.Winner != "red" {
		t.Fatalf("resign winner %q", st.Winner)
	}
	var hist xqdto.HistoryResponse
	tc.do("GET", "/api/players/u1/games", nil, &hist)
	if len(hist.Games) != 1 || hist.Games[0].Winner != "u1" {
		t.Fatalf("history %+v", hist)
	}
}
