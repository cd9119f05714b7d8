package api

import (
	"strings"

	"github.com/park285/Cheese-Xiangqi/internal/lobby"
	"github.com/park285/Cheese-Xiangqi/internal/pvpxiangqi"
	"github.com/park285/Cheese-Xiangqi/internal/render"
	"github.com/park285/Cheese-Xiangqi/internal/session"
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
	"github.com/park285/Cheese-Xiangqi/pkg/xqdto"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

func (s *Server) handleStart(ctx *fasthttp.RequestCtx) {
	var req xqdto.StartRequest
	if !s.decode(ctx, &req) {
		return
	}
	side := xiangqi.Red
	if strings.TrimSpace(req.Side) != "" {
		v, err := xiangqi.ParseSide(req.Side)
		if err != nil {
			s.writeError(ctx, badRequest{detail: err.Error()})
			return
		}
		side = v
	}
	e, err := s.deps.Store.Create(side, req.Networked, s.log)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	s.log.Info("api_session_created",
		zap.String("session_id", e.id),
		zap.String("side", side.String()),
		zap.Bool("networked", req.Networked),
	)
	s.writeJSON(ctx, fasthttp.StatusCreated, xqdto.StartResponse{State: s.stateOf(e)})
}

func (s *Server) handleSelect(ctx *fasthttp.RequestCtx, e *entry) {
	var req xqdto.SelectRequest
	if !s.decode(ctx, &req) {
		return
	}
	pos, err := xiangqi.ParsePosition(req.Square)
	if err != nil {
		s.writeError(ctx, badRequest{detail: s.deps.Messages.Text("error.bad_input", map[string]any{"Input": req.Square})})
		return
	}
	tr := e.sess.Select(pos)
	s.writeJSON(ctx, fasthttp.StatusOK, xqdto.SelectResponse{Transition: tr.String(), State: s.stateOf(e)})
}

// handleMove submits a local move, or a peer move when remote is set.
func (s *Server) handleMove(ctx *fasthttp.RequestCtx, e *entry, remote bool) {
	var req xqdto.MoveRequest
	if !s.decode(ctx, &req) {
		return
	}
	mv, err := xiangqi.ParseMove(req.Move)
	if err != nil {
		s.writeError(ctx, badRequest{detail: s.deps.Messages.Text("error.bad_input", map[string]any{"Input": req.Move})})
		return
	}
	if remote {
		err = e.sess.ApplyRemoteMove(mv.From, mv.To)
	} else {
		err = e.sess.SubmitMove(mv.From, mv.To)
	}
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	resp := xqdto.MoveResponse{State: s.stateOf(e)}
	if last := e.lastMove(); last != nil && last.Move() == mv && last.Captured != nil {
		resp.Captured = last.Captured.Kind.String()
	}
	resp.Finished = e.sess.State() == session.StateTerminal
	s.writeJSON(ctx, fasthttp.StatusOK, resp)
}

// handleResign concedes on behalf of the side to move, or the local side of
// a networked session.
func (s *Server) handleResign(ctx *fasthttp.RequestCtx, e *entry) {
	if _, err := e.sess.Resign(); err != nil {
		s.writeError(ctx, err)
		return
	}
	s.writeState(ctx, fasthttp.StatusOK, e)
}

func (s *Server) handleBoard(ctx *fasthttp.RequestCtx, e *entry) {
	snap := e.sess.Snapshot()
	opts := render.Options{
		Header: "you play " + snap.LocalSide.String(),
		Turn:   snap.TurnSide().String() + " to move",
		Flip:   string(ctx.QueryArgs().Peek("flip")) == "1",
	}
	if snap.Winner != nil {
		opts.Turn = snap.Winner.String() + " wins"
	}
	if n := len(snap.Moves); n > 0 {
		last := snap.Moves[n-1]
		opts.Highlight = &last
	}
	if sel, ok := selectedPiece(snap); ok {
		pos := sel.Position
		opts.Selected = &pos
		opts.Hints = xiangqi.LegalDestinations(sel, snap.Board)
	}
	png, err := s.deps.Renderer.RenderPNG(ctx, snap.Board, opts)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("image/png")
	ctx.SetBody(png)
}

func (s *Server) handlePvPGame(ctx *fasthttp.RequestCtx, id string) {
	if s.deps.PvP == nil {
		s.writeError(ctx, notFound{id: id})
		return
	}
	g, err := s.deps.PvP.LoadGame(ctx, id)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	if g == nil {
		s.writeError(ctx, notFound{id: id})
		return
	}
	s.writePvP(ctx, g, string(ctx.QueryArgs().Peek("viewer")))
}

func (s *Server) handlePvPMove(ctx *fasthttp.RequestCtx, userID string) {
	if s.deps.PvP == nil {
		s.writeError(ctx, notFound{id: userID})
		return
	}
	var req xqdto.PvPMoveRequest
	if !s.decode(ctx, &req) {
		return
	}
	if _, err := xiangqi.ParseMove(req.Move); err != nil {
		s.writeError(ctx, badRequest{detail: s.deps.Messages.Text("error.bad_input", map[string]any{"Input": req.Move})})
		return
	}
	g, err := s.deps.PvP.PlayMove(ctx, userID, req.Move)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	s.writePvP(ctx, g, userID)
}

func (s *Server) handlePvPResign(ctx *fasthttp.RequestCtx, userID string) {
	if s.deps.PvP == nil {
		s.writeError(ctx, notFound{id: userID})
		return
	}
	g, err := s.deps.PvP.Resign(ctx, userID)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	s.writePvP(ctx, g, userID)
}

func (s *Server) writePvP(ctx *fasthttp.RequestCtx, g *pvpxiangqi.Game, viewer string) {
	dto, err := s.deps.PvP.ToDTOForViewer(ctx, g, viewer)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, dto)
}

func (s *Server) handleHistory(ctx *fasthttp.RequestCtx, userID string) {
	limit := ctx.QueryArgs().GetUintOrZero("limit")
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	resp := xqdto.HistoryResponse{Games: []xqdto.GameSummary{}}
	if s.deps.PvP != nil {
		games, err := s.deps.PvP.History(ctx, userID, limit)
		if err != nil {
			s.writeError(ctx, err)
			return
		}
		for _, g := range games {
			resp.Games = append(resp.Games, xqdto.GameSummary{
				ID: g.ID, RedID: g.RedID, RedName: g.RedName, BlackID: g.BlackID, BlackName: g.BlackName,
				Status: string(g.Status), Winner: g.Winner, Method: g.Method, Moves: len(g.Moves), EndedAt: g.UpdatedAt,
			})
		}
	}
	s.writeJSON(ctx, fasthttp.StatusOK, resp)
}

func (s *Server) handleLobbyMake(ctx *fasthttp.RequestCtx) {
	if s.deps.Lobby == nil {
		s.writeError(ctx, notFound{id: "lobbies"})
		return
	}
	var req xqdto.LobbyRequest
	if !s.decode(ctx, &req) {
		return
	}
	res, err := s.deps.Lobby.Make(ctx, req.Room, req.UserID, req.UserName, lobby.ColorChoice(strings.ToLower(req.Color)))
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	view := lobbyView(res.Meta)
	view.Message = s.deps.Messages.Text("lobby.created", map[string]any{"Code": res.Code})
	s.writeJSON(ctx, fasthttp.StatusCreated, view)
}

func (s *Server) handleLobbyJoin(ctx *fasthttp.RequestCtx, code string) {
	if s.deps.Lobby == nil {
		s.writeError(ctx, notFound{id: "lobbies"})
		return
	}
	var req xqdto.LobbyRequest
	if !s.decode(ctx, &req) {
		return
	}
	res, err := s.deps.Lobby.Join(ctx, req.Room, code, req.UserID, req.UserName)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	view := lobbyView(res.Meta)
	view.Message = s.deps.Messages.Text("lobby.joined", map[string]any{"Name": req.UserName, "Code": code})
	s.writeJSON(ctx, fasthttp.StatusOK, view)
}

func (s *Server) handleLobbyList(ctx *fasthttp.RequestCtx) {
	resp := xqdto.LobbyListResponse{Lobbies: []xqdto.LobbyView{}}
	if s.deps.Lobby != nil {
		list, err := s.deps.Lobby.ListLobby(ctx)
		if err != nil {
			s.writeError(ctx, err)
			return
		}
		for _, m := range list {
			resp.Lobbies = append(resp.Lobbies, lobbyView(m))
		}
	}
	s.writeJSON(ctx, fasthttp.StatusOK, resp)
}

func lobbyView(m *lobby.Meta) xqdto.LobbyView {
	return xqdto.LobbyView{
		Code:        m.Code,
		State:       string(m.State),
		CreatorID:   m.CreatorID,
		CreatorName: m.CreatorName,
		Color:       string(m.Color),
		CreatedAt:   m.CreatedAt,
		GameID:      m.GameID,
	}
}
