package api

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"time"

	"github.com/park285/Cheese-Xiangqi/internal/lobby"
	"github.com/park285/Cheese-Xiangqi/internal/msgcat"
	"github.com/park285/Cheese-Xiangqi/internal/obslog"
	"github.com/park285/Cheese-Xiangqi/internal/pvpxiangqi"
	"github.com/park285/Cheese-Xiangqi/internal/render"
	"github.com/park285/Cheese-Xiangqi/pkg/xqdto"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Deps are the collaborators of the API. Only Store is required; PvP and
// Lobby enable the /api/pvp, /api/players and /api/lobbies routes.
type Deps struct {
	Store    *Store
	Renderer render.BoardRenderer
	Messages *msgcat.Catalog
	PvP      *pvpxiangqi.Manager
	Lobby    *lobby.Manager
	Logger   *zap.Logger
}

type Server struct {
	deps Deps
	log  *zap.Logger
	srv  *fasthttp.Server
}

func New(d Deps) *Server {
	if d.Renderer == nil {
		d.Renderer = render.NewPNGRenderer()
	}
	if d.Store == nil {
		d.Store = NewStore(0, 0)
	}
	log := d.Logger
	if log == nil {
		log = obslog.L()
	}
	s := &Server{deps: d, log: log}
	s.srv = &fasthttp.Server{
		Handler:            s.Handle,
		Name:               "cheese-xiangqi",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		MaxRequestBodySize: 64 << 10,
	}
	return s
}

func (s *Server) ListenAndServe(addr string) error {
	s.log.Info("api_listen", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Serve(ln net.Listener) error { return s.srv.Serve(ln) }

func (s *Server) Shutdown(ctx context.Context) error { return s.srv.ShutdownWithContext(ctx) }

// Handle routes one request.
func (s *Server) Handle(ctx *fasthttp.RequestCtx) {
	start := time.Now()
	path := strings.Trim(string(ctx.Path()), "/")
	parts := strings.Split(path, "/")
	method := string(ctx.Method())

	switch {
	case path == "healthz" && method == fasthttp.MethodGet:
		s.writeJSON(ctx, fasthttp.StatusOK, xqdto.HealthResponse{Status: "ok", Sessions: s.deps.Store.Len()})
	case len(parts) == 2 && parts[0] == "api" && parts[1] == "games" && method == fasthttp.MethodPost:
		s.handleStart(ctx)
	case len(parts) >= 3 && parts[0] == "api" && parts[1] == "games":
		s.routeGame(ctx, method, parts[2], parts[3:])
	case len(parts) == 4 && parts[0] == "api" && parts[1] == "pvp" && parts[2] == "games" && method == fasthttp.MethodGet:
		s.handlePvPGame(ctx, parts[3])
	case len(parts) == 4 && parts[0] == "api" && parts[1] == "players" && parts[3] == "games" && method == fasthttp.MethodGet:
		s.handleHistory(ctx, parts[2])
	case len(parts) == 4 && parts[0] == "api" && parts[1] == "players" && parts[3] == "move" && method == fasthttp.MethodPost:
		s.handlePvPMove(ctx, parts[2])
	case len(parts) == 4 && parts[0] == "api" && parts[1] == "players" && parts[3] == "resign" && method == fasthttp.MethodPost:
		s.handlePvPResign(ctx, parts[2])
	case len(parts) == 2 && parts[0] == "api" && parts[1] == "lobbies":
		switch method {
		case fasthttp.MethodGet:
			s.handleLobbyList(ctx)
		case fasthttp.MethodPost:
			s.handleLobbyMake(ctx)
		default:
			s.methodNotAllowed(ctx)
		}
	case len(parts) == 4 && parts[0] == "api" && parts[1] == "lobbies" && parts[3] == "join" && method == fasthttp.MethodPost:
		s.handleLobbyJoin(ctx, parts[2])
	default:
		s.writeError(ctx, notFound{id: "/" + path})
	}

	s.log.Debug("api_request",
		zap.String("method", method),
		zap.String("path", string(ctx.Path())),
		zap.Int("status", ctx.Response.StatusCode()),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (s *Server) routeGame(ctx *fasthttp.RequestCtx, method, id string, rest []string) {
	e, ok := s.deps.Store.Get(id)
	if !ok {
		s.writeError(ctx, notFound{id: id})
		return
	}
	action := ""
	if len(rest) > 0 {
		action = rest[0]
	}
	switch {
	case action == "" && method == fasthttp.MethodGet:
		s.writeState(ctx, fasthttp.StatusOK, e)
	case action == "" && method == fasthttp.MethodDelete:
		s.deps.Store.Delete(id)
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	case action == "select" && method == fasthttp.MethodPost:
		s.handleSelect(ctx, e)
	case action == "move" && method == fasthttp.MethodPost:
		s.handleMove(ctx, e, false)
	case action == "remote" && method == fasthttp.MethodPost:
		s.handleMove(ctx, e, true)
	case action == "resign" && method == fasthttp.MethodPost:
		s.handleResign(ctx, e)
	case action == "board.png" && method == fasthttp.MethodGet:
		s.handleBoard(ctx, e)
	default:
		s.methodNotAllowed(ctx)
	}
}

func (s *Server) decode(ctx *fasthttp.RequestCtx, v any) bool {
	body := ctx.PostBody()
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		s.writeError(ctx, badRequest{detail: err.Error()})
		return false
	}
	return true
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.log.Error("api_encode_failed", zap.Error(err))
		ctx.Error("encode failure", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(raw)
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, err error) {
	status, de := toDomainError(s.deps.Messages, err)
	if status >= fasthttp.StatusInternalServerError {
		s.log.Error("api_error", zap.String("path", string(ctx.Path())), zap.Error(err))
	}
	s.writeJSON(ctx, status, xqdto.ErrorResponse{Error: de})
}

func (s *Server) writeState(ctx *fasthttp.RequestCtx, status int, e *entry) {
	s.writeJSON(ctx, status, s.stateOf(e))
}

func (s *Server) stateOf(e *entry) *xqdto.SessionState {
	st := stateOf(e.id, e.sess.Snapshot())
	st.Outcome = e.ending()
	return st
}

func (s *Server) methodNotAllowed(ctx *fasthttp.RequestCtx) {
	s.writeJSON(ctx, fasthttp.StatusMethodNotAllowed, xqdto.ErrorResponse{
		Error: xqdto.DomainError{Code: xqdto.CodeBadRequest, Message: "method not allowed"},
	})
}
