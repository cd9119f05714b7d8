package api

import (
	"errors"

	"github.com/park285/Cheese-Xiangqi/internal/lobby"
	"github.com/park285/Cheese-Xiangqi/internal/msgcat"
	"github.com/park285/Cheese-Xiangqi/internal/pvpxiangqi"
	"github.com/park285/Cheese-Xiangqi/internal/session"
	"github.com/park285/Cheese-Xiangqi/pkg/xqdto"
	"github.com/valyala/fasthttp"
)

// badRequest carries a client input problem that has no sentinel.
type badRequest struct{ detail string }

func (e badRequest) Error() string { return e.detail }

type notFound struct{ id string }

func (e notFound) Error() string { return "not found: " + e.id }

// toDomainError maps package errors to an HTTP status and a wire error.
func toDomainError(msgs *msgcat.Catalog, err error) (int, xqdto.DomainError) {
	var br badRequest
	var nf notFound
	switch {
	case errors.As(err, &br):
		return fasthttp.StatusBadRequest, de(msgs, xqdto.CodeBadRequest, "error.bad_request", map[string]any{"Detail": br.detail}, false)
	case errors.As(err, &nf):
		return fasthttp.StatusNotFound, de(msgs, xqdto.CodeNotFound, "error.session_not_found", map[string]any{"ID": nf.id}, false)
	case errors.Is(err, ErrTooManySessions):
		return fasthttp.StatusServiceUnavailable, de(msgs, xqdto.CodeTooManySessions, "error.too_many_sessions", nil, true)
	case errors.Is(err, session.ErrNotStarted):
		return fasthttp.StatusConflict, de(msgs, xqdto.CodeNotStarted, "error.not_started", nil, false)
	case errors.Is(err, session.ErrGameOver), errors.Is(err, pvpxiangqi.ErrNotActive):
		return fasthttp.StatusConflict, de(msgs, xqdto.CodeGameOver, "error.game_over", nil, false)
	case errors.Is(err, session.ErrNoPiece):
		return fasthttp.StatusUnprocessableEntity, xqdto.DomainError{Code: xqdto.CodeNoPiece, Message: err.Error()}
	case errors.Is(err, session.ErrNotYourTurn), errors.Is(err, pvpxiangqi.ErrNotYourTurn):
		return fasthttp.StatusConflict, de(msgs, xqdto.CodeNotYourTurn, "error.not_your_turn", nil, false)
	case errors.Is(err, session.ErrIllegalMove), errors.Is(err, pvpxiangqi.ErrIllegalMove),
		errors.Is(err, session.ErrRemoteRejected), errors.Is(err, session.ErrNotNetworked):
		return fasthttp.StatusUnprocessableEntity, xqdto.DomainError{Code: xqdto.CodeIllegalMove, Message: err.Error()}
	case errors.Is(err, pvpxiangqi.ErrConcurrentUpdate):
		return fasthttp.StatusConflict, de(msgs, xqdto.CodeConcurrentUpdate, "error.concurrent_update", nil, true)
	case errors.Is(err, pvpxiangqi.ErrGameNotFound):
		return fasthttp.StatusNotFound, de(msgs, xqdto.CodeNotFound, "error.no_active_game", nil, false)
	case errors.Is(err, pvpxiangqi.ErrNotParticipant):
		return fasthttp.StatusForbidden, de(msgs, xqdto.CodeNotParticipant, "error.not_participant", nil, false)
	case errors.Is(err, lobby.ErrGone):
		return fasthttp.StatusNotFound, de(msgs, xqdto.CodeLobbyGone, "error.lobby_gone", nil, false)
	case errors.Is(err, lobby.ErrFull), errors.Is(err, lobby.ErrAlreadyActive), errors.Is(err, lobby.ErrAlreadyJoined):
		return fasthttp.StatusConflict, xqdto.DomainError{Code: xqdto.CodeLobbyFull, Message: err.Error()}
	case errors.Is(err, lobby.ErrPlayerBusy), errors.Is(err, lobby.ErrCreatorHasLobby):
		return fasthttp.StatusConflict, de(msgs, xqdto.CodePlayerBusy, "error.player_busy", nil, false)
	case errors.Is(err, lobby.ErrInvalidArgs):
		return fasthttp.StatusBadRequest, de(msgs, xqdto.CodeBadRequest, "error.bad_request", map[string]any{"Detail": err.Error()}, false)
	}
	return fasthttp.StatusInternalServerError, de(msgs, xqdto.CodeInternal, "error.internal", nil, true)
}

func de(msgs *msgcat.Catalog, code, key string, data any, retry bool) xqdto.DomainError {
	return xqdto.DomainError{Code: code, Message: msgs.Text(key, data), Retryable: retry}
}
