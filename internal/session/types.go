package session

import (
	"errors"

	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
)

var (
	ErrNotStarted     = errors.New("session not started")
	ErrGameOver       = errors.New("game is over")
	ErrNoPiece        = errors.New("no piece on source square")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrIllegalMove    = errors.New("illegal move")
	ErrNotNetworked   = errors.New("session is not networked")
	ErrRemoteRejected = errors.New("remote move rejected")
)

// State is the turn state machine position.
type State int

const (
	StateIdle State = iota
	StateAwaitingSelection
	StatePieceSelected
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateAwaitingSelection:
		return "awaiting_selection"
	case StatePieceSelected:
		return "piece_selected"
	case StateTerminal:
		return "terminal"
	default:
		return "idle"
	}
}

// Transition reports what a Select call did.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionSelected
	TransitionReselected
	TransitionCleared
	TransitionMoved
	TransitionEnded
)

func (t Transition) String() string {
	switch t {
	case TransitionSelected:
		return "selected"
	case TransitionReselected:
		return "reselected"
	case TransitionCleared:
		return "cleared"
	case TransitionMoved:
		return "moved"
	case TransitionEnded:
		return "ended"
	default:
		return "none"
	}
}

// Origin tells callbacks where a move came from.
type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

func (o Origin) String() string {
	if o == OriginRemote {
		return "remote"
	}
	return "local"
}

// MoveEvent is published after a move has been committed to the board.
type MoveEvent struct {
	From     xiangqi.Position
	To       xiangqi.Position
	Piece    xiangqi.Piece
	Captured *xiangqi.Piece
	Origin   Origin
	Ply      int
}

func (e MoveEvent) Move() xiangqi.Move { return xiangqi.Move{From: e.From, To: e.To} }

// End reasons produced by the session itself.
const (
	ReasonGeneralCaptured = "general_captured"
	ReasonResignation     = "resignation"
)

// EndEvent is published once, when the session turns terminal.
type EndEvent struct {
	Winner xiangqi.Side
	Reason string
}

type (
	MoveCallback func(MoveEvent)
	EndCallback  func(EndEvent)
)

// Snapshot is a detached copy of the session; mutating it does not affect the session.
type Snapshot struct {
	State     State
	Board     *xiangqi.Board
	LocalSide xiangqi.Side
	Networked bool
	Turn      xiangqi.Role
	// Selected is the id of the selected piece, 0 when nothing is selected.
	Selected int
	Winner   *xiangqi.Side
	Moves    []xiangqi.Move
}

// TurnSide is the colour that moves next.
func (s Snapshot) TurnSide() xiangqi.Side {
	if s.Turn == xiangqi.Self {
		return s.LocalSide
	}
	return s.LocalSide.Opponent()
}
