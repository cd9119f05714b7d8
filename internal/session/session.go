package session

import (
	"fmt"
	"sync"

	"github.com/park285/Cheese-Xiangqi/internal/obslog"
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
	"go.uber.org/zap"
)

type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTrustRemotePeer applies remote moves without re-validating them.
func WithTrustRemotePeer(trust bool) Option {
	return func(s *Session) { s.trustRemote = trust }
}

type moveCallbackEntry struct {
	id       int
	callback MoveCallback
}

type endCallbackEntry struct {
	id       int
	callback EndCallback
}

type dispatchItem struct {
	move *MoveEvent
	end  *EndEvent
}

// Session serializes every transition of one game behind a single mutex.
// Events are queued in commit order while the state lock is held and
// delivered with no session lock held, so callbacks may read or mutate the
// session. An event may be delivered by whichever caller is already draining
// the queue.
type Session struct {
	mu          sync.Mutex
	board       *xiangqi.Board
	started     bool
	localSide   xiangqi.Side
	networked   bool
	turn        xiangqi.Role
	selected    int
	selectedPos xiangqi.Position
	winner      *xiangqi.Side
	moves       []xiangqi.Move

	trustRemote bool
	log         *zap.Logger

	qM       sync.Mutex
	pending  []dispatchItem
	draining bool

	cbM      sync.RWMutex
	moveCbs  []moveCallbackEntry
	endCbs   []endCallbackEntry
	nextCbID int
}

func New(opts ...Option) *Session {
	s := &Session{log: obslog.L()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start resets the board to the standard setup with localSide at the bottom.
// Red always moves first.
func (s *Session) Start(localSide xiangqi.Side, networked bool) {
	s.mu.Lock()
	s.board = xiangqi.StandardBoard(localSide)
	s.started = true
	s.localSide = localSide
	s.networked = networked
	s.turn = xiangqi.RoleOf(xiangqi.Red, localSide)
	s.selected = 0
	s.winner = nil
	s.moves = nil
	s.mu.Unlock()

	s.log.Info("session_start",
		zap.String("local_side", localSide.String()),
		zap.Bool("networked", networked),
		zap.Bool("trust_remote", s.trustRemote),
	)
}

// Select implements click semantics: pick a movable piece, switch to another
// own piece, or try to move the selected piece onto pos.
func (s *Session) Select(pos xiangqi.Position) Transition {
	s.mu.Lock()
	if !s.started || s.winner != nil || !pos.InBounds() {
		s.mu.Unlock()
		return TransitionNone
	}
	occ, occupied := s.board.Get(pos)

	if s.selected == 0 {
		if !occupied || !s.selectableLocked(occ) {
			s.mu.Unlock()
			return TransitionNone
		}
		s.selectLocked(occ)
		s.mu.Unlock()
		return TransitionSelected
	}

	cur, _ := s.board.Get(s.selectedPos)
	if occupied && occ.Side == cur.Side {
		if occ.ID == cur.ID {
			s.mu.Unlock()
			return TransitionNone
		}
		s.clearSelectionLocked()
		s.selectLocked(occ)
		s.mu.Unlock()
		return TransitionReselected
	}

	if !xiangqi.IsLegal(cur, pos, s.board) {
		s.clearSelectionLocked()
		s.mu.Unlock()
		s.log.Debug("session_illegal_target",
			zap.String("from", cur.Position.String()),
			zap.String("to", pos.String()),
			zap.String("piece", cur.Kind.String()),
		)
		return TransitionCleared
	}
	ev, end := s.applyLocked(cur.Position, pos, OriginLocal)
	s.dispatchUnlock(ev, end)
	if end != nil {
		return TransitionEnded
	}
	return TransitionMoved
}

// SubmitMove validates and applies a locally originated move.
func (s *Session) SubmitMove(from, to xiangqi.Position) error {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if !from.InBounds() || !to.InBounds() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v -> %v off board", ErrIllegalMove, from, to)
	}
	piece, ok := s.board.Get(from)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoPiece, from)
	}
	if !s.selectableLocked(piece) {
		s.mu.Unlock()
		return ErrNotYourTurn
	}
	if !xiangqi.IsLegal(piece, to, s.board) {
		s.clearSelectionLocked()
		s.mu.Unlock()
		return fmt.Errorf("%w: %s %s", ErrIllegalMove, piece.Kind, xiangqi.Move{From: from, To: to})
	}
	ev, end := s.applyLocked(from, to, OriginLocal)
	s.dispatchUnlock(ev, end)
	return nil
}

// ApplyRemoteMove applies a move reported by the networked peer. Coordinates
// must already be in the local orientation. The local turn gate is skipped;
// unless the session trusts its peer the move must still be the opponent's
// and pass the validator.
func (s *Session) ApplyRemoteMove(from, to xiangqi.Position) error {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if !s.networked {
		s.mu.Unlock()
		return ErrNotNetworked
	}
	if !from.InBounds() || !to.InBounds() || from == to {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v -> %v", ErrRemoteRejected, from, to)
	}
	piece, ok := s.board.Get(from)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrRemoteRejected, ErrNoPiece)
	}
	if !s.trustRemote {
		var reason string
		switch {
		case piece.Role != xiangqi.Opponent:
			reason = "piece belongs to the local player"
		case s.turn != xiangqi.Opponent:
			reason = "out of turn"
		case !xiangqi.IsLegal(piece, to, s.board):
			reason = "illegal for " + piece.Kind.String()
		}
		if reason != "" {
			s.mu.Unlock()
			s.log.Warn("session_remote_rejected",
				zap.String("move", xiangqi.Move{From: from, To: to}.String()),
				zap.String("reason", reason),
			)
			return fmt.Errorf("%w: %s", ErrRemoteRejected, reason)
		}
	}
	ev, end := s.applyLocked(from, to, OriginRemote)
	s.dispatchUnlock(ev, end)
	return nil
}

// Conclude ends the game without a move, e.g. on resignation or when the
// transport reports the result. It is a no-op on a terminal session.
func (s *Session) Conclude(winner xiangqi.Side, reason string) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if s.winner != nil {
		s.mu.Unlock()
		return nil
	}
	s.clearSelectionLocked()
	w := winner
	s.winner = &w
	end := &EndEvent{Winner: winner, Reason: reason}
	s.dispatchUnlock(nil, end)
	return nil
}

// Resign concedes the game. A networked session resigns for the local side;
// hot-seat play resigns for the side to move. It returns the winner.
func (s *Session) Resign() (xiangqi.Side, error) {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	loser := s.localSide
	if !s.networked && s.turn == xiangqi.Opponent {
		loser = s.localSide.Opponent()
	}
	s.clearSelectionLocked()
	w := loser.Opponent()
	s.winner = &w
	s.dispatchUnlock(nil, &EndEvent{Winner: w, Reason: ReasonResignation})
	return w, nil
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		State:     s.stateLocked(),
		LocalSide: s.localSide,
		Networked: s.networked,
		Turn:      s.turn,
		Selected:  s.selected,
	}
	if s.board != nil {
		snap.Board = s.board.Clone()
	}
	if s.winner != nil {
		w := *s.winner
		snap.Winner = &w
	}
	snap.Moves = append([]xiangqi.Move(nil), s.moves...)
	return snap
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) OnMoveApplied(cb MoveCallback) int {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	s.nextCbID++
	s.moveCbs = append(s.moveCbs, moveCallbackEntry{id: s.nextCbID, callback: cb})
	return s.nextCbID
}

func (s *Session) OnGameEnded(cb EndCallback) int {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	s.nextCbID++
	s.endCbs = append(s.endCbs, endCallbackEntry{id: s.nextCbID, callback: cb})
	return s.nextCbID
}

// RemoveCallback unregisters a move or end callback by the id it was given.
func (s *Session) RemoveCallback(id int) {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	for i, cb := range s.moveCbs {
		if cb.id == id {
			s.moveCbs = append(s.moveCbs[:i], s.moveCbs[i+1:]...)
			return
		}
	}
	for i, cb := range s.endCbs {
		if cb.id == id {
			s.endCbs = append(s.endCbs[:i], s.endCbs[i+1:]...)
			return
		}
	}
}

func (s *Session) readyLocked() error {
	if !s.started {
		return ErrNotStarted
	}
	if s.winner != nil {
		return ErrGameOver
	}
	return nil
}

func (s *Session) stateLocked() State {
	switch {
	case !s.started:
		return StateIdle
	case s.winner != nil:
		return StateTerminal
	case s.selected != 0:
		return StatePieceSelected
	default:
		return StateAwaitingSelection
	}
}

// selectableLocked is the local turn gate. In a networked game only our own
// pieces may be picked; hot-seat play lets whichever role is on turn pick.
func (s *Session) selectableLocked(p xiangqi.Piece) bool {
	if s.networked {
		return p.Role == xiangqi.Self && s.turn == xiangqi.Self
	}
	return p.Role == s.turn
}

func (s *Session) selectLocked(p xiangqi.Piece) {
	s.board.SetSelected(p.Position, true)
	s.selected = p.ID
	s.selectedPos = p.Position
}

func (s *Session) clearSelectionLocked() {
	if s.selected == 0 {
		return
	}
	s.board.SetSelected(s.selectedPos, false)
	s.selected = 0
}

// applyLocked commits a validated move. The caller still holds s.mu and must
// pass the returned events to dispatchUnlock.
func (s *Session) applyLocked(from, to xiangqi.Position, origin Origin) (*MoveEvent, *EndEvent) {
	s.clearSelectionLocked()
	moved, captured, err := s.board.Relocate(from, to)
	if err != nil {
		// unreachable: callers checked the source square
		panic(err)
	}
	s.moves = append(s.moves, xiangqi.Move{From: from, To: to})
	s.turn = moved.Role.Other()

	ev := &MoveEvent{From: from, To: to, Piece: moved, Captured: captured, Origin: origin, Ply: len(s.moves)}
	fields := []zap.Field{
		zap.String("move", ev.Move().String()),
		zap.String("piece", moved.Kind.String()),
		zap.String("side", moved.Side.String()),
		zap.String("origin", origin.String()),
		zap.Int("ply", ev.Ply),
	}
	if captured != nil {
		fields = append(fields, zap.String("captured", captured.Kind.String()))
	}
	s.log.Info("session_move_applied", fields...)

	if captured != nil && captured.Kind == xiangqi.General {
		w := moved.Side
		s.winner = &w
		return ev, &EndEvent{Winner: w, Reason: ReasonGeneralCaptured}
	}
	return ev, nil
}

// dispatchUnlock queues the events, releases s.mu and drains the queue.
// Queueing under s.mu keeps listeners in commit order.
func (s *Session) dispatchUnlock(ev *MoveEvent, end *EndEvent) {
	s.qM.Lock()
	s.pending = append(s.pending, dispatchItem{move: ev, end: end})
	s.qM.Unlock()
	s.mu.Unlock()
	s.drain()
}

func (s *Session) drain() {
	s.qM.Lock()
	if s.draining {
		s.qM.Unlock()
		return
	}
	s.draining = true
	s.qM.Unlock()
	finished := false
	defer func() {
		if !finished {
			// a callback panicked; let the next caller drain
			s.qM.Lock()
			s.draining = false
			s.qM.Unlock()
		}
	}()
	for {
		item, ok := s.nextPending()
		if !ok {
			finished = true
			return
		}
		s.deliver(item.move, item.end)
	}
}

// nextPending pops the oldest event. On an empty queue it releases the
// draining flag in the same critical section, so no event is stranded.
func (s *Session) nextPending() (dispatchItem, bool) {
	s.qM.Lock()
	defer s.qM.Unlock()
	if len(s.pending) == 0 {
		s.draining = false
		return dispatchItem{}, false
	}
	item := s.pending[0]
	s.pending = s.pending[1:]
	return item, true
}

func (s *Session) deliver(ev *MoveEvent, end *EndEvent) {
	if end != nil {
		s.log.Info("session_game_ended",
			zap.String("winner", end.Winner.String()),
			zap.String("reason", end.Reason),
		)
	}

	s.cbM.RLock()
	moveCbs := make([]moveCallbackEntry, len(s.moveCbs))
	copy(moveCbs, s.moveCbs)
	endCbs := make([]endCallbackEntry, len(s.endCbs))
	copy(endCbs, s.endCbs)
	s.cbM.RUnlock()

	if ev != nil {
		for _, entry := range moveCbs {
			if entry.callback != nil {
				entry.callback(*ev)
			}
		}
	}
	if end != nil {
		for _, entry := range endCbs {
			if entry.callback != nil {
				entry.callback(*end)
			}
		}
	}
}
