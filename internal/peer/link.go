package peer

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/park285/Cheese-Xiangqi/internal/obslog"
	"github.com/park285/Cheese-Xiangqi/internal/session"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type LinkState int

const (
	StateDisconnected LinkState = iota
	StateConnecting
	StateConnected
	StateFailed
	StateClosed
)

func (s LinkState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var ErrNotConnected = errors.New("peer link not connected")

type (
	MessageCallback func(Message)
	StateCallback   func(LinkState)
)

type callbackEntry struct {
	id       int
	callback MessageCallback
}

type stateCallbackEntry struct {
	id       int
	callback StateCallback
}

type LinkOption func(*Link)

func WithPingInterval(d time.Duration) LinkOption {
	return func(l *Link) {
		if d > 0 {
			l.pingInterval = d
		}
	}
}

// WithHeader adds handshake headers, e.g. X-Player-ID.
func WithHeader(key, value string) LinkOption {
	return func(l *Link) { l.header.Set(key, value) }
}

func WithLinkLogger(log *zap.Logger) LinkOption {
	return func(l *Link) {
		if log != nil {
			l.log = log
		}
	}
}

// Link connects a networked session to a relay. Incoming moves are mirrored
// into the local orientation; local moves are sent as-is.
type Link struct {
	url    string
	sess   *session.Session
	log    *zap.Logger
	header http.Header

	conn   *websocket.Conn
	writeM sync.Mutex

	state  LinkState
	stateM sync.RWMutex

	msgCbs   []callbackEntry
	stateCbs []stateCallbackEntry
	nextCbID int
	cbM      sync.RWMutex

	moveCbID int
	endCbID  int
	// set while a game_end from the peer is being applied, and when the last
	// committed move came from the peer
	peerEnded  atomic.Bool
	lastRemote atomic.Bool

	pingInterval time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

func NewLink(url string, sess *session.Session, opts ...LinkOption) *Link {
	l := &Link{
		url:          url,
		sess:         sess,
		log:          obslog.L(),
		header:       http.Header{},
		state:        StateDisconnected,
		pingInterval: 30 * time.Second,
		stopCh:       make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Connect dials the relay, announces itself and starts the read and ping loops.
func (l *Link) Connect(ctx context.Context) error {
	l.stateM.RLock()
	st := l.state
	l.stateM.RUnlock()
	switch st {
	case StateConnected, StateConnecting:
		return nil
	case StateClosed:
		return ErrNotConnected
	}

	l.rootCtx, l.rootCancel = context.WithCancel(context.Background())
	l.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, l.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      l.header,
	})
	if err != nil {
		l.setState(StateFailed)
		return err
	}
	l.conn = conn
	l.setState(StateConnected)

	l.moveCbID = l.sess.OnMoveApplied(l.forwardMove)
	l.endCbID = l.sess.OnGameEnded(l.forwardEnd)

	if err := l.send(ctx, TypeHello, nil); err != nil {
		l.log.Warn("peer_hello_failed", zap.String("url", l.url), zap.Error(err))
	}

	l.wg.Add(2)
	go l.listen()
	go l.pingLoop()
	l.log.Info("peer_connected", zap.String("url", l.url))
	return nil
}

func (l *Link) listen() {
	defer l.wg.Done()
	for {
		var msg Message
		if err := wsjson.Read(l.rootCtx, l.conn, &msg); err != nil {
			if l.isStopping() {
				return
			}
			l.log.Info("peer_read_closed", zap.Error(err))
			l.setState(StateDisconnected)
			return
		}
		l.handle(msg)

		l.cbM.RLock()
		callbacks := make([]callbackEntry, len(l.msgCbs))
		copy(callbacks, l.msgCbs)
		l.cbM.RUnlock()
		for _, entry := range callbacks {
			if entry.callback != nil {
				entry.callback(msg)
			}
		}
	}
}

func (l *Link) handle(msg Message) {
	switch msg.Type {
	case TypeMatchSuccess:
		l.log.Info("peer_match_success")
	case TypeGameStart:
		var gs GameStart
		if err := msg.Decode(&gs); err != nil {
			l.log.Warn("peer_bad_frame", zap.String("type", msg.Type.String()), zap.Error(err))
			return
		}
		l.peerEnded.Store(false)
		l.lastRemote.Store(false)
		l.sess.Start(gs.Color, true)
	case TypeMove:
		var mp MovePayload
		if err := msg.Decode(&mp); err != nil {
			l.log.Warn("peer_bad_frame", zap.String("type", msg.Type.String()), zap.Error(err))
			return
		}
		local := mp.Mirror()
		if err := l.sess.ApplyRemoteMove(local.From, local.To); err != nil {
			l.log.Warn("peer_move_rejected", zap.String("move", local.Move().String()), zap.Error(err))
			_ = l.send(l.rootCtx, TypeError, ErrorPayload{Code: CodeRemoteRejected, Message: err.Error()})
		}
	case TypeGameEnd:
		var ge GameEnd
		if err := msg.Decode(&ge); err != nil {
			l.log.Warn("peer_bad_frame", zap.String("type", msg.Type.String()), zap.Error(err))
			return
		}
		reason := ge.Reason
		if reason == "" {
			reason = "peer"
		}
		l.peerEnded.Store(true)
		if err := l.sess.Conclude(ge.Winner, reason); err != nil {
			l.log.Warn("peer_game_end_ignored", zap.Error(err))
		}
	case TypeError:
		var ep ErrorPayload
		_ = msg.Decode(&ep)
		l.log.Warn("peer_error_frame", zap.String("code", ep.Code), zap.String("message", ep.Message))
	}
}

func (l *Link) forwardMove(ev session.MoveEvent) {
	l.lastRemote.Store(ev.Origin == session.OriginRemote)
	if ev.Origin != session.OriginLocal {
		return
	}
	if err := l.send(l.rootCtx, TypeMove, MovePayload{From: ev.From, To: ev.To}); err != nil {
		l.log.Warn("peer_send_move_failed", zap.String("move", ev.Move().String()), zap.Error(err))
	}
}

// forwardEnd reports endings the peer cannot know about: local captures and
// local concessions.
func (l *Link) forwardEnd(ev session.EndEvent) {
	if l.peerEnded.Load() {
		return
	}
	if ev.Reason == session.ReasonGeneralCaptured && l.lastRemote.Load() {
		return
	}
	if err := l.send(l.rootCtx, TypeGameEnd, GameEnd{Winner: ev.Winner, Reason: ev.Reason}); err != nil {
		l.log.Warn("peer_send_end_failed", zap.Error(err))
	}
}

func (l *Link) send(ctx context.Context, t MessageType, data any) error {
	msg, err := NewMessage(t, data)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	l.writeM.Lock()
	defer l.writeM.Unlock()
	if l.conn == nil || l.State() != StateConnected {
		return ErrNotConnected
	}
	// wsjson.Write is not safe for concurrent use
	return wsjson.Write(ctx, l.conn, msg)
}

func (l *Link) pingLoop() {
	defer l.wg.Done()
	t := time.NewTicker(l.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-l.stopCh:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(l.rootCtx, 3*time.Second)
			err := l.conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				if l.isStopping() {
					return
				}
				l.log.Warn("peer_ping_failed", zap.Error(err))
				l.setState(StateDisconnected)
				_ = l.conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (l *Link) State() LinkState {
	l.stateM.RLock()
	defer l.stateM.RUnlock()
	return l.state
}

func (l *Link) OnMessage(cb MessageCallback) int {
	l.cbM.Lock()
	defer l.cbM.Unlock()
	l.nextCbID++
	l.msgCbs = append(l.msgCbs, callbackEntry{id: l.nextCbID, callback: cb})
	return l.nextCbID
}

func (l *Link) OnStateChange(cb StateCallback) int {
	l.cbM.Lock()
	defer l.cbM.Unlock()
	l.nextCbID++
	l.stateCbs = append(l.stateCbs, stateCallbackEntry{id: l.nextCbID, callback: cb})
	return l.nextCbID
}

// RemoveCallback unregisters a message or state callback.
func (l *Link) RemoveCallback(id int) {
	l.cbM.Lock()
	defer l.cbM.Unlock()
	for i, cb := range l.msgCbs {
		if cb.id == id {
			l.msgCbs = append(l.msgCbs[:i], l.msgCbs[i+1:]...)
			return
		}
	}
	for i, cb := range l.stateCbs {
		if cb.id == id {
			l.stateCbs = append(l.stateCbs[:i], l.stateCbs[i+1:]...)
			return
		}
	}
}

func (l *Link) setState(state LinkState) {
	l.stateM.Lock()
	if l.state == state || l.state == StateClosed {
		l.stateM.Unlock()
		return
	}
	l.state = state
	l.stateM.Unlock()

	l.cbM.RLock()
	callbacks := make([]stateCallbackEntry, len(l.stateCbs))
	copy(callbacks, l.stateCbs)
	l.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

// Close stops the loops and closes the connection. Safe to call more than once.
func (l *Link) Close(ctx context.Context) error {
	first := false
	l.stopOnce.Do(func() {
		first = true
		close(l.stopCh)
	})
	if !first {
		return nil
	}
	l.sess.RemoveCallback(l.moveCbID)
	l.sess.RemoveCallback(l.endCbID)
	l.setState(StateClosed)
	if l.conn != nil {
		_ = l.conn.Close(websocket.StatusNormalClosure, "close")
	}
	if l.rootCancel != nil {
		l.rootCancel()
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (l *Link) isStopping() bool {
	select {
	case <-l.stopCh:
		return true
	default:
		return false
	}
}
