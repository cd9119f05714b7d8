package relay

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/Cheese-Xiangqi/internal/obslog"
	"github.com/park285/Cheese-Xiangqi/internal/peer"
	"github.com/park285/Cheese-Xiangqi/internal/pvpxiangqi"
	"github.com/park285/Cheese-Xiangqi/internal/session"
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Recorder keeps the authoritative record of relayed games. Moves are given in
// Red-bottom coordinates.
type Recorder interface {
	CreateGame(ctx context.Context, challengerID, challengerName, targetID, targetName, colorChoice, room string) (*pvpxiangqi.Game, error)
	RecordMove(ctx context.Context, gameID string, side xiangqi.Side, mv xiangqi.Move) (*pvpxiangqi.Game, error)
	Forfeit(ctx context.Context, gameID string, loser xiangqi.Side, method string) (*pvpxiangqi.Game, error)
}

const (
	HeaderPlayerID   = "X-Player-ID"
	HeaderPlayerName = "X-Player-Name"

	writeTimeout = 5 * time.Second
)

type Option func(*Relay)

func WithRecorder(r Recorder) Option {
	return func(rl *Relay) { rl.rec = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(rl *Relay) {
		if l != nil {
			rl.log = l
		}
	}
}

// WithOriginPatterns allows cross-origin browser peers.
func WithOriginPatterns(patterns ...string) Option {
	return func(rl *Relay) { rl.origins = patterns }
}

// Relay pairs websocket peers two at a time and forwards frames between them.
type Relay struct {
	rec     Recorder
	log     *zap.Logger
	origins []string

	mu      sync.Mutex
	waiting *client
	active  int
}

func New(opts ...Option) *Relay {
	r := &Relay{log: obslog.L()}
	for _, o := range opts {
		o(r)
	}
	return r
}

type client struct {
	id     string
	name   string
	conn   *websocket.Conn
	writeM sync.Mutex

	// guarded by Relay.mu
	match *match
	side  xiangqi.Side
}

type match struct {
	id       string
	red      *client
	black    *client
	over     bool
	recorded bool
	// winner is set when a recorded move ended the game.
	winner *xiangqi.Side
}

func (m *match) partner(c *client) *client {
	if m.red == c {
		return m.black
	}
	return m.red
}

func (c *client) write(msg peer.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	c.writeM.Lock()
	defer c.writeM.Unlock()
	return wsjson.Write(ctx, c.conn, msg)
}

func (c *client) send(t peer.MessageType, data any) error {
	msg, err := peer.NewMessage(t, data)
	if err != nil {
		return err
	}
	return c.write(msg)
}

func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := websocket.Accept(w, req, &websocket.AcceptOptions{
		OriginPatterns:  r.origins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		r.log.Warn("relay_accept_failed", zap.Error(err))
		return
	}
	c := &client{
		id:   playerID(req),
		name: strings.TrimSpace(req.Header.Get(HeaderPlayerName)),
		conn: conn,
	}
	if c.name == "" {
		c.name = c.id
	}
	r.log.Info("relay_connect", zap.String("player_id", c.id), zap.String("remote", req.RemoteAddr))
	r.serve(req.Context(), c)
}

func playerID(req *http.Request) string {
	if id := strings.TrimSpace(req.Header.Get(HeaderPlayerID)); id != "" {
		return id
	}
	if id := strings.TrimSpace(req.URL.Query().Get("player")); id != "" {
		return id
	}
	return "anon-" + uuid.NewString()
}

func (r *Relay) serve(ctx context.Context, c *client) {
	defer r.drop(c)
	hello := false
	for {
		var msg peer.Message
		if err := wsjson.Read(ctx, c.conn, &msg); err != nil {
			var ce websocket.CloseError
			if !errors.As(err, &ce) {
				r.log.Debug("relay_read_closed", zap.String("player_id", c.id), zap.Error(err))
			}
			return
		}
		switch msg.Type {
		case peer.TypeHello:
			if !hello {
				hello = true
				r.enqueue(ctx, c)
			}
		case peer.TypeMove:
			r.relayMove(ctx, c, msg)
		case peer.TypeGameEnd:
			r.relayEnd(ctx, c, msg)
		case peer.TypeError:
			r.forward(c, msg)
		default:
			_ = c.send(peer.TypeError, peer.ErrorPayload{Code: peer.CodeBadFrame, Message: "unexpected " + msg.Type.String()})
		}
	}
}

// enqueue parks c or pairs it with the waiting peer.
func (r *Relay) enqueue(ctx context.Context, c *client) {
	r.mu.Lock()
	other := r.waiting
	if other == nil || other == c {
		r.waiting = c
		r.mu.Unlock()
		r.log.Info("relay_waiting", zap.String("player_id", c.id))
		return
	}
	r.waiting = nil

	red, black := other, c
	if n, _ := rand.Int(rand.Reader, big.NewInt(2)); n != nil && n.Int64() == 1 {
		red, black = c, other
	}
	m := &match{id: "relay-" + uuid.NewString(), red: red, black: black}
	red.match, red.side = m, xiangqi.Red
	black.match, black.side = m, xiangqi.Black
	r.active++
	r.mu.Unlock()

	if r.rec != nil {
		g, err := r.rec.CreateGame(ctx, red.id, red.name, black.id, black.name, "red", "")
		if err != nil {
			r.log.Warn("relay_record_create_failed", zap.String("match_id", m.id), zap.Error(err))
		} else {
			r.mu.Lock()
			m.id, m.recorded = g.ID, true
			r.mu.Unlock()
		}
	}

	r.log.Info("relay_pair",
		zap.String("match_id", m.id),
		zap.String("red_id", red.id),
		zap.String("black_id", black.id),
	)
	for _, p := range []*client{red, black} {
		_ = p.send(peer.TypeMatchSuccess, nil)
	}
	_ = red.send(peer.TypeGameStart, peer.GameStart{Color: xiangqi.Red})
	_ = black.send(peer.TypeGameStart, peer.GameStart{Color: xiangqi.Black})
}

func (r *Relay) relayMove(ctx context.Context, c *client, msg peer.Message) {
	r.mu.Lock()
	m, side := c.match, c.side
	var over, recorded bool
	var gameID string
	if m != nil {
		over, recorded, gameID = m.over, m.recorded, m.id
	}
	r.mu.Unlock()
	if m == nil {
		_ = c.send(peer.TypeError, peer.ErrorPayload{Code: peer.CodeNotMatched, Message: "no opponent yet"})
		return
	}
	if over {
		_ = c.send(peer.TypeError, peer.ErrorPayload{Code: peer.CodeGameOver, Message: "game is over"})
		return
	}

	var mp peer.MovePayload
	if err := msg.Decode(&mp); err != nil {
		_ = c.send(peer.TypeError, peer.ErrorPayload{Code: peer.CodeBadFrame, Message: err.Error()})
		return
	}
	if recorded {
		canon := mp
		if side == xiangqi.Black {
			canon = mp.Mirror()
		}
		g, err := r.rec.RecordMove(ctx, gameID, side, canon.Move())
		if err != nil {
			r.log.Warn("relay_move_rejected",
				zap.String("match_id", gameID),
				zap.String("side", side.String()),
				zap.String("move", canon.Move().String()),
				zap.Error(err),
			)
			_ = c.send(peer.TypeError, peer.ErrorPayload{Code: peer.CodeIllegalMove, Message: err.Error()})
			return
		}
		if !g.Active() {
			r.mu.Lock()
			w := side
			m.winner = &w
			r.mu.Unlock()
			r.finish(m)
		}
	}
	r.forward(c, msg)
}

func (r *Relay) relayEnd(ctx context.Context, c *client, msg peer.Message) {
	r.mu.Lock()
	m, side := c.match, c.side
	var gameID string
	var recorded, over bool
	var decided *xiangqi.Side
	if m != nil {
		gameID, recorded, over, decided = m.id, m.recorded, m.over, m.winner
	}
	r.mu.Unlock()
	if m == nil {
		return
	}
	var ge peer.GameEnd
	if err := msg.Decode(&ge); err != nil {
		_ = c.send(peer.TypeError, peer.ErrorPayload{Code: peer.CodeBadFrame, Message: err.Error()})
		return
	}
	if recorded {
		if code, reason := checkResult(ge, side, over, decided); code != "" {
			r.log.Warn("relay_end_rejected",
				zap.String("match_id", gameID),
				zap.String("side", side.String()),
				zap.String("claimed_winner", ge.Winner.String()),
				zap.String("reason", ge.Reason),
			)
			_ = c.send(peer.TypeError, peer.ErrorPayload{Code: code, Message: reason})
			return
		}
	}
	if r.finish(m) && recorded {
		method := ge.Reason
		if method == "" {
			method = session.ReasonResignation
		}
		if _, err := r.rec.Forfeit(ctx, gameID, side, method); err != nil && !errors.Is(err, pvpxiangqi.ErrNotActive) {
			r.log.Warn("relay_record_end_failed", zap.String("match_id", gameID), zap.Error(err))
		}
	}
	r.forward(c, msg)
}

// checkResult vets a game_end claim on a recorded match. While the game runs
// the sender may only concede; a capture must already be on record. It
// returns an error code and message, or "" when the claim stands.
func checkResult(ge peer.GameEnd, sender xiangqi.Side, over bool, decided *xiangqi.Side) (string, string) {
	if ge.Reason == session.ReasonGeneralCaptured {
		if !over || decided == nil || *decided != ge.Winner {
			return peer.CodeInvalidResult, "capture not on record"
		}
		return "", ""
	}
	if over {
		return peer.CodeGameOver, "game is over"
	}
	if ge.Winner != sender.Opponent() {
		return peer.CodeInvalidResult, "only a concession can end a running game"
	}
	return "", ""
}

// finish marks m over and reports whether this call did it.
func (r *Relay) finish(m *match) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.over {
		return false
	}
	m.over = true
	r.active--
	r.log.Info("relay_match_over", zap.String("match_id", m.id))
	return true
}

func (r *Relay) forward(c *client, msg peer.Message) {
	r.mu.Lock()
	var to *client
	if c.match != nil {
		to = c.match.partner(c)
	}
	r.mu.Unlock()
	if to == nil {
		return
	}
	if err := to.write(msg); err != nil {
		r.log.Warn("relay_forward_failed", zap.String("to", to.id), zap.String("type", msg.Type.String()), zap.Error(err))
	}
}

// drop removes a disconnected client; an unfinished match is forfeited.
func (r *Relay) drop(c *client) {
	r.mu.Lock()
	if r.waiting == c {
		r.waiting = nil
	}
	m, side := c.match, c.side
	var gameID string
	var recorded bool
	if m != nil {
		gameID, recorded = m.id, m.recorded
	}
	r.mu.Unlock()
	_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
	r.log.Info("relay_disconnect", zap.String("player_id", c.id))

	if m == nil || !r.finish(m) {
		return
	}
	winner := side.Opponent()
	if recorded {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if _, err := r.rec.Forfeit(ctx, gameID, side, "disconnect"); err != nil && !errors.Is(err, pvpxiangqi.ErrNotActive) {
			r.log.Warn("relay_record_end_failed", zap.String("match_id", gameID), zap.Error(err))
		}
		cancel()
	}
	if to := m.partner(c); to != nil {
		_ = to.send(peer.TypeGameEnd, peer.GameEnd{Winner: winner, Reason: "disconnect"})
	}
}

// Active returns the number of matches in progress.
func (r *Relay) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Waiting reports whether a peer is queued for an opponent.
func (r *Relay) Waiting() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waiting != nil
}
