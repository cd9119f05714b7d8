package api

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/Cheese-Xiangqi/internal/session"
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
	"go.uber.org/zap"
)

var ErrTooManySessions = errors.New("too many sessions")

type entry struct {
	id      string
	sess    *session.Session
	created time.Time
	touched time.Time

	mu      sync.Mutex
	last    *session.MoveEvent
	outcome string
}

func (e *entry) lastMove() *session.MoveEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

func (e *entry) ending() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outcome
}

// Store keeps local sessions in memory. Idle sessions expire after ttl.
type Store struct {
	mu    sync.Mutex
	items map[string]*entry
	max   int
	ttl   time.Duration
	now   func() time.Time
	opts  []session.Option
}

func NewStore(max int, ttl time.Duration, opts ...session.Option) *Store {
	return &Store{
		items: make(map[string]*entry),
		max:   max,
		ttl:   ttl,
		now:   time.Now,
		opts:  opts,
	}
}

// Create starts a new session for localSide.
func (s *Store) Create(localSide xiangqi.Side, networked bool, log *zap.Logger) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepLocked(now)
	if s.max > 0 && len(s.items) >= s.max {
		return nil, ErrTooManySessions
	}
	id := uuid.NewString()
	opts := append([]session.Option{}, s.opts...)
	opts = append(opts, session.WithLogger(log.With(zap.String("session_id", id))))
	e := &entry{id: id, sess: session.New(opts...), created: now, touched: now}
	e.sess.OnMoveApplied(func(ev session.MoveEvent) {
		e.mu.Lock()
		e.last = &ev
		e.mu.Unlock()
	})
	e.sess.OnGameEnded(func(ev session.EndEvent) {
		e.mu.Lock()
		e.outcome = ev.Reason
		e.mu.Unlock()
	})
	e.sess.Start(localSide, networked)
	s.items[id] = e
	return e, nil
}

func (s *Store) Get(id string) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if s.expired(e, now) {
		delete(s.items, id)
		return nil, false
	}
	e.touched = now
	return e, true
}

func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[id]
	delete(s.items, id)
	return ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) expired(e *entry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.touched) > s.ttl
}

func (s *Store) sweepLocked(now time.Time) {
	for id, e := range s.items {
		if s.expired(e, now) {
			delete(s.items, id)
		}
	}
}
