package search

import (
	"context"
	"sync"
	"time"

	"cscexplorer/internal/search/metrics"
)

// Searcher runs one search to completion.
type Searcher interface {
	Search(ctx context.Context, criteria []Criterion) (ResultSet, error)
}

// Session serializes searches for one explorer client. Starting a search
// cancels any search still running in the session, and only the newest
// search may publish its results.
type Session struct {
	id       string
	searcher Searcher
	now      func() time.Time

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	last       ResultSet
	hasLast    bool
	lastUsed   time.Time
	metrics    *metrics.Metrics
}

func NewSession(id string, searcher Searcher) *Session {
	return &Session{id: id, searcher: searcher, now: time.Now, lastUsed: time.Now()}
}

func (s *Session) ID() string {
	return s.id
}

// Search runs criteria and publishes the result as the session's last
// results. It returns ErrSuperseded when another search started in the
// meantime; the superseded result is never published.
func (s *Session) Search(ctx context.Context, criteria []Criterion) (ResultSet, error) {
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	s.cancel = cancel
	s.lastUsed = s.now()
	s.mu.Unlock()

	result, err := s.searcher.Search(runCtx, criteria)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		cancel()
		s.metrics.IncrementSuperseded()
		return ResultSet{}, ErrSuperseded
	}
	s.cancel = nil
	cancel()
	if err != nil {
		return ResultSet{}, err
	}
	result.Generation = gen
	s.last = result
	s.hasLast = true
	s.lastUsed = s.now()
	return result, nil
}

// LastResults returns the most recently published result set. The boolean is
// false until a search has completed.
func (s *Session) LastResults() (ResultSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = s.now()
	return s.last, s.hasLast
}

// Generation returns the number of searches started in the session.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Session) idleSince(t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel == nil && s.lastUsed.Before(t)
}

// Sessions holds explorer sessions by id.
type Sessions struct {
	searcher Searcher
	metrics  *metrics.Metrics
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

type SessionsOption func(*Sessions)

func WithSessionMetrics(m *metrics.Metrics) SessionsOption {
	return func(s *Sessions) {
		s.metrics = m
	}
}

func WithSessionClock(now func() time.Time) SessionsOption {
	return func(s *Sessions) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSessions(searcher Searcher, opts ...SessionsOption) *Sessions {
	s := &Sessions{
		searcher: searcher,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the session for id, creating it on first use.
func (s *Sessions) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess := NewSession(id, s.searcher)
	sess.now = s.now
	sess.lastUsed = s.now()
	sess.metrics = s.metrics
	s.sessions[id] = sess
	s.metrics.SetSessions(len(s.sessions))
	return sess
}

// Lookup returns an existing session without creating one.
func (s *Sessions) Lookup(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Prune drops sessions with no running search that have been unused for
// longer than idle, returning how many were removed.
func (s *Sessions) Prune(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.idleSince(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	s.metrics.SetSessions(len(s.sessions))
	return removed
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
