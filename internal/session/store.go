package session

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"visioncraft/internal/studio"
)

// Session is one user's studio. Web sessions are keyed by the cookie id,
// bot sessions by chat.
type Session struct {
	ID           string
	Studio       *studio.Controller
	Created      time.Time
	LastActivity time.Time
}

type Options struct {
	// TTL is the inactivity window after which a session is dropped.
	TTL             time.Duration
	CleanupInterval time.Duration
	NewStudio       func() *studio.Controller
	Logger          *slog.Logger
}

type Store struct {
	mu        sync.Mutex
	sessions  *cache.Cache
	ttl       time.Duration
	newStudio func() *studio.Controller
	logger    *slog.Logger
}

func NewStore(opts Options) *Store {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 60 * time.Minute
	}

	cleanup := opts.CleanupInterval
	if cleanup <= 0 {
		cleanup = ttl / 4
		if cleanup < time.Minute {
			cleanup = time.Minute
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	newStudio := opts.NewStudio
	if newStudio == nil {
		newStudio = func() *studio.Controller { return studio.New(studio.Options{Logger: logger}) }
	}

	s := &Store{
		sessions:  cache.New(ttl, cleanup),
		ttl:       ttl,
		newStudio: newStudio,
		logger:    logger,
	}
	s.sessions.OnEvicted(func(id string, v interface{}) {
		sess, ok := v.(*Session)
		if !ok {
			return
		}
		sess.Studio.Close()
		s.logger.Info("session closed", "session_id", id, "age", time.Since(sess.Created).Round(time.Second).String())
	})
	return s
}

// Get returns the session and extends its lifetime.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.sessions.Get(id)
	if !ok {
		return nil, false
	}
	sess := v.(*Session)
	s.touchLocked(sess)
	return sess, true
}

func (s *Store) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getOrCreateLocked(id)
}

// Reset replaces the session's studio with a fresh one.
func (s *Store) Reset(id string) *Session {
	s.Delete(id)
	return s.GetOrCreate(id)
}

func (s *Store) Delete(id string) {
	s.sessions.Delete(id)
}

func (s *Store) Len() int {
	return s.sessions.ItemCount()
}

// Close drops every session and stops their background work.
func (s *Store) Close() {
	for id := range s.sessions.Items() {
		s.sessions.Delete(id)
	}
}

func (s *Store) getOrCreateLocked(id string) *Session {
	if v, ok := s.sessions.Get(id); ok {
		sess := v.(*Session)
		s.touchLocked(sess)
		return sess
	}

	now := time.Now()
	sess := &Session{
		ID:           id,
		Studio:       s.newStudio(),
		Created:      now,
		LastActivity: now,
	}
	s.sessions.SetDefault(id, sess)
	s.logger.Info("session created", "session_id", id)
	return sess
}

func (s *Store) touchLocked(sess *Session) {
	sess.LastActivity = time.Now()
	s.sessions.SetDefault(sess.ID, sess)
}
