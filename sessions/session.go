package sessions

import (
	"sort"
	"sync"
	"time"

	"github.com/alexschlessinger/calmchat/messages"
	"go.uber.org/zap"
)

var _ SessionStore = (*Store)(nil)

// Session is a single conversation held in memory
type Session struct {
	id      string
	history []messages.ChatMessage
	created time.Time
	last    time.Time
	// removed is set by the store when the session leaves the map.
	// A turn that finds it set must start over on a fresh session.
	removed bool
	mu      sync.Mutex
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// History returns a copy of the session history, oldest first
func (s *Session) History() []messages.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CopyHistory(s.history)
}

// Len returns the number of stored messages
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// CreatedAt returns when the session was first referenced
func (s *Session) CreatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

// LastActivity returns the time of the latest turn
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// touch advances last activity; it never moves backwards
func (s *Session) touch(now time.Time) {
	if now.After(s.last) {
		s.last = now
	}
}

// Tx is the view of a locked session handed to Update callbacks.
// It must not be retained past the callback.
type Tx struct {
	session    *Session
	created    bool
	now        time.Time
	maxHistory int
}

// ID returns the session identifier
func (tx *Tx) ID() string { return tx.session.id }

// Created reports whether this update created the session
func (tx *Tx) Created() bool { return tx.created }

// Now returns the store clock reading taken when the lock was acquired
func (tx *Tx) Now() time.Time { return tx.now }

// Len returns the number of stored messages
func (tx *Tx) Len() int { return len(tx.session.history) }

// History returns a copy of the session history, oldest first
func (tx *Tx) History() []messages.ChatMessage { return CopyHistory(tx.session.history) }

// Append adds msg, trims the history to the retention bound and
// records activity. Messages without a timestamp get the lock time.
// It returns the resulting history length.
func (tx *Tx) Append(msg messages.ChatMessage) int {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = tx.now
	}
	s := tx.session
	s.history = TrimHistory(append(s.history, msg), tx.maxHistory)
	s.touch(tx.now)
	return len(s.history)
}

// Store is a thread-safe in-memory session registry.
// The store mutex guards only the map; message history is guarded
// by each session's own mutex. Lock order is always store then session.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	config   *SessionConfig
	now      func() time.Time
}

// StoreOption customizes a Store
type StoreOption func(*Store)

// WithClock replaces time.Now as the store's clock
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty store. A nil config uses DefaultConfig.
func NewStore(config *SessionConfig, opts ...StoreOption) *Store {
	if config == nil {
		config = DefaultConfig()
	}
	s := &Store{
		sessions: make(map[string]*Session),
		config:   config,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the store's session configuration
func (s *Store) Config() *SessionConfig {
	return s.config
}

// GetOrCreate returns the session for id, creating and registering an
// empty one if none exists. The bool reports whether it was created.
func (s *Store) GetOrCreate(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[id]; ok {
		return session, false
	}

	now := s.now()
	session := &Session{
		id:      id,
		created: now,
		last:    now,
	}
	s.sessions[id] = session
	zap.S().Debugw("session_created", "session_id", id)
	return session, true
}

// Get returns the session for id without creating it
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	return session, ok
}

// Remove deletes a session; it is a no-op if the session is absent
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return
	}
	session.mu.Lock()
	session.removed = true
	session.mu.Unlock()
	delete(s.sessions, id)
}

// Update runs fn with the session for id locked, creating the session
// if needed. If the session is removed between lookup and lock, Update
// retries on a fresh session so the mutation is never lost.
func (s *Store) Update(id string, fn func(*Tx)) {
	for {
		session, created := s.GetOrCreate(id)
		if s.apply(session, created, fn) {
			return
		}
	}
}

// UpdateExisting runs fn with the session for id locked. It never
// creates a session and reports false if none is registered.
func (s *Store) UpdateExisting(id string, fn func(*Tx)) bool {
	session, ok := s.Get(id)
	if !ok {
		return false
	}
	return s.apply(session, false, fn)
}

func (s *Store) apply(session *Session, created bool, fn func(*Tx)) bool {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.removed {
		return false
	}
	fn(&Tx{
		session:    session,
		created:    created,
		now:        s.now(),
		maxHistory: s.config.MaxHistory,
	})
	return true
}

// AllExpired returns the ids of every session whose last activity is
// older than now minus ttl
func (s *Store) AllExpired(now time.Time, ttl time.Duration) []string {
	cutoff := now.Add(-ttl)
	var expired []string
	for _, session := range s.snapshot() {
		if session.LastActivity().Before(cutoff) {
			expired = append(expired, session.id)
		}
	}
	sort.Strings(expired)
	return expired
}

// Expire removes every session idle for longer than the configured TTL
// and returns how many were removed. Each candidate is re-checked under
// its own lock so a session touched by an in-flight turn survives.
func (s *Store) Expire() int {
	ttl := s.config.TTL
	if ttl <= 0 {
		return 0
	}

	now := s.now()
	removed := 0
	for _, id := range s.AllExpired(now, ttl) {
		if s.removeIfIdle(id, now.Add(-ttl)) {
			zap.S().Debugw("session_expired", "session_id", id)
			removed++
		}
	}
	return removed
}

func (s *Store) removeIfIdle(id string, cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return false
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if !session.last.Before(cutoff) {
		return false
	}
	session.removed = true
	delete(s.sessions, id)
	return true
}

// Len returns the number of registered sessions
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// List returns all session ids in sorted order
func (s *Store) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats counts registered sessions and those still within the TTL
func (s *Store) Stats() Stats {
	sessions := s.snapshot()
	stats := Stats{Total: len(sessions)}

	ttl := s.config.TTL
	cutoff := s.now().Add(-ttl)
	for _, session := range sessions {
		if ttl <= 0 || !session.LastActivity().Before(cutoff) {
			stats.Active++
		}
	}
	return stats
}

// snapshot copies the session pointers so callers can inspect them
// without holding the store lock
func (s *Store) snapshot() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}
