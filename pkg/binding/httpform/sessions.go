package httpform

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/schema"
)

// Factory builds the store for a new session along with the descriptors
// used to coerce form-encoded input.
type Factory func(ctx context.Context) (*form.Store, []schema.Field, error)

// Session is one visitor's form.
type Session struct {
	ID     string
	Store  *form.Store
	Fields []schema.Field

	lastSeen time.Time
}

// Sessions keeps one store per session id.
type Sessions struct {
	factory Factory
	idle    time.Duration
	now     func() time.Time

	mu    sync.Mutex
	items map[string]*Session
}

// NewSessions returns an empty session set. idle of zero disables expiry.
func NewSessions(factory Factory, idle time.Duration, now func() time.Time) *Sessions {
	if now == nil {
		now = time.Now
	}
	return &Sessions{
		factory: factory,
		idle:    idle,
		now:     now,
		items:   make(map[string]*Session),
	}
}

// Get returns the live session for id.
func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[id]
	if !ok {
		return nil, false
	}
	if s.expired(sess) {
		delete(s.items, id)
		return nil, false
	}
	sess.lastSeen = s.now()
	return sess, true
}

// Create builds a session with a fresh id.
func (s *Sessions) Create(ctx context.Context) (*Session, error) {
	if s.factory == nil {
		return nil, fmt.Errorf("httpform: no store factory configured")
	}
	store, fields, err := s.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("httpform: create session: %w", err)
	}
	sess := &Session{ID: uuid.NewString(), Store: store, Fields: fields}

	s.mu.Lock()
	sess.lastSeen = s.now()
	s.items[sess.ID] = sess
	s.mu.Unlock()
	return sess, nil
}

// Delete forgets a session.
func (s *Sessions) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

// Len reports the number of tracked sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Sweep drops expired sessions and returns how many were removed.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.items {
		if s.expired(sess) {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

func (s *Sessions) expired(sess *Session) bool {
	return s.idle > 0 && s.now().Sub(sess.lastSeen) > s.idle
}
