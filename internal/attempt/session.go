package attempt

import (
	"sync"
	"sync/atomic"
	"time"
)

// Session is the per-attempt in-memory state. Sessions live in a registry
// keyed by attempt id, so two concurrent attempts (or two tabs on the same
// attempt) can never clobber each other through shared globals.
type Session struct {
	AttemptID string
	QuizID    string
	UserID    string
	Deadline  time.Time

	submitting atomic.Bool
}

// beginSubmit is the one-shot guard: only the first caller wins, no matter
// how many timer callbacks or duplicate requests race in.
func (s *Session) beginSubmit() bool { return s.submitting.CompareAndSwap(false, true) }

// resetSubmit re-arms the guard after a failed finalize so the submit can be
// retried instead of stranding the attempt.
func (s *Session) resetSubmit() { s.submitting.Store(false) }

type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: map[string]*Session{}}
}

// GetOrCreate returns the live session for an attempt, creating one when the
// attempt is only known from the database (server restart, second node).
func (r *Registry) GetOrCreate(attemptID, quizID, userID string, deadline time.Time) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[attemptID]; ok {
		return s
	}
	s := &Session{AttemptID: attemptID, QuizID: quizID, UserID: userID, Deadline: deadline}
	r.sessions[attemptID] = s
	return s
}

func (r *Registry) Get(attemptID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[attemptID]
	return s, ok
}

func (r *Registry) Remove(attemptID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, attemptID)
}
