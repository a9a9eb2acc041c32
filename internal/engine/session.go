package engine

import (
	"sync"

	"github.com/akaclinicalco/jtskb/internal/domain"
)

// DefaultMaxHistory bounds conversation memory per session.
const DefaultMaxHistory = 10

// Session holds a bounded window of prior exchanges for one conversation.
// Safe for concurrent use.
type Session struct {
	mu      sync.Mutex
	history []domain.Exchange
	max     int
}

// NewSession creates a session keeping at most max exchanges; the oldest is
// evicted when the window is full. Non-positive max falls back to the
// default.
func NewSession(max int) *Session {
	if max <= 0 {
		max = DefaultMaxHistory
	}
	return &Session{max: max}
}

// Record appends an exchange, evicting the oldest when over the bound.
func (s *Session) Record(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, domain.Exchange{Question: question, Answer: answer})
	if len(s.history) > s.max {
		s.history = s.history[len(s.history)-s.max:]
	}
}

// History returns a copy of the current window, oldest first.
func (s *Session) History() []domain.Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Exchange, len(s.history))
	copy(out, s.history)
	return out
}

// Clear drops all recorded exchanges.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}
