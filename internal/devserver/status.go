// Package devserver is a local stand-in for the analysis service. It
// reproduces the service's wire contract (submission endpoint, per-session
// SSE progress, error shapes) with simulated analysis work, so the client
// can be exercised without the real backend. Diagnostic endpoints register
// only when explicitly enabled.
package devserver

import (
	"sync"
	"time"
)

// Status is the latest progress state of one simulated session, in the
// service's wire field layout.
type Status struct {
	Agent     string  `json:"agent"`
	Name      string  `json:"name"`
	Message   string  `json:"status"`
	Progress  float64 `json:"progress"`
	Timestamp float64 `json:"timestamp"`
}

// StatusStore keeps the latest status per session id.
type StatusStore struct {
	mu   sync.RWMutex
	data map[string]Status
}

// NewStatusStore constructs an empty store.
func NewStatusStore() *StatusStore {
	return &StatusStore{data: make(map[string]Status)}
}

// Update sets the status for a session.
func (s *StatusStore) Update(sessionID, agent, name, message string, percent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = Status{
		Agent:     agent,
		Name:      name,
		Message:   message,
		Progress:  percent,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
	}
}

// Get returns the status for a session and whether one exists.
func (s *StatusStore) Get(sessionID string) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[sessionID]
	return st, ok
}
