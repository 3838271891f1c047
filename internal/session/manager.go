package session

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/ecgscope/internal/config"
	"github.com/banshee-data/ecgscope/internal/timeutil"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// Manager owns the live sessions.
type Manager struct {
	clock timeutil.Clock
	cfg   *config.AnalyzerConfig

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty manager whose sessions share clock and cfg.
func NewManager(clock timeutil.Clock, cfg *config.AnalyzerConfig) *Manager {
	return &Manager{clock: clock, cfg: cfg, sessions: make(map[string]*Session)}
}

// Create registers a new session under a fresh uuid.
func (m *Manager) Create() *Session {
	s := New(uuid.NewString(), m.clock, m.cfg)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	logger.Printf("created %s", s.ID)
	return s
}

// Get looks up a session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete stops and forgets a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	logger.Printf("deleted %s", id)
	return nil
}

// List returns every session, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	out := make([]Info, 0, len(all))
	for _, s := range all {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close stops every session.
func (m *Manager) Close() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
