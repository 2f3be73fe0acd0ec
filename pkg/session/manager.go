package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager keeps the live sessions of a server.
type Manager struct {
	compiler Compiler
	resolver Resolver
	log      *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(compiler Compiler, resolver Resolver, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		compiler: compiler,
		resolver: resolver,
		log:      log,
		sessions: map[string]*Session{},
	}
}

// Create starts a new session with the default timeline.
func (m *Manager) Create() *Session {
	s := New(m.compiler, m.resolver, m.log)
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	m.log.Debug("session: created", zap.String("session", s.ID()))
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete drops a session, cancelling any running generation.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Cancel()
	return nil
}

// IDs returns the ids of the live sessions in creation order.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than maxIdle and returns how many
// were removed. Sessions with a running generation are never idle.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	deadline := time.Now().Add(-maxIdle)
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for id, s := range m.sessions {
		if s.idleSince().Before(deadline) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Expire runs Sweep periodically until the context is done.
func (m *Manager) Expire(ctx context.Context, every, maxIdle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(maxIdle); n > 0 {
				m.log.Info("session: expired idle sessions", zap.Int("count", n))
			}
		}
	}
}
