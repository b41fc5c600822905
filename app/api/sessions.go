package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gktp0528-oss/europe-market-sub001/app/feed"
	"github.com/google/uuid"
)

// Session is one client's paginated feed held on the server.
type Session struct {
	ID     uuid.UUID
	Loader *feed.Loader

	ctx      context.Context
	cancel   context.CancelFunc
	lastSeen time.Time
}

// Context is cancelled when the session is deleted or swept.
func (s *Session) Context() context.Context {
	return s.ctx
}

type SessionManager struct {
	port     feed.QueryPort
	debounce time.Duration
	idle     time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewSessionManager(port feed.QueryPort, debounce, idle time.Duration) *SessionManager {
	return &SessionManager{
		port:     port,
		debounce: debounce,
		idle:     idle,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*Session),
	}
}

func (m *SessionManager) Create() *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:       uuid.New(),
		Loader:   feed.NewLoader(m.port, feed.LoaderOptions{Debounce: m.debounce}),
		ctx:      ctx,
		cancel:   cancel,
		lastSeen: m.now(),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	slog.Debug("Feed session created", "session", s.ID.String())
	return s
}

// Get returns the session and marks it as active.
func (m *SessionManager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if ok {
		s.lastSeen = m.now()
	}
	return s, ok
}

func (m *SessionManager) Delete(id uuid.UUID) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.close()
		slog.Debug("Feed session deleted", "session", id.String())
	}
	return ok
}

// Sweep drops sessions idle for longer than the idle timeout and returns how
// many were dropped.
func (m *SessionManager) Sweep(now time.Time) int {
	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if now.Sub(s.lastSeen) > m.idle {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.close()
	}
	if len(expired) > 0 {
		slog.Info("Idle feed sessions dropped", "count", len(expired))
	}
	return len(expired)
}

// Run sweeps on every tick until ticks is closed.
func (m *SessionManager) Run(ticks <-chan time.Time) {
	for now := range ticks {
		m.Sweep(now)
	}
}

func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

func (s *Session) close() {
	s.Loader.Close()
	s.cancel()
}
