package session

import (
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/yitech/chartfeed/metrics"
	"github.com/yitech/chartfeed/model/symbol"
	"github.com/yitech/chartfeed/widget"
)

// Manager tracks the live sessions and the symbol directory they share.
type Manager struct {
	deps Deps

	mu        sync.Mutex
	sessions  map[string]*Session
	directory []symbol.Entry
}

func NewManager(deps Deps, directory []symbol.Entry) *Manager {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Manager{
		deps:      deps,
		sessions:  make(map[string]*Session),
		directory: slices.Clone(directory),
	}
}

// Open creates a session that reports to sink. The caller starts it and
// must hand it back to Close.
func (m *Manager) Open(sink widget.Sink) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := newSession(m.deps, sink, m.directory)
	m.sessions[s.id] = s
	metrics.ActiveSessions.Inc()
	return s
}

func (m *Manager) Close(s *Session) {
	m.mu.Lock()
	_, ok := m.sessions[s.id]
	delete(m.sessions, s.id)
	m.mu.Unlock()

	if ok {
		metrics.ActiveSessions.Dec()
	}
	s.Close()
}

// SetDirectory replaces the shared directory and pushes it to every
// session.
func (m *Manager) SetDirectory(entries []symbol.Entry) {
	m.mu.Lock()
	m.directory = slices.Clone(entries)
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.Unlock()

	for _, s := range live {
		s.SetDirectory(entries)
	}
}

func (m *Manager) Directory() []symbol.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.directory)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll closes every live session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.Unlock()

	for _, s := range live {
		m.Close(s)
	}
}
