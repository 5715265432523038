package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/clock"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/infrastructure/network"
)

// ManagerConfig configures the sessions a Manager creates.
type ManagerConfig struct {
	Session    Config
	Thresholds network.Thresholds

	// IdleTimeout closes sessions unused for that long. Zero disables it.
	IdleTimeout time.Duration
}

// Manager hosts one Session per connected client, each with its own
// network monitor fed by that client's reports.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*hosted
	config   ManagerConfig
	deps     Deps
	logger   *zap.Logger
}

type hosted struct {
	session  *Session
	monitor  *network.SignalMonitor
	lastUsed time.Time
}

// NewManager creates an empty manager. deps.Monitor is ignored; every
// session gets a SignalMonitor.
func NewManager(config ManagerConfig, deps Deps) *Manager {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*hosted),
		config:   config,
		deps:     deps,
		logger:   deps.Logger,
	}
}

// Create opens a session on subject and returns its ID.
func (m *Manager) Create(subject record.SubjectID) (string, *Session, error) {
	id := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()

	monitor := network.NewSignalMonitor(m.config.Thresholds)
	deps := m.deps
	deps.Monitor = monitor
	deps.Logger = m.logger.With(zap.String("session_id", id))

	s := New(m.config.Session, deps)
	if err := s.SetSubject(subject); err != nil {
		s.Close()
		return "", nil, err
	}

	m.sessions[id] = &hosted{session: s, monitor: monitor, lastUsed: deps.Clock.Now()}
	m.logger.Info("Session opened",
		zap.String("session_id", id),
		zap.String("subject_id", subject.String()),
		zap.Int("sessions", len(m.sessions)),
	)
	return id, s, nil
}

// Get returns the session with id and marks it used.
func (m *Manager) Get(id string) (*Session, error) {
	h, err := m.touch(id)
	if err != nil {
		return nil, err
	}
	return h.session, nil
}

// ReportNetwork stores the latest connection signals of session id.
func (m *Manager) ReportNetwork(id string, signals network.Signals) (bool, error) {
	h, err := m.touch(id)
	if err != nil {
		return false, err
	}
	h.monitor.Report(signals)
	return h.monitor.IsDegraded(), nil
}

func (m *Manager) touch(id string) (*hosted, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.sessions[id]
	if !ok {
		return nil, errors.NotFound(errors.CodeSessionNotFound, "Session not found").
			WithResource(id).
			Build()
	}
	h.lastUsed = m.deps.Clock.Now()
	return h, nil
}

// Close closes and forgets session id. It reports whether it existed.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	h, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		h.session.Close()
		m.logger.Info("Session closed", zap.String("session_id", id))
	}
	return ok
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*hosted)
	m.mu.Unlock()

	for _, h := range sessions {
		h.session.Close()
	}
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SetThresholds applies new degradation thresholds to every open session
// and to sessions opened later.
func (m *Manager) SetThresholds(t network.Thresholds) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config.Thresholds = t
	for _, h := range m.sessions {
		h.monitor.SetThresholds(t)
	}
}

// SetQuietPeriod changes the prefetch delay of every session.
func (m *Manager) SetQuietPeriod(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config.Session.QuietPeriod = d
	for _, h := range m.sessions {
		h.session.SetQuietPeriod(d)
	}
}

// ReapIdle closes sessions unused since before now minus the idle
// timeout and returns how many were closed.
func (m *Manager) ReapIdle(now time.Time) int {
	if m.config.IdleTimeout <= 0 {
		return 0
	}

	m.mu.Lock()
	var idle []*hosted
	for id, h := range m.sessions {
		if now.Sub(h.lastUsed) >= m.config.IdleTimeout {
			idle = append(idle, h)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, h := range idle {
		h.session.Close()
	}
	if len(idle) > 0 {
		m.logger.Info("Closed idle sessions", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// StartReaper runs ReapIdle every interval until ctx is done.
func (m *Manager) StartReaper(ctx context.Context, interval time.Duration) {
	if m.config.IdleTimeout <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.ReapIdle(m.deps.Clock.Now())
			}
		}
	}()
}
