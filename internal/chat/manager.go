package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/suPer8Hu/localchat/internal/audit"
	"github.com/suPer8Hu/localchat/internal/common"
	"go.uber.org/zap"
)

// LoginThrottle limits repeated failed logins per username.
type LoginThrottle interface {
	Allow(ctx context.Context, username string) (bool, error)
	Failure(ctx context.Context, username string) error
	Success(ctx context.Context, username string) error
}

// Manager owns the live sessions of this process. Sessions are kept in
// memory only and are dropped after sitting idle for the configured TTL.
type Manager struct {
	verifier Verifier
	throttle LoginThrottle
	events   audit.Publisher
	log      *zap.Logger
	idleTTL  time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

type ManagerOption func(*Manager)

func WithLoginThrottle(t LoginThrottle) ManagerOption {
	return func(m *Manager) { m.throttle = t }
}

func WithAudit(p audit.Publisher) ManagerOption {
	return func(m *Manager) {
		if p != nil {
			m.events = p
		}
	}
}

func WithIdleTTL(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.idleTTL = d
		}
	}
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func NewManager(v Verifier, log *zap.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		verifier: v,
		events:   audit.Nop{},
		log:      log,
		idleTTL:  2 * time.Hour,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// NewSession starts an anonymous session with an empty history.
func (m *Manager) NewSession() (*Session, error) {
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	s := newSession(id, m.now)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns the session and marks it active.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, common.ErrSessionNotFound
	}
	s.touch()
	return s, nil
}

func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Login authenticates s. Unknown users and wrong passwords both yield
// ErrInvalidCredentials; storage failures are returned as they are.
func (m *Manager) Login(ctx context.Context, s *Session, username, password string) error {
	if username == "" || password == "" {
		m.publish(ctx, audit.SessionLoginFailed, username, s.ID())
		return common.ErrInvalidCredentials
	}

	if m.throttle != nil {
		allowed, err := m.throttle.Allow(ctx, username)
		if err != nil {
			m.log.Warn("login throttle unavailable, allowing", zap.String("session_id", s.ID()), zap.Error(err))
		} else if !allowed {
			m.publish(ctx, audit.SessionLoginFailed, username, s.ID())
			return common.ErrTooManyAttempts
		}
	}

	err := s.Login(ctx, m.verifier, username, password)
	switch {
	case err == nil:
		if m.throttle != nil {
			if terr := m.throttle.Success(ctx, username); terr != nil {
				m.log.Warn("reset login throttle", zap.Error(terr))
			}
		}
		m.log.Info("login", zap.String("session_id", s.ID()), zap.String("username", username))
		m.publish(ctx, audit.SessionLogin, username, s.ID())
		return nil

	case errors.Is(err, common.ErrInvalidCredentials):
		if m.throttle != nil {
			if terr := m.throttle.Failure(ctx, username); terr != nil {
				m.log.Warn("record login failure", zap.Error(terr))
			}
		}
		m.log.Info("login rejected", zap.String("session_id", s.ID()))
		m.publish(ctx, audit.SessionLoginFailed, username, s.ID())
		return err

	default:
		m.log.Error("login: credential store", zap.String("session_id", s.ID()), zap.Error(err))
		return err
	}
}

func (m *Manager) Logout(ctx context.Context, s *Session) {
	username, ok := s.Identity()
	s.Logout()
	if ok {
		m.log.Info("logout", zap.String("session_id", s.ID()), zap.String("username", username))
		m.publish(ctx, audit.SessionLogout, username, s.ID())
	}
}

// SweepIdle drops sessions idle for longer than the TTL and returns how
// many were removed. Sessions with a generation in flight are kept.
func (m *Manager) SweepIdle() int {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.busy.Load() || !s.idleSince().Before(cutoff) {
			continue
		}
		delete(m.sessions, id)
		removed++
	}
	return removed
}

func (m *Manager) publish(ctx context.Context, typ audit.EventType, username, sessionID string) {
	audit.Emit(ctx, m.events, m.log, audit.Event{
		Type:       typ,
		Username:   username,
		SessionID:  sessionID,
		OccurredAt: m.now(),
	})
}
