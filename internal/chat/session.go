package chat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/suPer8Hu/localchat/internal/common"
)

// Verifier checks a username/password pair against the credential store.
type Verifier interface {
	Verify(ctx context.Context, username, password string) (bool, error)
}

const (
	ViewLogin = "login"
	ViewChat  = "chat"
)

// View is what the UI renders for a session: the login form, or the chat
// with the history newest-first.
type View struct {
	Kind     string `json:"view"`
	Username string `json:"username,omitempty"`
	History  []Turn `json:"history,omitempty"`
	Busy     bool   `json:"busy"`
}

// Session is one client's login state and conversation. It starts
// anonymous; identity is set iff the session is authenticated.
type Session struct {
	id        string
	createdAt time.Time
	now       func() time.Time

	mu            sync.Mutex
	authenticated bool
	identity      string
	history       []Turn
	lastActive    time.Time
	// bumped on every login and logout
	epoch         uint64

	// held for the duration of one generation
	inflight sync.Mutex
	busy     atomic.Bool
}

func newSession(id string, now func() time.Time) *Session {
	t := now()
	return &Session{id: id, createdAt: t, lastActive: t, now: now}
}

func (s *Session) ID() string { return s.id }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Identity returns the logged-in username, if any.
func (s *Session) Identity() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.authenticated
}

func (s *Session) IsAuthenticated() bool {
	_, ok := s.Identity()
	return ok
}

// Login verifies the credentials and, on success, makes username the
// session identity with an empty history. On failure the session is left
// exactly as it was.
func (s *Session) Login(ctx context.Context, v Verifier, username, password string) error {
	ok, err := v.Verify(ctx, username, password)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrInvalidCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = true
	s.identity = username
	s.history = nil
	s.lastActive = s.now()
	s.epoch++
	return nil
}

// Logout returns the session to anonymous and drops its history.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = false
	s.identity = ""
	s.history = nil
	s.lastActive = s.now()
	s.epoch++
}

// RecordTurn appends a turn stamped with the current time. It is rejected
// with ErrNotAuthenticated on an anonymous session.
func (s *Session) RecordTurn(userText, botText string, fallback bool) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authenticated {
		return Turn{}, common.ErrNotAuthenticated
	}
	return s.appendLocked(userText, botText, fallback), nil
}

// login is the identity a turn was started under.
type login struct {
	identity string
	epoch    uint64
}

func (s *Session) currentLogin() (login, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return login{identity: s.identity, epoch: s.epoch}, s.authenticated
}

// recordTurnFor appends the turn only if the session is still on the same
// login that started it; any logout or login in between rejects it.
func (s *Session) recordTurnFor(l login, userText, botText string, fallback bool) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authenticated || s.epoch != l.epoch {
		return Turn{}, common.ErrNotAuthenticated
	}
	return s.appendLocked(userText, botText, fallback), nil
}

func (s *Session) appendLocked(userText, botText string, fallback bool) Turn {
	t := Turn{
		UserText:  userText,
		BotText:   botText,
		Fallback:  fallback,
		Timestamp: s.now(),
	}
	s.history = append(s.history, t)
	s.lastActive = t.Timestamp
	return t
}

// History returns the turns oldest-first.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.history...)
}

// HistoryView returns the turns newest-first without touching the stored order.
func (s *Session) HistoryView() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newestFirstLocked()
}

// Snapshot is the read-only current view, taken atomically.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authenticated {
		return View{Kind: ViewLogin, Busy: s.busy.Load()}
	}
	return View{
		Kind:     ViewChat,
		Username: s.identity,
		History:  s.newestFirstLocked(),
		Busy:     s.busy.Load(),
	}
}

func (s *Session) newestFirstLocked() []Turn {
	out := make([]Turn, len(s.history))
	for i, t := range s.history {
		out[len(s.history)-1-i] = t
	}
	return out
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = s.now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) tryBeginTurn() bool {
	if !s.inflight.TryLock() {
		return false
	}
	s.busy.Store(true)
	return true
}

func (s *Session) endTurn() {
	s.busy.Store(false)
	s.inflight.Unlock()
}
