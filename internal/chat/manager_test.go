package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/localchat/internal/audit"
	"github.com/suPer8Hu/localchat/internal/common"
	"go.uber.org/zap/zaptest"
)

func TestManager_NewSessionAndGet(t *testing.T) {
	m := NewManager(users, zaptest.NewLogger(t))

	s, err := m.NewSession()
	require.NoError(t, err)
	assert.Len(t, s.ID(), 26)
	assert.False(t, s.IsAuthenticated())

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, common.ErrSessionNotFound)

	m.Remove(s.ID())
	_, err = m.Get(s.ID())
	assert.ErrorIs(t, err, common.ErrSessionNotFound)
}

func TestManager_LoginEmitsAuditEvents(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	m := NewManager(users, zaptest.NewLogger(t), WithAudit(rec))
	s, err := m.NewSession()
	require.NoError(t, err)

	assert.ErrorIs(t, m.Login(ctx, s, "alice", "wrong"), common.ErrInvalidCredentials)
	require.NoError(t, m.Login(ctx, s, "alice", "secret1"))
	m.Logout(ctx, s)
	// logging out an anonymous session is a no-op
	m.Logout(ctx, s)

	assert.Equal(t, []audit.EventType{
		audit.SessionLoginFailed,
		audit.SessionLogin,
		audit.SessionLogout,
	}, rec.types())
	for _, e := range rec.events {
		assert.Equal(t, "alice", e.Username)
		assert.Equal(t, s.ID(), e.SessionID)
	}
}

func TestManager_LoginRejectsEmptyCredentials(t *testing.T) {
	m := NewManager(users, zaptest.NewLogger(t))
	s, err := m.NewSession()
	require.NoError(t, err)

	assert.ErrorIs(t, m.Login(context.Background(), s, "", "secret1"), common.ErrInvalidCredentials)
	assert.ErrorIs(t, m.Login(context.Background(), s, "alice", ""), common.ErrInvalidCredentials)
	assert.False(t, s.IsAuthenticated())
}

func TestManager_LoginThrottle(t *testing.T) {
	ctx := context.Background()
	th := newFakeThrottle(2)
	m := NewManager(users, zaptest.NewLogger(t), WithLoginThrottle(th))
	s, err := m.NewSession()
	require.NoError(t, err)

	assert.ErrorIs(t, m.Login(ctx, s, "alice", "x"), common.ErrInvalidCredentials)
	assert.ErrorIs(t, m.Login(ctx, s, "alice", "y"), common.ErrInvalidCredentials)

	// locked out even with the right password
	assert.ErrorIs(t, m.Login(ctx, s, "alice", "secret1"), common.ErrTooManyAttempts)
	assert.False(t, s.IsAuthenticated())

	// other users are unaffected
	require.NoError(t, m.Login(ctx, s, "bob", "hunter2"))
}

func TestManager_LoginThrottleResetOnSuccess(t *testing.T) {
	ctx := context.Background()
	th := newFakeThrottle(2)
	m := NewManager(users, zaptest.NewLogger(t), WithLoginThrottle(th))
	s, err := m.NewSession()
	require.NoError(t, err)

	assert.Error(t, m.Login(ctx, s, "alice", "x"))
	require.NoError(t, m.Login(ctx, s, "alice", "secret1"))
	assert.Error(t, m.Login(ctx, s, "alice", "y"))
	assert.Error(t, m.Login(ctx, s, "alice", "z"))
	assert.ErrorIs(t, m.Login(ctx, s, "alice", "secret1"), common.ErrTooManyAttempts)
}

func TestManager_LoginThrottleFailsOpen(t *testing.T) {
	th := newFakeThrottle(1)
	th.allowErr = errors.New("redis down")
	m := NewManager(users, zaptest.NewLogger(t), WithLoginThrottle(th))
	s, err := m.NewSession()
	require.NoError(t, err)

	require.NoError(t, m.Login(context.Background(), s, "alice", "secret1"))
	assert.True(t, s.IsAuthenticated())
}

func TestManager_LoginStorageFailure(t *testing.T) {
	rec := &recorder{}
	down := fakeVerifier{err: common.ErrStorageUnavailable}
	m := NewManager(down, zaptest.NewLogger(t), WithAudit(rec))
	s, err := m.NewSession()
	require.NoError(t, err)

	err = m.Login(context.Background(), s, "alice", "secret1")
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, rec.types())
}

func TestManager_SweepIdle(t *testing.T) {
	c := newClock()
	m := NewManager(users, zaptest.NewLogger(t), WithIdleTTL(time.Hour), WithClock(c.Now))

	stale, err := m.NewSession()
	require.NoError(t, err)
	busy, err := m.NewSession()
	require.NoError(t, err)
	require.True(t, busy.tryBeginTurn())
	defer busy.endTurn()

	c.Advance(50 * time.Minute)
	fresh, err := m.NewSession()
	require.NoError(t, err)

	c.Advance(20 * time.Minute)
	assert.Equal(t, 1, m.SweepIdle())
	assert.Equal(t, 2, m.Len())

	_, err = m.Get(stale.ID())
	assert.ErrorIs(t, err, common.ErrSessionNotFound)
	_, err = m.Get(busy.ID())
	assert.NoError(t, err)
	_, err = m.Get(fresh.ID())
	assert.NoError(t, err)
}

func TestManager_GetKeepsSessionAlive(t *testing.T) {
	c := newClock()
	m := NewManager(users, zaptest.NewLogger(t), WithIdleTTL(time.Hour), WithClock(c.Now))
	s, err := m.NewSession()
	require.NoError(t, err)

	c.Advance(45 * time.Minute)
	_, err = m.Get(s.ID())
	require.NoError(t, err)
	c.Advance(45 * time.Minute)

	assert.Zero(t, m.SweepIdle())
	assert.Equal(t, 1, m.Len())
}

func TestStartSweeper(t *testing.T) {
	m := NewManager(users, zaptest.NewLogger(t))

	_, err := StartSweeper(m, "not a schedule", zaptest.NewLogger(t))
	assert.Error(t, err)

	c, err := StartSweeper(m, "@every 1h", zaptest.NewLogger(t))
	require.NoError(t, err)
	<-c.Stop().Done()
}
