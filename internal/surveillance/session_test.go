// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package surveillance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ManuGH/courtrec/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_AcquireCachesPerKind(t *testing.T) {
	m := newMock(t)
	sm := newTestSessions(t, m)
	ctx := context.Background()

	first, err := sm.Acquire(ctx, SessionCatalog)
	require.NoError(t, err)
	again, err := sm.Acquire(ctx, SessionCatalog)
	require.NoError(t, err)
	assert.Equal(t, first.Token, again.Token)
	assert.Equal(t, 1, m.Logins("SurveillanceStation"))

	transfer, err := sm.Acquire(ctx, SessionTransfer)
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, transfer.Token)
	assert.Equal(t, 1, m.Logins("FileStation"))
	assert.Equal(t, testAccount, transfer.Account)
}

func TestSessionManager_InvalidateOnlyTouchesOneSlot(t *testing.T) {
	m := newMock(t)
	sm := newTestSessions(t, m)
	ctx := context.Background()

	_, err := sm.Acquire(ctx, SessionCatalog)
	require.NoError(t, err)
	_, err = sm.Acquire(ctx, SessionTransfer)
	require.NoError(t, err)

	sm.Invalidate(SessionCatalog)
	assert.False(t, sm.Cached(SessionCatalog))
	assert.True(t, sm.Cached(SessionTransfer))

	_, err = sm.Acquire(ctx, SessionCatalog)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Logins("SurveillanceStation"))
	assert.Equal(t, 1, m.Logins("FileStation"))
}

func TestSessionManager_LoginRejected(t *testing.T) {
	m := newMock(t)
	m.SetRejectLogin(true)
	sm := newTestSessions(t, m)

	_, err := sm.Acquire(context.Background(), SessionCatalog)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, 400, CodeOf(err))
	assert.False(t, sm.Cached(SessionCatalog), "failed login must not cache anything")
	assert.NotContains(t, err.Error(), testPassword)
}

func TestSessionManager_DoReauthenticatesOnce(t *testing.T) {
	m := newMock(t)
	m.AddCamera(Camera{ID: 7, Name: "Court 1", Enabled: true})
	sm := newTestSessions(t, m)
	loc := NewLocator(sm)
	ctx := context.Background()

	_, err := loc.Cameras(ctx)
	require.NoError(t, err)

	m.ExpireSessions("SurveillanceStation", 1)
	cams, err := loc.Cameras(ctx)
	require.NoError(t, err, "stale session must be handled transparently")
	require.Len(t, cams, 1)
	assert.Equal(t, 2, m.Logins("SurveillanceStation"))
}

func TestSessionManager_DoGivesUpAfterSecondRejection(t *testing.T) {
	m := newMock(t)
	sm := newTestSessions(t, m)
	ctx := context.Background()

	m.ExpireSessions("SurveillanceStation", 2)
	_, err := NewLocator(sm).Cameras(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.NotErrorIs(t, err, ErrSessionInvalid, "stale-session errors never reach callers")
	assert.Equal(t, 106, CodeOf(err))
	assert.Len(t, m.Calls(apiCamera, "List"), 2)
	assert.False(t, sm.Cached(SessionCatalog))
}

func TestSessionManager_DoPassesThroughOtherErrors(t *testing.T) {
	m := newMock(t)
	sm := newTestSessions(t, m)
	boom := errors.New("boom")

	calls := 0
	err := sm.Do(context.Background(), SessionTransfer, func(Session) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestSessionManager_LogoutClearsSlots(t *testing.T) {
	m := newMock(t)
	sm := newTestSessions(t, m)
	ctx := context.Background()

	_, err := sm.Acquire(ctx, SessionCatalog)
	require.NoError(t, err)
	_, err = sm.Acquire(ctx, SessionTransfer)
	require.NoError(t, err)

	sm.Logout(ctx)
	assert.False(t, sm.Cached(SessionCatalog))
	assert.False(t, sm.Cached(SessionTransfer))
	assert.Len(t, m.Calls(apiAuth, "logout"), 2)
}

func TestSessionManager_LoginBreakerStopsRepeatedRejections(t *testing.T) {
	m := newMock(t)
	m.SetRejectLogin(true)
	cb := resilience.NewCircuitBreaker("test-login", 2, time.Hour)
	sm := NewSessionManager(newTestClient(t, m), Credentials{Account: testAccount, Password: "wrong"}, WithLoginBreaker(cb))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := sm.Acquire(ctx, SessionCatalog)
		require.ErrorIs(t, err, ErrAuth)
	}
	assert.Equal(t, resilience.StateOpen, cb.State())

	_, err := sm.Acquire(ctx, SessionTransfer)
	assert.ErrorIs(t, err, ErrAuth)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Len(t, m.Calls(apiAuth, "login"), 2, "no login attempt while open")
}
