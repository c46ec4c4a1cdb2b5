// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package surveillance

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

const (
	testAccount  = "recorder"
	testPassword = "hunter2"
)

type countingSleeper struct {
	mu    sync.Mutex
	calls int
	total time.Duration
}

func (s *countingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls++
	s.total += d
	s.mu.Unlock()
	return ctx.Err()
}

func newTestClient(t *testing.T, m *MockServer) *Client {
	t.Helper()
	return NewClient(m.URL, Options{
		Timeout:    5 * time.Second,
		MaxRetries: -1,
		RateLimit:  rate.Inf,
	})
}

func newTestSessions(t *testing.T, m *MockServer) *SessionManager {
	t.Helper()
	return NewSessionManager(newTestClient(t, m), Credentials{Account: testAccount, Password: testPassword})
}

func newMock(t *testing.T) *MockServer {
	t.Helper()
	m := NewMockServer(testAccount, testPassword)
	t.Cleanup(m.Close)
	return m
}
