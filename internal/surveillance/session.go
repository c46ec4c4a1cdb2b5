// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package surveillance

import (
	"context"
	"errors"
	"net/url"
	"sync"

	xglog "github.com/ManuGH/courtrec/internal/log"
	"github.com/ManuGH/courtrec/internal/resilience"
)

// SessionKind selects one of the two independent login contexts.
type SessionKind int

const (
	// SessionCatalog covers camera and recording catalog calls.
	SessionCatalog SessionKind = iota
	// SessionTransfer covers file-station copy and info calls.
	SessionTransfer
)

// Label is the session scope name sent with login/logout.
func (k SessionKind) Label() string {
	switch k {
	case SessionCatalog:
		return "SurveillanceStation"
	case SessionTransfer:
		return "FileStation"
	}
	return "unknown"
}

func (k SessionKind) String() string {
	switch k {
	case SessionCatalog:
		return "catalog"
	case SessionTransfer:
		return "transfer"
	}
	return "unknown"
}

// Session is an opaque token and the account it was issued to.
type Session struct {
	Kind    SessionKind
	Token   string
	Account string
}

// Credentials authenticate against the external system.
type Credentials struct {
	Account  string
	Password string
}

// SessionManager owns the catalog and transfer session slots. Callers never
// see tokens directly; they go through Do.
type SessionManager struct {
	client *Client
	creds  Credentials

	breaker *resilience.CircuitBreaker

	mu    sync.Mutex
	slots map[SessionKind]Session
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

// WithLoginBreaker stops login attempts after repeated credential rejections,
// so a wrong password does not get the account blocked by the external system.
func WithLoginBreaker(cb *resilience.CircuitBreaker) SessionOption {
	return func(m *SessionManager) { m.breaker = cb }
}

// NewSessionManager creates a manager with empty slots.
func NewSessionManager(client *Client, creds Credentials, opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		client: client,
		creds:  creds,
		slots:  make(map[SessionKind]Session, 2),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire returns the cached session for kind or logs in and caches a new one.
func (m *SessionManager) Acquire(ctx context.Context, kind SessionKind) (Session, error) {
	m.mu.Lock()
	if s, ok := m.slots[kind]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	s, err := m.login(ctx, kind)
	if err != nil {
		return Session{}, err
	}

	m.mu.Lock()
	m.slots[kind] = s
	m.mu.Unlock()
	return s, nil
}

// Invalidate drops the cached session for kind; the next Acquire logs in again.
func (m *SessionManager) Invalidate(kind SessionKind) {
	m.mu.Lock()
	delete(m.slots, kind)
	m.mu.Unlock()
}

// Cached reports whether a session for kind is currently held.
func (m *SessionManager) Cached(kind SessionKind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.slots[kind]
	return ok
}

// Do runs fn with a session of the given kind. When the external system
// rejects the session, it is invalidated and fn is retried exactly once with
// a fresh login.
func (m *SessionManager) Do(ctx context.Context, kind SessionKind, fn func(Session) error) error {
	s, err := m.Acquire(ctx, kind)
	if err != nil {
		return err
	}
	err = fn(s)
	if !errors.Is(err, ErrSessionInvalid) {
		return err
	}

	logger := xglog.WithComponentFromContext(ctx, "surveillance")
	logger.Info().
		Str(xglog.FieldEvent, "session.reauth").
		Str(xglog.FieldSession, kind.String()).
		Int("code", CodeOf(err)).
		Msg("session rejected, logging in again")

	m.Invalidate(kind)
	s, err = m.Acquire(ctx, kind)
	if err != nil {
		return err
	}
	err = fn(s)
	if errors.Is(err, ErrSessionInvalid) {
		// A freshly issued token was refused; surface it as an auth problem.
		m.Invalidate(kind)
		return &APIError{Sentinel: ErrAuth, API: apiAuth, Method: "reauth", Code: CodeOf(err), Err: errors.New("fresh session rejected")}
	}
	return err
}

// Logout ends every cached session on a best-effort basis and clears the slots.
func (m *SessionManager) Logout(ctx context.Context) {
	m.mu.Lock()
	held := make([]Session, 0, len(m.slots))
	for _, s := range m.slots {
		held = append(held, s)
	}
	m.slots = make(map[SessionKind]Session, 2)
	m.mu.Unlock()

	logger := xglog.WithComponentFromContext(ctx, "surveillance")
	for _, s := range held {
		params := url.Values{}
		params.Set("session", s.Kind.Label())
		params.Set("_sid", s.Token)
		err := m.client.call(ctx, apiRequest{CGI: cgiAuth, API: apiAuth, Method: "logout", Version: 6, Params: params}, nil)
		if err != nil {
			logger.Debug().Err(err).Str(xglog.FieldSession, s.Kind.String()).Msg("logout failed")
		}
	}
}

const apiAuth = "SYNO.API.Auth"

func (m *SessionManager) login(ctx context.Context, kind SessionKind) (Session, error) {
	if m.breaker == nil {
		return m.doLogin(ctx, kind)
	}
	if err := m.breaker.Allow(); err != nil {
		sessionLogins.WithLabelValues(kind.String(), "blocked").Inc()
		return Session{}, &APIError{Sentinel: ErrAuth, API: apiAuth, Method: "login", Err: err}
	}
	s, err := m.doLogin(ctx, kind)
	switch {
	case err == nil:
		m.breaker.RecordSuccess()
	case errors.Is(err, ErrAuth):
		m.breaker.RecordFailure()
	default:
		// Transport trouble says nothing about the credentials; release the probe.
		m.breaker.RecordSuccess()
	}
	return s, err
}

func (m *SessionManager) doLogin(ctx context.Context, kind SessionKind) (Session, error) {
	params := url.Values{}
	params.Set("account", m.creds.Account)
	params.Set("passwd", m.creds.Password)
	params.Set("session", kind.Label())
	params.Set("format", "sid")

	var data struct {
		SID string `json:"sid"`
	}
	err := m.client.call(ctx, apiRequest{CGI: cgiAuth, API: apiAuth, Method: "login", Version: 6, Params: params}, &data)
	if err != nil {
		sessionLogins.WithLabelValues(kind.String(), "failure").Inc()
		var apiErr *APIError
		if errors.As(err, &apiErr) && (errors.Is(err, ErrRequestFailed) || errors.Is(err, ErrSessionInvalid)) {
			return Session{}, &APIError{Sentinel: ErrAuth, API: apiAuth, Method: "login", Code: apiErr.Code, Status: apiErr.Status}
		}
		return Session{}, err
	}
	if data.SID == "" {
		sessionLogins.WithLabelValues(kind.String(), "failure").Inc()
		return Session{}, &APIError{Sentinel: ErrAuth, API: apiAuth, Method: "login", Err: errors.New("empty sid in login response")}
	}

	sessionLogins.WithLabelValues(kind.String(), "success").Inc()
	logger := xglog.WithComponentFromContext(ctx, "surveillance")
	logger.Debug().
		Str(xglog.FieldEvent, "session.login").
		Str(xglog.FieldSession, kind.String()).
		Msg("session established")
	return Session{Kind: kind, Token: data.SID, Account: m.creds.Account}, nil
}
