// Package session owns the bearer token: acquiring it through login or registration, keeping
// it in the credential slot, and dropping it when the user logs out or the server rejects it.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront/internal/credential"
	"storefront/internal/domain"
	"storefront/internal/failure"
	"storefront/internal/notify"
)

// Role sent with every registration.
const Role = "user"

var ErrMissingCredentials = errors.New("email and password are required")

// Cause tells logout listeners why the session ended.
type Cause int

const (
	CauseLogout Cause = iota
	CauseExpired
)

func (c Cause) String() string {
	if c == CauseExpired {
		return "expired"
	}
	return "logout"
}

// Authenticator is the part of the commerce API the manager needs.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, email, password, role string) error
}

// Manager is safe for concurrent use. Only Login and Register set the token; only Logout
// and HandleFailure clear it.
type Manager struct {
	api    Authenticator
	store  credential.Store
	sink   notify.Sink
	logger *zap.Logger
	now    func() time.Time

	mu      sync.RWMutex
	current domain.Session

	listenersMu sync.Mutex
	listeners   []func(Cause)
}

func NewManager(api Authenticator, store credential.Store, sink notify.Sink, logger *zap.Logger) *Manager {
	if sink == nil {
		sink = notify.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		api:    api,
		store:  store,
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// OnLogout registers fn to run after the session ends for any reason.
func (m *Manager) OnLogout(fn func(Cause)) {
	m.listenersMu.Lock()
	m.listeners = append(m.listeners, fn)
	m.listenersMu.Unlock()
}

// Restore loads a token persisted by a previous run. An empty slot is not an error.
func (m *Manager) Restore(ctx context.Context) error {
	token, err := m.store.Load(ctx, credential.TokenSlot)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	m.set(token)
	m.logger.Info("session restored")
	return nil
}

func (m *Manager) Login(ctx context.Context, email, password string) (domain.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		m.sink.Notify("Enter your email and password.", notify.SeverityError)
		return domain.Session{}, ErrMissingCredentials
	}
	token, err := m.api.Login(ctx, email, password)
	if err != nil {
		m.logger.Info("login rejected", zap.Error(err))
		m.sink.Notify(authMessage(err, "Sign-in failed. Check your email and password."), notify.SeverityError)
		return domain.Session{}, fmt.Errorf("login: %w", err)
	}
	if err := m.store.Save(ctx, credential.TokenSlot, token); err != nil {
		m.logger.Warn("persist token", zap.Error(err))
	}
	s := m.set(token)
	m.sink.Notify("Signed in", notify.SeveritySuccess)
	return s, nil
}

// Register creates the account and then signs in with the same credentials.
func (m *Manager) Register(ctx context.Context, email, password string) (domain.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		m.sink.Notify("Enter your email and password.", notify.SeverityError)
		return domain.Session{}, ErrMissingCredentials
	}
	if err := m.api.Register(ctx, email, password, Role); err != nil {
		m.logger.Info("registration rejected", zap.Error(err))
		m.sink.Notify(authMessage(err, "Registration failed."), notify.SeverityError)
		return domain.Session{}, fmt.Errorf("register: %w", err)
	}
	m.sink.Notify("Account created", notify.SeverityInfo)
	return m.Login(ctx, email, password)
}

// Logout ends the session. It is safe to call when already signed out.
func (m *Manager) Logout(ctx context.Context) {
	m.clear(ctx)
	m.sink.Notify("Signed out", notify.SeverityInfo)
	m.fire(CauseLogout)
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Authenticated()
}

// Token returns the current bearer token and whether there is one.
func (m *Manager) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Token, m.current.Authenticated()
}

func (m *Manager) Current() domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Manager) ClassifyFailure(err error) failure.Kind {
	return failure.Classify(err)
}

// HandleFailure force-ends the session when err means the server rejected token, and
// reports whether it did. Callers must stop processing the response when it returns true.
// A rejection of a token that is no longer current leaves the newer session alone.
func (m *Manager) HandleFailure(ctx context.Context, token string, err error) bool {
	if m.ClassifyFailure(err) != failure.KindUnauthorized {
		return false
	}
	if !m.clearToken(ctx, token) {
		m.logger.Debug("ignoring rejection of a superseded token", zap.Error(err))
		return true
	}
	m.logger.Info("session invalidated", zap.Error(err))
	m.sink.Notify(failure.MsgSessionExpired, notify.SeverityWarning)
	m.fire(CauseExpired)
	return true
}

func (m *Manager) set(token string) domain.Session {
	m.mu.Lock()
	m.current = domain.Session{Token: token, IssuedAt: m.now().UTC()}
	s := m.current
	m.mu.Unlock()
	return s
}

// clear drops the token from memory and the slot and reports whether one was present.
func (m *Manager) clear(ctx context.Context) bool {
	m.mu.Lock()
	had := m.current.Authenticated()
	m.current = domain.Session{}
	m.mu.Unlock()
	m.deletePersisted(ctx)
	return had
}

// clearToken is clear for a specific token. It does nothing unless token is the current one.
func (m *Manager) clearToken(ctx context.Context, token string) bool {
	m.mu.Lock()
	if token == "" || m.current.Token != token {
		m.mu.Unlock()
		return false
	}
	m.current = domain.Session{}
	m.mu.Unlock()
	m.deletePersisted(ctx)
	return true
}

func (m *Manager) deletePersisted(ctx context.Context) {
	if err := m.store.Delete(ctx, credential.TokenSlot); err != nil {
		m.logger.Warn("delete persisted token", zap.Error(err))
	}
}

func (m *Manager) fire(cause Cause) {
	m.listenersMu.Lock()
	fns := append(([]func(Cause))(nil), m.listeners...)
	m.listenersMu.Unlock()
	for _, fn := range fns {
		fn(cause)
	}
}

// authMessage is failure.Message for the sign-in forms, where a 401 means bad credentials
// rather than an expired session.
func authMessage(err error, fallback string) string {
	if failure.Classify(err) == failure.KindNetwork {
		return failure.MsgUnavailable
	}
	if fe := failure.As(err); fe != nil && fe.Detail != "" {
		return fe.Detail
	}
	return fallback
}
