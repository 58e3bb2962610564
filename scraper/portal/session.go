package portal

import (
	"context"
	"strings"
	"time"

	"clubscan/utils"
)

// Credentials supply the portal login. Sourcing them is the caller's concern.
type Credentials struct {
	Username string
	Password string
}

// Session is the authenticated browser handle for one run. It is owned by the
// SessionManager; the navigation controller borrows it for the run duration
// and never persists it beyond that.
type Session struct {
	drv           Driver
	establishedAt time.Time
}

// SessionManager establishes and verifies authenticated sessions.
type SessionManager struct {
	drv      Driver
	res      *Resolver
	logger   *utils.Logger
	retry    *utils.RetryPolicy
	loginURL string

	// Post-submit settle polling. Overridden in tests.
	pollInterval time.Duration
	pollAttempts int
}

// NewSessionManager creates a SessionManager driving the given browser.
func NewSessionManager(drv Driver, res *Resolver, logger *utils.Logger,
	retry *utils.RetryPolicy, loginURL string) *SessionManager {
	return &SessionManager{
		drv:          drv,
		res:          res,
		logger:       logger,
		retry:        retry,
		loginURL:     loginURL,
		pollInterval: 500 * time.Millisecond,
		pollAttempts: 20,
	}
}

// Establish performs the login sequence. Flaky element resolution and render
// timeouts are retried; a credential rejection is not.
func (m *SessionManager) Establish(ctx context.Context, creds Credentials) (*Session, error) {
	err := m.retry.Do(ctx, "login", func() error {
		return m.login(ctx, creds)
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("[session] Authenticated as %s", creds.Username)
	return &Session{drv: m.drv, establishedAt: time.Now()}, nil
}

func (m *SessionManager) login(ctx context.Context, creds Credentials) error {
	if err := m.drv.Navigate(ctx, m.loginURL); err != nil {
		return err
	}

	username, err := m.res.Resolve(ctx, m.drv, RoleLoginUsername)
	if err != nil {
		return err
	}
	if err := m.drv.Fill(ctx, username, creds.Username); err != nil {
		return err
	}

	password, err := m.res.Resolve(ctx, m.drv, RoleLoginPassword)
	if err != nil {
		return err
	}
	if err := m.drv.Fill(ctx, password, creds.Password); err != nil {
		return err
	}

	submit, err := m.res.Resolve(ctx, m.drv, RoleLoginSubmit)
	if err != nil {
		return err
	}
	if err := m.drv.Click(ctx, submit); err != nil {
		return err
	}

	return m.awaitLogin(ctx)
}

// awaitLogin polls for either the post-login marker or a credential-rejection
// banner. Only the former establishes a session.
func (m *SessionManager) awaitLogin(ctx context.Context) error {
	for i := 0; i < m.pollAttempts; i++ {
		if _, err := m.res.Resolve(ctx, m.drv, RolePostLoginMarker); err == nil {
			return nil
		}

		if banner, err := m.res.Resolve(ctx, m.drv, RoleLoginError); err == nil {
			text, terr := m.drv.Text(ctx, banner)
			if terr == nil && strings.TrimSpace(text) != "" {
				return &AuthError{Reason: strings.TrimSpace(text)}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.pollInterval):
		}
	}
	return &NavigationTimeoutError{Step: "await-login", Err: context.DeadlineExceeded}
}

// Verify performs a cheap, idempotent check that the session still holds: the
// post-login marker must be present. It never mutates navigation state.
func (m *SessionManager) Verify(ctx context.Context, s *Session) bool {
	if s == nil {
		return false
	}
	_, err := m.res.Resolve(ctx, s.drv, RolePostLoginMarker)
	return err == nil
}
