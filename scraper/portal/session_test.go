package portal

import (
	"context"
	"errors"
	"testing"
	"time"

	"clubscan/utils"
)

func newTestSessionManager(drv *fakeDriver, attempts int) *SessionManager {
	logger := utils.NewLogger()
	m := NewSessionManager(drv, NewResolver(), logger, testPolicy(attempts, logger), "https://example.test/login")
	m.pollInterval = time.Millisecond
	m.pollAttempts = 2
	return m
}

func loginDriver() *fakeDriver {
	f := newFakeDriver()
	f.counts["#okta-signin-username"] = 1
	f.counts["#okta-signin-password"] = 1
	f.counts["#okta-signin-submit"] = 1
	f.counts[keyMarker] = 1
	return f
}

func TestEstablishRetriesLateRenderingForm(t *testing.T) {
	drv := loginDriver()
	// The username field reports absent for the first three lookups, as if the
	// login widget were still rendering.
	drv.flaky["#okta-signin-username"] = 3

	m := newTestSessionManager(drv, 4)
	sess, err := m.Establish(context.Background(), Credentials{Username: "member", Password: "secret"})
	if err != nil {
		t.Fatalf("establish failed despite attempts remaining: %v", err)
	}
	if sess == nil {
		t.Fatal("nil session on success")
	}
	if got := drv.texts["#okta-signin-username"]; got != "member" {
		t.Errorf("username field = %q, want member", got)
	}
	if len(drv.navigated) != 4 {
		t.Errorf("navigated %d times, want 4 (one per attempt)", len(drv.navigated))
	}
}

func TestEstablishGivesUpAfterBudget(t *testing.T) {
	drv := loginDriver()
	drv.flaky["#okta-signin-username"] = 10

	m := newTestSessionManager(drv, 2)
	_, err := m.Establish(context.Background(), Credentials{Username: "member", Password: "secret"})
	if err == nil {
		t.Fatal("expected failure when the form never renders")
	}
	var exhausted *utils.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error = %v, want ExhaustedError", err)
	}
	if exhausted.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", exhausted.Attempts)
	}
	var notFound *ElementNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("underlying cause should be the unresolved element, got %v", exhausted.Last)
	}
}

func TestEstablishRejectedCredentialsNotRetried(t *testing.T) {
	drv := loginDriver()
	drv.counts[keyMarker] = 0
	drv.counts[".okta-form-infobox-error"] = 1
	drv.texts[".okta-form-infobox-error"] = "Unable to sign in"

	m := newTestSessionManager(drv, 5)
	_, err := m.Establish(context.Background(), Credentials{Username: "member", Password: "wrong"})

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want AuthError", err)
	}
	if authErr.Reason != "Unable to sign in" {
		t.Errorf("reason = %q", authErr.Reason)
	}
	if len(drv.navigated) != 1 {
		t.Errorf("navigated %d times, want 1: credential rejection must not be retried", len(drv.navigated))
	}
}

func TestEstablishTimesOutWithoutMarkerOrBanner(t *testing.T) {
	drv := loginDriver()
	drv.counts[keyMarker] = 0

	m := newTestSessionManager(drv, 1)
	_, err := m.Establish(context.Background(), Credentials{Username: "member", Password: "secret"})

	var timeout *NavigationTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("error = %v, want NavigationTimeoutError", err)
	}
	if timeout.Step != "await-login" {
		t.Errorf("step = %q", timeout.Step)
	}
}

func TestVerify(t *testing.T) {
	drv := loginDriver()
	m := newTestSessionManager(drv, 1)
	ctx := context.Background()

	sess, err := m.Establish(ctx, Credentials{Username: "member", Password: "secret"})
	if err != nil {
		t.Fatalf("establish: %v", err)
	}

	if !m.Verify(ctx, sess) {
		t.Error("fresh session failed verification")
	}

	drv.counts[keyMarker] = 0
	if m.Verify(ctx, sess) {
		t.Error("verification passed after the post-login marker vanished")
	}
	if m.Verify(ctx, nil) {
		t.Error("nil session verified")
	}
}
