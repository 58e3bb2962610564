package portal

import (
	"errors"
	"fmt"
)

// ElementNotFoundError reports that every location strategy for a role yielded
// zero or ambiguous matches.
type ElementNotFoundError struct {
	Role       string
	Strategies int
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element %q not found after %d strategies", e.Role, e.Strategies)
}

// NavigationTimeoutError reports that a step's render/network wait elapsed.
type NavigationTimeoutError struct {
	Step string
	Err  error
}

func (e *NavigationTimeoutError) Error() string {
	return fmt.Sprintf("step %q timed out: %v", e.Step, e.Err)
}

func (e *NavigationTimeoutError) Unwrap() error { return e.Err }

// AuthError reports a credential rejection. Never retried.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// SessionLostError reports that the authenticated session disappeared mid-run.
// Fatal for the current run.
type SessionLostError struct{}

func (e *SessionLostError) Error() string { return "authenticated session lost" }

// Retryable classifies failures for the retry policies. Credential rejection
// and session loss propagate immediately; everything else (missing elements,
// render timeouts, flaky transport) is worth another attempt.
func Retryable(err error) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return false
	}
	var lostErr *SessionLostError
	return !errors.As(err, &lostErr)
}
