package utils

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// ExhaustedError reports that a step kept failing with retryable errors until
// the attempt budget ran out.
type ExhaustedError struct {
	Op       string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// RetryPolicy executes fallible steps with exponential back-off.
//
// Retryable classifies which failures are worth another attempt; when nil,
// every failure is retried. Rand supplies the jitter source so that a seeded
// policy produces a reproducible delay sequence. Sleep is a test hook; when
// nil, delays honour context cancellation.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Retryable   func(error) bool
	Rand        *rand.Rand
	Sleep       func(time.Duration)
	Logger      *Logger
}

// Do runs fn until it succeeds, fails non-retryably, or MaxAttempts is spent.
// Non-retryable failures propagate immediately without consuming attempts.
func (p *RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	delay := p.BaseDelay
	var last error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		last = fn()
		if last == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(last) {
			return last
		}
		if attempt == p.MaxAttempts {
			break
		}

		wait := p.jitter(delay)
		if p.Logger != nil {
			p.Logger.Warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
				op, attempt, p.MaxAttempts, last, wait)
		}
		if err := p.sleep(ctx, wait); err != nil {
			return err
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return &ExhaustedError{Op: op, Attempts: p.MaxAttempts, Last: last}
}

// jitter adds up to 50% of d on top of d.
func (p *RetryPolicy) jitter(d time.Duration) time.Duration {
	if p.Rand == nil || d <= 0 {
		return d
	}
	return d + time.Duration(p.Rand.Int63n(int64(d)/2+1))
}

func (p *RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		p.Sleep(d)
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
