// internal/retry/retry.go
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Policy bounds how often and how patiently an operation is retried
type Policy struct {
	Attempts   int           // total tries, the first included
	Backoff    time.Duration // wait before the second try
	MaxBackoff time.Duration
	Factor     float64 // growth of the wait per try

	// Retryable replaces IsTimeout as the classifier when set
	Retryable func(error) bool
}

// DefaultPolicy is used for history and detail page loads
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		Backoff:    time.Second,
		MaxBackoff: 10 * time.Second,
		Factor:     2,
	}
}

// ExhaustedError is returned once every attempt failed with a retryable error
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do calls fn until it succeeds, fails with an error the policy does not
// retry, or runs out of attempts. attempt starts at 1.
func Do(ctx context.Context, p Policy, op string, fn func(attempt int) error) error {
	attempts := max(p.Attempts, 1)
	wait := p.Backoff

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				log.Debug().Str("op", op).Int("attempt", attempt).Msg("Succeeded after retry")
			}
			return nil
		}
		if !p.retryable(err) {
			return err
		}
		if attempt == attempts {
			log.Warn().Str("op", op).Int("attempts", attempts).Err(err).Msg("Retries exhausted")
			return &ExhaustedError{Op: op, Attempts: attempts, Err: err}
		}

		log.Debug().
			Str("op", op).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Err(err).
			Msg("Retrying")

		if err := sleep(ctx, wait); err != nil {
			return err
		}
		wait = p.next(wait)
	}
}

func (p Policy) next(wait time.Duration) time.Duration {
	if p.Factor > 1 {
		wait = time.Duration(float64(wait) * p.Factor)
	}
	if p.MaxBackoff > 0 && wait > p.MaxBackoff {
		wait = p.MaxBackoff
	}
	return wait
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return IsTimeout(err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsTimeout reports whether err is a deadline or timeout failure anywhere in its chain
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
