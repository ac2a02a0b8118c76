// Package runctx carries the identity of a crawl run through context.Context.
package runctx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type key int

const runKey key = 0

// Run identifies one crawl invocation
type Run struct {
	ID        string
	StartTime time.Time
}

// WithRun attaches a fresh Run to ctx
func WithRun(ctx context.Context) context.Context {
	return context.WithValue(ctx, runKey, &Run{
		ID:        uuid.NewString(),
		StartTime: time.Now(),
	})
}

// FromContext returns the Run attached to ctx, or a placeholder
func FromContext(ctx context.Context) *Run {
	if r, ok := ctx.Value(runKey).(*Run); ok {
		return r
	}
	return &Run{
		ID:        "unknown",
		StartTime: time.Now(),
	}
}

// Logger returns a logger tagged with the run id
func Logger(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	return base.With().Str("run_id", FromContext(ctx).ID).Logger()
}

// RunError wraps an error with the run id
type RunError struct {
	RunID string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("[%s] %v", e.RunID, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Wrap tags err with the run id of ctx; nil stays nil
func Wrap(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	return &RunError{
		RunID: FromContext(ctx).ID,
		Err:   err,
	}
}
