package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Attempt is one candidate in an ordered fallback list
type Attempt[T any] struct {
	Label   string
	Timeout time.Duration
	Run     func(ctx context.Context) (T, error)
}

// FirstSuccess runs the attempts in order and returns the first result that
// does not fail. Each attempt gets its own timeout. When all of them fail the
// error is an *ExhaustedError carrying every failure.
func FirstSuccess[T any](ctx context.Context, attempts []Attempt[T]) (T, error) {
	var zero T
	failures := make([]Failure, 0, len(attempts))

	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("fallback canceled: %w", err)
		}

		result, err := runAttempt(ctx, a)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return zero, fmt.Errorf("fallback canceled: %w", ctx.Err())
		}

		kind := Classify(err)
		slog.Warn("Provider failed", "label", a.Label, "kind", kind, "err", err)
		failures = append(failures, Failure{Label: a.Label, Kind: kind, Err: err})
	}

	return zero, &ExhaustedError{Failures: failures}
}

func runAttempt[T any](ctx context.Context, a Attempt[T]) (T, error) {
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}
	return a.Run(ctx)
}
