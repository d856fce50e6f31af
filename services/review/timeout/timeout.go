// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package timeout bounds awaited operations and classifies how they ended.
//
// Every blocking call in the review pipeline (model requests, symbol
// extraction, filesystem walks) runs under a deadline. This package
// distinguishes the three ways such a call can fail:
//
//   - the operation's own error (returned unchanged),
//   - the deadline expired (*TimeoutError, recoverable at the tool boundary),
//   - the session was canceled (context cause, always fatal and propagated).
//
// Cancellation is never reported as a timeout, even when both race.
package timeout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// TimeoutError reports that a bounded operation exceeded its budget.
//
// Description:
//
//	Carries the human-readable label of the operation and the budget that
//	was exceeded so callers can surface "X timed out after Y" verbatim.
//
// Thread Safety: Immutable after construction.
type TimeoutError struct {
	// Label identifies the operation that timed out (e.g. "model request").
	Label string

	// Duration is the budget that was exceeded.
	Duration time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Label, e.Duration)
}

// IsTimeout reports whether err (or anything it wraps) is a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsCanceled reports whether err represents cooperative cancellation.
//
// Description:
//
//	True for context.Canceled anywhere in the wrap chain. Deadline
//	expiration is deliberately excluded: a deadline is a timeout, not a
//	user-initiated stop, and the two must never be conflated by callers.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Do runs fn under a deadline and classifies the outcome.
//
// Description:
//
//	Starts fn with a child context carrying the deadline. If the parent
//	context is already done, fn is never started and the cancellation cause
//	is returned immediately. If the deadline expires first, Do returns a
//	*TimeoutError and a watcher goroutine drains fn's eventual result so a
//	late completion is observed (logged at debug) rather than leaked or
//	lost. If the parent is canceled first, the cancellation propagates
//	unchanged. When fn observes the inner deadline itself and returns
//	context.DeadlineExceeded, that is the same *TimeoutError, not an
//	operation failure. All timers are released on every exit path.
//
// Inputs:
//   - ctx: Parent context; its cancellation always wins over the timer.
//   - d: Budget for fn. Must be positive.
//   - label: Operation name used in the TimeoutError and logs.
//   - logger: Destination for the late-completion debug line. Must not be nil.
//   - fn: The operation. It must honor its context argument.
//
// Outputs:
//   - error: nil, fn's own error, *TimeoutError, or a cancellation error.
//
// Thread Safety: Safe for concurrent use.
func Do(ctx context.Context, d time.Duration, label string, logger *slog.Logger, fn func(context.Context) error) error {
	// Cancellation takes priority over everything, including starting fn.
	if err := ctx.Err(); err != nil {
		return err
	}

	inner, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(inner)
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case err := <-done:
		// fn observing the inner deadline itself is still a timeout.
		// Cancellation is checked first so it keeps priority when both
		// appear in the same wrap chain.
		if err != nil && !IsCanceled(err) && errors.Is(err, context.DeadlineExceeded) {
			return &TimeoutError{Label: label, Duration: d}
		}
		return err

	case <-ctx.Done():
		// Drain fn's result in the background so its goroutine can exit.
		go drainLate(done, label, logger)
		return ctx.Err()

	case <-timer.C:
		go drainLate(done, label, logger)
		return &TimeoutError{Label: label, Duration: d}
	}
}

// drainLate observes and discards a result that arrived after the race
// was already decided. The buffered channel guarantees the operation's
// goroutine never blocks on send, so this is observability, not liveness.
func drainLate(done <-chan error, label string, logger *slog.Logger) {
	err := <-done
	if err != nil {
		logger.Debug("late completion discarded",
			slog.String("operation", label),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Debug("late completion discarded", slog.String("operation", label))
}
