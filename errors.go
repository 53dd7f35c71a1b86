package rangelock

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/xerrors"
)

var (
	// ErrCanceled is the kind of a blocking acquisition that was
	// interrupted before it was granted.
	ErrCanceled = xerrors.New("rangelock: wait canceled")

	// ErrTimeout is the kind of a blocking acquisition whose deadline
	// expired before it was granted.
	ErrTimeout = xerrors.New("rangelock: wait timed out")

	// ErrKilled is the cancellation cause that aborts killable waits.
	// Pass it to the cancel function of context.WithCancelCause.
	ErrKilled = xerrors.New("rangelock: killed")
)

// WaitError is returned by blocking acquisitions that gave up waiting.
// The node was removed from the tree and is not held.
type WaitError struct {
	// Range is the range that was being waited for.
	Range Range
	// Kind is ErrCanceled, ErrTimeout or ErrKilled.
	Kind error
	// Cause is the cause reported by the context.
	Cause error
}

func (e *WaitError) Error() string {
	if e.Cause == nil || e.Cause == e.Kind {
		return fmt.Sprintf("%v %v", e.Kind, e.Range)
	}
	return fmt.Sprintf("%v %v: %v", e.Kind, e.Range, e.Cause)
}

// Is matches the error kind, so errors.Is(err, ErrTimeout) works without
// unwrapping the context cause. A killed wait is also a canceled one.
func (e *WaitError) Is(target error) bool {
	return target == e.Kind || target == ErrCanceled && e.Kind == ErrKilled
}

func (e *WaitError) Unwrap() error {
	return e.Cause
}

// waitErrorFor classifies the reason ctx ended.
func waitErrorFor(ctx context.Context, r Range) *WaitError {
	cause := context.Cause(ctx)
	kind := ErrCanceled
	switch {
	case errors.Is(cause, ErrKilled):
		kind = ErrKilled
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = ErrTimeout
	}
	return &WaitError{Range: r, Kind: kind, Cause: cause}
}
