package debugger

import "errors"

// ErrNotEnabled is returned when an operation requires an enabled debugger
// session. Wrapped messages distinguish a plain precondition failure from
// a failed reconnect attempt.
var ErrNotEnabled = errors.New("debugger: session not enabled")

// ErrNotPaused is returned when an operation requires the target to be
// paused at a breakpoint or debugger statement.
var ErrNotPaused = errors.New("debugger: target not paused")

// ErrInvalidInput is returned when request parameters fail validation.
var ErrInvalidInput = errors.New("debugger: invalid input")

// ErrNotFound is returned when a breakpoint, script or call frame id does
// not resolve to a known entity.
var ErrNotFound = errors.New("debugger: not found")

// ErrStaleHandle is returned when a remote object id no longer resolves,
// typically because the target resumed or navigated since the handle was
// issued.
var ErrStaleHandle = errors.New("debugger: stale object handle")

// ErrWaitTimeout is returned by WaitForPaused when no pause event arrives
// within the deadline.
var ErrWaitTimeout = errors.New("debugger: timed out waiting for pause")
