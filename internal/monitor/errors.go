package monitor

import "errors"

var (
	// ErrLocationsNotReady is returned when monitoring is requested before
	// both origin and destination are resolved.
	ErrLocationsNotReady = errors.New("origin and destination are not resolved")

	// ErrPositionUnavailable is returned when no seed position could be obtained.
	ErrPositionUnavailable = errors.New("position unavailable")

	// ErrPositionStream marks a fatal end of the position watch.
	ErrPositionStream = errors.New("position stream ended")

	// ErrTransientPosition marks a temporary position failure that does not
	// end the watch.
	ErrTransientPosition = errors.New("position temporarily unavailable")

	// ErrRemoteCallFailed is returned when the trip service could not be reached
	// or rejected the call.
	ErrRemoteCallFailed = errors.New("remote call failed")

	// ErrInvalidPhase is returned when an operation is not allowed in the current phase.
	ErrInvalidPhase = errors.New("operation not allowed in current phase")

	// ErrWatchActive is returned when restarting a watch that is still running.
	ErrWatchActive = errors.New("position watch already active")
)
