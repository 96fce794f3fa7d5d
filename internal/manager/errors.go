package manager

import (
	"errors"

	"chatd/pkg/types"
)

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ reason string }

func (e tooBusyError) Error() string { return "model is busy: " + e.reason }

// IsTooBusy reports whether err indicates backpressure (retryable).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// notReadyError is returned when generation is attempted before the model is ready.
type notReadyError struct{ progress types.LoadingProgress }

func (e notReadyError) Error() string {
	return "model not loaded yet (" + string(e.progress.Status) + "): " + e.progress.Message
}

// ErrNotReady constructs a notReadyError describing the current progress.
func ErrNotReady(p types.LoadingProgress) error { return notReadyError{progress: p} }

// IsNotReady reports whether err indicates the model is not loaded.
func IsNotReady(err error) bool {
	var e notReadyError
	return errors.As(err, &e)
}

// NotReadyProgress extracts the progress carried by a notReadyError.
func NotReadyProgress(err error) (types.LoadingProgress, bool) {
	var e notReadyError
	if errors.As(err, &e) {
		return e.progress, true
	}
	return types.LoadingProgress{}, false
}

// loadFailure wraps an engine acquisition error.
type loadFailure struct{ err error }

func (e loadFailure) Error() string { return "load model: " + e.err.Error() }
func (e loadFailure) Unwrap() error { return e.err }

// IsLoadFailure reports whether err comes from a failed load attempt.
func IsLoadFailure(err error) bool {
	var e loadFailure
	return errors.As(err, &e)
}

// generationFailure wraps an engine error raised mid-call.
type generationFailure struct{ err error }

func (e generationFailure) Error() string { return "generate: " + e.err.Error() }
func (e generationFailure) Unwrap() error { return e.err }

// IsGenerationFailure reports whether err was raised by the engine during generation.
func IsGenerationFailure(err error) bool {
	var e generationFailure
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a missing external dependency (e.g., llama.cpp
// not compiled in, no API key) so callers can tell configuration problems apart.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}
