package asyncdb

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidArgument is reported synchronously for malformed calls. No task
	// is dispatched and the callback is not invoked.
	ErrInvalidArgument = errors.New("asyncdb: invalid argument")

	// ErrEmptyKey is returned when an operation is attempted with an empty key.
	// It wraps ErrInvalidArgument.
	ErrEmptyKey = errors.Wrap(ErrInvalidArgument, "empty key")

	// ErrNotOpen is delivered to the callback of any operation requested while
	// the handle is not in the Open state.
	ErrNotOpen = errors.New("asyncdb: handle not open")

	// ErrNotImplemented is returned by the snapshot and property placeholders.
	ErrNotImplemented = errors.New("asyncdb: not implemented")

	// ErrDispatcherClosed is returned when submitting to a closed dispatcher.
	ErrDispatcherClosed = errors.New("asyncdb: dispatcher closed")

	// ErrInvalidTransition reports an illegal handle state transition.
	ErrInvalidTransition = errors.New("asyncdb: invalid state transition")

	// ErrNotFound is returned by engines when a key is absent. It never reaches
	// a callback as an error; reads map it to the absent marker.
	ErrNotFound = errors.New("asyncdb: not found")

	// ErrStoreLocked is returned by drivers when a store is in use by another
	// engine instance.
	ErrStoreLocked = errors.New("asyncdb: store is locked")
)

// EngineError wraps an error produced by the storage engine. Its message is
// the engine's own status message.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *EngineError) Unwrap() error { return e.Err }

// engineError wraps err unless it is nil or already one of ours.
func engineError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return err
	}
	if errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrNotOpen) {
		return err
	}
	return &EngineError{Op: op, Err: err}
}

// IsEngineError reports whether err originated in the storage engine.
func IsEngineError(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee)
}

func invalidArgument(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}
