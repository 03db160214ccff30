package asyncdb

import (
	"github.com/cockroachdb/errors"
)

// Code is the outcome class of an engine operation.
type Code uint8

const (
	CodeOK Code = iota
	CodeNotFound
	CodeError
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeNotFound:
		return "not_found"
	case CodeError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is the tri-state result an execute phase stores in its task.
type Status struct {
	Code  Code
	Value []byte // set for CodeOK reads only
	Err   error  // set for CodeError only
}

func statusOK() Status { return Status{Code: CodeOK} }

func statusValue(value []byte) Status {
	if value == nil {
		value = []byte{}
	}
	return Status{Code: CodeOK, Value: value}
}

func statusNotFound() Status { return Status{Code: CodeNotFound} }

func statusError(err error) Status { return Status{Code: CodeError, Err: err} }

// statusFromRead maps the result of an engine Get.
func statusFromRead(value []byte, err error) Status {
	switch {
	case err == nil:
		return statusValue(value)
	case errors.Is(err, ErrNotFound):
		return statusNotFound()
	default:
		return statusError(engineError("get", err))
	}
}

// statusFromWrite maps the result of any engine call without a payload.
func statusFromWrite(op string, err error) Status {
	if err != nil {
		return statusError(engineError(op, err))
	}
	return statusOK()
}

// Callback receives the outcome of an operation without a payload. err is nil
// on success.
type Callback func(err error)

// GetCallback receives the outcome of a read. found is false with a nil err
// when the key is absent; an empty stored value arrives as a non-nil
// zero-length slice with found set.
type GetCallback func(value []byte, found bool, err error)

// deliver invokes a payload-less callback.
func (s Status) deliver(cb Callback) {
	if cb == nil {
		return
	}
	if s.Code == CodeError {
		cb(s.Err)
		return
	}
	cb(nil)
}

// deliverRead invokes a read callback.
func (s Status) deliverRead(cb GetCallback) {
	if cb == nil {
		return
	}
	switch s.Code {
	case CodeOK:
		cb(s.Value, true, nil)
	case CodeNotFound:
		cb(nil, false, nil)
	default:
		cb(nil, false, s.Err)
	}
}
