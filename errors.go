package vgasim

import (
	"fmt"
)

// Kind discriminates kernel errors. Every error returned by this package
// carries exactly one Kind, retrievable with KindOf.
type Kind int

const (
	// KindNone is returned by KindOf for nil or foreign errors.
	KindNone Kind = iota
	// LoadError: malformed design description, zero or multiple top
	// modules, duplicate signal path or unresolved constant pool.
	LoadError
	// BindError: a required signal path is missing from the compiled model
	// or its width does not match the declaration.
	BindError
	// ConvergenceError: combinational settling exceeded its iteration cap.
	ConvergenceError
	// DetectionTimeout: polarity detection, frame synchronization or a
	// frame render exceeded its cycle budget.
	DetectionTimeout
	// RuntimeFault: the compiled model faulted during evaluation.
	RuntimeFault
)

func (k Kind) String() string {
	switch k {
	case LoadError:
		return "load error"
	case BindError:
		return "bind error"
	case ConvergenceError:
		return "convergence error"
	case DetectionTimeout:
		return "detection timeout"
	case RuntimeFault:
		return "runtime fault"
	}
	return "unknown"
}

// Error is the structured error value returned by all kernel operations.
type Error struct {
	Kind Kind
	msg  string
	err  error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.Kind.String() + ": " + e.msg + ": " + e.err.Error()
	}
	return e.Kind.String() + ": " + e.msg
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.err }

// Cause returns the wrapped cause for github.com/pkg/errors compatibility.
func (e *Error) Cause() error { return e.err }

func errf(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, msg: fmt.Sprintf(format, args...)}
}

func wrapf(k Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: k, msg: fmt.Sprintf(format, args...), err: err}
}

// KindOf reports the Kind of err, unwrapping as needed.
// It returns KindNone for nil and for errors not created by this package.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return KindNone
}
