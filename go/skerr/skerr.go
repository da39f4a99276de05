// Package skerr augments errors with a stack trace of the calling code.
//
// Rules for use:
//  1. Wrap errors that originate outside this module: skerr.Wrap(err).
//  2. Add context when it is helpful: skerr.Wrapf(err, "loading %s", url).
//  3. Create new errors with skerr.Fmt, which records the call stack.
//  4. Functions that receive an already-wrapped error should return it as-is
//     or wrap it again with more context; double wrapping is harmless.
package skerr

import (
	"fmt"
	"runtime"
	"strings"
)

// StackTrace identifies a filename (base filename only) and line number.
type StackTrace struct {
	File string
	Line int
}

func (st StackTrace) String() string {
	return fmt.Sprintf("%s:%d", st.File, st.Line)
}

// ErrorWithContext is an error plus the call stack at the point the error was
// wrapped and any context messages added along the way.
type ErrorWithContext struct {
	// Wrapped is the original error.
	Wrapped error
	// CallStack is the stack at the point Wrap/Wrapf/Fmt was called. The
	// first element is the most recent call.
	CallStack []StackTrace
	// Context messages, most recent first.
	Context []string
}

func (err *ErrorWithContext) Error() string {
	var sb strings.Builder
	for _, c := range err.Context {
		sb.WriteString(c)
		sb.WriteString(": ")
	}
	if err.Wrapped != nil {
		sb.WriteString(err.Wrapped.Error())
	}
	if len(err.CallStack) > 0 {
		sb.WriteString(" At")
		for _, st := range err.CallStack {
			sb.WriteString(" ")
			sb.WriteString(st.String())
		}
	}
	return sb.String()
}

// Unwrap supports errors.Is and errors.As.
func (err *ErrorWithContext) Unwrap() error {
	return err.Wrapped
}

// callStack returns the call stack of the caller's caller, skipping an
// additional skip frames.
func callStack(skip int) []StackTrace {
	rv := []StackTrace{}
	for i := skip; ; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		slash := strings.LastIndex(file, "/")
		rv = append(rv, StackTrace{
			File: file[slash+1:],
			Line: line,
		})
	}
	return rv
}

// Wrap adds a stack trace to an error. Returns nil if the given error is nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	if existing, ok := err.(*ErrorWithContext); ok {
		return existing
	}
	return &ErrorWithContext{
		Wrapped:   err,
		CallStack: callStack(2),
	}
}

// Wrapf adds a stack trace and a context message to an error. Returns nil if
// the given error is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	context := fmt.Sprintf(format, args...)
	if existing, ok := err.(*ErrorWithContext); ok {
		return &ErrorWithContext{
			Wrapped:   existing.Wrapped,
			CallStack: existing.CallStack,
			Context:   append([]string{context}, existing.Context...),
		}
	}
	return &ErrorWithContext{
		Wrapped:   err,
		CallStack: callStack(2),
		Context:   []string{context},
	}
}

// Fmt creates a new error with a stack trace, formatting as fmt.Errorf does.
func Fmt(format string, args ...interface{}) error {
	return &ErrorWithContext{
		Wrapped:   fmt.Errorf(format, args...),
		CallStack: callStack(2),
	}
}

// Unwrap returns the original error if err was created by this package, and
// err itself otherwise.
func Unwrap(err error) error {
	if wrapped, ok := err.(*ErrorWithContext); ok {
		return wrapped.Wrapped
	}
	return err
}
