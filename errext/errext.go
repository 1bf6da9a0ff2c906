// Package errext provides small wrappers that attach extra information to
// errors bubbling up to the CLI: a process exit code and an optional
// human-readable hint.
package errext

import (
	"errors"

	"github.com/testwise/runcore/errext/exitcodes"
)

// HasExitCode is an error with an attached process exit code.
type HasExitCode interface {
	error
	ExitCode() exitcodes.ExitCode
}

// WithExitCodeIfNone attaches an exit code to the given error unless it
// already carries one. A nil error is returned unchanged.
func WithExitCodeIfNone(err error, code exitcodes.ExitCode) error {
	if err == nil {
		return nil
	}
	var ecerr HasExitCode
	if errors.As(err, &ecerr) {
		return err
	}
	return withExitCode{err, code}
}

type withExitCode struct {
	error
	exitCode exitcodes.ExitCode
}

func (w withExitCode) Unwrap() error { return w.error }

func (w withExitCode) ExitCode() exitcodes.ExitCode { return w.exitCode }

var _ HasExitCode = withExitCode{}

// HasHint is an error with an attached user hint: extra human-readable
// information about the failure, including suggestions on how to fix it.
type HasHint interface {
	error
	Hint() string
}

// WithHint attaches a hint to the given error. If the error already had a
// hint, the new one wraps it as "new hint (old hint)". A nil error is
// returned unchanged.
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	return withHint{err, hint}
}

type withHint struct {
	error
	hint string
}

func (w withHint) Unwrap() error { return w.error }

func (w withHint) Hint() string {
	hint := w.hint
	var oldhint HasHint
	if errors.As(w.error, &oldhint) {
		hint = hint + " (" + oldhint.Hint() + ")"
	}
	return hint
}

var _ HasHint = withHint{}
