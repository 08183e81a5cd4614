package runtest

import (
	"errors"
	"fmt"
	"strings"

	"compiletest/internal/process"
)

// Class groups engine failures by what went wrong.
type Class string

const (
	// ClassConfig is a malformed or contradictory test fixture or a missing tool.
	ClassConfig Class = "config"
	// ClassProcess is an unexpected exit status of the compiler or test binary.
	ClassProcess Class = "process"
	// ClassMismatch is a difference between expected and actual output.
	ClassMismatch Class = "mismatch"
	// ClassICE is an internal compiler error.
	ClassICE Class = "ice"
	// ClassIO is a fixture that cannot be read or written.
	ClassIO Class = "io"
)

// Error is a fatal test failure. It aborts the current test or revision.
type Error struct {
	Class    Class
	Revision string
	Message  string
	// Proc is the invocation the failure is about, if any.
	Proc *process.Result
	// Details lists individual discrepancies for mismatch failures.
	Details []string
}

func (e *Error) Error() string {
	var b strings.Builder
	for _, d := range e.Details {
		b.WriteString(d)
		b.WriteByte('\n')
	}
	if e.Revision != "" {
		fmt.Fprintf(&b, "\nerror in revision `%s`: %s\n", e.Revision, e.Message)
	} else {
		fmt.Fprintf(&b, "\nerror: %s\n", e.Message)
	}
	if e.Proc != nil {
		b.WriteString(renderProc(e.Proc))
	}
	return b.String()
}

func renderProc(p *process.Result) string {
	const rule = "------------------------------------------"
	return fmt.Sprintf("status: %s\ncommand: %s\nstdout:\n%s\n%s\n%s\nstderr:\n%s\n%s\n%s\n\n",
		describeStatus(p.Status), p.Cmdline, rule, p.Stdout, rule, rule, p.Stderr, rule)
}

func describeStatus(status int) string {
	if status < 0 {
		return "signal"
	}
	return fmt.Sprintf("exit code: %d", status)
}

// ClassOf returns the class of err, or "" for errors outside the engine.
func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

func (cx *TestCx) fatal(class Class, msg string) error {
	return &Error{Class: class, Revision: cx.revision, Message: msg}
}

func (cx *TestCx) fatalf(class Class, format string, args ...any) error {
	return cx.fatal(class, fmt.Sprintf(format, args...))
}

func (cx *TestCx) fatalProc(class Class, msg string, proc *process.Result) error {
	return &Error{Class: class, Revision: cx.revision, Message: msg, Proc: proc}
}

func (cx *TestCx) mismatch(msg string, proc *process.Result, details []string) error {
	return &Error{Class: ClassMismatch, Revision: cx.revision, Message: msg, Proc: proc, Details: details}
}

// ioError wraps a fixture I/O failure.
func (cx *TestCx) ioError(err error) error {
	return &Error{Class: ClassIO, Revision: cx.revision, Message: err.Error()}
}
