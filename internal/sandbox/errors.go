package sandbox

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind names the class of a snippet runtime failure.
type ErrorKind string

const (
	NameError         ErrorKind = "NameError"
	TypeError         ErrorKind = "TypeError"
	ValueError        ErrorKind = "ValueError"
	IndexError        ErrorKind = "IndexError"
	ZeroDivisionError ErrorKind = "ZeroDivisionError"
)

// Violation is returned when a snippet uses a construct the sandbox refuses to run.
type Violation struct {
	Reasons []string
}

func (v *Violation) Error() string {
	parts := make([]string, len(v.Reasons))
	for i, r := range v.Reasons {
		parts[i] = "SecurityError: " + r
	}
	return strings.Join(parts, "; ")
}

// SyntaxError is returned when a snippet cannot be parsed.
type SyntaxError struct {
	Msg    string
	Line   int
	Offset int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("SyntaxError in user code: %s (line %d, offset %d)", e.Msg, e.Line, e.Offset)
}

// RuntimeError is returned when a safe snippet fails while executing.
type RuntimeError struct {
	Kind ErrorKind
	Msg  string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func runtimeErrorf(kind ErrorKind, format string, args ...any) *RuntimeError {
	return &RuntimeError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the error class of err, or "" when err is not a snippet error.
func KindOf(err error) string {
	var rt *RuntimeError
	var syn *SyntaxError
	var vio *Violation
	switch {
	case errors.As(err, &rt):
		return string(rt.Kind)
	case errors.As(err, &syn):
		return "SyntaxError"
	case errors.As(err, &vio):
		return "SecurityError"
	}
	return ""
}

// classify maps an error surfaced by the expression VM onto a RuntimeError.
func classify(err error) *RuntimeError {
	msg := firstLine(err.Error())
	switch {
	case strings.Contains(msg, "divide by zero"):
		return &RuntimeError{Kind: ZeroDivisionError, Msg: "division by zero"}
	case strings.Contains(msg, "out of range"):
		return &RuntimeError{Kind: IndexError, Msg: msg}
	}
	return &RuntimeError{Kind: TypeError, Msg: msg}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
