package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxInputSize is 4KB, far above any sensible event name or command line.
	DefaultMaxInputSize = 4096
	// EnvMaxInputSize is the environment variable to override the default.
	EnvMaxInputSize = "FSMSIM_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
	ErrMultiline     = errors.New("event names must fit on one line")
)

// SanitizeInput enforces the size limit, validates UTF-8 and strips control
// characters other than newline, tab and carriage return.
//
// Escape sequences typed at the REPL end up in the action log and in the
// terminal otherwise.
func SanitizeInput(input string) (string, error) {
	if err := checkInput(input); err != nil {
		return "", err
	}
	return strings.Map(keepRune, input), nil
}

// SanitizeEvent cleans an event name received from a user. Surrounding
// whitespace is dropped; an empty result means an eventless step.
func SanitizeEvent(input string) (string, error) {
	if err := checkInput(input); err != nil {
		return "", err
	}
	event := strings.TrimSpace(strings.Map(keepRune, input))
	if strings.ContainsAny(event, "\r\n") {
		return "", ErrMultiline
	}
	return event, nil
}

// checkInput rejects oversized or malformed input. Nothing is truncated.
func checkInput(input string) error {
	if limit := getMaxInputSize(); len(input) > limit {
		return fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return ErrInvalidUTF8
	}
	return nil
}

// keepRune is a strings.Map callback dropping unsafe control characters.
func keepRune(r rune) rune {
	switch {
	case r == '\n', r == '\t', r == '\r':
		return r
	case unicode.IsControl(r):
		return -1
	}
	return r
}

func getMaxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
