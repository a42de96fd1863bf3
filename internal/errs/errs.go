// Package errs defines the error kinds surfaced by the reconciliation engine
// and the operator entry points around it.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	// Validation is bad field-registry input.
	Validation
	// Decode is a spreadsheet codec failure on a file.
	Decode
	// Persistence is a per-row save failure.
	Persistence
	// Authorization means the actor lacks the elevated privilege.
	Authorization
	// Precondition covers calls made in a state that cannot satisfy them.
	Precondition
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "Validation"
	case Decode:
		return "Decode"
	case Persistence:
		return "Persistence"
	case Authorization:
		return "Authorization"
	case Precondition:
		return "Precondition"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Error is a classified failure of a single operation.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s error: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error of the given kind.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap classifies err. It returns nil when err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
