package connector

import (
	"errors"
	"fmt"
)

// ErrorKind classifies connector failures.
type ErrorKind string

const (
	// KindProtocol is a misuse of the drag protocol, such as starting a
	// second session or connecting to an incompatible slot.
	KindProtocol ErrorKind = "protocol"
	// KindStaleReference means a link refers to a node or slot that no
	// longer exists.
	KindStaleReference ErrorKind = "stale-reference"
	// KindStructuralConflict means the operation would corrupt a reroute
	// chain. Nothing is written when it is returned.
	KindStructuralConflict ErrorKind = "structural-conflict"
)

// Error carries the kind, the failing operation and optional context.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error in %s: %s (caused by: %v)", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error in %s: %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// WithContext adds a key/value pair to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func newError(kind ErrorKind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: msg, Cause: cause}
}

func protocolError(op, msg string) *Error {
	return newError(KindProtocol, op, msg, nil)
}

func staleError(op, msg string, cause error) *Error {
	return newError(KindStaleReference, op, msg, cause)
}

func conflictError(op, msg string) *Error {
	return newError(KindStructuralConflict, op, msg, nil)
}

// Sentinels for errors.Is.
var (
	ErrProtocol           = &Error{Kind: KindProtocol}
	ErrStaleReference     = &Error{Kind: KindStaleReference}
	ErrStructuralConflict = &Error{Kind: KindStructuralConflict}
)

// IsKind reports whether err is a connector error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}
