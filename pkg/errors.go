package stream

import (
	"errors"
	"fmt"
)

// Kind categorizes stream failures.
type Kind uint8

const (
	// Network covers failures reported by the backend's transfer
	// machinery: handshake, send, receive, session creation, or an
	// unsupported backend.
	Network Kind = 1 + iota

	// OS covers failures of the readiness-polling primitive itself.
	OS

	// Certificate marks the one recoverable connect outcome: the
	// transport connected but the peer failed verification.
	Certificate
)

func (k Kind) String() string {
	switch k {
	case Network:
		return "network"
	case OS:
		return "os"
	case Certificate:
		return "certificate"
	}
	return "unknown"
}

// Error is a categorized stream failure.  It replaces the kind of
// process-wide last-error slot found in C stream libraries: every fallible
// operation returns one of these directly.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// NewError builds an Error of kind k wrapping cause (which may be nil).
func NewError(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Msg: msg, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors of the same kind and message, so the exported sentinels
// work with errors.Is even across wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Msg == e.Msg
}

// IsKind reports whether any error in err's chain is a stream Error of
// kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

var (
	// ErrCertificate is returned by Connect when the transport connected
	// but the peer's certificate failed verification.  The stream remains
	// usable; callers decide whether to proceed.
	ErrCertificate = &Error{Kind: Certificate, Msg: "peer certificate verification failed"}

	// ErrClosed is returned by operations on a closed stream.
	ErrClosed = &Error{Kind: Network, Msg: "stream is closed"}

	// ErrNotSupported is returned by constructors on builds where the
	// backend's transfer engine is unavailable.
	ErrNotSupported = &Error{Kind: Network, Msg: "transfer engine not supported in this build"}
)
