// Package relayerr defines the error taxonomy shared by the relay packages.
//
// Every error raised while handling a frame is session-scoped. The Kind tells
// the session handler what to do with it:
//   - Protocol: malformed input, logged, session survives
//   - NotFound: image store miss, logged, session survives
//   - Transport: I/O failure on the connection, session is closed
//   - Storage: disk failure, reported to the client
package relayerr

import (
	"errors"
	"fmt"
)

// Kind represents the category of error that occurred
type Kind int

const (
	// KindProtocol indicates malformed or unrecognized input
	KindProtocol Kind = iota
	// KindNotFound indicates an image store lookup miss
	KindNotFound
	// KindTransport indicates an I/O failure on the underlying stream
	KindTransport
	// KindStorage indicates a disk read or write failure
	KindStorage
)

// String returns a human-readable name for the error kind
func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "Protocol Error"
	case KindNotFound:
		return "Not Found"
	case KindTransport:
		return "Transport Error"
	case KindStorage:
		return "Storage Error"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Error is a classified relay error
type Error struct {
	Kind    Kind   // Category of error
	Message string // Human-readable error message
	Err     error  // Underlying error (if any)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Summary returns the kind and message without the cause. It is safe to
// send to clients.
func (e *Error) Summary() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// NewProtocolError creates an error for malformed client input
func NewProtocolError(message string, err error) *Error {
	return &Error{Kind: KindProtocol, Message: message, Err: err}
}

// NewNotFoundError creates an error for a missing image
func NewNotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// NewTransportError creates an error for a failed read or write on the connection
func NewTransportError(message string, err error) *Error {
	return &Error{Kind: KindTransport, Message: message, Err: err}
}

// NewStorageError creates an error for a failed disk operation
func NewStorageError(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
// ok is false when err carries no classification.
func KindOf(err error) (kind Kind, ok bool) {
	var relayErr *Error
	if errors.As(err, &relayErr) {
		return relayErr.Kind, true
	}
	return 0, false
}

func isKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsProtocol reports whether err is a protocol error
func IsProtocol(err error) bool { return isKind(err, KindProtocol) }

// IsNotFound reports whether err is a lookup miss
func IsNotFound(err error) bool { return isKind(err, KindNotFound) }

// IsTransport reports whether err is a transport failure
func IsTransport(err error) bool { return isKind(err, KindTransport) }

// IsStorage reports whether err is a storage failure
func IsStorage(err error) bool { return isKind(err, KindStorage) }
