package chat

import (
	"errors"
	"fmt"
)

var (
	ErrTransportUnavailable  = errors.New("relay unreachable")
	ErrMediaPermissionDenied = errors.New("camera and microphone access is required for video chat")
	ErrPeerLost              = errors.New("peer connection lost")
	ErrMalformedEnvelope     = errors.New("malformed envelope")
	ErrNoActivePairing       = errors.New("no active pairing")
	ErrClosed                = errors.New("channel closed")
)

// Error describes a failed operation on the chat core.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
