package relaylink

import (
	"fmt"
	"github.com/pkg/errors"
)

// ErrTimeout is returned when no matching line arrives before the deadline.
var ErrTimeout = errors.New("relaylink: timeout waiting for response")

// TransportError is an open, read or write failure on the serial device.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("relaylink: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError carries the reason from an ERR,<source>,<reason> line.
type ProtocolError struct {
	Source string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("relaylink: %s error: %s", e.Source, e.Reason)
}

// ParseError reports a malformed numeric field.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("relaylink: unable to parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
