package rawconn

import (
	"errors"
	"fmt"

	"github.com/sqly-go/sqly/auth"
)

// ErrBroken is returned by any operation attempted on a connection already
// in the Broken state (spec §7: "all subsequent operations fail with
// 'previous protocol error reported'").
var ErrBroken = errors.New("rawconn: previous protocol error reported")

// ErrTestCancelled is injected by InjectCancelAt for deterministic
// drop-safety testing (spec §8 "Drop safety, general"). It is never
// returned outside of tests.
var ErrTestCancelled = errors.New("rawconn: test-injected cancellation")

// ProtocolError represents an unrecoverable protocol violation: an
// unexpected byte, truncated packet, extended packet, or auth-plugin
// mismatch (spec §7). Observing one always transitions the connection to
// Broken.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return "rawconn: protocol error: " + e.Msg }

func protoErrf(format string, args ...any) error {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}

// ServerError is a decoded MySQL ERR_Packet (spec §7 "Server error").
// Receiving one leaves the connection Clean — the server has already
// returned to idle.
type ServerError struct {
	Number  uint16
	State   string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("rawconn: server error %d (%s): %s", e.Number, e.State, e.Message)
}

func serverErrorFromAuth(se *auth.ServerError) *ServerError {
	return &ServerError{Number: se.Number, State: se.State, Message: se.Message}
}

// DecodeError is returned when a row packet cannot be decoded against the
// result set's column definitions (spec §7 "Decode error"). The connection
// is not marked Broken: it stays in QueryReadRows, so the rest of the
// result set can still be fetched or drained by Cleanup.
type DecodeError struct {
	Location string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("rawconn: decode error at %s: %v", e.Location, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// BindError covers the three parameter-binding failures from spec §7.
type BindError struct {
	Kind BindErrorKind
	Msg  string
}

// BindErrorKind enumerates spec §4.1's three bind failure modes.
type BindErrorKind int

const (
	TooFewArgumentsBound BindErrorKind = iota
	TooManyArgumentsBound
	TypeMismatch
)

func (e *BindError) Error() string { return "rawconn: bind error: " + e.Msg }

// ErrExpectedRows is returned when a row was required and none came: by
// FetchOne on an empty result set, and by conn's Query when the statement
// executed without a result set (spec §7).
var ErrExpectedRows = errors.New("rawconn: statement produced no rows")

// ErrUnexpectedRows is returned when rows came that were not allowed: by
// FetchOptional (and so FetchOne) on a second row, and by conn's Exec when
// the statement produced a result set (spec §7).
var ErrUnexpectedRows = errors.New("rawconn: statement unexpectedly produced rows")
