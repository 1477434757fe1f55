package cpuprotocol

import (
	"errors"
	"fmt"
)

// Sentinel errors for the emulator protocol.
var (
	// ErrTimeout indicates a command timed out waiting for its reply.
	ErrTimeout = errors.New("response timeout")

	// ErrCommandFailed indicates the server answered a command with FAIL.
	ErrCommandFailed = errors.New("server returned FAIL response")

	// ErrNotConnected indicates an operation was attempted without a connection.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected indicates connect was called while already connected.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrConnectionClosed indicates the connection was closed while a
	// command was still waiting for its reply.
	ErrConnectionClosed = errors.New("connection closed")
)

// CommandErrorKind categorizes command errors.
type CommandErrorKind int

const (
	// ErrKindFailed indicates the server answered FAIL.
	ErrKindFailed CommandErrorKind = iota
	// ErrKindTimeout indicates no reply arrived within the command timeout.
	ErrKindTimeout
	// ErrKindAborted indicates the command could not complete because the
	// connection failed or was closed.
	ErrKindAborted
)

// CommandError reports a command that did not complete successfully.
type CommandError struct {
	Kind    CommandErrorKind
	Command Command
	Cause   error // For ErrKindAborted
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	switch e.Kind {
	case ErrKindFailed:
		return fmt.Sprintf("server returned FAIL response (command: %s)", e.Command.Op)
	case ErrKindTimeout:
		return fmt.Sprintf("response timeout (command: %s)", e.Command.Op)
	case ErrKindAborted:
		return fmt.Sprintf("command aborted (command: %s): %v", e.Command.Op, e.Cause)
	default:
		return fmt.Sprintf("command error (command: %s)", e.Command.Op)
	}
}

// Unwrap returns the sentinel error for the kind, or the cause of an
// aborted command, for errors.Is/As support.
func (e *CommandError) Unwrap() error {
	switch e.Kind {
	case ErrKindFailed:
		return ErrCommandFailed
	case ErrKindTimeout:
		return ErrTimeout
	default:
		return e.Cause
	}
}

// ProtocolError reports that the inbound stream can no longer be decoded.
// Since frames carry no length prefix, an unknown opcode leaves the decoder
// unable to find the start of the next frame, and the connection must be
// dropped.
type ProtocolError struct {
	Opcode  Opcode
	Message string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("protocol error: %s", e.Message)
	}
	return fmt.Sprintf("protocol error: unrecognized opbyte 0x%02x", uint8(e.Opcode))
}

// ConnectionError represents a connection-related error.
type ConnectionError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connection failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("connection failed: %s", e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NewConnectionError creates a new connection error.
func NewConnectionError(message string, cause error) error {
	return &ConnectionError{Message: message, Cause: cause}
}
