package errors

import (
	"errors"
	"fmt"
)

// BridgeSDKError is the base interface for all SDK errors.
type BridgeSDKError interface {
	error
	IsBridgeSDKError() bool
}

// Compile-time verification that all error types implement BridgeSDKError.
var (
	_ BridgeSDKError = (*BridgeNotFoundError)(nil)
	_ BridgeSDKError = (*ConnectionError)(nil)
	_ BridgeSDKError = (*ProcessError)(nil)
	_ BridgeSDKError = (*DecodeError)(nil)
	_ BridgeSDKError = (*TransportClosedError)(nil)
	_ BridgeSDKError = (*DuplicateTransactionError)(nil)
	_ BridgeSDKError = (*UnknownTransactionError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrClientNotConnected indicates the client was never started.
	ErrClientNotConnected = errors.New("client not connected")

	// ErrClientAlreadyConnected indicates the client is already connected.
	ErrClientAlreadyConnected = errors.New("client already connected")

	// ErrClientClosed indicates the client has been closed and cannot be reused.
	ErrClientClosed = errors.New("client closed: clients are single-use, create a new one with New()")

	// ErrSessionClosed indicates the bridge session ended: the worker closed its
	// output, the transport failed, or the controller was stopped.
	ErrSessionClosed = errors.New("bridge session closed")

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrRequestTimeout indicates a command did not complete in time.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrStdinClosed indicates stdin was closed, either by EndInput or by
	// context cancellation during a blocked write.
	ErrStdinClosed = errors.New("stdin closed")

	// ErrUnknownAdapter indicates an adapter profile that is not in the catalog.
	ErrUnknownAdapter = errors.New("unknown adapter profile")
)

// BridgeNotFoundError indicates the bridge executable was not found.
type BridgeNotFoundError struct {
	SearchedPaths []string
}

func (e *BridgeNotFoundError) Error() string {
	return fmt.Sprintf("bridge executable not found in: %v", e.SearchedPaths)
}

// IsBridgeSDKError implements BridgeSDKError.
func (e *BridgeNotFoundError) IsBridgeSDKError() bool { return true }

// ConnectionError indicates failure to launch or connect to the bridge process.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to bridge: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsBridgeSDKError implements BridgeSDKError.
func (e *ConnectionError) IsBridgeSDKError() bool { return true }

// ProcessError indicates the bridge process exited with an error.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bridge process failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("bridge process failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsBridgeSDKError implements BridgeSDKError.
func (e *ProcessError) IsBridgeSDKError() bool { return true }

// DecodeError indicates a line from the bridge could not be decoded as a
// response envelope. It preserves the raw line.
type DecodeError struct {
	RawData string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode bridge response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsBridgeSDKError implements BridgeSDKError.
func (e *DecodeError) IsBridgeSDKError() bool { return true }

// TransportClosedError indicates a command could not be written because the
// worker's input is gone. It matches ErrSessionClosed as well as the
// underlying write error.
type TransportClosedError struct {
	Err error
}

func (e *TransportClosedError) Error() string {
	return fmt.Sprintf("bridge transport closed: %v", e.Err)
}

func (e *TransportClosedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSessionClosed}
	}

	return []error{ErrSessionClosed, e.Err}
}

// IsBridgeSDKError implements BridgeSDKError.
func (e *TransportClosedError) IsBridgeSDKError() bool { return true }

// DuplicateTransactionError indicates a transaction ID was registered twice.
// Monotonic allocation makes this an invariant violation.
type DuplicateTransactionError struct {
	TransactionID string
}

func (e *DuplicateTransactionError) Error() string {
	return fmt.Sprintf("duplicate transaction id %q", e.TransactionID)
}

// IsBridgeSDKError implements BridgeSDKError.
func (e *DuplicateTransactionError) IsBridgeSDKError() bool { return true }

// UnknownTransactionError indicates a transaction was removed before it
// completed, or removed twice.
type UnknownTransactionError struct {
	TransactionID string
}

func (e *UnknownTransactionError) Error() string {
	return fmt.Sprintf("unknown or incomplete transaction id %q", e.TransactionID)
}

// IsBridgeSDKError implements BridgeSDKError.
func (e *UnknownTransactionError) IsBridgeSDKError() bool { return true }
