package bridgesdk

import "github.com/wagiedev/bridge-sdk-go/internal/errors"

// Re-export error types from internal package

// BridgeNotFoundError indicates the bridge executable was not found.
type BridgeNotFoundError = errors.BridgeNotFoundError

// ConnectionError indicates failure to launch or connect to the bridge.
type ConnectionError = errors.ConnectionError

// ProcessError indicates the bridge process exited with an error.
type ProcessError = errors.ProcessError

// DecodeError indicates a bridge output line was not a valid response.
type DecodeError = errors.DecodeError

// TransportClosedError indicates a command could not be written to the bridge.
type TransportClosedError = errors.TransportClosedError

// DuplicateTransactionError indicates a transaction ID was registered twice.
type DuplicateTransactionError = errors.DuplicateTransactionError

// UnknownTransactionError indicates a transaction was removed before completing.
type UnknownTransactionError = errors.UnknownTransactionError

// BridgeSDKError is the base interface for all SDK errors.
type BridgeSDKError = errors.BridgeSDKError

// Re-export sentinel errors from internal package.
var (
	// ErrClientNotConnected indicates the client is not connected.
	ErrClientNotConnected = errors.ErrClientNotConnected

	// ErrClientAlreadyConnected indicates the client is already connected.
	ErrClientAlreadyConnected = errors.ErrClientAlreadyConnected

	// ErrClientClosed indicates the client has been closed and cannot be reused.
	ErrClientClosed = errors.ErrClientClosed

	// ErrSessionClosed indicates the bridge session ended.
	ErrSessionClosed = errors.ErrSessionClosed

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.ErrTransportNotConnected

	// ErrRequestTimeout indicates a command did not complete in time.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrStdinClosed indicates the bridge input was closed.
	ErrStdinClosed = errors.ErrStdinClosed

	// ErrUnknownAdapter indicates an adapter profile that is not in the catalog.
	ErrUnknownAdapter = errors.ErrUnknownAdapter
)
