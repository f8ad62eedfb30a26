// Package config provides configuration types for the bridge SDK.
package config

import "context"

// Transport defines the interface for bridge communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods (e.g., a worker on another host).
//
// The default implementation is BridgeTransport which spawns a subprocess.
// Custom transports can be injected via Options.Transport.
type Transport interface {
	// Start initializes the transport and prepares it for communication.
	// This is called before any lines are written or read.
	Start(ctx context.Context) error

	// ReadLines returns channels for receiving raw lines and errors.
	// The line channel yields one line per element, without the newline,
	// in stream order. It is closed when the worker closes its output or
	// reading fails; a failure is reported on the error channel.
	// ReadLines must only be called once.
	ReadLines(ctx context.Context) (<-chan []byte, <-chan error)

	// WriteLine writes one line to the worker, appending the newline.
	// This method must be safe for concurrent use: concurrent lines are
	// never interleaved.
	WriteLine(ctx context.Context, data []byte) error

	// Close terminates the transport and releases resources.
	// It's safe to call Close multiple times.
	Close() error

	// IsReady returns true if the transport is ready for communication.
	IsReady() bool

	// EndInput signals that no more input will be sent.
	// For process-based transports, this closes stdin.
	EndInput() error
}
