package config

import (
	"log/slog"
	"time"
)

const (
	// DefaultAdapter is the adapter profile passed to the bridge when none is set.
	DefaultAdapter = "BinhoSupernova"

	// DefaultMaxBufferSize is the largest response line accepted by default.
	DefaultMaxBufferSize = 1024 * 1024

	// DefaultExitTimeout bounds the graceful part of shutdown by default.
	DefaultExitTimeout = 2 * time.Second
)

// Options configures the behavior of the bridge client.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// BridgePath is the explicit path to the bridge executable.
	// If empty, the executable is searched for in BRIDGE_SDK_PATH, PATH and
	// the usual install locations.
	BridgePath string

	// Adapter is the host adapter profile passed to the bridge as its only
	// argument. If empty, DefaultAdapter is used.
	Adapter string

	// Cwd sets the working directory for the bridge process.
	Cwd string

	// Env provides additional environment variables for the bridge process.
	Env map[string]string

	// Stderr is a callback function for handling stderr output, one line per call.
	Stderr func(string)

	// MaxBufferSize sets the maximum bytes of a single response line.
	// If zero, DefaultMaxBufferSize is used.
	MaxBufferSize int

	// RequestTimeout bounds every command sent through the client.
	// If zero, commands wait until their context is done.
	RequestTimeout time.Duration

	// ExitTimeout bounds the exit command and the wait for the worker to
	// close its output during Close. If zero, DefaultExitTimeout is used.
	ExitTimeout time.Duration

	// EventBufferSize sets the per-observer queue length for notifications
	// and responses. If zero, the event package default is used.
	EventBufferSize int

	// SkipExitCommand disables the exit command sent during Close.
	SkipExitCommand bool

	// Transport allows injecting a custom transport implementation.
	// If nil, the default BridgeTransport is created automatically.
	// This field is not serialized to JSON.
	Transport Transport `json:"-"`
}

// AdapterOrDefault returns the configured adapter profile or DefaultAdapter.
func (o *Options) AdapterOrDefault() string {
	if o.Adapter != "" {
		return o.Adapter
	}

	return DefaultAdapter
}

// MaxBufferSizeOrDefault returns the configured line limit or DefaultMaxBufferSize.
func (o *Options) MaxBufferSizeOrDefault() int {
	if o.MaxBufferSize > 0 {
		return o.MaxBufferSize
	}

	return DefaultMaxBufferSize
}

// ExitTimeoutOrDefault returns the configured exit timeout or DefaultExitTimeout.
func (o *Options) ExitTimeoutOrDefault() time.Duration {
	if o.ExitTimeout > 0 {
		return o.ExitTimeout
	}

	return DefaultExitTimeout
}
