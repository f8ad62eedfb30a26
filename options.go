package bridgesdk

import (
	"log/slog"
	"time"

	"github.com/wagiedev/bridge-sdk-go/internal/config"
)

// Option configures BridgeOptions using the functional options pattern.
// This is the primary option type for configuring clients and Exec.
type Option func(*BridgeOptions)

// applyOptions applies functional options to a BridgeOptions struct.
func applyOptions(opts []Option) *BridgeOptions {
	options := &BridgeOptions{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *BridgeOptions) {
		o.Logger = logger
	}
}

// WithBridgePath sets the explicit path to the bridge executable.
// If not set, the executable is searched in BRIDGE_SDK_PATH, PATH and the
// usual install locations.
func WithBridgePath(path string) Option {
	return func(o *BridgeOptions) {
		o.BridgePath = path
	}
}

// WithAdapter selects the host adapter profile passed to the bridge
// (e.g., "BinhoSupernova"). Aliases from the adapter catalog are accepted.
func WithAdapter(profile string) Option {
	return func(o *BridgeOptions) {
		o.Adapter = profile
	}
}

// WithCwd sets the working directory for the bridge process.
func WithCwd(cwd string) Option {
	return func(o *BridgeOptions) {
		o.Cwd = cwd
	}
}

// WithEnv provides additional environment variables for the bridge process.
func WithEnv(env map[string]string) Option {
	return func(o *BridgeOptions) {
		o.Env = env
	}
}

// WithStderr sets a callback receiving each line the bridge writes to stderr.
func WithStderr(handler func(string)) Option {
	return func(o *BridgeOptions) {
		o.Stderr = handler
	}
}

// ===== Timeouts and Limits =====

// WithRequestTimeout bounds every command. Commands that do not complete in
// time fail with ErrRequestTimeout. Zero relies on the caller's context.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *BridgeOptions) {
		o.RequestTimeout = timeout
	}
}

// WithExitTimeout bounds each graceful step of Close.
func WithExitTimeout(timeout time.Duration) Option {
	return func(o *BridgeOptions) {
		o.ExitTimeout = timeout
	}
}

// WithMaxBufferSize sets the maximum bytes of a single bridge output line.
// Longer lines are discarded and logged; the session continues.
func WithMaxBufferSize(size int) Option {
	return func(o *BridgeOptions) {
		o.MaxBufferSize = size
	}
}

// WithEventBufferSize sets how many responses each OnNotification or
// OnResponse handler may fall behind before events are dropped for it.
func WithEventBufferSize(size int) Option {
	return func(o *BridgeOptions) {
		o.EventBufferSize = size
	}
}

// WithSkipExitCommand disables the exit command Close sends before closing
// the bridge input.
func WithSkipExitCommand(skip bool) Option {
	return func(o *BridgeOptions) {
		o.SkipExitCommand = skip
	}
}

// ===== Advanced =====

// WithTransport injects a custom transport implementation.
// The transport must implement the Transport interface.
func WithTransport(transport Transport) Option {
	return func(o *BridgeOptions) {
		o.Transport = transport
	}
}

// WithConfig applies every field set in a configuration file. Options
// listed after it override the file.
func WithConfig(file *ConfigFile) Option {
	return func(o *BridgeOptions) {
		if file != nil {
			file.Apply(o)
		}
	}
}

// LoadConfigFile reads and validates a YAML configuration file.
func LoadConfigFile(path string) (*ConfigFile, error) {
	return config.LoadFile(path)
}
