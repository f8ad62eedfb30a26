package config

import (
	"fmt"
	"maps"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the on-disk form of Options, loaded from YAML.
//
// Example:
//
//	bridge_path: /opt/binho/bridge
//	adapter: BinhoSupernova
//	request_timeout: 5s
//	env:
//	  BRIDGE_LOG_LEVEL: debug
type File struct {
	// BridgePath is the path to the bridge executable.
	BridgePath string `yaml:"bridge_path"`

	// Adapter is the host adapter profile.
	Adapter string `yaml:"adapter"`

	// Cwd is the working directory of the bridge process.
	Cwd string `yaml:"cwd"`

	// Env adds environment variables to the bridge process.
	Env map[string]string `yaml:"env"`

	// RequestTimeout bounds every command, e.g. "5s".
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ExitTimeout bounds graceful shutdown, e.g. "2s".
	ExitTimeout time.Duration `yaml:"exit_timeout"`

	// MaxBufferSize is the largest accepted response line in bytes.
	MaxBufferSize int `yaml:"max_buffer_size"`

	// EventBufferSize is the per-observer queue length.
	EventBufferSize int `yaml:"event_buffer_size"`
}

// LoadFile loads a configuration from a YAML file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return &file, nil
}

// Validate checks that the configuration is valid.
func (f *File) Validate() error {
	if f.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative, got %s", f.RequestTimeout)
	}

	if f.ExitTimeout < 0 {
		return fmt.Errorf("exit_timeout must not be negative, got %s", f.ExitTimeout)
	}

	if f.MaxBufferSize < 0 {
		return fmt.Errorf("max_buffer_size must not be negative, got %d", f.MaxBufferSize)
	}

	if f.EventBufferSize < 0 {
		return fmt.Errorf("event_buffer_size must not be negative, got %d", f.EventBufferSize)
	}

	return nil
}

// Apply copies every field set in the file onto o. Env entries are merged,
// with the file taking precedence.
func (f *File) Apply(o *Options) {
	if f.BridgePath != "" {
		o.BridgePath = f.BridgePath
	}

	if f.Adapter != "" {
		o.Adapter = f.Adapter
	}

	if f.Cwd != "" {
		o.Cwd = f.Cwd
	}

	if len(f.Env) > 0 {
		if o.Env == nil {
			o.Env = make(map[string]string, len(f.Env))
		}

		maps.Copy(o.Env, f.Env)
	}

	if f.RequestTimeout > 0 {
		o.RequestTimeout = f.RequestTimeout
	}

	if f.ExitTimeout > 0 {
		o.ExitTimeout = f.ExitTimeout
	}

	if f.MaxBufferSize > 0 {
		o.MaxBufferSize = f.MaxBufferSize
	}

	if f.EventBufferSize > 0 {
		o.EventBufferSize = f.EventBufferSize
	}
}
