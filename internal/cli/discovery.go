package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/wagiedev/bridge-sdk-go/internal/errors"
)

const (
	// ExecutableName is the name of the bridge executable searched in PATH.
	ExecutableName = "bridge"

	// PathEnvVar overrides discovery with an explicit executable path.
	PathEnvVar = "BRIDGE_SDK_PATH"
)

// Config holds configuration for bridge discovery.
type Config struct {
	// BridgePath is an explicit executable path that skips the search.
	// If empty, discovery will search BRIDGE_SDK_PATH, PATH and common locations.
	BridgePath string

	// Logger is an optional logger for discovery operations.
	// If nil, a default no-op logger is used.
	Logger *slog.Logger
}

// Discoverer locates the bridge executable.
type Discoverer interface {
	// Discover locates the bridge executable.
	// Returns the path to the executable or an error.
	Discover(ctx context.Context) (string, error)
}

// discoverer implements the Discoverer interface.
type discoverer struct {
	cfg *Config
	log *slog.Logger
}

// Compile-time verification that discoverer implements Discoverer.
var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a new bridge discoverer with the given configuration.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &discoverer{
		cfg: cfg,
		log: log,
	}
}

// Discover locates the bridge executable.
func (d *discoverer) Discover(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	d.log.Debug("Discovering bridge executable")

	bridgePath, err := d.findBridge()
	if err != nil {
		d.log.Error("Failed to find bridge executable", "error", err)

		return "", err
	}

	d.log.Debug("Found bridge executable", "bridge_path", bridgePath)

	return bridgePath, nil
}

// findBridge locates the bridge executable.
func (d *discoverer) findBridge() (string, error) {
	// An explicit path is used and only it
	if d.cfg.BridgePath != "" {
		return d.explicit(d.cfg.BridgePath, "option")
	}

	if envPath := os.Getenv(PathEnvVar); envPath != "" {
		return d.explicit(envPath, PathEnvVar)
	}

	searchedPaths := make([]string, 0, 4)

	d.log.Debug("Searching for executable in PATH", "name", ExecutableName)

	if path, err := exec.LookPath(ExecutableName); err == nil {
		d.log.Debug("Found executable in PATH", "path", path)

		return path, nil
	}

	searchedPaths = append(searchedPaths, "$PATH")

	commonPaths := []string{
		filepath.Join("/usr/local/bin", ExecutableName),
		filepath.Join("/usr/bin", ExecutableName),
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		commonPaths = append(commonPaths, filepath.Join(homeDir, ".local/bin", ExecutableName))
	}

	for _, path := range commonPaths {
		searchedPaths = append(searchedPaths, path)
		d.log.Debug("Checking common path", "path", path)

		if isExecutable(path) {
			d.log.Debug("Found bridge at common path", "path", path)

			return path, nil
		}
	}

	d.log.Warn("Bridge executable not found in any searched paths", "searched_paths", searchedPaths)

	return "", &errors.BridgeNotFoundError{SearchedPaths: searchedPaths}
}

func (d *discoverer) explicit(path, source string) (string, error) {
	d.log.Debug("Using explicit bridge path", "bridge_path", path, "source", source)

	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	d.log.Debug("Explicit bridge path not found", "bridge_path", path)

	return "", &errors.BridgeNotFoundError{SearchedPaths: []string{path}}
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	return info.Mode().Perm()&0o111 != 0
}
