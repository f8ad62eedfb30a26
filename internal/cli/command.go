package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/wagiedev/bridge-sdk-go/internal/adapters"
	"github.com/wagiedev/bridge-sdk-go/internal/config"
)

// SDKVersion is reported to the bridge process in BRIDGE_SDK_VERSION.
const SDKVersion = "0.1.0"

// BuildArgs constructs the bridge command arguments: the adapter profile and
// nothing else. Aliases resolve to the canonical profile; unknown profiles
// are passed through verbatim and logged.
func BuildArgs(options *config.Options, log *slog.Logger) []string {
	profile := options.AdapterOrDefault()

	id, known := adapters.Resolve(profile)
	if !known && log != nil {
		log.Warn("Unknown adapter profile, passing it to the bridge unchanged", "adapter", profile)
	}

	return []string{id}
}

// BuildEnvironment constructs the environment variables for the bridge process.
func BuildEnvironment(options *config.Options) []string {
	// Start with current environment
	env := os.Environ()

	// Add SDK-specific environment variables
	env = append(env, "BRIDGE_SDK_VERSION="+SDKVersion)
	env = append(env, "BRIDGE_SDK_ENTRYPOINT=sdk-go")

	// Add or override with user-provided environment variables
	for key, value := range options.Env {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}

	return env
}
